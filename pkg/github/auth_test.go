package github

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/codeGROOVE-dev/riskboard/pkg/internal/testutil"
)

func testKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return key, pemBytes
}

func TestGenerateJWT(t *testing.T) {
	key, pemBytes := testKey(t)
	now := time.Now()

	signed, err := generateJWT("12345", pemBytes, now)
	if err != nil {
		t.Fatalf("generateJWT() error = %v", err)
	}

	parsed, err := jwt.Parse(signed, func(*jwt.Token) (any, error) { return &key.PublicKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		t.Fatalf("failed to verify JWT: %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("unexpected claims type %T", parsed.Claims)
	}
	if iss, _ := claims.GetIssuer(); iss != "12345" {
		t.Errorf("expected issuer 12345, got %q", iss)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp.Unix() != now.Add(jwtLifetime).Unix() {
		t.Errorf("unexpected expiry %v (err %v)", exp, err)
	}
}

func TestGenerateJWT_PKCS8(t *testing.T) {
	key, _ := testKey(t)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	if _, err := generateJWT("1", pemBytes, time.Now()); err != nil {
		t.Errorf("expected PKCS8 key to be accepted, got %v", err)
	}
}

func TestGenerateJWT_InvalidPEM(t *testing.T) {
	if _, err := generateJWT("1", []byte("garbage"), time.Now()); err == nil {
		t.Error("expected error for invalid PEM")
	}
}

func TestLoadPrivateKey_FilePermissions(t *testing.T) {
	_, pemBytes := testKey(t)
	dir := t.TempDir()

	secure := filepath.Join(dir, "secure.pem")
	if err := os.WriteFile(secure, pemBytes, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadPrivateKey(nil, secure); err != nil {
		t.Errorf("expected 0600 key to load, got %v", err)
	}

	loose := filepath.Join(dir, "loose.pem")
	if err := os.WriteFile(loose, pemBytes, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(loose, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadPrivateKey(nil, loose); err == nil {
		t.Error("expected insecure permissions to be rejected")
	}

	if _, err := loadPrivateKey(nil, "relative.pem"); err == nil {
		t.Error("expected relative path to be rejected")
	}
	if _, err := loadPrivateKey([]byte("not a key"), ""); err == nil {
		t.Error("expected non-PEM content to be rejected")
	}
}

func TestAppAuth_InstallationToken(t *testing.T) {
	_, pemBytes := testKey(t)
	clock := testutil.NewMockClock(testNow)
	doer := testutil.NewMockHTTPDoer()
	doer.SetResponse("GET", "https://api.github.com/repos/acme/api/installation", http.StatusOK,
		map[string]any{"id": 99, "account": map[string]any{"login": "acme", "type": "Organization"}})
	doer.SetResponse("POST", "https://api.github.com/app/installations/99/access_tokens", http.StatusCreated,
		map[string]any{"token": "ghs_installation", "expires_at": testNow.Add(time.Hour).Format(time.RFC3339)})
	doer.SetResponse("GET", "https://api.github.com/repos/acme/api", http.StatusOK, map[string]any{"name": "api"})
	doer.SetResponse("GET", "https://api.github.com/repos/acme/api/pulls/1", http.StatusOK, map[string]any{"number": 1})

	c, err := New(context.Background(), Config{
		AppID:      "12345",
		AppKey:     pemBytes,
		HTTPClient: doer,
		Clock:      clock,
		Tracker:    freshTracker(clock),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if !c.Authenticated() {
		t.Error("expected App client to be authenticated")
	}

	if _, err := c.Repository(context.Background(), "acme", "api"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.PullRequest(context.Background(), "acme", "api", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := doer.CallCount("POST", "https://api.github.com/app/installations/99/access_tokens"); n != 1 {
		t.Errorf("expected installation token to be reused, got %d token requests", n)
	}
	for _, call := range doer.Calls() {
		if call.URL == "https://api.github.com/repos/acme/api" {
			if got := call.Header.Get("Authorization"); got != "Bearer ghs_installation" {
				t.Errorf("expected installation token, got %q", got)
			}
		}
	}
}

func TestAppAuth_NotInstalled(t *testing.T) {
	_, pemBytes := testKey(t)
	clock := testutil.NewMockClock(testNow)
	c, err := New(context.Background(), Config{
		AppID:      "12345",
		AppKey:     pemBytes,
		HTTPClient: testutil.NewMockHTTPDoer(),
		Clock:      clock,
		Tracker:    freshTracker(clock),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = c.Repository(context.Background(), "other", "repo")
	if err == nil {
		t.Fatal("expected error when the app is not installed")
	}
}

func TestToken_PersonalToken(t *testing.T) {
	c, _, _ := newTestClient(t, testutil.NewMockHTTPDoer(), testToken)
	got, err := c.Token(context.Background(), "acme")
	if err != nil || got != testToken {
		t.Errorf("Token() = %q, %v; want %q", got, err, testToken)
	}
}
