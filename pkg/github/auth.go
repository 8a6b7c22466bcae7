package github

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Authentication constants.
const (
	maxTokenLength     = 255 // Fine-grained tokens are longer than classic ones
	minTokenLength     = 40
	classicTokenLength = 40
	maxAppID           = 999999999
	filePermReadOnly   = 0o400
	filePermOwnerRW    = 0o600
	jwtLifetime        = 10 * time.Minute // GitHub rejects App JWTs valid for longer
	jwtRefreshMargin   = 1 * time.Minute
	tokenRefreshMargin = 5 * time.Minute
)

// appAuth holds GitHub App credentials and the tokens derived from them.
type appAuth struct {
	jwtExpiry     time.Time
	clock         TimeProvider
	installations map[string]installationToken // by account login
	appID         string
	jwt           string
	privateKey    []byte
	mu            sync.Mutex
}

type installationToken struct {
	expiresAt time.Time
	token     string
}

func newAppAuth(appID string, keyContent []byte, keyPath string, clock TimeProvider) (*appAuth, error) {
	if err := validateAppID(appID); err != nil {
		return nil, err
	}
	privateKey, err := loadPrivateKey(keyContent, keyPath)
	if err != nil {
		return nil, err
	}
	a := &appAuth{
		appID:         appID,
		privateKey:    privateKey,
		clock:         clock,
		installations: make(map[string]installationToken),
	}
	if _, err := a.currentJWT(); err != nil {
		return nil, fmt.Errorf("failed to generate JWT: %w", err)
	}
	return a, nil
}

// currentJWT returns the App JWT, signing a new one shortly before expiry.
func (a *appAuth) currentJWT() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.clock.Now()
	if a.jwt != "" && now.Before(a.jwtExpiry) {
		return a.jwt, nil
	}
	token, err := generateJWT(a.appID, a.privateKey, now)
	if err != nil {
		return "", err
	}
	a.jwt = token
	a.jwtExpiry = now.Add(jwtLifetime - jwtRefreshMargin)
	slog.Debug("Signed GitHub App JWT", "component", "api", "app_id", a.appID)
	return token, nil
}

// generateJWT generates a JWT token for GitHub App authentication.
func generateJWT(appID string, privateKey []byte, now time.Time) (string, error) {
	block, _ := pem.Decode(privateKey)
	if block == nil {
		return "", errors.New("failed to parse PEM block containing the private key")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		parsedKey, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return "", fmt.Errorf("failed to parse private key: %w", err)
		}
		var ok bool
		key, ok = parsedKey.(*rsa.PrivateKey)
		if !ok {
			return "", errors.New("private key is not RSA")
		}
	}

	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(jwtLifetime).Unix(),
		"iss": appID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}

// installationToken returns an installation access token for the account owning owner/repo.
// Tokens are cached per account until shortly before they expire.
func (c *Client) installationToken(ctx context.Context, owner, repo string) (string, error) {
	a := c.app
	now := c.clock.Now()

	a.mu.Lock()
	if t, ok := a.installations[owner]; ok && now.Before(t.expiresAt) {
		a.mu.Unlock()
		return t.token, nil
	}
	a.mu.Unlock()

	jwtToken, err := a.currentJWT()
	if err != nil {
		return "", err
	}
	bearer := "Bearer " + jwtToken

	// Lookup by repository works for both organization and user accounts.
	lookups := []string{fmt.Sprintf("%s/repos/%s/%s/installation", c.baseURL, url.PathEscape(owner), url.PathEscape(repo))}
	if repo == "" {
		lookups = []string{
			fmt.Sprintf("%s/orgs/%s/installation", c.baseURL, url.PathEscape(owner)),
			fmt.Sprintf("%s/users/%s/installation", c.baseURL, url.PathEscape(owner)),
		}
	}
	var resp *response
	for _, lookup := range lookups {
		resp, err = c.send(ctx, http.MethodGet, lookup, bearer, nil)
		if err != nil {
			return "", err
		}
		if resp.status == http.StatusOK {
			break
		}
	}
	if resp.status != http.StatusOK {
		return "", fmt.Errorf("no installation found for %s (status %d)", owner, resp.status)
	}
	var installation struct {
		Account struct {
			Login string `json:"login"`
			Type  string `json:"type"`
		} `json:"account"`
		ID int64 `json:"id"`
	}
	if err := json.Unmarshal(resp.body, &installation); err != nil {
		return "", fmt.Errorf("failed to decode installation: %w", err)
	}

	slog.Info("Creating installation access token", "component", "api", "account", owner, "installation_id", installation.ID, "type", installation.Account.Type)
	tokenURL := fmt.Sprintf("%s/app/installations/%d/access_tokens", c.baseURL, installation.ID)
	resp, err = c.send(ctx, http.MethodPost, tokenURL, bearer, nil)
	if err != nil {
		return "", err
	}
	if resp.status != http.StatusCreated {
		return "", fmt.Errorf("failed to create installation token (status %d): %s", resp.status, string(resp.body))
	}

	var tokenResp struct {
		ExpiresAt time.Time `json:"expires_at"`
		Token     string    `json:"token"`
	}
	if err := json.Unmarshal(resp.body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResp.Token == "" {
		return "", errors.New("received empty installation token")
	}

	a.mu.Lock()
	a.installations[owner] = installationToken{
		token:     tokenResp.Token,
		expiresAt: tokenResp.ExpiresAt.Add(-tokenRefreshMargin),
	}
	a.mu.Unlock()

	return tokenResp.Token, nil
}

// Token returns a credential suitable for other codeGROOVE services (prx, sprinkler).
// For App authentication this is an installation token for owner.
func (c *Client) Token(ctx context.Context, owner string) (string, error) {
	if c.app == nil {
		return c.token, nil
	}
	if owner == "" {
		return c.app.currentJWT()
	}
	return c.installationToken(ctx, owner, "")
}

// validateAppID validates the GitHub App ID.
func validateAppID(appID string) error {
	appIDNum, err := strconv.Atoi(appID)
	if err != nil {
		return fmt.Errorf("GITHUB_APP_ID must be numeric: %w", err)
	}
	if appIDNum <= 0 || appIDNum > maxAppID {
		return errors.New("GITHUB_APP_ID out of valid range")
	}
	return nil
}

// loadPrivateKey loads the private key from content or file path.
func loadPrivateKey(privateKeyContent []byte, keyPath string) ([]byte, error) {
	var privateKey []byte
	var err error

	switch {
	case len(privateKeyContent) > 0:
		privateKey = privateKeyContent
	case keyPath != "":
		privateKey, err = readPrivateKeyFile(keyPath)
		if err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("GitHub App private key is required: set GITHUB_APP_KEY_PATH")
	}

	if !bytes.Contains(privateKey, []byte("BEGIN RSA PRIVATE KEY")) &&
		!bytes.Contains(privateKey, []byte("BEGIN PRIVATE KEY")) {
		return nil, errors.New("private key does not appear to be a valid PEM private key")
	}

	return privateKey, nil
}

// readPrivateKeyFile reads and validates a private key file.
func readPrivateKeyFile(keyPath string) ([]byte, error) {
	cleanPath := filepath.Clean(keyPath)
	if !filepath.IsAbs(cleanPath) {
		return nil, errors.New("GITHUB_APP_KEY_PATH must be an absolute path")
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access private key file: %w", err)
	}
	if fileInfo.IsDir() {
		return nil, errors.New("GITHUB_APP_KEY_PATH must be a file, not a directory")
	}

	perm := fileInfo.Mode().Perm()
	if perm != filePermOwnerRW && perm != filePermReadOnly {
		return nil, fmt.Errorf("private key file has insecure permissions %04o (must be 0600 or 0400)", perm)
	}

	return os.ReadFile(cleanPath)
}

// validateToken validates a GitHub personal access token.
func validateToken(token string) error {
	if len(token) > maxTokenLength || len(token) < minTokenLength {
		return errors.New("invalid token length")
	}

	validPrefixes := []string{"ghp_", "gho_", "ghu_", "ghs_", "ghr_", "github_pat_"}
	for _, prefix := range validPrefixes {
		if strings.HasPrefix(token, prefix) {
			return nil
		}
	}

	// Could be a classic token (40 hex chars)
	if len(token) != classicTokenLength {
		return errors.New("invalid token format")
	}
	for _, r := range token {
		if (r < 'a' || r > 'f') && (r < '0' || r > '9') {
			return errors.New("invalid classic token format")
		}
	}

	return nil
}
