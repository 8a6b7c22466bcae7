package analysis

import (
	"context"
	"errors"
	"log/slog"

	"github.com/codeGROOVE-dev/riskboard/pkg/metrics"
	"github.com/codeGROOVE-dev/riskboard/pkg/normalize"
	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

const (
	fallbackRecommendationsMessage = "Code files retrieved successfully"
	fallbackSummaryMessage         = "Using fallback summary data"
)

// fallbackAPI serves canned payloads when the backend cannot be reached.
type fallbackAPI struct {
	next API
	est  *normalize.Estimator
}

// WithFallback wraps next so that Network errors are replaced by fixed sample
// payloads marked Fallback. Structured backend errors and every other failure
// pass through unchanged.
func WithFallback(next API, est *normalize.Estimator) API {
	return &fallbackAPI{next: next, est: est}
}

func (f *fallbackAPI) RetrieveTestRecommendations(ctx context.Context, prID string) (*RecommendationsResult, error) {
	res, err := f.next.RetrieveTestRecommendations(ctx, prID)
	if err == nil || !errors.Is(err, types.ErrNetwork) {
		return res, err
	}
	slog.Warn("Analysis backend unreachable, serving sample recommendations", "component", "backend", "pr_id", prID, "error", err)
	metrics.BackendFallbacks.WithLabelValues("retrieve").Inc()

	res = newRecommendationsResult(fallbackRecommendationsMessage, FallbackFiles(), nil, f.est)
	res.Fallback = true
	return res, nil
}

func (f *fallbackAPI) RetrievePRSummary(ctx context.Context, prID string) (*SummaryResult, error) {
	res, err := f.next.RetrievePRSummary(ctx, prID)
	if err == nil || !errors.Is(err, types.ErrNetwork) {
		return res, err
	}
	slog.Warn("Analysis backend unreachable, serving sample summary", "component", "backend", "pr_id", prID, "error", err)
	metrics.BackendFallbacks.WithLabelValues("summary").Inc()

	return &SummaryResult{Message: fallbackSummaryMessage, Summary: FallbackSummary(), Fallback: true}, nil
}

// FallbackSummary is the sample summary served when the backend is unreachable.
func FallbackSummary() types.AnalysisSummary {
	return types.AnalysisSummary{
		TotalFiles:        3,
		LinesChanged:      342,
		Complexity:        "medium",
		RiskScore:         65,
		TestCoverage:      78,
		OverallAssessment: "This PR introduces moderate changes with acceptable risk levels. Review recommended for service layer modifications.",
	}
}

// FallbackFiles are the sample generated tests served when the backend is unreachable.
func FallbackFiles() []types.BackendFile {
	return []types.BackendFile{
		{
			ID: "PaymentProcessor.java",
			TestCasesFlat: `@Test
public void testProcessPayment_ValidInput_Success() {
    PaymentProcessor processor = new PaymentProcessor();
    PaymentRequest request = new PaymentRequest(100.0, "USD", "valid-card");

    PaymentResult result = processor.processPayment(request);

    assertEquals(PaymentStatus.SUCCESS, result.getStatus());
    assertNotNull(result.getTransactionId());
}`,
		},
		{
			ID: "UserValidator.java",
			TestCasesFlat: `@Test
public void testValidateUser_InvalidEmail_ThrowsException() {
    UserValidator validator = new UserValidator();
    UserData invalidUser = new UserData("invalid-email", "password123");

    assertThrows(ValidationException.class, () -> {
        validator.validateUser(invalidUser);
    });
}`,
		},
		{
			ID: "DatabaseConnection.java",
			TestCasesFlat: `@Test
public void testDatabaseConnection_FailureScenario_HandlesGracefully() {
    DatabaseConnection connection = new DatabaseConnection("invalid-url");

    assertFalse(connection.isConnected());
    assertThrows(ConnectionException.class, () -> {
        connection.executeQuery("SELECT * FROM users");
    });
}`,
		},
	}
}
