package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codeGROOVE-dev/riskboard/pkg/types"
)

// Category classifies a structured backend error.
type Category string

// Backend error categories.
const (
	CategoryEmptyID  Category = "empty_id"
	CategoryNotFound Category = "not_found"
	CategoryNoFiles  Category = "no_files"
	CategoryGeneric  Category = "generic"
)

// BackendError is an {"status":"error"} response from the analysis backend.
// It unwraps to a *types.Error so errors.Is matches the types sentinels.
type BackendError struct {
	Payload    json.RawMessage `json:"payload,omitempty"`
	Category   Category        `json:"category"`
	Message    string          `json:"error"`
	StatusCode int             `json:"statusCode,omitempty"`
}

func newBackendError(msg string, status int, body []byte) *BackendError {
	e := &BackendError{
		Category:   categorize(msg),
		Message:    msg,
		StatusCode: status,
	}
	if json.Valid(body) {
		e.Payload = json.RawMessage(body)
	}
	return e
}

func categorize(msg string) Category {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "cannot be empty"):
		return CategoryEmptyID
	case strings.Contains(lower, "no files found"):
		return CategoryNoFiles
	case strings.Contains(lower, "not found"):
		return CategoryNotFound
	default:
		return CategoryGeneric
	}
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("analysis backend error (%d): %s", e.StatusCode, e.Message)
	}
	return "analysis backend error: " + e.Message
}

// Kind maps the category onto the shared error taxonomy.
func (e *BackendError) Kind() types.ErrorKind {
	switch e.Category {
	case CategoryEmptyID:
		return types.KindValidation
	case CategoryNotFound, CategoryNoFiles:
		return types.KindNotFound
	default:
		return types.KindUpstream
	}
}

// Unwrap exposes the error as a *types.Error.
func (e *BackendError) Unwrap() error {
	return &types.Error{Kind: e.Kind(), Message: e.Message, StatusCode: e.StatusCode}
}
