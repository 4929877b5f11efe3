package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Field limits for values flowing into history events. They bound the size of
// value keys, which concatenate several values.
const (
	MaxValueLen          = 200
	MaxDecompositionSize = 64
	MaxDocumentEvents    = 10_000
)

var validate = validator.New()

// Validate checks a request struct against its `validate` tags and flattens
// validator errors into a single message naming the JSON fields involved.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Namespace()
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = jsonName(name)
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "max":
		return fmt.Sprintf("%s exceeds maximum of %s", name, fe.Param())
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", name, fe.Param())
	default:
		return fmt.Sprintf("%s failed %q validation", name, fe.Tag())
	}
}

// jsonName converts a Go field path such as "SubSystems[0]" to "sub_systems[0]".
func jsonName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && field[i-1] != '.' && field[i-1] != '[' {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// APIResponse is the standard response envelope for all HTTP API responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeInternalError = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMITED"
)

// ExploreRequest is the request body for POST /api/explore and
// POST /api/interactive/start.
type ExploreRequest struct {
	InitialSystem string `json:"initial_system" validate:"required,max=200"`
}

// SituationRequest is the request body for POST /api/interactive/situation.
type SituationRequest struct {
	Situation string `json:"situation" validate:"required,max=200"`
}

// ProblemRequest is the request body for POST /api/interactive/problem.
type ProblemRequest struct {
	Problem string `json:"problem" validate:"required,max=200"`
}

// IntentionRequest is the request body for POST /api/interactive/intention.
type IntentionRequest struct {
	Intention string `json:"intention" validate:"required,max=200"`
}

// DecomposeRequest is the request body for POST /api/interactive/decompose.
// Unequal list lengths are accepted; only the overlapping prefix reaches the
// dependency graph.
type DecomposeRequest struct {
	SubIntentions []string `json:"sub_intentions" validate:"required,min=1,max=64,dive,required,max=200"`
	SubSystems    []string `json:"sub_systems" validate:"required,min=1,max=64,dive,required,max=200"`
}

// SolutionRequest is the request body for POST /api/interactive/solution.
type SolutionRequest struct {
	Solution  string `json:"solution" validate:"required,max=200"`
	Subsystem string `json:"subsystem,omitempty" validate:"max=200"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  int64  `json:"uptime_seconds"`
}
