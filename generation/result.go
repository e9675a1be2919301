package generation

import (
	"errors"
	"fmt"

	"github.com/serisow/coalmind/schema"
)

type Status string

const (
	StatusSuccess      Status = "success"
	StatusFailed       Status = "failed"
	StatusRenderFailed Status = "render_failed"
	StatusRejected     Status = "rejected"
)

// FailureKind qualifies a StatusFailed result.
type FailureKind string

const (
	KindModelUnavailable FailureKind = "model_unavailable"
	KindValidationFailed FailureKind = "validation_failed"
	KindInvalidRequest   FailureKind = "invalid_request"
)

// Result is the terminal state of every generation pipeline. Exactly one of
// the four statuses is set; failures always carry Err.
type Result struct {
	Status      Status
	Kind        FailureKind
	Value       map[string]any
	Explanation string
	RawText     string
	Err         error
	Reason      string
	Attempts    int
}

func Success(value map[string]any, explanation string, attempts int) Result {
	return Result{Status: StatusSuccess, Value: value, Explanation: explanation, Attempts: attempts}
}

func Failed(kind FailureKind, rawText string, err error, attempts int) Result {
	return Result{Status: StatusFailed, Kind: kind, RawText: rawText, Err: err, Attempts: attempts}
}

func RenderFailed(reason string, err error) Result {
	return Result{Status: StatusRenderFailed, Reason: reason, Err: err}
}

func Rejected(reason string) Result {
	return Result{Status: StatusRejected, Reason: reason}
}

func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// Message is a human readable summary suitable for API responses.
func (r Result) Message() string {
	switch r.Status {
	case StatusSuccess:
		return "generated successfully"
	case StatusRejected:
		return "request rejected: " + r.Reason
	case StatusRenderFailed:
		return "generated output could not be rendered: " + r.Reason
	case StatusFailed:
		switch r.Kind {
		case KindModelUnavailable:
			return "language model unavailable"
		case KindInvalidRequest:
			return "invalid generation request"
		default:
			return fmt.Sprintf("model output failed validation after %d attempts", r.Attempts)
		}
	}
	return string(r.Status)
}

// ErrModelUnavailable wraps transport and quota failures of the model call.
var ErrModelUnavailable = errors.New("model unavailable")

// ParseError means no usable JSON object was found in the model response.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "could not parse a JSON object from the response: " + e.Reason
}

// SchemaValidationError carries the structural mismatches of a parsed response.
type SchemaValidationError struct {
	Errors schema.FieldErrors
}

func (e *SchemaValidationError) Error() string {
	return "the JSON does not match the required structure:\n" + e.Errors.Error()
}

// GenerationFailedError is the terminal error after the correction attempt.
type GenerationFailedError struct {
	Attempts int
	Last     error
}

func (e *GenerationFailedError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *GenerationFailedError) Unwrap() error {
	return e.Last
}
