// Package apperrors defines the error taxonomy shared across the wiki
// pipeline, the job orchestrator, and the HTTP boundary. Each kind
// carries the HTTP status the (out of scope) transport layer should
// map it to, so services can return a plain error and let the
// boundary decide presentation.
package apperrors

import "fmt"

// Kind classifies an error for retry and HTTP-status purposes.
type Kind string

const (
	InvalidInput     Kind = "invalid_input"
	NotFound         Kind = "not_found"
	Conflict         Kind = "conflict"
	Acquisition      Kind = "acquisition_error"
	SourceHost       Kind = "source_host_error"
	Agent            Kind = "agent_error"
	AgentTimeoutKind Kind = "agent_timeout"
	Execution        Kind = "execution_error"
	Fatal            Kind = "fatal"
)

// Error is the concrete error type returned by internal packages.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether the job orchestrator should retry a job
// that failed with this error (spec §7: pipeline-internal errors are
// retryable up to max_attempts; InvalidInput/NotFound/Conflict/Fatal
// are not).
func (e *Error) Retryable() bool {
	switch e.Kind {
	case Acquisition, SourceHost, Agent, AgentTimeoutKind:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the conventional status code for this kind.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case InvalidInput:
		return 400
	case NotFound:
		return 404
	case Conflict:
		return 409
	default:
		return 500
	}
}

func New(kind Kind, message string) error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// As extracts an *Error from err, if any.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
