// Package tool is the tool dispatch layer spec.md §4.10 specifies: a
// provider registry governed by per-call grant policies, invoked by the
// VM's ToolCall instruction. Grounded on the teacher's
// internal/orm/hooks/executor.go (a registry of named handlers invoked
// with a deadline, recording outcomes) generalized from ORM lifecycle
// hooks to tool providers, since Conduit has no external-tool concept of
// its own.
package tool

import "fmt"

// ErrorKind enumerates the nine ToolError variants spec.md §4.10 names.
type ErrorKind uint8

const (
	ErrNotFound ErrorKind = iota
	ErrInvalidArgs
	ErrExecutionFailed
	ErrRateLimit
	ErrAuthError
	ErrModelNotFound
	ErrTimeout
	ErrProviderUnavailable
	ErrOutputValidationFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrNotFound:
		return "NotFound"
	case ErrInvalidArgs:
		return "InvalidArgs"
	case ErrExecutionFailed:
		return "ExecutionFailed"
	case ErrRateLimit:
		return "RateLimit"
	case ErrAuthError:
		return "AuthError"
	case ErrModelNotFound:
		return "ModelNotFound"
	case ErrTimeout:
		return "Timeout"
	case ErrProviderUnavailable:
		return "ProviderUnavailable"
	case ErrOutputValidationFailed:
		return "OutputValidationFailed"
	default:
		return "Unknown"
	}
}

// ToolError is the runtime error value spec.md §4.10 describes; fields
// beyond Kind/Message are populated only for the variant that uses them
// (RetryAfterMs for RateLimit; ElapsedMs/LimitMs for Timeout;
// ExpectedSchema/Actual for OutputValidationFailed).
type ToolError struct {
	Kind ErrorKind
	Message string

	RetryAfterMs   int64
	ElapsedMs      int64
	LimitMs        int64
	ExpectedSchema string
	Actual         string
}

func (e *ToolError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("tool: %s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("tool: %s", e.Kind)
}

func NotFound(name string) *ToolError {
	return &ToolError{Kind: ErrNotFound, Message: fmt.Sprintf("no provider bound for tool %q", name)}
}

func InvalidArgs(msg string) *ToolError {
	return &ToolError{Kind: ErrInvalidArgs, Message: msg}
}

func ExecutionFailed(err error) *ToolError {
	return &ToolError{Kind: ErrExecutionFailed, Message: err.Error()}
}

func RateLimit(retryAfterMs int64) *ToolError {
	return &ToolError{Kind: ErrRateLimit, Message: "rate limited", RetryAfterMs: retryAfterMs}
}

func AuthError(msg string) *ToolError {
	return &ToolError{Kind: ErrAuthError, Message: msg}
}

func ModelNotFound(model string) *ToolError {
	return &ToolError{Kind: ErrModelNotFound, Message: fmt.Sprintf("unknown model %q", model)}
}

func Timeout(elapsedMs, limitMs int64) *ToolError {
	return &ToolError{Kind: ErrTimeout, Message: "deadline exceeded", ElapsedMs: elapsedMs, LimitMs: limitMs}
}

func ProviderUnavailable(msg string) *ToolError {
	return &ToolError{Kind: ErrProviderUnavailable, Message: msg}
}

func OutputValidationFailed(expected, actual string) *ToolError {
	return &ToolError{Kind: ErrOutputValidationFailed, Message: "output did not match schema", ExpectedSchema: expected, Actual: actual}
}

// Transient reports whether a ToolError variant is one the retry policy
// wraps (spec.md §4.10: "RateLimit, ProviderUnavailable, some Timeouts").
// A Timeout is transient only when the elapsed time did not already exceed
// twice the configured limit, which would indicate a hung provider rather
// than ordinary jitter.
func (e *ToolError) Transient() bool {
	switch e.Kind {
	case ErrRateLimit, ErrProviderUnavailable:
		return true
	case ErrTimeout:
		return e.LimitMs == 0 || e.ElapsedMs <= 2*e.LimitMs
	default:
		return false
	}
}
