package venue

import "fmt"

// Kind is the semantic error taxonomy the supervisor uses to decide
// restart vs. escalate vs. exit.
type Kind int

const (
	KindTransient Kind = iota
	KindRateLimited
	KindProtocol
	KindInvariant
	KindAuth
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindProtocol:
		return "protocol"
	case KindInvariant:
		return "invariant"
	case KindAuth:
		return "auth"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind so callers can branch with
// errors.As without parsing message strings.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// RetryAfter is carried by a KindRateLimited error when the venue advertised
// a Retry-After duration.
type RetryAfter struct {
	*Error
	Seconds int
}
