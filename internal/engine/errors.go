package engine

import "errors"

// Error taxonomy. Every failure surfaced by the engine wraps one of these.
var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidState   = errors.New("invalid state")
	ErrIllegalAbility = errors.New("illegal ability")
	ErrCapacity       = errors.New("capacity exceeded")
)

// Kind names the taxonomy bucket of err, for error events and HTTP status mapping.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrInvalidState):
		return "InvalidState"
	case errors.Is(err, ErrIllegalAbility):
		return "IllegalAbility"
	case errors.Is(err, ErrCapacity):
		return "Capacity"
	default:
		return "Internal"
	}
}
