// Package tradingerr is the engine's unified error taxonomy. It
// replaces ad-hoc fmt.Errorf calls with a single typed error carrying a
// Kind, so callers can branch on failure class with errors.As instead of
// string matching.
package tradingerr

import "fmt"

// Kind classifies a TradingError per the engine's error-handling design.
type Kind int

const (
	// InvalidInput covers NaN, negative price, zero quantity and similar
	// malformed arguments. Surfaced to the caller; state is unchanged.
	InvalidInput Kind = iota
	// InsufficientFunds denies a Buy signal; not an error to the engine.
	InsufficientFunds
	// OversoldInventory is returned by apply_fill when a sell would drive
	// inventory negative.
	OversoldInventory
	// RiskHalt is sticky at the portfolio level; the engine transitions
	// to Halted.
	RiskHalt
	// FeedError covers feed disconnects and malformed frames.
	FeedError
	// ExchangeRetriable covers network/rate-limit failures eligible for
	// retry.
	ExchangeRetriable
	// ExchangeFatal covers rejected orders / insufficient funds at the
	// exchange; the order is abandoned.
	ExchangeFatal
	// InternalInvariantViolation halts the whole system; never
	// suppressed.
	InternalInvariantViolation
	// EmptyBook is returned by the simulator when there is no opposing
	// liquidity to fill against.
	EmptyBook
	// InsufficientData is returned by the Market State Analyzer when the
	// price window is empty.
	InsufficientData
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "InvalidInput"
	case InsufficientFunds:
		return "InsufficientFunds"
	case OversoldInventory:
		return "OversoldInventory"
	case RiskHalt:
		return "RiskHalt"
	case FeedError:
		return "FeedError"
	case ExchangeRetriable:
		return "ExchangeRetriable"
	case ExchangeFatal:
		return "ExchangeFatal"
	case InternalInvariantViolation:
		return "InternalInvariantViolation"
	case EmptyBook:
		return "EmptyBook"
	case InsufficientData:
		return "InsufficientData"
	default:
		return "Unknown"
	}
}

// TradingError is the engine's single error type.
type TradingError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *TradingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *TradingError) Unwrap() error { return e.Cause }

// Is allows errors.Is(err, tradingerr.New(Kind, "")) to match on Kind alone.
func (e *TradingError) Is(target error) bool {
	t, ok := target.(*TradingError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs a TradingError of the given kind.
func New(kind Kind, message string) *TradingError {
	return &TradingError{Kind: kind, Message: message}
}

// Wrap constructs a TradingError of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *TradingError {
	return &TradingError{Kind: kind, Message: message, Cause: cause}
}

// Retriable reports whether an error is eligible for retry (FeedError and
// ExchangeRetriable per the error-handling design's propagation policy).
func Retriable(err error) bool {
	te, ok := err.(*TradingError)
	if !ok {
		return false
	}
	return te.Kind == FeedError || te.Kind == ExchangeRetriable
}
