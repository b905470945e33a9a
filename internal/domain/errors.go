package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrRateLimited         = errors.New("rate limited")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrLockHeld            = errors.New("lock already held")
	ErrVenueUnreachable    = errors.New("venue unreachable")
	ErrBalanceFetch        = errors.New("balance fetch failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrOrderSubmission     = errors.New("order submission failed")
	ErrInvalidSymbol       = errors.New("invalid symbol")
	ErrNoVenues            = errors.New("no venues configured")
	ErrNoSymbols           = errors.New("no symbols configured")
	ErrInvalidSettings     = errors.New("invalid settings")
)

// ErrorKind is the stable, machine-readable name of a failure category.
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindVenueUnreachable     ErrorKind = "venue_unreachable"
	KindBalanceFetchError    ErrorKind = "balance_fetch_error"
	KindInsufficientBalance  ErrorKind = "insufficient_balance"
	KindOrderSubmissionError ErrorKind = "order_submission_error"
	KindInvalidSymbol        ErrorKind = "invalid_symbol"
	KindConfiguration        ErrorKind = "configuration_error"
	KindUnknown              ErrorKind = "unknown"
)

// KindOf maps err onto its ErrorKind. Balance and order errors are checked
// before venue errors since they usually wrap one.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrInvalidSymbol):
		return KindInvalidSymbol
	case errors.Is(err, ErrBalanceFetch):
		return KindBalanceFetchError
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.Is(err, ErrOrderSubmission):
		return KindOrderSubmissionError
	case errors.Is(err, ErrNoVenues), errors.Is(err, ErrNoSymbols), errors.Is(err, ErrInvalidSettings):
		return KindConfiguration
	case errors.Is(err, ErrVenueUnreachable), errors.Is(err, ErrRateLimited), errors.Is(err, ErrUnauthorized):
		return KindVenueUnreachable
	default:
		return KindUnknown
	}
}
