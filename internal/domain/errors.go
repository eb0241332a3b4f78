package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "connect", "read", "write")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Engine error taxonomy. None of these is fatal to the process: every
// one leaves the engine in the well-defined prior state.
var (
	// ErrStaleUpdate is returned when a book update's sequence number does
	// not strictly increase. The update is dropped. Data-quality event.
	ErrStaleUpdate = errors.New("stale update")

	// ErrCrossedBook is returned when applying an update would make
	// best bid >= best ask. The update is dropped and the previous
	// snapshot retained. Data-quality event.
	ErrCrossedBook = errors.New("crossed book")

	// ErrInsufficientBalance is returned when a simulated buy would drive
	// the quote balance negative. The fill is rejected, never clamped.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInsufficientData is returned when a spread window has no samples
	// yet, or the book lacks depth for a requested notional size.
	ErrInsufficientData = errors.New("insufficient data")
)
