package counters

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInterval is returned when a key carries a non-positive refresh interval.
	ErrInvalidInterval = errors.New("counters: interval must be positive")

	// ErrNilProvider is returned when registering a nil provider.
	ErrNilProvider = errors.New("counters: provider is nil")

	// ErrUnknownCounter is returned when a catalog has no provider for a name.
	ErrUnknownCounter = errors.New("counters: unknown counter")

	// ErrProviderPanic is wrapped by ProviderPanicError.
	ErrProviderPanic = errors.New("counters: provider panicked")
)

// ProviderPanicError records a panic raised by a provider during refresh.
type ProviderPanicError struct {
	Key   Key
	Value any
}

func (e *ProviderPanicError) Error() string {
	return fmt.Sprintf("counters: provider %s panicked: %v", e.Key, e.Value)
}

func (e *ProviderPanicError) Unwrap() error {
	return ErrProviderPanic
}
