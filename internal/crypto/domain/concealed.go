package domain

import (
	"log/slog"
	"sync"
)

// ConcealedPlaceholder is the fixed representation every default formatting
// path renders instead of the plaintext.
const ConcealedPlaceholder = "[CONCEALED]"

// ConcealedValue holds decrypted plaintext while resisting accidental
// disclosure. It is the return type of every successful decrypt.
//
// Default textual representations (fmt verbs, JSON marshaling, slog fields)
// render ConcealedPlaceholder, never the plaintext. The plaintext is only
// reachable through Reveal, which bounds its lifetime to a callback and clears
// the internal copy afterwards, or through Bytes, the unscoped accessor for
// cases where a bounded scope is not feasible (higher-risk: the caller owns
// the returned copy and is responsible for zeroing it).
//
// Equality is by identity only. Comparing two concealed values by content
// would reopen the comparison-based oracle the wrapper exists to close.
type ConcealedValue struct {
	mu      sync.Mutex
	value   []byte
	cleared bool
}

// NewConcealedValue wraps a copy of the plaintext. The caller may zero its own
// buffer after the call.
func NewConcealedValue(plaintext []byte) *ConcealedValue {
	value := make([]byte, len(plaintext))
	copy(value, plaintext)
	return &ConcealedValue{value: value}
}

// Reveal invokes fn with the plaintext, then clears the internal copy so the
// unwrapped value's lifetime is visibly bounded in calling code. The slice
// passed to fn is only valid for the duration of the callback; fn must not
// retain it. The internal buffer is cleared even when fn returns an error.
//
// Returns ErrAlreadyCleared when the value was already revealed or cleared.
func (c *ConcealedValue) Reveal(fn func(plaintext []byte) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cleared {
		return ErrAlreadyCleared
	}

	defer c.clearLocked()
	return fn(c.value)
}

// Bytes returns a copy of the plaintext without clearing the wrapper.
//
// This is the unscoped accessor: nothing bounds the returned copy's lifetime,
// so prefer Reveal wherever a callback scope is feasible. Returns
// ErrAlreadyCleared after Clear or a completed Reveal.
func (c *ConcealedValue) Bytes() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cleared {
		return nil, ErrAlreadyCleared
	}

	out := make([]byte, len(c.value))
	copy(out, c.value)
	return out, nil
}

// Clear best-effort-zeroes the internal buffer and marks the wrapper as
// cleared. Any subsequent access fails with ErrAlreadyCleared rather than
// silently returning stale or empty data. Clearing twice is a no-op.
func (c *ConcealedValue) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *ConcealedValue) clearLocked() {
	if c.cleared {
		return
	}
	Zero(c.value)
	c.value = nil
	c.cleared = true
}

// Equal reports whether other is the same wrapper instance. Content is never
// compared.
func (c *ConcealedValue) Equal(other *ConcealedValue) bool {
	return c == other
}

// String implements fmt.Stringer and always returns the placeholder.
func (c *ConcealedValue) String() string {
	return ConcealedPlaceholder
}

// GoString implements fmt.GoStringer so %#v cannot leak the plaintext either.
func (c *ConcealedValue) GoString() string {
	return ConcealedPlaceholder
}

// MarshalJSON renders the placeholder so concealed values serialized as part
// of a larger document never carry the plaintext.
func (c *ConcealedValue) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ConcealedPlaceholder + `"`), nil
}

// MarshalText renders the placeholder for text-based encoders.
func (c *ConcealedValue) MarshalText() ([]byte, error) {
	return []byte(ConcealedPlaceholder), nil
}

// LogValue implements slog.LogValuer so structured log fields render the
// placeholder.
func (c *ConcealedValue) LogValue() slog.Value {
	return slog.StringValue(ConcealedPlaceholder)
}
