package domain

import (
	"github.com/allisson/fieldcrypt/internal/errors"
)

// Field encryption error taxonomy.
//
// These domain-specific errors wrap standard errors from internal/errors so
// callers can branch on the broad category (errors.ErrConfiguration,
// errors.ErrInvalidInput, errors.ErrNotFound) or on the precise condition.
// Error messages may carry context metadata (record type, field name, key
// version) but never plaintext, key material, or derived subkeys.
var (
	// ErrUnknownAlgorithm indicates an envelope references an algorithm
	// identifier that no registered provider implements. The envelope is never
	// partially decrypted.
	ErrUnknownAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unknown algorithm")

	// ErrMalformedEnvelope indicates the envelope bytes cannot be parsed:
	// invalid JSON, missing fields, bad base64, or length-incorrect nonce/tag.
	// Surfaced immediately, never retried.
	ErrMalformedEnvelope = errors.Wrap(errors.ErrInvalidInput, "malformed envelope")

	// ErrUnknownKeyVersion indicates an envelope references a master key
	// version that is no longer present in the key ring. This is a distinct,
	// non-silent error so operators can detect incomplete rotations.
	ErrUnknownKeyVersion = errors.Wrap(errors.ErrNotFound, "unknown key version")

	// ErrAuthenticationFailed indicates AEAD tag verification failed: the
	// ciphertext was tampered with, the wrong key or context was used, or the
	// data is corrupted. It must never be confused with "value is absent" and
	// never silently converted to a fallback value.
	ErrAuthenticationFailed = errors.Wrap(errors.ErrInvalidInput, "authentication failed")

	// ErrAlreadyCleared indicates access was attempted on a concealed value
	// after its buffer was explicitly cleared.
	ErrAlreadyCleared = errors.Wrap(errors.ErrInvalidInput, "value already cleared")

	// ErrNoProviderAvailable indicates no registered AEAD provider passed its
	// availability check. Startup-fatal when any encrypted field is declared.
	ErrNoProviderAvailable = errors.Wrap(errors.ErrConfiguration, "no provider available")

	// ErrProviderNotFound indicates a provider was requested by an algorithm
	// identifier that is not registered.
	ErrProviderNotFound = errors.Wrap(errors.ErrNotFound, "provider not found")

	// ErrInvalidKeySize indicates a master key or derived subkey is not
	// exactly 32 bytes (256 bits).
	ErrInvalidKeySize = errors.Wrap(errors.ErrConfiguration, "invalid key size")

	// ErrCurrentVersionMissing indicates the configured current key version is
	// absent from the key ring.
	ErrCurrentVersionMissing = errors.Wrap(errors.ErrConfiguration, "current key version missing from ring")

	// ErrInvalidContext indicates the encryption context is incomplete: record
	// type, field name, and record identifier are all required.
	ErrInvalidContext = errors.Wrap(errors.ErrInvalidInput, "invalid encryption context")
)
