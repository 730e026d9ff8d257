package domain

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/allisson/fieldcrypt/internal/errors"
)

// Key ring loading errors. All wrap errors.ErrConfiguration and are fatal at
// startup validation.
var (
	// ErrMasterKeysNotSet indicates the MASTER_KEYS environment variable is not configured.
	ErrMasterKeysNotSet = errors.Wrap(errors.ErrConfiguration, "MASTER_KEYS not set")

	// ErrCurrentKeyVersionNotSet indicates the CURRENT_KEY_VERSION environment variable is not configured.
	ErrCurrentKeyVersionNotSet = errors.Wrap(errors.ErrConfiguration, "CURRENT_KEY_VERSION not set")

	// ErrInvalidMasterKeysFormat indicates a MASTER_KEYS entry is not in "version:base64key" format.
	ErrInvalidMasterKeysFormat = errors.Wrap(errors.ErrConfiguration, "invalid MASTER_KEYS format")

	// ErrInvalidMasterKeyBase64 indicates a master key entry is not valid base64.
	ErrInvalidMasterKeyBase64 = errors.Wrap(errors.ErrConfiguration, "invalid master key base64")

	// ErrDuplicateKeyVersion indicates the same version identifier appears twice in MASTER_KEYS.
	ErrDuplicateKeyVersion = errors.Wrap(errors.ErrConfiguration, "duplicate key version")
)

// KeyUnwrapper decrypts KMS-wrapped master key material at load time.
// *secrets.Keeper from gocloud.dev/secrets implements it.
type KeyUnwrapper interface {
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// MasterKey represents one versioned master key in the ring.
//
// Master keys are the root of the field encryption hierarchy: every field
// subkey is derived from exactly one of them. Keys must be 32 bytes (256 bits)
// and generated with a cryptographically secure random generator.
type MasterKey struct {
	Version string
	Key     []byte
}

// KeyRing is an ordered mapping from key-version identifier to master key
// material, plus a designated current version used for new encryptions.
//
// A version referenced by any stored envelope must remain in the ring until
// all data under it has been rotated away; removing it early surfaces as
// ErrUnknownKeyVersion on decrypt rather than data corruption.
//
// The ring is loaded once at process start, immutable during normal operation,
// and replaced wholesale during a rotation rollout. Because it is read-only
// after construction it may be shared by unlimited concurrent encrypt/decrypt
// calls without locking.
type KeyRing struct {
	current  string
	versions []string
	keys     map[string]*MasterKey
}

// NewKeyRing builds a ring from ordered master keys and a current version.
//
// Every key must be exactly 32 bytes and every version unique. The current
// version must be present in the ring. Key bytes are copied, so callers may
// zero their own buffers after construction.
func NewKeyRing(keys []MasterKey, current string) (*KeyRing, error) {
	if current == "" {
		return nil, ErrCurrentKeyVersionNotSet
	}

	ring := &KeyRing{
		current: current,
		keys:    make(map[string]*MasterKey, len(keys)),
	}

	for _, mk := range keys {
		if mk.Version == "" {
			ring.Close()
			return nil, fmt.Errorf("%w: empty version identifier", ErrInvalidMasterKeysFormat)
		}
		if len(mk.Key) != KeySize {
			ring.Close()
			return nil, fmt.Errorf(
				"%w: master key %s must be %d bytes, got %d",
				ErrInvalidKeySize,
				mk.Version,
				KeySize,
				len(mk.Key),
			)
		}
		if _, ok := ring.keys[mk.Version]; ok {
			ring.Close()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateKeyVersion, mk.Version)
		}

		key := make([]byte, KeySize)
		copy(key, mk.Key)
		ring.keys[mk.Version] = &MasterKey{Version: mk.Version, Key: key}
		ring.versions = append(ring.versions, mk.Version)
	}

	if _, ok := ring.keys[current]; !ok {
		ring.Close()
		return nil, fmt.Errorf("%w: CURRENT_KEY_VERSION=%s", ErrCurrentVersionMissing, current)
	}

	return ring, nil
}

// CurrentVersion returns the version identifier used for new encryptions.
func (r *KeyRing) CurrentVersion() string {
	return r.current
}

// Current returns the master key used for new encryptions.
func (r *KeyRing) Current() *MasterKey {
	return r.keys[r.current]
}

// Get retrieves a master key by its version identifier. Used on decrypt and
// during rotation to recover keys for envelopes written under older versions.
func (r *KeyRing) Get(version string) (*MasterKey, bool) {
	mk, ok := r.keys[version]
	return mk, ok
}

// Versions returns the version identifiers in their configured order.
func (r *KeyRing) Versions() []string {
	out := make([]string, len(r.versions))
	copy(out, r.versions)
	return out
}

// Close best-effort-zeroes all master key material and resets the ring.
// Call during process shutdown or before replacing the ring in a rotation
// rollout.
func (r *KeyRing) Close() {
	for _, mk := range r.keys {
		Zero(mk.Key)
	}
	r.current = ""
	r.versions = nil
	r.keys = map[string]*MasterKey{}
}

// LoadKeyRingFromEnv loads the master key ring from environment variables.
//
// Configuration:
//
//	MASTER_KEYS="v1:YWJjZGVmZ2hpamtsbW5vcHFyc3R1dnd4eXoxMjM0NTY3OA==,v2:..."
//	CURRENT_KEY_VERSION="v2"
//
// Each entry is "version:base64key" and must decode to exactly 32 bytes. Entry
// order is preserved as the ring's version order. When unwrapper is non-nil
// the decoded bytes are treated as KMS-wrapped ciphertext and unwrapped before
// being stored, so raw key material never appears in the environment.
//
// Temporary decoded buffers are zeroed once copied into the ring, and the ring
// is closed on any error to prevent partial initialization.
func LoadKeyRingFromEnv(ctx context.Context, unwrapper KeyUnwrapper) (*KeyRing, error) {
	raw := os.Getenv("MASTER_KEYS")
	if raw == "" {
		return nil, ErrMasterKeysNotSet
	}

	current := os.Getenv("CURRENT_KEY_VERSION")
	if current == "" {
		return nil, ErrCurrentKeyVersionNotSet
	}

	var keys []MasterKey
	defer func() {
		for i := range keys {
			Zero(keys[i].Key)
		}
	}()

	for part := range strings.SplitSeq(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMasterKeysFormat, part)
		}
		version := p[0]
		key, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidMasterKeyBase64, version, err)
		}
		if unwrapper != nil {
			unwrapped, err := unwrapper.Decrypt(ctx, key)
			if err != nil {
				Zero(key)
				return nil, errors.Wrapf(errors.ErrConfiguration, "failed to unwrap master key %s: %v", version, err)
			}
			// The unwrapper may return a slice aliasing its input, so the
			// plaintext is copied out before the ciphertext buffer is zeroed.
			plain := make([]byte, len(unwrapped))
			copy(plain, unwrapped)
			Zero(unwrapped)
			Zero(key)
			key = plain
		}
		keys = append(keys, MasterKey{Version: version, Key: key})
	}

	return NewKeyRing(keys, current)
}
