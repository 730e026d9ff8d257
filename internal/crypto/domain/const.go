package domain

// Algorithm represents the AEAD algorithm used for field encryption.
//
// All supported algorithms provide Authenticated Encryption with Associated Data
// (AEAD), ensuring both confidentiality and authenticity of encrypted field
// values. The algorithm identifier is persisted inside every envelope so that
// decryption can resolve the matching provider without external hints.
//
// Algorithm selection guidelines:
//   - XChaCha20 is the strongest option: its 24-byte nonce makes random nonce
//     collisions negligible even at very high encryption volumes
//   - AESGCM is the guaranteed fallback, hardware-accelerated on CPUs with AES-NI
type Algorithm string

const (
	// AESGCM represents the AES-256-GCM authenticated encryption algorithm.
	//
	// Key features:
	//   - 256-bit key size
	//   - 12-byte nonce (96 bits)
	//   - 16-byte authentication tag
	//   - Hardware acceleration on modern CPUs
	AESGCM Algorithm = "aes-gcm"

	// XChaCha20 represents the XChaCha20-Poly1305 authenticated encryption
	// algorithm, the extended-nonce variant of ChaCha20-Poly1305.
	//
	// Key features:
	//   - 256-bit key size
	//   - 24-byte nonce (192 bits), safe for random generation at any volume
	//   - 16-byte authentication tag
	//   - Constant-time implementation, no hardware dependency
	XChaCha20 Algorithm = "xchacha20-poly1305"
)

const (
	// KeySize is the key length in bytes required by every supported algorithm.
	KeySize = 32

	// TagSize is the authentication tag length in bytes produced by every
	// supported algorithm (Poly1305 and GMAC both emit 128-bit tags).
	TagSize = 16
)

// NonceSize returns the nonce length in bytes required by the algorithm, or 0
// for an unknown algorithm.
func (a Algorithm) NonceSize() int {
	switch a {
	case AESGCM:
		return 12
	case XChaCha20:
		return 24
	default:
		return 0
	}
}

// Valid reports whether the algorithm is one of the supported identifiers.
func (a Algorithm) Valid() bool {
	return a == AESGCM || a == XChaCha20
}
