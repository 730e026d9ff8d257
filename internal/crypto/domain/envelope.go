package domain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Envelope is the serialized result of one field encryption. It is
// self-describing: the algorithm identifier and key version are carried inside
// so that decryption can select the correct provider and master key without
// external hints. Envelopes are created on encrypt, persisted as opaque blobs
// by the host record layer, parsed on decrypt, and never mutated in place.
type Envelope struct {
	Algorithm  Algorithm
	KeyVersion string
	Nonce      []byte
	Ciphertext []byte
	AuthTag    []byte
}

// envelopeJSON is the persisted on-disk wire contract. Field order is not
// significant and unknown fields are ignored on parse, so envelopes written by
// other engine versions (or other language implementations) round-trip
// exactly.
type envelopeJSON struct {
	Algorithm  string `json:"algorithm"`
	KeyVersion string `json:"key_version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
	AuthTag    string `json:"auth_tag"`
}

// Marshal serializes the envelope to its JSON wire format with base64-encoded
// binary fields.
func (e Envelope) Marshal() ([]byte, error) {
	if err := e.validate(); err != nil {
		return nil, err
	}

	doc := envelopeJSON{
		Algorithm:  string(e.Algorithm),
		KeyVersion: e.KeyVersion,
		Nonce:      base64.StdEncoding.EncodeToString(e.Nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(e.Ciphertext),
		AuthTag:    base64.StdEncoding.EncodeToString(e.AuthTag),
	}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return out, nil
}

// ParseEnvelope parses and validates envelope bytes.
//
// Validation happens before any decryption is attempted: the algorithm must be
// a known identifier, all required fields must be present, and nonce/auth_tag
// must have the exact lengths the algorithm requires. A malformed envelope
// fails fast with ErrMalformedEnvelope (or ErrUnknownAlgorithm); partial
// decryption is never attempted.
func ParseEnvelope(data []byte) (Envelope, error) {
	var doc envelopeJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	if doc.Algorithm == "" {
		return Envelope{}, fmt.Errorf("%w: missing algorithm", ErrMalformedEnvelope)
	}
	alg := Algorithm(doc.Algorithm)
	if !alg.Valid() {
		return Envelope{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, doc.Algorithm)
	}
	if doc.KeyVersion == "" {
		return Envelope{}, fmt.Errorf("%w: missing key_version", ErrMalformedEnvelope)
	}
	if doc.Nonce == "" {
		return Envelope{}, fmt.Errorf("%w: missing nonce", ErrMalformedEnvelope)
	}
	if doc.AuthTag == "" {
		return Envelope{}, fmt.Errorf("%w: missing auth_tag", ErrMalformedEnvelope)
	}

	nonce, err := base64.StdEncoding.DecodeString(doc.Nonce)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: invalid nonce base64: %v", ErrMalformedEnvelope, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(doc.Ciphertext)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: invalid ciphertext base64: %v", ErrMalformedEnvelope, err)
	}
	tag, err := base64.StdEncoding.DecodeString(doc.AuthTag)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: invalid auth_tag base64: %v", ErrMalformedEnvelope, err)
	}

	env := Envelope{
		Algorithm:  alg,
		KeyVersion: doc.KeyVersion,
		Nonce:      nonce,
		Ciphertext: ciphertext,
		AuthTag:    tag,
	}
	if err := env.validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// validate enforces the structural invariants shared by Marshal and
// ParseEnvelope.
func (e Envelope) validate() error {
	if !e.Algorithm.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAlgorithm, e.Algorithm)
	}
	if e.KeyVersion == "" {
		return fmt.Errorf("%w: missing key_version", ErrMalformedEnvelope)
	}
	if got, want := len(e.Nonce), e.Algorithm.NonceSize(); got != want {
		return fmt.Errorf(
			"%w: nonce must be %d bytes for %s, got %d",
			ErrMalformedEnvelope, want, e.Algorithm, got,
		)
	}
	if got := len(e.AuthTag); got != TagSize {
		return fmt.Errorf("%w: auth_tag must be %d bytes, got %d", ErrMalformedEnvelope, TagSize, got)
	}
	return nil
}
