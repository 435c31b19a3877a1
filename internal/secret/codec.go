// Package secret encrypts short secrets, such as BLIK codes, for storage at rest.
//
// Payloads are AES-256-GCM envelopes serialized as
// base64(nonce) ":" base64(tag) ":" base64(ciphertext).
package secret

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

// KeySize is the required symmetric key length in bytes.
const KeySize = 32

const (
	nonceSize = 12
	tagSize   = 16
	separator = ":"
)

var (
	// ErrIntegrity is returned when the authentication tag does not verify.
	ErrIntegrity = errors.New("secret: payload failed authentication")
	// ErrFormat is returned when an envelope cannot be split into its fields.
	ErrFormat = errors.New("secret: malformed payload")
	// ErrKey is returned for keys of the wrong size or encoding.
	ErrKey = errors.New("secret: invalid key")
)

// Codec seals and opens payment code envelopes with a fixed key.
type Codec struct {
	aead cipher.AEAD
	rand io.Reader
}

// NewCodec builds a codec from a raw 32-byte key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrKey, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKey, err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKey, err)
	}
	return &Codec{aead: aead, rand: rand.Reader}, nil
}

// NewCodecFromBase64 decodes a standard base64 key and builds a codec from it.
func NewCodecFromBase64(encoded string) (*Codec, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("%w: not base64: %v", ErrKey, err)
	}
	return NewCodec(key)
}

// Encrypt seals plaintext under a fresh random nonce.
func (c *Codec) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("secret: read nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, nonce, []byte(plaintext), nil)
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	enc := base64.StdEncoding
	return strings.Join([]string{
		enc.EncodeToString(nonce),
		enc.EncodeToString(tag),
		enc.EncodeToString(ct),
	}, separator), nil
}

// Decrypt opens an envelope produced by Encrypt.
func (c *Codec) Decrypt(payload string) (string, error) {
	nonce, tag, ct, err := parseEnvelope(payload)
	if err != nil {
		return "", err
	}
	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", ErrIntegrity
	}
	return string(plain), nil
}

func parseEnvelope(payload string) (nonce, tag, ct []byte, err error) {
	fields := strings.Split(payload, separator)
	if len(fields) != 3 {
		return nil, nil, nil, fmt.Errorf("%w: want 3 fields, got %d", ErrFormat, len(fields))
	}
	decoded := make([][]byte, 3)
	for i, f := range fields {
		b, decErr := base64.StdEncoding.DecodeString(f)
		if decErr != nil {
			return nil, nil, nil, fmt.Errorf("%w: field %d: %v", ErrFormat, i, decErr)
		}
		decoded[i] = b
	}
	nonce, tag, ct = decoded[0], decoded[1], decoded[2]
	if len(nonce) != nonceSize {
		return nil, nil, nil, fmt.Errorf("%w: nonce is %d bytes", ErrFormat, len(nonce))
	}
	if len(tag) != tagSize {
		return nil, nil, nil, fmt.Errorf("%w: tag is %d bytes", ErrFormat, len(tag))
	}
	return nonce, tag, ct, nil
}
