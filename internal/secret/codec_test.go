package secret

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, KeySize)
}

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := NewCodec(testKey(7))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return c
}

func TestRoundTrip(t *testing.T) {
	c := newTestCodec(t)
	inputs := []string{"", "123456", "000000", "zażółć gęślą jaźń", strings.Repeat("x", 4096), "a:b:c"}
	for _, in := range inputs {
		payload, err := c.Encrypt(in)
		if err != nil {
			t.Fatalf("encrypt %q: %v", in, err)
		}
		if strings.Count(payload, ":") != 2 {
			t.Fatalf("payload %q must have three fields", payload)
		}
		out, err := c.Decrypt(payload)
		if err != nil {
			t.Fatalf("decrypt %q: %v", in, err)
		}
		if out != in {
			t.Fatalf("round trip mismatch: got %q want %q", out, in)
		}
	}
}

func TestEncryptUsesFreshNonce(t *testing.T) {
	c := newTestCodec(t)
	seen := make(map[string]struct{})
	for i := 0; i < 64; i++ {
		payload, err := c.Encrypt("123456")
		if err != nil {
			t.Fatalf("encrypt: %v", err)
		}
		nonce := strings.SplitN(payload, ":", 2)[0]
		if _, dup := seen[nonce]; dup {
			t.Fatalf("nonce reused: %s", nonce)
		}
		seen[nonce] = struct{}{}
		raw, err := base64.StdEncoding.DecodeString(nonce)
		if err != nil || len(raw) != 12 {
			t.Fatalf("nonce must be 12 bytes of base64, got %q (%v)", nonce, err)
		}
	}
}

func flipByte(t *testing.T, field string, idx int) string {
	t.Helper()
	raw, err := base64.StdEncoding.DecodeString(field)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[idx%len(raw)] ^= 0x01
	return base64.StdEncoding.EncodeToString(raw)
}

func TestDecryptDetectsTampering(t *testing.T) {
	c := newTestCodec(t)
	payload, err := c.Encrypt("123456")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	parts := strings.Split(payload, ":")
	for i := 0; i < 16; i++ {
		tampered := strings.Join([]string{parts[0], flipByte(t, parts[1], i), parts[2]}, ":")
		if _, err := c.Decrypt(tampered); !errors.Is(err, ErrIntegrity) {
			t.Fatalf("tag byte %d: expected ErrIntegrity, got %v", i, err)
		}
	}
	for i := 0; i < 6; i++ {
		tampered := strings.Join([]string{parts[0], parts[1], flipByte(t, parts[2], i)}, ":")
		if _, err := c.Decrypt(tampered); !errors.Is(err, ErrIntegrity) {
			t.Fatalf("ciphertext byte %d: expected ErrIntegrity, got %v", i, err)
		}
	}
}

func TestDecryptWrongKey(t *testing.T) {
	c := newTestCodec(t)
	other, err := NewCodec(testKey(9))
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	payload, err := c.Encrypt("654321")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := other.Decrypt(payload); !errors.Is(err, ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}

func TestDecryptRejectsMalformedEnvelope(t *testing.T) {
	c := newTestCodec(t)
	good, err := c.Encrypt("123456")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	parts := strings.Split(good, ":")
	cases := map[string]string{
		"empty":       "",
		"two fields":  parts[0] + ":" + parts[1],
		"four fields": good + ":AAAA",
		"bad base64":  parts[0] + ":" + parts[1] + ":***",
		"short nonce": "AAAA:" + parts[1] + ":" + parts[2],
		"short tag":   parts[0] + ":AAAA:" + parts[2],
	}
	for name, payload := range cases {
		if _, err := c.Decrypt(payload); !errors.Is(err, ErrFormat) {
			t.Fatalf("%s: expected ErrFormat, got %v", name, err)
		}
	}
}

func TestNewCodecKeyValidation(t *testing.T) {
	if _, err := NewCodec(make([]byte, 16)); !errors.Is(err, ErrKey) {
		t.Fatalf("expected ErrKey for short key, got %v", err)
	}
	if _, err := NewCodecFromBase64("not base64!"); !errors.Is(err, ErrKey) {
		t.Fatalf("expected ErrKey for bad encoding, got %v", err)
	}
	encoded := base64.StdEncoding.EncodeToString(testKey(1))
	if _, err := NewCodecFromBase64(" " + encoded + "\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
