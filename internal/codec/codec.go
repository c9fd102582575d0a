// Package codec turns monetary amounts into opaque strings for storage and
// back.
//
// Encoding is deterministic: the nonce is derived from the plaintext with a
// keyed MAC, so the same amount under the same secret always yields the same
// string. Both the AES-256-GCM key and the MAC key are derived from the
// process secret with HKDF-SHA256. The secret must stay fixed for the
// lifetime of stored data; changing it makes every stored amount unreadable.
package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/hkdf"
)

const (
	keySize = 32
	salt    = "wallet/balance-codec/v1"
)

var (
	ErrEmptySecret  = errors.New("codec: secret must not be empty")
	ErrCorruptValue = errors.New("codec: value is malformed or was encoded under a different secret")
)

type Codec struct {
	aead     cipher.AEAD
	nonceKey []byte
}

func New(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	encKey, err := deriveKey(secret, "aes-gcm")
	if err != nil {
		return nil, err
	}
	nonceKey, err := deriveKey(secret, "nonce")
	if err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(encKey)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &Codec{aead: aead, nonceKey: nonceKey}, nil
}

// MustNew is New for wiring code and tests where the secret is known to be set.
func MustNew(secret string) *Codec {
	c, err := New(secret)
	if err != nil {
		panic(err)
	}
	return c
}

func deriveKey(secret, info string) ([]byte, error) {
	key := make([]byte, keySize)
	r := hkdf.New(sha256.New, []byte(secret), []byte(salt), []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encode encrypts the canonical two-decimal form of amount.
func (c *Codec) Encode(amount decimal.Decimal) string {
	plaintext := []byte(amount.StringFixed(2))
	nonce := c.nonceFor(plaintext)
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed...)
	return base64.RawURLEncoding.EncodeToString(out)
}

// Decode is the lenient form: anything that cannot be decrypted and parsed
// decodes to zero. A zero result therefore does not prove an empty wallet.
func (c *Codec) Decode(opaque string) decimal.Decimal {
	value, err := c.DecodeStrict(opaque)
	if err != nil {
		return decimal.Zero
	}
	return value
}

// DecodeStrict reports ErrCorruptValue instead of substituting zero.
func (c *Codec) DecodeStrict(opaque string) (decimal.Decimal, error) {
	raw, err := base64.RawURLEncoding.DecodeString(opaque)
	if err != nil {
		return decimal.Zero, ErrCorruptValue
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return decimal.Zero, ErrCorruptValue
	}
	nonce, sealed := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return decimal.Zero, ErrCorruptValue
	}
	if !hmac.Equal(nonce, c.nonceFor(plaintext)) {
		return decimal.Zero, ErrCorruptValue
	}
	value, err := decimal.NewFromString(string(plaintext))
	if err != nil {
		return decimal.Zero, ErrCorruptValue
	}
	return value, nil
}

func (c *Codec) nonceFor(plaintext []byte) []byte {
	mac := hmac.New(sha256.New, c.nonceKey)
	mac.Write(plaintext)
	return mac.Sum(nil)[:c.aead.NonceSize()]
}
