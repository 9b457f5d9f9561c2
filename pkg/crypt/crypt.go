// Package crypt provides AES-256-GCM sealing for values that leave the
// server, such as the session cookie.
//
// Output is base64url(nonce || ciphertext || tag), safe for cookies.
//
//	box := crypt.FromAppKey()
//	sealed, _ := box.SealJSON(map[string]any{"sid": id})
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/farmshop/storefront/config"
)

// ErrDecrypt is returned when a value was tampered with or sealed under a
// different key.
var ErrDecrypt = errors.New("crypt: decryption failed")

// Box seals and opens values under one derived key.
type Box struct {
	aead cipher.AEAD
}

// New derives a 32-byte key from secret with SHA-256.
func New(secret string) (*Box, error) {
	if secret == "" {
		return nil, errors.New("crypt: empty secret")
	}
	k := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(k[:])
	if err != nil {
		return nil, fmt.Errorf("crypt: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypt: new GCM: %w", err)
	}
	return &Box{aead: gcm}, nil
}

// FromAppKey builds a Box keyed by APP_KEY. It panics when APP_KEY is
// empty, which config never returns.
func FromAppKey() *Box {
	b, err := New(config.AppKey())
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Box) Seal(data []byte) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("crypt: nonce: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b.aead.Seal(nonce, nonce, data, nil)), nil
}

func (b *Box) Open(encoded string) ([]byte, error) {
	data, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrDecrypt
	}
	n := b.aead.NonceSize()
	if len(data) < n {
		return nil, ErrDecrypt
	}
	plain, err := b.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plain, nil
}

// SealJSON marshals v and seals the result.
func (b *Box) SealJSON(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("crypt: marshal: %w", err)
	}
	return b.Seal(raw)
}

// OpenJSON opens encoded and unmarshals it into dest.
func (b *Box) OpenJSON(encoded string, dest any) error {
	raw, err := b.Open(encoded)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("crypt: unmarshal: %w", err)
	}
	return nil
}
