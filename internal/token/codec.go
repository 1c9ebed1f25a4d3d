// Package token implements the remote action token service: signed,
// single-use, expiring credentials that let an approver decide a request from
// an outbound chat message without an authenticated session.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// External token form is "<random-hex>:<hmac-hex>". The random half doubles
// as the storage primary key; the HMAC half proves the token was minted by
// this server, so redemption never has to hit the database for garbage input.

var (
	ErrSecretMissing = errors.New("token signing secret is not configured")
	ErrMalformed     = errors.New("token is malformed")
	ErrBadSignature  = errors.New("token signature mismatch")
)

const payloadBytes = 16

// Codec mints and verifies the external token representation.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec over the server signing secret.
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret}
}

// NewTokenID generates a random hex payload used as the token id.
func NewTokenID() (string, error) {
	b := make([]byte, payloadBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Encode signs the token id and returns the external string.
func (c *Codec) Encode(id string) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrSecretMissing
	}
	return id + ":" + c.sign(id), nil
}

// Decode splits an external token, verifies its signature in constant time,
// and returns the embedded token id.
func (c *Codec) Decode(external string) (string, error) {
	if len(c.secret) == 0 {
		return "", ErrSecretMissing
	}
	id, sig, ok := strings.Cut(external, ":")
	if !ok || id == "" || sig == "" {
		return "", ErrMalformed
	}
	if _, err := hex.DecodeString(id); err != nil || len(id) != payloadBytes*2 {
		return "", ErrMalformed
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(id))) {
		return "", ErrBadSignature
	}
	return id, nil
}

func (c *Codec) sign(id string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}
