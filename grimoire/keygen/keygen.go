// Package keygen allocates the public/admin key pairs that identify
// grimoires. Keys are drawn from a fixed alphabet with visually confusable
// glyphs removed so they survive being read aloud or copied by hand.
package keygen

import (
	"crypto/rand"
	"errors"
	"fmt"
)

// Alphabet excludes I, O, l, 0, and 1.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz23456789"

const (
	PublicKeyLen = 8
	AdminKeyLen  = 16

	maxAttempts = 1000
)

var ErrAllocationExhausted = errors.New("public key allocation exhausted")

// randomKey draws n characters uniformly from Alphabet. Bytes from the random
// source are rejection sampled so the modulo does not skew the distribution.
func randomKey(n int) (string, error) {
	// Largest multiple of len(Alphabet) that fits in a byte.
	limit := byte(256 / len(Alphabet) * len(Alphabet))

	key := make([]byte, 0, n)
	buf := make([]byte, 2*n)
	for len(key) < n {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("error reading random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			key = append(key, Alphabet[int(b)%len(Alphabet)])
			if len(key) == n {
				break
			}
		}
	}

	return string(key), nil
}

// NewAdminKey draws a 16 character secret. It is never collision checked; the
// public/admin pair is what must be unique and a random 16 character secret
// makes accidental collision negligible.
func NewAdminKey() (string, error) {
	return randomKey(AdminKeyLen)
}

// NewPublicKey draws 8 character candidates until taken reports one as
// unused. After 1000 taken candidates it gives up with
// ErrAllocationExhausted.
func NewPublicKey(taken func(key string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		key, err := randomKey(PublicKeyLen)
		if err != nil {
			return "", err
		}

		inUse, err := taken(key)
		if err != nil {
			return "", err
		}
		if !inUse {
			return key, nil
		}
	}

	return "", ErrAllocationExhausted
}

// NewKeyPair allocates a public/admin key pair for a new grimoire. It
// performs no writes; the caller must persist the pair in the same logical
// operation as the grimoire insert.
func NewKeyPair(taken func(key string) (bool, error)) (string, string, error) {
	adminKey, err := NewAdminKey()
	if err != nil {
		return "", "", err
	}

	publicKey, err := NewPublicKey(taken)
	if err != nil {
		return "", "", err
	}

	return publicKey, adminKey, nil
}
