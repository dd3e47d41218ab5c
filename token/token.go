package token

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// DefaultLength is the number of characters in a token when the caller has
// no opinion.
const DefaultLength = 32

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Bytes at or above this value are rejected so that every character in the
// alphabet is equally likely. 248 is the largest multiple of 62 below 256.
const maxUnbiased = 256 - (256 % len(alphabet))

// source is swapped out in tests.
var source io.Reader = rand.Reader

// Generate returns a string of exactly length characters, each chosen
// uniformly from A-Z, a-z and 0-9 using a cryptographically secure source.
// The result is safe to place in a URL query string without escaping.
func Generate(length int) (string, error) {
	if length < 0 {
		return "", errors.New("token length must not be negative")
	}

	out := make([]byte, 0, length)
	// Reading a little extra up front means we rarely need a second read
	// to make up for rejected bytes.
	buf := make([]byte, length+length/4+1)
	for len(out) < length {
		if _, err := io.ReadFull(source, buf); err != nil {
			return "", fmt.Errorf("can't read from the random source: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}

	return string(out), nil
}
