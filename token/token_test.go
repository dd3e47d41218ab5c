package token

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateLength(t *testing.T) {
	testCases := []struct {
		description   string
		length        int
		shouldBeError bool
	}{
		{description: "default length", length: DefaultLength},
		{description: "zero length", length: 0},
		{description: "single character", length: 1},
		{description: "long token", length: 512},
		{description: "negative length", length: -1, shouldBeError: true},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			tok, err := Generate(tc.length)
			if (err != nil) != tc.shouldBeError {
				t.Fatalf(
					"unexpected error status: wanted %v but got %v with error %v",
					tc.shouldBeError,
					err != nil,
					err,
				)
			}
			if tc.shouldBeError {
				return
			}
			assert.Len(t, tok, tc.length)
			for _, r := range tok {
				assert.True(t, strings.ContainsRune(alphabet, r), "unexpected character %q", r)
			}
		})
	}
}

func TestGenerateDoesNotRepeat(t *testing.T) {
	prev, err := Generate(DefaultLength)
	require.NoError(t, err)
	seen := map[string]struct{}{prev: {}}

	for i := 0; i < 10000; i++ {
		tok, err := Generate(DefaultLength)
		require.NoError(t, err)
		require.NotEqual(t, prev, tok, "two consecutive tokens were identical")
		_, dup := seen[tok]
		require.False(t, dup, "token %v was generated twice", tok)
		seen[tok] = struct{}{}
		prev = tok
	}
}

// Every byte value that survives rejection maps to one character, and each
// character is reachable from exactly four byte values.
func TestGenerateRejectsBiasedBytes(t *testing.T) {
	orig := source
	defer func() { source = orig }()

	// 255 and 248 are rejected, 0 -> 'A', 61 -> '9', 62 -> 'A', 247 -> '9'
	source = bytes.NewReader([]byte{255, 248, 0, 61, 62, 247, 0, 0, 0, 0, 0})

	tok, err := Generate(4)
	require.NoError(t, err)
	assert.Equal(t, "A9A9", tok)
}

func TestGenerateSourceFailure(t *testing.T) {
	orig := source
	defer func() { source = orig }()

	source = &failingReader{}

	_, err := Generate(DefaultLength)
	assert.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy pool is empty")
}
