package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTrimsAndCollapses(t *testing.T) {
	n := New(0)

	got, err := n.Normalize("  What is   an \t ETF?  ")
	require.NoError(t, err)
	assert.Equal(t, "What is an ETF?", got)
}

func TestNormalizePreservesNewlines(t *testing.T) {
	n := New(0)

	got, err := n.Normalize("first line  \nsecond   line")
	require.NoError(t, err)
	assert.Equal(t, "first line \nsecond line", got)
}

func TestNormalizeStripsControlCharacters(t *testing.T) {
	n := New(0)

	got, err := n.Normalize("what\x00 is\x1b[31m a bond\x7f?")
	require.NoError(t, err)
	assert.Equal(t, "what is[31m a bond?", got)
	assert.NotContains(t, got, "\x00")
	assert.NotContains(t, got, "\x1b")
}

func TestNormalizeRejectsEmpty(t *testing.T) {
	n := New(0)

	for _, raw := range []string{"", "   ", "\t\t", " \n ", "\x00\x01"} {
		_, err := n.Normalize(raw)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "input %q should be rejected", raw)
		assert.Equal(t, "message is empty", verr.Reason)
	}
}

func TestNormalizeRejectsOverlongMessage(t *testing.T) {
	n := New(10)

	_, err := n.Normalize(strings.Repeat("a", 11))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Reason, "exceeds 10 characters")

	got, err := n.Normalize(strings.Repeat("a", 10))
	require.NoError(t, err)
	assert.Len(t, got, 10)
}

func TestNormalizeLengthCountsRunes(t *testing.T) {
	n := New(4)

	// four multibyte runes fit a four rune cap
	got, err := n.Normalize("éééé")
	require.NoError(t, err)
	assert.Equal(t, "éééé", got)
}

func TestNormalizeRejectsInvalidUTF8(t *testing.T) {
	n := New(0)

	_, err := n.Normalize("hello \xff world")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "message is not valid UTF-8", verr.Reason)
}

func TestNormalizeDefaultCap(t *testing.T) {
	n := New(0)

	_, err := n.Normalize(strings.Repeat("a", DefaultMaxChars))
	assert.NoError(t, err)

	_, err = n.Normalize(strings.Repeat("a", DefaultMaxChars+1))
	assert.Error(t, err)
}
