package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReadRanges(t *testing.T) {
	t.Run("no ranges", func(t *testing.T) {
		ranges, err := parseReadRanges(nil)
		require.NoError(t, err)
		assert.Nil(t, ranges)
	})

	t.Run("start and end", func(t *testing.T) {
		ranges, err := parseReadRanges([]string{"3", "7"})
		require.NoError(t, err)
		assert.Equal(t, []lineRange{{Start: 3, End: 7}}, ranges)
	})

	t.Run("json pairs", func(t *testing.T) {
		ranges, err := parseReadRanges([]string{"[[0,2],[10,12]]"})
		require.NoError(t, err)
		assert.Equal(t, []lineRange{{Start: 0, End: 2}, {Start: 10, End: 12}}, ranges)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := parseReadRanges([]string{"[[0,2]"})
		assert.Error(t, err)
	})

	t.Run("non-numeric start", func(t *testing.T) {
		_, err := parseReadRanges([]string{"x", "7"})
		assert.Error(t, err)
	})
}

func TestPrintLineRanges(t *testing.T) {
	lines := []string{"zero", "one", "two"}

	t.Run("negative start clamps to first line", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printLineRanges(&buf, lines, []lineRange{{Start: -5, End: 1}}))
		assert.Equal(t, "     0\tzero\n     1\tone\n", buf.String())
	})

	t.Run("end clamps to last line", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, printLineRanges(&buf, lines, []lineRange{{Start: 2, End: 99}}))
		assert.Equal(t, "     2\ttwo\n", buf.String())
	})

	t.Run("range past the file", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, printLineRanges(&buf, lines, []lineRange{{Start: 3, End: 5}}))
	})

	t.Run("inverted range", func(t *testing.T) {
		var buf bytes.Buffer
		assert.Error(t, printLineRanges(&buf, lines, []lineRange{{Start: 2, End: 1}}))
	})
}

func TestSplitContentLines(t *testing.T) {
	assert.Nil(t, splitContentLines(""))
	assert.Equal(t, []string{"one"}, splitContentLines("one"))
	assert.Equal(t, []string{"one", "two"}, splitContentLines("one\ntwo\n"))
	// A trailing newline does not manufacture an empty final line.
	assert.Equal(t, []string{"one", ""}, splitContentLines("one\n\n"))
}

func TestSplitRedirect(t *testing.T) {
	t.Run("plain text", func(t *testing.T) {
		text, target, err := splitRedirect([]string{"hello", "world"})
		require.NoError(t, err)
		assert.Equal(t, "hello world", text)
		assert.Empty(t, target)
	})

	t.Run("redirected", func(t *testing.T) {
		text, target, err := splitRedirect([]string{"hello", ">", "notes.txt"})
		require.NoError(t, err)
		assert.Equal(t, "hello", text)
		assert.Equal(t, "notes.txt", target)
	})

	t.Run("missing target", func(t *testing.T) {
		_, _, err := splitRedirect([]string{"hello", ">"})
		assert.Error(t, err)
	})

	t.Run("extra args after target", func(t *testing.T) {
		_, _, err := splitRedirect([]string{"hello", ">", "a.txt", "b.txt"})
		assert.Error(t, err)
	})
}
