package vpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		cwd   string
		want  string
	}{
		{"empty is cwd", "", "~/a/b", "~/a/b"},
		{"tilde is root", "~", "~/a/b", "~"},
		{"absolute slash maps to root", "/x/y", "~/a", "~/x/y"},
		{"tilde prefix", "~/x/y", "~/a", "~/x/y"},
		{"relative joins cwd", "c/d", "~/a/b", "~/a/b/c/d"},
		{"dot dropped", "./c", "~/a", "~/a/c"},
		{"dotdot pops", "../c", "~/a/b", "~/a/c"},
		{"dotdot to root", "..", "~/a", "~"},
		{"inner dotdot", "~/a/../b", "~", "~/b"},
		{"trailing slash", "~/a/", "~", "~/a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.input, tt.cwd)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonicalize_Idempotent(t *testing.T) {
	// Canonical form is a fixed point: resolving the display path again
	// from the root yields the same path.
	inputs := []string{"~/a/b/c", "~", "~/x"}
	for _, in := range inputs {
		once, err := Canonicalize(in, "~")
		require.NoError(t, err)

		twice, err := Canonicalize(once, "~")
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestCanonicalize_AboveRootFails(t *testing.T) {
	_, err := Canonicalize("..", "~")
	assert.ErrorIs(t, err, ErrAboveRoot)

	_, err = Canonicalize("~/a/../../x", "~")
	assert.ErrorIs(t, err, ErrAboveRoot)
}

func TestSplit(t *testing.T) {
	assert.Empty(t, Split("~"))
	assert.Equal(t, []string{"a"}, Split("~/a"))
	assert.Equal(t, []string{"a", "b"}, Split("~/a/b"))
}

func TestParent(t *testing.T) {
	parent, name, ok := Parent("~/a/b")
	require.True(t, ok)
	assert.Equal(t, "~/a", parent)
	assert.Equal(t, "b", name)

	parent, name, ok = Parent("~/a")
	require.True(t, ok)
	assert.Equal(t, "~", parent)
	assert.Equal(t, "a", name)

	_, _, ok = Parent("~")
	assert.False(t, ok)
}
