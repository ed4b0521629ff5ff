package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustApply(t *testing.T, raw, text string) string {
	t.Helper()

	spec, err := ParseSpec(raw)
	require.NoError(t, err)

	out, err := spec.Apply(text)
	require.NoError(t, err)

	return out
}

func TestApply_LineRange(t *testing.T) {
	out := mustApply(t, `[[[1, 1], "X"]]`, "L0\nL1\nL2\n")
	assert.Equal(t, "L0\nX\nL2\n", out)
}

func TestApply_RangeSpanningLines(t *testing.T) {
	out := mustApply(t, `[[[0, 1], "A\nB\nC"]]`, "L0\nL1\nL2\n")
	assert.Equal(t, "A\nB\nC\nL2\n", out)
}

func TestApply_InsertBeforeFirstLine(t *testing.T) {
	out := mustApply(t, `[[[0, null], "header"]]`, "L0\nL1\n")
	assert.Equal(t, "header\nL0\nL1\n", out)
}

func TestApply_InsertAppends(t *testing.T) {
	out := mustApply(t, `[[[2, null], "tail"]]`, "L0\nL1\n")
	assert.Equal(t, "L0\nL1\ntail\n", out)
}

func TestApply_InsertionOutOfRangeFailsWithoutModification(t *testing.T) {
	spec, err := ParseSpec(`[[[3, null], "x"]]`)
	require.NoError(t, err)

	_, err = spec.Apply("L0\nL1\n")
	assert.ErrorIs(t, err, ErrSpecInvalid)
}

func TestApply_RangeOutOfRange(t *testing.T) {
	spec, err := ParseSpec(`[[[1, 5], "x"]]`)
	require.NoError(t, err)

	_, err = spec.Apply("L0\nL1\n")
	assert.ErrorIs(t, err, ErrSpecInvalid)
}

func TestApply_MissingOldTextFails(t *testing.T) {
	spec, err := ParseSpec(`[["absent", "x"]]`)
	require.NoError(t, err)

	_, err = spec.Apply("L0\nL1\n")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpecInvalid)
	assert.Contains(t, err.Error(), "absent")
}

func TestApply_TextSubstitutionGlobal(t *testing.T) {
	out := mustApply(t, `[["foo", "bar"]]`, "foo x foo\nfoo\n")
	assert.Equal(t, "bar x bar\nbar\n", out)
}

func TestApply_PlaceholdersInInsertion(t *testing.T) {
	out := mustApply(t, `[[[0, null], "_TAB_a_SPACE_b_4SP_c"]]`, "L0\n")
	assert.Equal(t, "\ta b    c\nL0\n", out)
}

func TestApply_EscapedNewlineInInsertion(t *testing.T) {
	out := mustApply(t, `[[[1, null], "a\\nb"]]`, "L0\n")
	assert.Equal(t, "L0\na\nb\n", out)
}

func TestApply_NoFinalNewlinePreserved(t *testing.T) {
	out := mustApply(t, `[[[0, 0], "X"]]`, "L0\nL1")
	assert.Equal(t, "X\nL1", out)
}

func TestApply_FinalNewlinePreservedWhenLastLineReplaced(t *testing.T) {
	out := mustApply(t, `[[[2, 2], "X"]]`, "L0\nL1\nL2\n")
	assert.Equal(t, "L0\nL1\nX\n", out)
}

func TestApply_InsertionsDescendingAgainstOriginalNumbering(t *testing.T) {
	// Both positions refer to the original file; applying in descending
	// order keeps the earlier position valid.
	out := mustApply(t, `[[[0, null], "top"], [[2, null], "bottom"]]`, "L0\nL1\n")
	assert.Equal(t, "top\nL0\nL1\nbottom\n", out)
}

func TestApply_ClassOrderInsertionsThenRangesThenSubs(t *testing.T) {
	raw := `[
		["L1", "replaced"],
		[[1, 1], "mid"],
		[[0, null], "first"]
	]`
	// Insertions run first: first/L0/L1/L2. The range then replaces
	// index 1 of the post-insertion lines, and the substitution sees the
	// full text last.
	out := mustApply(t, raw, "L0\nL1\nL2\n")
	assert.Equal(t, "first\nmid\nreplaced\nL2\n", out)
}

func TestApply_EmptyFileInsert(t *testing.T) {
	out := mustApply(t, `[[[0, null], "only"]]`, "")
	assert.Equal(t, "only", out)
}
