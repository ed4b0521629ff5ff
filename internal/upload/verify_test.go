package upload

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gdshell/gdshell/internal/listing"
)

// delayedLister answers empty listings until hitAfter calls have passed.
type delayedLister struct {
	entries  []listing.Entry
	hitAfter int
	calls    int
	err      error
}

func (l *delayedLister) List(_ context.Context, _ string) ([]listing.Entry, error) {
	l.calls++

	if l.err != nil {
		return nil, l.err
	}

	if l.calls <= l.hitAfter {
		return nil, nil
	}

	return l.entries, nil
}

func newTestVerifier(l Lister, progress *bytes.Buffer) *Verifier {
	v := NewVerifier(l, progress, testLogger())
	v.Interval = time.Millisecond

	return v
}

func TestVerify_AllFound(t *testing.T) {
	progress := &bytes.Buffer{}
	lister := &delayedLister{entries: []listing.Entry{{Name: "a.txt"}, {Name: "b.txt"}}}
	v := newTestVerifier(lister, progress)

	result := v.Verify(context.Background(), "folder-1", "~/tmp", []string{"a.txt", "b.txt"})

	assert.Equal(t, []string{"a.txt", "b.txt"}, result.Found)
	assert.Empty(t, result.Missing)
	assert.Equal(t, 2, result.TotalFound)
	assert.Equal(t, 2, result.TotalExpected)
	assert.Equal(t, "~/tmp", result.SearchPath)

	out := progress.String()
	assert.Contains(t, out, "⏳ Validating a.txt, b.txt ...")
	assert.Contains(t, out, "√√")
}

func TestVerify_RetriesUntilListed(t *testing.T) {
	progress := &bytes.Buffer{}
	lister := &delayedLister{entries: []listing.Entry{{Name: "a.txt"}}, hitAfter: 3}
	v := newTestVerifier(lister, progress)

	result := v.Verify(context.Background(), "folder-1", "~/tmp", []string{"a.txt"})

	assert.Equal(t, []string{"a.txt"}, result.Found)
	assert.Contains(t, progress.String(), "...√")
}

func TestVerify_MissingAfterBudget(t *testing.T) {
	progress := &bytes.Buffer{}
	lister := &delayedLister{entries: []listing.Entry{{Name: "other.txt"}}}
	v := newTestVerifier(lister, progress)

	result := v.Verify(context.Background(), "folder-1", "~/tmp", []string{"gone.txt"})

	assert.Empty(t, result.Found)
	assert.Equal(t, []string{"gone.txt"}, result.Missing)
	assert.Equal(t, verifyAttempts, lister.calls)
	assert.Contains(t, progress.String(), "✗")
}

func TestVerify_ListingErrorsAreRetried(t *testing.T) {
	progress := &bytes.Buffer{}
	lister := &delayedLister{err: errors.New("listing boom")}
	v := newTestVerifier(lister, progress)

	result := v.Verify(context.Background(), "folder-1", "~/tmp", []string{"a.txt"})

	assert.Equal(t, []string{"a.txt"}, result.Missing)
	assert.Equal(t, verifyAttempts, lister.calls)
}

func TestVerify_NoNames(t *testing.T) {
	progress := &bytes.Buffer{}
	v := newTestVerifier(&delayedLister{}, progress)

	result := v.Verify(context.Background(), "folder-1", "~/tmp", nil)

	assert.Zero(t, result.TotalExpected)
	assert.Empty(t, progress.String())
}
