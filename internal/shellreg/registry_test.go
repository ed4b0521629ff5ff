package shellreg

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "shells.json"), nil)
}

func TestCreate_FirstShellBecomesActive(t *testing.T) {
	reg := newTestRegistry(t)

	s1, err := reg.Create("default", "root-id")
	require.NoError(t, err)
	assert.Len(t, s1.ID, 16)
	assert.Equal(t, "~", s1.CurrentPath)
	assert.Equal(t, "root-id", s1.CurrentFolder)

	active, err := reg.Active()
	require.NoError(t, err)
	assert.Equal(t, s1.ID, active.ID)

	// A second shell does not steal the active slot.
	s2, err := reg.Create("work", "root-id")
	require.NoError(t, err)

	active, err = reg.Active()
	require.NoError(t, err)
	assert.Equal(t, s1.ID, active.ID)
	assert.NotEqual(t, s1.ID, s2.ID)
}

func TestActive_NoShells(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Active()
	assert.ErrorIs(t, err, ErrNoActiveShell)
}

func TestCheckout_SwitchesActive(t *testing.T) {
	reg := newTestRegistry(t)

	s1, err := reg.Create("one", "root")
	require.NoError(t, err)
	s2, err := reg.Create("two", "root")
	require.NoError(t, err)

	_, err = reg.Checkout(s2.ID)
	require.NoError(t, err)

	active, err := reg.Active()
	require.NoError(t, err)
	assert.Equal(t, s2.ID, active.ID)

	// Prefix checkout works when unambiguous.
	_, err = reg.Checkout(s1.ID[:8])
	if err == nil {
		active, err = reg.Active()
		require.NoError(t, err)
		assert.Equal(t, s1.ID, active.ID)
	}
}

func TestTerminate_ActiveShellClearsActive(t *testing.T) {
	reg := newTestRegistry(t)

	s, err := reg.Create("only", "root")
	require.NoError(t, err)

	require.NoError(t, reg.Terminate(s.ID))

	_, err = reg.Active()
	assert.ErrorIs(t, err, ErrNoActiveShell)

	shells, _, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, shells)
}

func TestUpdateLocation_CommitsBothFields(t *testing.T) {
	reg := newTestRegistry(t)

	s, err := reg.Create("nav", "root")
	require.NoError(t, err)

	require.NoError(t, reg.UpdateLocation(s.ID, "~/tmp/test", "folder-xyz"))

	active, err := reg.Active()
	require.NoError(t, err)
	assert.Equal(t, "~/tmp/test", active.CurrentPath)
	assert.Equal(t, "folder-xyz", active.CurrentFolder)
}

func TestTouch_MonotonicLastAccessed(t *testing.T) {
	reg := newTestRegistry(t)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	reg.nowFunc = func() time.Time { return base }

	s, err := reg.Create("t", "root")
	require.NoError(t, err)

	// Clock moves forward: timestamp advances.
	reg.nowFunc = func() time.Time { return base.Add(time.Minute) }
	require.NoError(t, reg.Touch(s.ID))

	active, err := reg.Active()
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Minute), active.LastAccessedAt)

	// Clock moves backward: timestamp must not regress.
	reg.nowFunc = func() time.Time { return base.Add(-time.Hour) }
	require.NoError(t, reg.Touch(s.ID))

	active, err = reg.Active()
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Minute), active.LastAccessedAt)
}

func TestUpdateVenv(t *testing.T) {
	reg := newTestRegistry(t)

	s, err := reg.Create("venv", "root")
	require.NoError(t, err)

	require.NoError(t, reg.UpdateVenv(s.ID, "myenv"))

	active, err := reg.Active()
	require.NoError(t, err)
	assert.Equal(t, "myenv", active.Venv.ActiveEnv)

	require.NoError(t, reg.UpdateVenv(s.ID, ""))

	active, err = reg.Active()
	require.NoError(t, err)
	assert.Empty(t, active.Venv.ActiveEnv)
}

func TestFindShell_UnknownID(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Checkout("deadbeef")
	assert.ErrorIs(t, err, ErrShellNotFound)
}
