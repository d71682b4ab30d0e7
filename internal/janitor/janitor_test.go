package janitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeRoot(t *testing.T, root, name string, age time.Duration, now time.Time) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "workspace"), 0o755))
	mtime := now.Add(-age)
	require.NoError(t, os.Chtimes(dir, mtime, mtime))
}

func TestPrune(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	makeRoot(t, root, "old", 48*time.Hour, now)
	makeRoot(t, root, "fresh", time.Hour, now)
	makeRoot(t, root, "running", 72*time.Hour, now)
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644))

	j, err := New(root, 24*time.Hour, func(id string, remove func()) bool {
		if id == "running" {
			return false
		}
		remove()
		return true
	}, nil)
	require.NoError(t, err)
	j.Now = func() time.Time { return now }

	removed, err := j.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.NoDirExists(t, filepath.Join(root, "old"))
	assert.DirExists(t, filepath.Join(root, "fresh"))
	assert.DirExists(t, filepath.Join(root, "running"))
	assert.FileExists(t, filepath.Join(root, "stray.txt"))
}

func TestPrune_RemovesUnderGuard(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	makeRoot(t, root, "old", 48*time.Hour, now)

	var guarded []string
	j, err := New(root, 24*time.Hour, func(id string, remove func()) bool {
		assert.DirExists(t, filepath.Join(root, id))
		remove()
		assert.NoDirExists(t, filepath.Join(root, id))
		guarded = append(guarded, id)
		return true
	}, nil)
	require.NoError(t, err)
	j.Now = func() time.Time { return now }

	removed, err := j.Prune()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"old"}, guarded)
}

func TestPrune_JobAdmittedAfterScanIsKept(t *testing.T) {
	root := t.TempDir()
	now := time.Now()
	makeRoot(t, root, "resubmitted", 48*time.Hour, now)

	// The job was idle when the directory was listed but is active by the
	// time its removal is attempted.
	j, err := New(root, 24*time.Hour, func(string, func()) bool { return false }, nil)
	require.NoError(t, err)
	j.Now = func() time.Time { return now }

	removed, err := j.Prune()
	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.DirExists(t, filepath.Join(root, "resubmitted"))
}

func TestPrune_MissingRoot(t *testing.T) {
	j, err := New(filepath.Join(t.TempDir(), "absent"), time.Hour, nil, nil)
	require.NoError(t, err)
	removed, err := j.Prune()
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStartStop(t *testing.T) {
	j, err := New(t.TempDir(), time.Hour, nil, nil)
	require.NoError(t, err)
	require.NoError(t, j.Start(time.Hour))
	assert.NoError(t, j.Stop())
}
