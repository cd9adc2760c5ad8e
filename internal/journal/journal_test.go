package journal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestJournal_RecordAndList(t *testing.T) {
	jnl, err := Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = jnl.Close() }()

	require.NoError(t, jnl.Record(Entry{
		Name:     "zeta",
		URL:      "https://example.com/zeta.git",
		Branch:   "main",
		Action:   "clone",
		Success:  true,
		SyncedAt: time.Now(),
	}))
	require.NoError(t, jnl.Record(Entry{
		Name:    "alpha",
		URL:     "https://example.com/alpha.git",
		Branch:  "master",
		Action:  "update",
		Success: false,
		Error:   "fetch of https://example.com/alpha.git failed",
	}))

	entries, err := jnl.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// sorted by name
	require.Equal(t, "alpha", entries[0].Name)
	require.Equal(t, "zeta", entries[1].Name)
	require.False(t, entries[0].Success)
	require.Contains(t, entries[0].Error, "fetch")
}

func TestJournal_RecordReplacesPrevious(t *testing.T) {
	jnl, err := Open(t.TempDir())
	require.NoError(t, err)
	defer func() { _ = jnl.Close() }()

	require.NoError(t, jnl.Record(Entry{Name: "demo", Action: "clone", Success: true}))
	require.NoError(t, jnl.Record(Entry{Name: "demo", Action: "update", Success: true}))

	entries, err := jnl.List()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "update", entries[0].Action)
}
