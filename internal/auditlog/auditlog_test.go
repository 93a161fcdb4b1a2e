package auditlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(ts time.Time, file string, imported int) Entry {
	return Entry{
		Timestamp:  ts,
		BatchID:    "b2f4a1d0-0000-0000-0000-000000000001",
		Account:    "giro",
		File:       file,
		Imported:   imported,
		Duplicates: 1,
		Errored:    0,
		Status:     "imported",
	}
}

func TestAppendAndRead(t *testing.T) {
	workspace := t.TempDir()
	ts := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	require.NoError(t, Append(workspace, []Entry{entry(ts, "januar.csv", 42)}))
	require.NoError(t, Append(workspace, []Entry{entry(ts.Add(time.Hour), "februar.csv", 7)}))

	entries, err := Read(workspace)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "januar.csv", entries[0].File)
	assert.Equal(t, 42, entries[0].Imported)
	assert.True(t, entries[0].Timestamp.Equal(ts))
	assert.Equal(t, "februar.csv", entries[1].File)

	// The header is written exactly once.
	data, err := os.ReadFile(filepath.Join(workspace, "logs", "import-log.csv"))
	require.NoError(t, err)
	lines := 0
	for _, b := range data {
		if b == '\n' {
			lines++
		}
	}
	assert.Equal(t, 3, lines)
}

func TestRead_MissingFile(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUnmarshalEntry_Invalid(t *testing.T) {
	_, err := UnmarshalEntry([]string{"too", "short"})
	assert.Error(t, err)

	row := MarshalEntry(entry(time.Now().UTC(), "x.csv", 1))
	row[4] = "not-a-number"
	_, err = UnmarshalEntry(row)
	assert.Error(t, err)
}

func TestMarshalRoundTrip(t *testing.T) {
	in := entry(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), "x.csv", 3)
	out, err := UnmarshalEntry(MarshalEntry(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
