package follow

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// appendTo grows a file on fs without touching the watched handle.
func appendTo(t *testing.T, fs afero.Fs, path, data string) {
	t.Helper()
	f, err := fs.OpenFile(path, os.O_WRONLY, 0o644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	_, err = f.WriteString(data)
	require.NoError(t, err)
}

func collect(recs *[]Record) func(Record) error {
	return func(r Record) error {
		*recs = append(*recs, r)
		return nil
	}
}

func TestReadNewEmitsCompleteLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/log", []byte("one\ntwo\n"), 0o644))

	w := newWatchedFile(fs, "/log")
	require.NoError(t, w.open())
	defer w.close()

	var recs []Record
	require.NoError(t, w.readNew(collect(&recs)))
	require.Len(t, recs, 2)
	assert.Equal(t, "one\n", string(recs[0].Data))
	assert.Equal(t, "two\n", string(recs[1].Data))
	assert.Equal(t, int64(8), w.offset)
	assert.Empty(t, w.pending)
}

func TestReadNewBuffersPartialLine(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/log", []byte("par"), 0o644))

	w := newWatchedFile(fs, "/log")
	require.NoError(t, w.open())
	defer w.close()

	// No newline yet: nothing may be emitted.
	var recs []Record
	require.NoError(t, w.readNew(collect(&recs)))
	assert.Empty(t, recs)
	assert.Equal(t, "par", string(w.pending))

	// The newline arrives: exactly one record, the full concatenation.
	appendTo(t, fs, "/log", "tial\n")
	require.NoError(t, w.readNew(collect(&recs)))
	require.Len(t, recs, 1)
	assert.Equal(t, "partial\n", string(recs[0].Data))
	assert.Empty(t, w.pending)
}

func TestClassifyGrowthAndTruncation(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/log", []byte("line\n"), 0o644))

	w := newWatchedFile(fs, "/log")
	require.NoError(t, w.open())
	defer w.close()

	// Unread content counts as growth.
	assert.Equal(t, chGrown, w.classify())
	var recs []Record
	require.NoError(t, w.readNew(collect(&recs)))
	assert.Equal(t, chNone, w.classify())

	appendTo(t, fs, "/log", "more\n")
	assert.Equal(t, chGrown, w.classify())
	require.NoError(t, w.readNew(collect(&recs)))

	// Shrinking below the consumed offset is a truncation.
	f, err := fs.OpenFile("/log", os.O_RDWR, 0o644)
	require.NoError(t, err)
	require.NoError(t, f.Truncate(0))
	f.Close()
	assert.Equal(t, chTruncated, w.classify())

	w.rewind()
	assert.Equal(t, int64(0), w.offset)
	assert.Empty(t, w.pending)
}

func TestClassifyVanished(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/log", []byte("x\n"), 0o644))

	w := newWatchedFile(fs, "/log")
	require.NoError(t, w.open())
	defer w.close()

	require.NoError(t, fs.Remove("/log"))
	assert.Equal(t, chVanished, w.classify())

	// Once waiting, a still-missing path is quiet; reappearance is the event.
	w.close()
	w.state = stateWaiting
	assert.Equal(t, chNone, w.classify())

	require.NoError(t, afero.WriteFile(fs, "/log", []byte("back\n"), 0o644))
	assert.Equal(t, chAppeared, w.classify())
}

func TestOpenDiscardsPendingPartialLine(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/log", []byte("stale-partial"), 0o644))

	w := newWatchedFile(fs, "/log")
	require.NoError(t, w.open())

	var recs []Record
	require.NoError(t, w.readNew(collect(&recs)))
	require.Empty(t, recs)
	require.NotEmpty(t, w.pending)

	// Reopening after rotation must never leak the old identity's partial
	// line into the new file's output.
	require.NoError(t, afero.WriteFile(fs, "/log", []byte("fresh\n"), 0o644))
	require.NoError(t, w.open())
	assert.Empty(t, w.pending)
	assert.Equal(t, int64(0), w.offset)

	recs = nil
	require.NoError(t, w.readNew(collect(&recs)))
	require.Len(t, recs, 1)
	assert.Equal(t, "fresh\n", string(recs[0].Data))
}

func TestRetryPacing(t *testing.T) {
	w := newWatchedFile(afero.NewMemMapFs(), "/missing")
	now := time.Now()

	assert.True(t, w.retryDue(now), "fresh file must be due immediately")
	w.scheduleRetry(now, 50*time.Millisecond)
	assert.False(t, w.retryDue(now))
	assert.True(t, w.retryDue(now.Add(time.Second)))

	w.resetRetry()
	assert.True(t, w.retryDue(now))
}
