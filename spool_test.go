package aeris

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpooledFileStaysInMemoryUnderThreshold(t *testing.T) {
	pool := NewSpoolPool(1<<20, 1<<20, t.TempDir())
	f := pool.New()

	n, err := f.Write([]byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.False(t, f.OnDisk())

	data, err := f.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestSpooledFileSpillsBeforeFastcacheEntryLimit(t *testing.T) {
	// MaxMemory is configured far above fastcache's undocumented 64 KiB
	// single-entry ceiling; Write must still spill before that ceiling,
	// or fastcache.Set silently drops the entry and ReadAll returns a
	// truncated (or empty) result.
	pool := NewSpoolPool(4<<20, 4<<20, t.TempDir())
	f := pool.New()

	chunk := bytes.Repeat([]byte("x"), 8*1024)
	for i := 0; i < 10; i++ {
		_, err := f.Write(chunk)
		require.NoError(t, err)
	}

	require.True(t, f.OnDisk(), "part exceeding fastcache's entry limit must have spilled to disk")

	data, err := f.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, len(chunk)*10, len(data))
}

func TestSpooledFileSpillsAtConfiguredMaxMemoryWhenBelowCacheLimit(t *testing.T) {
	pool := NewSpoolPool(1<<20, 100, t.TempDir())
	f := pool.New()

	_, err := f.Write(bytes.Repeat([]byte("y"), 200))
	require.NoError(t, err)
	assert.True(t, f.OnDisk())
}
