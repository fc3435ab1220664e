package aeris

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/VictoriaMetrics/fastcache"
)

// maxCacheEntrySize bounds how much of a part fastcache is allowed to hold
// for a single spool key. fastcache silently refuses Set for an entry whose
// key+value is >= 64 KiB (it only stores entries that fit a single internal
// chunk), so the in-memory tier must spill well before that regardless of
// how large SpoolPool.MaxMemory is configured — otherwise a part between
// the two thresholds would be dropped by Set and read back truncated.
const maxCacheEntrySize = 63 * 1024

// SpoolPool hands out SpooledFile buffers for multipart parts (spec.md
// §4.7). Parts are kept in a size-bounded in-memory cache
// (github.com/VictoriaMetrics/fastcache) up to MaxMemory bytes per part, but
// never past maxCacheEntrySize; once a part's data exceeds that, it
// transparently spills to a temporary file, never blocking on disk I/O for
// the common small-field case.
type SpoolPool struct {
	MaxMemory int64
	TempDir   string

	cache   *fastcache.Cache
	counter uint64
}

// NewSpoolPool returns a SpoolPool whose in-memory tier holds up to
// cacheSizeBytes of buffered part data across all in-flight parts, and
// whose per-part spill threshold is maxMemory bytes.
func NewSpoolPool(cacheSizeBytes int, maxMemory int64, tempDir string) *SpoolPool {
	return &SpoolPool{
		MaxMemory: maxMemory,
		TempDir:   tempDir,
		cache:     fastcache.New(cacheSizeBytes),
	}
}

// New returns a fresh SpooledFile bound to this pool.
func (p *SpoolPool) New() *SpooledFile {
	id := atomic.AddUint64(&p.counter, 1)
	return &SpooledFile{
		pool: p,
		key:  []byte(fmt.Sprintf("spool-%d", id)),
	}
}

// SpooledFile is a file-like buffer that is kept in memory up to
// SpoolPool.MaxMemory bytes and spilled to a temporary file beyond that
// (spec.md GLOSSARY: "Spooled file").
type SpooledFile struct {
	pool *SpoolPool
	key  []byte

	mu       sync.Mutex
	memSize  int64
	onDisk   bool
	file     *os.File
	readOff  int64
}

// Write appends p to the spool, spilling to disk if MaxMemory is
// exceeded.
func (f *SpooledFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	limit := f.pool.MaxMemory
	if limit > maxCacheEntrySize || limit <= 0 {
		limit = maxCacheEntrySize
	}
	if !f.onDisk && f.memSize+int64(len(p)) > limit {
		if err := f.spillLocked(); err != nil {
			return 0, err
		}
	}

	if f.onDisk {
		n, err := f.file.Write(p)
		return n, err
	}

	existing, _ := f.pool.cache.HasGet(nil, f.key)
	existing = append(existing, p...)
	f.pool.cache.Set(f.key, existing)
	f.memSize += int64(len(p))
	return len(p), nil
}

// spillLocked moves the in-memory buffer to a temp file. Caller holds mu.
func (f *SpooledFile) spillLocked() error {
	tmp, err := os.CreateTemp(f.pool.TempDir, "aeris-spool-*")
	if err != nil {
		return err
	}

	if existing, ok := f.pool.cache.HasGet(nil, f.key); ok {
		if _, err := tmp.Write(existing); err != nil {
			tmp.Close()
			return err
		}
		f.pool.cache.Del(f.key)
	}

	f.file = tmp
	f.onDisk = true
	return nil
}

// OnDisk reports whether the spool has spilled to a temporary file.
func (f *SpooledFile) OnDisk() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.onDisk
}

// Size returns the number of bytes written to the spool so far.
func (f *SpooledFile) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.onDisk {
		st, err := f.file.Stat()
		if err != nil {
			return 0
		}
		return st.Size()
	}
	return f.memSize
}

// ReadAll reads the entire spool from the beginning.
func (f *SpooledFile) ReadAll() ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.onDisk {
		if _, err := f.file.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		return io.ReadAll(f.file)
	}

	b, _ := f.pool.cache.HasGet(nil, f.key)
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// Read implements io.Reader, reading sequentially across calls.
func (f *SpooledFile) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.onDisk {
		if _, err := f.file.Seek(f.readOff, io.SeekStart); err != nil {
			return 0, err
		}
		n, err := f.file.Read(p)
		f.readOff += int64(n)
		return n, err
	}

	b, _ := f.pool.cache.HasGet(nil, f.key)
	if f.readOff >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[f.readOff:])
	f.readOff += int64(n)
	return n, nil
}

// Close releases the spool's resources (the temp file, if any, and the
// in-memory cache entry).
func (f *SpooledFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.pool.cache.Del(f.key)

	if f.file != nil {
		name := f.file.Name()
		err := f.file.Close()
		os.Remove(name)
		return err
	}

	return nil
}
