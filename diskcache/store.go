// Package diskcache implements the on-disk, byte-exact Cache Store
// described in §4.4: a binary entry format guarded by a magic number, an
// access-ordered in-memory index, and least-recently-used pruning against a
// byte budget.
package diskcache

import (
	"bufio"
	"container/list"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Store is a disk-backed cache keyed by an opaque string key. It is safe
// for concurrent use; every public method takes the store's single mutex
// for its index work and releases it around file reads and writes (there
// are no network calls here — only local file I/O).
type Store struct {
	mu    sync.Mutex
	dir   string
	codec Codec

	maxBytes   int64
	totalBytes int64

	// lru is ordered most-recently-used at Front, least at Back, satisfying
	// the "access-ordered map" contract from Design Notes §9: Get and Put
	// both move the touched key to the front; pruning walks from the back.
	lru    *list.List
	lookup map[string]*list.Element
}

type lruEntry struct {
	key      string
	filename string
	header   CacheHeader
	size     int64
}

// Option configures a Store at Open time.
type Option func(*Store)

// WithMaxBytes sets the on-disk budget. Non-positive falls back to
// DefaultMaxBytes.
func WithMaxBytes(n int64) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

// WithCodec sets an optional body compression codec. nil (the default)
// stores bodies uncompressed.
func WithCodec(c Codec) Option {
	return func(s *Store) { s.codec = c }
}

// Open creates dir if missing, or — if it already exists — scans every file
// in it, parses each header, and populates the in-memory index, per §4.4
// initialize(). Corrupt files (bad magic, truncated) are removed as they're
// found rather than left to be discovered on first Get.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:      dir,
		maxBytes: DefaultMaxBytes,
		lru:      list.New(),
		lookup:   map[string]*list.Element{},
	}
	for _, opt := range opts {
		opt(s)
	}

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("diskcache: create dir: %w", err)
		}
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("diskcache: stat dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("diskcache: %s is not a directory", dir)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("diskcache: read dir: %w", err)
	}
	for _, de := range entries {
		if de.IsDir() {
			continue
		}
		path := filepath.Join(dir, de.Name())
		header, size, err := readHeaderFromFile(path)
		if err != nil {
			GetLogger().Warn("diskcache: dropping unreadable entry on init", "file", de.Name(), "error", err)
			_ = os.Remove(path)
			continue
		}
		s.insertIndex(header.Key, de.Name(), header, size)
	}
	return s, nil
}

func readHeaderFromFile(path string) (CacheHeader, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return CacheHeader{}, 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return CacheHeader{}, 0, err
	}

	br := bufio.NewReader(f)
	header, err := readHeader(br)
	if err != nil {
		return CacheHeader{}, 0, err
	}
	return header, info.Size(), nil
}

func (s *Store) insertIndex(key, filename string, header CacheHeader, size int64) {
	header.Key = key
	header.Size = size
	el := s.lru.PushFront(&lruEntry{key: key, filename: filename, header: header, size: size})
	s.lookup[key] = el
	s.totalBytes += size
}

// touch moves el to the front of the LRU list (most recently used).
func (s *Store) touch(el *list.Element) {
	s.lru.MoveToFront(el)
}

// Get returns the cached entry for key, or (nil, false) on miss or read
// error. On a read error (corruption, truncation) the entry is removed
// before returning, per §4.4.
func (s *Store) Get(key string) (*CacheEntry, bool) {
	s.mu.Lock()
	el, ok := s.lookup[key]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	le := el.Value.(*lruEntry)
	path := filepath.Join(s.dir, le.filename)
	s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		GetLogger().Warn("diskcache: get failed to open file", "key", key, "error", err)
		s.Remove(key)
		return nil, false
	}
	defer f.Close()

	br := bufio.NewReader(f)
	header, err := readHeader(br)
	if err != nil {
		GetLogger().Warn("diskcache: get: corrupt entry, removing", "key", key, "error", err)
		s.Remove(key)
		return nil, false
	}
	if header.Key != key {
		GetLogger().Warn("diskcache: get: filename collision, removing", "key", key, "storedKey", header.Key)
		s.Remove(key)
		return nil, false
	}

	body, err := io.ReadAll(br)
	if err != nil {
		GetLogger().Warn("diskcache: get: failed reading body, removing", "key", key, "error", err)
		s.Remove(key)
		return nil, false
	}
	if s.codec != nil && len(body) > 0 {
		body, err = s.codec.Decompress(body)
		if err != nil {
			GetLogger().Warn("diskcache: get: decompress failed, removing", "key", key, "error", err)
			s.Remove(key)
			return nil, false
		}
	}

	s.mu.Lock()
	if el, ok := s.lookup[key]; ok {
		s.touch(el)
	}
	s.mu.Unlock()

	return &CacheEntry{
		Data:            body,
		ETag:            header.ETag,
		ServerDate:      header.ServerDate,
		LastModified:    header.LastModified,
		TTL:             header.TTL,
		SoftTTL:         header.SoftTTL,
		ResponseHeaders: header.ResponseHeaders,
	}, true
}

// Put writes header then body for key. If the write fails partway through,
// the partial file is deleted and no index entry is added.
func (s *Store) Put(key string, entry *CacheEntry) error {
	header := CacheHeader{
		Key:             key,
		ETag:            entry.ETag,
		ServerDate:      entry.ServerDate,
		LastModified:    entry.LastModified,
		TTL:             entry.TTL,
		SoftTTL:         entry.SoftTTL,
		ResponseHeaders: entry.ResponseHeaders,
	}

	body := entry.Data
	if s.codec != nil && len(body) > 0 {
		compressed, err := s.codec.Compress(body)
		if err != nil {
			return fmt.Errorf("diskcache: compress: %w", err)
		}
		body = compressed
	}

	filename := filenameForKey(key)
	path := filepath.Join(s.dir, filename)

	// Estimate size for pruning before we touch the filesystem: a rough
	// header size (strings dominate) plus the body length is close enough
	// for the byte-budget check: exactness only matters for what's actually
	// on disk afterward, which replaces this estimate once written.
	estimate := int64(headerSizeEstimate(header) + len(body))

	s.mu.Lock()
	s.pruneLocked(estimate)
	// Remove any previous entry for this key so totalBytes accounting
	// doesn't double-count it while we write the replacement.
	if el, ok := s.lookup[key]; ok {
		le := el.Value.(*lruEntry)
		s.totalBytes -= le.size
		s.lru.Remove(el)
		delete(s.lookup, key)
	}
	s.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("diskcache: create file: %w", err)
	}

	bw := bufio.NewWriter(f)
	writeErr := writeHeader(bw, header)
	if writeErr == nil {
		_, writeErr = bw.Write(body)
	}
	if writeErr == nil {
		writeErr = bw.Flush()
	}
	closeErr := f.Close()

	if writeErr != nil || closeErr != nil {
		_ = os.Remove(path)
		if writeErr == nil {
			writeErr = closeErr
		}
		return fmt.Errorf("diskcache: put failed, partial file removed: %w", writeErr)
	}

	info, err := os.Stat(path)
	var size int64
	if err == nil {
		size = info.Size()
	} else {
		size = estimate
	}

	s.mu.Lock()
	s.insertIndex(key, filename, header, size)
	s.mu.Unlock()
	return nil
}

func headerSizeEstimate(h CacheHeader) int {
	n := 4 + 8 + len(h.Key) + 8 + len(h.ETag) + 8*4 + 4
	for k, v := range h.ResponseHeaders {
		n += 8 + len(k) + 8 + len(v)
	}
	return n
}

// Remove deletes the file and index entry for key. Removing an absent key
// is not an error.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	el, ok := s.lookup[key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	le := el.Value.(*lruEntry)
	s.lru.Remove(el)
	delete(s.lookup, key)
	s.totalBytes -= le.size
	path := filepath.Join(s.dir, le.filename)
	s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("diskcache: remove: %w", err)
	}
	return nil
}

// Invalidate clears SoftTTL (and, if fullExpire, TTL) on the stored entry
// and writes it back, per §4.4. A miss is not an error.
func (s *Store) Invalidate(key string, fullExpire bool) error {
	entry, ok := s.Get(key)
	if !ok {
		return nil
	}
	entry.SoftTTL = 0
	if fullExpire {
		entry.TTL = 0
	}
	return s.Put(key, entry)
}

// Clear deletes every file in the store's directory and resets the index.
func (s *Store) Clear() error {
	s.mu.Lock()
	entries := make([]*lruEntry, 0, len(s.lookup))
	for _, el := range s.lookup {
		entries = append(entries, el.Value.(*lruEntry))
	}
	s.lru.Init()
	s.lookup = map[string]*list.Element{}
	s.totalBytes = 0
	dir := s.dir
	s.mu.Unlock()

	var firstErr error
	for _, le := range entries {
		if err := os.Remove(filepath.Join(dir, le.filename)); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// pruneLocked evicts least-recently-used entries until total_bytes + n is
// under maxBytes * HysteresisFactor, per §4.4. Must be called with s.mu
// held.
func (s *Store) pruneLocked(n int64) {
	if s.totalBytes+n < s.maxBytes {
		return
	}
	target := int64(float64(s.maxBytes) * HysteresisFactor)
	for s.totalBytes+n >= target {
		back := s.lru.Back()
		if back == nil {
			return
		}
		le := back.Value.(*lruEntry)
		s.lru.Remove(back)
		delete(s.lookup, le.key)
		s.totalBytes -= le.size
		path := filepath.Join(s.dir, le.filename)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			GetLogger().Warn("diskcache: prune: failed to remove file", "key", le.key, "error", err)
		} else {
			GetLogger().Debug("diskcache: pruned entry", "key", le.key, "bytes", le.size)
		}
	}
}

// TotalBytes reports the store's current on-disk footprint as tracked by
// the index.
func (s *Store) TotalBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalBytes
}

// Len reports the number of entries currently indexed.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lookup)
}
