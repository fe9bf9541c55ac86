package session

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// cacheFile is the session-scoped file resource handed to the engine at
// BeginSession. The manager owns naming, creation and release bookkeeping;
// the engine owns the content and the manager never parses it. Release is
// guarded by a sync.Once so every End path can call it safely.
type cacheFile struct {
	path string

	once     sync.Once
	mu       sync.Mutex
	released bool
}

// acquireCacheFile ensures the parent directory and the file itself exist.
func acquireCacheFile(path string) (*cacheFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close cache file: %w", err)
	}
	return &cacheFile{path: path}, nil
}

// seed overwrites the cache file content, used to apply a checkpoint payload
// before the engine re-reads its state.
func (c *cacheFile) seed(payload []byte) error {
	if err := os.WriteFile(c.path, payload, 0o644); err != nil {
		return fmt.Errorf("seed cache file: %w", err)
	}
	return nil
}

// snapshot reads the current cache file bytes.
func (c *cacheFile) snapshot() ([]byte, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	return data, nil
}

// release marks the resource released and reports whether this call was the
// first. The file itself stays on disk for inspection.
func (c *cacheFile) release() bool {
	first := false
	c.once.Do(func() {
		c.mu.Lock()
		c.released = true
		c.mu.Unlock()
		first = true
	})
	return first
}

// isReleased reports whether release ran.
func (c *cacheFile) isReleased() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// safeFileName converts a session display name into a filesystem friendly
// base name.
func safeFileName(name string) string {
	cleaned := unsafeNameChars.ReplaceAllString(strings.TrimSpace(name), "_")
	cleaned = strings.Trim(cleaned, "_")
	if cleaned == "" {
		cleaned = "session"
	}
	return strings.ToLower(cleaned)
}
