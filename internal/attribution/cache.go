package attribution

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Unicode-aware so accented names keep their letters as part of the key.
var nonWordRe = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// NormalizePhrase collapses non-word runs to single spaces, trims and
// lower-cases. Cache keys are always normalized phrases.
func NormalizePhrase(text string) string {
	return strings.ToLower(strings.TrimSpace(nonWordRe.ReplaceAllString(text, " ")))
}

// Cache is the persisted mapping from normalized title phrase to a resolved
// canonical name or the UnknownSigner sentinel.
//
// Entries are never evicted; the map grows monotonically across runs. The
// whole file is rewritten on Flush.
type Cache struct {
	path    string
	entries map[string]string
	dirty   bool
	logger  *slog.Logger
}

// LoadCache reads the cache file at path. A missing file yields an empty
// cache; any other read problem is logged and also degrades to empty.
func LoadCache(path string, logger *slog.Logger) *Cache {
	c := &Cache{
		path:    path,
		entries: make(map[string]string),
		logger:  logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("attribution cache unreadable, starting empty",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
		return c
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		logger.Warn("attribution cache corrupt, starting empty",
			slog.String("path", path),
			slog.String("error", err.Error()))
		c.entries = make(map[string]string)
		return c
	}

	logger.Info("attribution cache loaded",
		slog.String("path", path),
		slog.Int("entries", len(c.entries)))
	return c
}

// Get returns the cached resolution for a normalized phrase.
func (c *Cache) Get(normalized string) (string, bool) {
	v, ok := c.entries[normalized]
	return v, ok
}

// Put records a resolution. The entry is only persisted on the next Flush.
func (c *Cache) Put(normalized, name string) {
	c.entries[normalized] = name
	c.dirty = true
}

// Len reports the number of cached phrases.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Flush rewrites the cache file if there are unsaved entries. Flushing after
// every lookup bounds the loss window if the process is killed mid-run.
func (c *Cache) Flush() error {
	if !c.dirty {
		return nil
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal attribution cache: %w", err)
	}
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write attribution cache: %w", err)
	}
	c.dirty = false
	return nil
}
