// Package recents keeps a small local cache of recently opened sessions.
// The cache is advisory: read and write failures are logged and otherwise ignored.
package recents

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/h0rv/brickhunt/internal/domain"
	"gopkg.in/yaml.v3"
)

// MaxEntries is the number of sessions kept.
const MaxEntries = 20

// Cache is a YAML file of session summaries, most recent first.
type Cache struct {
	path   string
	logger *slog.Logger
}

type file struct {
	Sessions []domain.SessionSummary `yaml:"sessions"`
}

// New creates a cache stored at path.
func New(path string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{path: path, logger: logger}
}

// List returns the cached summaries, most recent first. A missing or corrupt
// cache reads as empty.
func (c *Cache) List() []domain.SessionSummary {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.Debug("failed to read recents", "path", c.path, "err", err)
		}
		return nil
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		c.logger.Debug("failed to parse recents", "path", c.path, "err", err)
		return nil
	}

	sort.SliceStable(f.Sessions, func(i, j int) bool {
		return f.Sessions[i].LastOpened.After(f.Sessions[j].LastOpened)
	})
	return f.Sessions
}

// Upsert records a session summary, replacing any entry with the same token,
// and trims the cache to MaxEntries.
func (c *Cache) Upsert(s domain.SessionSummary) {
	sessions := []domain.SessionSummary{s}
	for _, existing := range c.List() {
		if existing.Token != s.Token {
			sessions = append(sessions, existing)
		}
	}
	if len(sessions) > MaxEntries {
		sessions = sessions[:MaxEntries]
	}
	c.save(sessions)
}

// Remove drops a session from the cache.
func (c *Cache) Remove(token string) {
	sessions := c.List()
	kept := sessions[:0]
	for _, s := range sessions {
		if s.Token != token {
			kept = append(kept, s)
		}
	}
	if len(kept) < len(sessions) {
		c.save(kept)
	}
}

func (c *Cache) save(sessions []domain.SessionSummary) {
	raw, err := yaml.Marshal(file{Sessions: sessions})
	if err != nil {
		c.logger.Debug("failed to encode recents", "err", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o750); err != nil {
		c.logger.Debug("failed to create recents dir", "path", c.path, "err", err)
		return
	}
	if err := os.WriteFile(c.path, raw, 0o600); err != nil {
		c.logger.Debug("failed to write recents", "path", c.path, "err", err)
	}
}
