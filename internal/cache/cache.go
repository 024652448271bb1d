package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Cache defines a generic cache interface
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	Purge() int
	Size() int
}

// Cleaner interface for caches that support cleanup
type Cleaner interface {
	CleanExpired() int
	Purge() int
}

// Manager sweeps expired entries of its registered caches and purges them
// together when the dataset is reloaded.
type Manager struct {
	mu     sync.Mutex
	caches map[string]Cleaner
	logger *slog.Logger
}

// NewManager creates a new cache manager
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{caches: make(map[string]Cleaner), logger: logger}
}

// Register adds a named cache to the manager.
func (m *Manager) Register(name string, cache Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = cache
}

// PurgeAll empties every registered cache and returns the number of dropped entries.
func (m *Manager) PurgeAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for name, c := range m.caches {
		n := c.Purge()
		total += n
		m.logger.Debug("Cache purged", "cache", name, "entries", n)
	}
	return total
}

// CleanExpired sweeps every registered cache once.
func (m *Manager) CleanExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Run sweeps expired entries every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanExpired(); n > 0 {
				m.logger.Debug("Expired cache entries removed", "entries", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
