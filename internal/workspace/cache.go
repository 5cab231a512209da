package workspace

import (
	"context"
	"sync"
	"time"

	"github.com/CDeX-Labs/CDeX-Contest-Service/internal/contest"
	"github.com/rs/zerolog"
)

const storeWriteTimeout = 2 * time.Second

type key struct {
	problemID string
	language  contest.Language
}

// Cache holds the per-problem, per-language source buffers for one session.
// It is single-writer (the owning session) and lives exactly as long as the
// session does. A Store, when configured, mirrors writes so a participant who
// reconnects mid-contest gets their buffers back; the in-memory map stays the
// source of truth.
type Cache struct {
	contestID string
	userID    string

	mu      sync.RWMutex
	entries map[key]string

	store  Store
	logger zerolog.Logger
}

func NewCache(contestID, userID string, store Store, logger zerolog.Logger) *Cache {
	return &Cache{
		contestID: contestID,
		userID:    userID,
		entries:   make(map[key]string),
		store:     store,
		logger:    logger.With().Str("component", "workspace").Logger(),
	}
}

func (c *Cache) Get(problemID string, lang contest.Language) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	source, ok := c.entries[key{problemID, lang}]
	return source, ok
}

func (c *Cache) Put(problemID string, lang contest.Language, source string) {
	c.mu.Lock()
	c.entries[key{problemID, lang}] = source
	c.mu.Unlock()

	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		defer cancel()
		if err := c.store.Save(ctx, c.contestID, c.userID, problemID, lang, source); err != nil {
			c.logger.Warn().Err(err).
				Str("problemId", problemID).
				Str("language", string(lang)).
				Msg("Failed to persist workspace entry")
		}
	}
}

// Restore loads any durable entries into the in-memory map. Called once when
// a session (re)starts; in-memory entries are never overwritten.
func (c *Cache) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	entries, err := c.store.LoadAll(ctx, c.contestID, c.userID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	restored := 0
	for k, source := range entries {
		if _, exists := c.entries[k]; !exists {
			c.entries[k] = source
			restored++
		}
	}

	if restored > 0 {
		c.logger.Info().Int("entries", restored).Msg("Restored workspace from durable store")
	}
	return nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear drops all buffers, memory and durable. Called when the session ends.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[key]string)
	c.mu.Unlock()

	if c.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeWriteTimeout)
		defer cancel()
		if err := c.store.Delete(ctx, c.contestID, c.userID); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to delete durable workspace")
		}
	}
}
