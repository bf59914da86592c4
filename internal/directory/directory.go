// Package directory caches the people the signed-in user can message.
package directory

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/omochice/dock-chat/internal/logging"
)

// ErrUnavailable is returned by a Fetcher when the directory service cannot
// be reached or answers with an unexpected status.
var ErrUnavailable = errors.New("directory unavailable")

// fallbackName is shown for a counterpart without any name.
const fallbackName = "Conversation"

// Counterpart is another user the signed-in user follows or is followed by.
type Counterpart struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName joins the non-empty name parts, falling back to "Conversation".
func (c Counterpart) DisplayName() string {
	name := strings.TrimSpace(strings.Join([]string{c.FirstName, c.LastName}, " "))
	if name == "" {
		return fallbackName
	}
	return name
}

// Fetcher reads identity and social graph data from the REST collaborator.
type Fetcher interface {
	Me(ctx context.Context) (Counterpart, error)
	Followers(ctx context.Context, userID int64) ([]Counterpart, error)
	Following(ctx context.Context, userID int64) ([]Counterpart, error)
}

// Cache holds the union of followers and following, keyed by user id.
// It is safe for concurrent use.
type Cache struct {
	fetcher Fetcher
	log     *zap.Logger

	mu      sync.RWMutex
	entries map[int64]Counterpart
}

// New creates an empty Cache backed by f. log may be nil.
func New(f Fetcher, log *zap.Logger) *Cache {
	return &Cache{
		fetcher: f,
		log:     logging.OrNop(log),
		entries: make(map[int64]Counterpart),
	}
}

// Load replaces the cache with followers and following of selfID. When either
// lookup fails the cache is left empty; the failure is logged and returned.
func (c *Cache) Load(ctx context.Context, selfID int64) error {
	entries, err := c.fetch(ctx, selfID)
	if err != nil {
		c.log.Warn("failed to load directory", zap.Int64("user", selfID), zap.Error(err))
		entries = make(map[int64]Counterpart)
	}

	c.mu.Lock()
	c.entries = entries
	c.mu.Unlock()

	c.log.Debug("directory loaded", zap.Int("entries", len(entries)))
	return err
}

func (c *Cache) fetch(ctx context.Context, selfID int64) (map[int64]Counterpart, error) {
	followers, err := c.fetcher.Followers(ctx, selfID)
	if err != nil {
		return nil, err
	}
	following, err := c.fetcher.Following(ctx, selfID)
	if err != nil {
		return nil, err
	}

	entries := make(map[int64]Counterpart, len(followers)+len(following))
	for _, list := range [][]Counterpart{followers, following} {
		for _, cp := range list {
			if cp.ID <= 0 {
				continue
			}
			entries[cp.ID] = cp
		}
	}
	return entries, nil
}

// Lookup returns the counterpart with id.
func (c *Cache) Lookup(id int64) (Counterpart, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp, ok := c.entries[id]
	return cp, ok
}

// Name returns the display name for id, or the fallback when unknown.
func (c *Cache) Name(id int64) string {
	cp, ok := c.Lookup(id)
	if !ok {
		return fallbackName
	}
	return cp.DisplayName()
}

// List returns every counterpart ordered by display name, then id.
func (c *Cache) List() []Counterpart {
	c.mu.RLock()
	out := make([]Counterpart, 0, len(c.entries))
	for _, cp := range c.entries {
		out = append(out, cp)
	}
	c.mu.RUnlock()

	slices.SortFunc(out, func(a, b Counterpart) int {
		if n := strings.Compare(a.DisplayName(), b.DisplayName()); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Len returns the number of cached counterparts.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
