// Package confirm holds pending single-payment confirmations between "user
// asked to pay" and "user pressed confirm". Entries live in memory only:
// losing them on restart costs the user a resend, never a payment.
package confirm

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/promptcash/paybot/internal/metrics"
)

// Entry is one payment awaiting explicit user approval. Recipient and amount
// were resolved at request time and are not re-derived on confirmation.
type Entry struct {
	ID          string
	UserID      int64
	Amount      decimal.Decimal
	Token       string
	ToAddress   string
	ToUserID    *int64
	DisplayName string
	Message     string
	// RequestID links the confirmation to a payment request being paid;
	// zero for a plain send.
	RequestID int64
	CreatedAt time.Time
}

// Cache is a TTL-bounded, consume-once store of pending confirmations.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	ttl     time.Duration
	sweep   time.Duration
	now     func() time.Time
}

// NewCache creates a cache whose entries expire after ttl and are purged
// every sweep interval by Run.
func NewCache(ttl, sweep time.Duration) *Cache {
	return &Cache{
		entries: make(map[string]*Entry),
		ttl:     ttl,
		sweep:   sweep,
		now:     time.Now,
	}
}

// Put stores an entry and returns its generated ID.
func (c *Cache) Put(entry *Entry) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.ID = uuid.NewString()
	entry.CreatedAt = c.now()
	c.entries[entry.ID] = entry
	metrics.ConfirmationsPending.Set(float64(len(c.entries)))
	return entry.ID
}

// Take consumes an entry. A given ID can be taken at most once; expired,
// already-consumed, and never-issued IDs all report not-found alike, and the
// caller must treat that as "confirmation expired, please resend".
func (c *Cache) Take(id string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	delete(c.entries, id)
	metrics.ConfirmationsPending.Set(float64(len(c.entries)))

	if c.now().Sub(entry.CreatedAt) > c.ttl {
		metrics.ConfirmationsExpired.Inc()
		return nil, false
	}
	return entry, true
}

// TakeOwned consumes an entry only when it belongs to userID. A mismatched
// caller leaves the entry in place for its owner; everything else behaves
// like Take.
func (c *Cache) TakeOwned(id string, userID int64) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[id]
	if !ok || entry.UserID != userID {
		return nil, false
	}
	delete(c.entries, id)
	metrics.ConfirmationsPending.Set(float64(len(c.entries)))

	if c.now().Sub(entry.CreatedAt) > c.ttl {
		metrics.ConfirmationsExpired.Inc()
		return nil, false
	}
	return entry, true
}

// Sweep removes entries older than the TTL and returns how many it dropped.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-c.ttl)
	dropped := 0
	for id, entry := range c.entries {
		if entry.CreatedAt.Before(cutoff) {
			delete(c.entries, id)
			dropped++
		}
	}
	if dropped > 0 {
		metrics.ConfirmationsExpired.Add(float64(dropped))
		metrics.ConfirmationsPending.Set(float64(len(c.entries)))
	}
	return dropped
}

// Len reports how many entries are currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Run sweeps periodically until ctx is done.
func (c *Cache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
