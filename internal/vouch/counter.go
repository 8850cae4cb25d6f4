package vouch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"

	"github.com/rcliao/vouchbot/internal/model"
	"github.com/rcliao/vouchbot/internal/store"
)

// Counter owns the in-memory vouch counts. Every mutation runs as one
// read-modify-write-save unit under a single lock.
type Counter struct {
	mu      sync.Mutex
	counts  map[model.UserID]int
	cap     int
	store   store.Store
	journal store.Journal
	log     *slog.Logger
}

// NewCounter loads the persisted counts from s. Corrupt data is logged and
// replaced by an empty mapping.
func NewCounter(ctx context.Context, s store.Store, cap int, log *slog.Logger) (*Counter, error) {
	if cap <= 0 {
		cap = model.DefaultCap
	}
	c := &Counter{
		counts: make(map[model.UserID]int),
		cap:    cap,
		store:  s,
		log:    log,
	}
	if j, ok := s.(store.Journal); ok {
		c.journal = j
	}

	entries, err := s.Load(ctx)
	switch {
	case errors.Is(err, store.ErrCorrupt):
		log.Warn("No usable vouch data found, starting fresh", "error", err)
	case err != nil:
		return nil, fmt.Errorf("load counts: %w", err)
	}
	for _, e := range entries {
		c.counts[e.UserID] = e.Count
	}
	log.Info("loaded vouch counts", "users", len(c.counts))
	return c, nil
}

// Cap returns the ceiling applied to every increment.
func (c *Counter) Cap() int { return c.cap }

// Get returns userID's count.
func (c *Counter) Get(userID model.UserID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[userID]
}

// Snapshot returns a copy of every count.
func (c *Counter) Snapshot() map[model.UserID]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.counts)
}

// Update runs fn against a working copy of the counts. If fn succeeds and
// changed anything, the copy replaces the live counts and is persisted. A
// persistence failure is returned but the in-memory change is kept.
func (c *Counter) Update(ctx context.Context, actor model.UserID, fn func(tx *Tx) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := &Tx{
		counts: maps.Clone(c.counts),
		cap:    c.cap,
		actor:  actor,
		deltas: make(map[deltaKey]int),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}
	c.counts = tx.counts

	if err := c.store.Save(ctx, c.entries()); err != nil {
		c.log.Error("Error saving vouch data", "error", err)
		return fmt.Errorf("save counts: %w", err)
	}
	if c.journal != nil {
		if err := c.journal.Append(ctx, tx.events()...); err != nil {
			c.log.Error("Error journaling vouch change", "error", err)
		}
	}
	return nil
}

func (c *Counter) entries() []model.Entry {
	entries := make([]model.Entry, 0, len(c.counts))
	for id, n := range c.counts {
		entries = append(entries, model.Entry{UserID: id, Count: n})
	}
	return entries
}

type deltaKey struct {
	userID model.UserID
	reason string
}

// Tx is a pending change set handed to Counter.Update callbacks.
type Tx struct {
	counts map[model.UserID]int
	cap    int
	actor  model.UserID
	dirty  bool

	order  []deltaKey
	deltas map[deltaKey]int
	clears []string
}

// Get returns userID's count within the transaction.
func (tx *Tx) Get(userID model.UserID) int {
	return tx.counts[userID]
}

// Increment adds one vouch unless userID is at the cap. Returns the
// resulting count and whether it changed.
func (tx *Tx) Increment(userID model.UserID, reason string) (int, bool) {
	n := tx.counts[userID]
	if n >= tx.cap {
		return n, false
	}
	n++
	tx.counts[userID] = n
	tx.record(userID, reason, 1)
	return n, true
}

// Decrement removes one vouch unless userID has none.
func (tx *Tx) Decrement(userID model.UserID, reason string) (int, bool) {
	n := tx.counts[userID]
	if n <= 0 {
		return 0, false
	}
	n--
	tx.counts[userID] = n
	tx.record(userID, reason, -1)
	return n, true
}

// Clear drops every count. Returns how many users were cleared.
func (tx *Tx) Clear(reason string) int {
	n := len(tx.counts)
	tx.counts = make(map[model.UserID]int)
	tx.clears = append(tx.clears, reason)
	tx.dirty = true
	return n
}

func (tx *Tx) record(userID model.UserID, reason string, delta int) {
	k := deltaKey{userID: userID, reason: reason}
	if _, ok := tx.deltas[k]; !ok {
		tx.order = append(tx.order, k)
	}
	tx.deltas[k] += delta
	tx.dirty = true
}

func (tx *Tx) events() []model.Event {
	events := make([]model.Event, 0, len(tx.order)+len(tx.clears))
	for _, reason := range tx.clears {
		events = append(events, model.Event{Reason: reason, Actor: tx.actor})
	}
	for _, k := range tx.order {
		events = append(events, model.Event{UserID: k.userID, Delta: tx.deltas[k], Reason: k.reason, Actor: tx.actor})
	}
	return events
}
