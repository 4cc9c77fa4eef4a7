// Package calendar is the single source of truth for "is resource R
// free over [start, end)". Each resource keeps a sorted list of
// non-overlapping entries, so a conflict check is a binary search plus
// a look at the neighbors.
package calendar

import (
	"sort"
	"sync"
	"time"

	"github.com/campusmkt/campus-commerce-engine/internal/domain"
	"github.com/google/uuid"
)

type entry struct {
	holdID    uuid.UUID
	interval  domain.Interval
	booked    bool
	expiresAt time.Time // zero once booked
}

func (e *entry) expired(now time.Time) bool {
	return !e.booked && now.After(e.expiresAt)
}

type resource struct {
	mu      sync.Mutex
	entries []entry // sorted by interval.Start
}

// Calendar tracks holds and booked slots per resource key. Unrelated
// resources never contend: each has its own lock.
type Calendar struct {
	mu        sync.RWMutex
	resources map[string]*resource
	index     map[uuid.UUID]string // holdID -> resource key
}

func New() *Calendar {
	return &Calendar{
		resources: make(map[string]*resource),
		index:     make(map[uuid.UUID]string),
	}
}

func (c *Calendar) resourceFor(key string) *resource {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.resources[key]
	if !ok {
		r = &resource{}
		c.resources[key] = r
	}
	return r
}

// Hold places a time-boxed claim on [interval.Start, interval.End) for
// the resource. Returns ErrSlotConflict if the interval overlaps any
// active hold or booked slot.
func (c *Calendar) Hold(key string, interval domain.Interval, ttl time.Duration) (uuid.UUID, error) {
	if !interval.Valid() {
		return uuid.Nil, domain.ErrInvalidInput
	}
	now := time.Now()
	r := c.resourceFor(key)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.dropExpired(now)

	i := sort.Search(len(r.entries), func(i int) bool {
		return !r.entries[i].interval.Start.Before(interval.Start)
	})
	if i > 0 && r.entries[i-1].interval.Overlaps(interval) {
		return uuid.Nil, domain.ErrSlotConflict
	}
	if i < len(r.entries) && r.entries[i].interval.Overlaps(interval) {
		return uuid.Nil, domain.ErrSlotConflict
	}

	e := entry{holdID: uuid.New(), interval: interval, expiresAt: now.Add(ttl)}
	r.entries = append(r.entries, entry{})
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = e

	c.mu.Lock()
	c.index[e.holdID] = key
	c.mu.Unlock()

	return e.holdID, nil
}

// Commit converts a hold into a permanent slot occupation. Committing
// an expired or unknown hold fails with ErrHoldExpired; committing a
// hold that is already booked fails with ErrInvalidStateTransition, so
// the second of two racing callers never believes it won the slot.
func (c *Calendar) Commit(holdID uuid.UUID) error {
	r, ok := c.lookup(holdID)
	if !ok {
		return domain.ErrHoldExpired
	}
	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.entries {
		e := &r.entries[i]
		if e.holdID != holdID {
			continue
		}
		if e.expired(now) {
			r.remove(i)
			c.forget(holdID)
			return domain.ErrHoldExpired
		}
		if e.booked {
			return domain.ErrInvalidStateTransition
		}
		e.booked = true
		e.expiresAt = time.Time{}
		return nil
	}
	c.forget(holdID)
	return domain.ErrHoldExpired
}

// Release frees a hold or booked slot. Releasing an unknown id is a
// no-op: the sweep may already have taken it.
func (c *Calendar) Release(holdID uuid.UUID) {
	r, ok := c.lookup(holdID)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].holdID == holdID {
			r.remove(i)
			break
		}
	}
	c.forget(holdID)
}

// Free reports whether the interval is currently bookable.
func (c *Calendar) Free(key string, interval domain.Interval) bool {
	c.mu.RLock()
	r, ok := c.resources[key]
	c.mu.RUnlock()
	if !ok {
		return true
	}
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		e := &r.entries[i]
		if !e.expired(now) && e.interval.Overlaps(interval) {
			return false
		}
	}
	return true
}

// ExpiredHold identifies a hold removed by a sweep.
type ExpiredHold struct {
	HoldID   uuid.UUID
	Resource string
	Interval domain.Interval
}

// SweepExpired removes every expired, uncommitted hold and returns them
// so the caller can emit events and release dependent bookings.
func (c *Calendar) SweepExpired(now time.Time) []ExpiredHold {
	c.mu.RLock()
	keys := make([]string, 0, len(c.resources))
	for k := range c.resources {
		keys = append(keys, k)
	}
	c.mu.RUnlock()

	var swept []ExpiredHold
	for _, key := range keys {
		c.mu.RLock()
		r := c.resources[key]
		c.mu.RUnlock()

		r.mu.Lock()
		kept := r.entries[:0]
		for _, e := range r.entries {
			if e.expired(now) {
				swept = append(swept, ExpiredHold{HoldID: e.holdID, Resource: key, Interval: e.interval})
				continue
			}
			kept = append(kept, e)
		}
		r.entries = kept
		r.mu.Unlock()
	}

	for _, s := range swept {
		c.forget(s.HoldID)
	}
	return swept
}

func (c *Calendar) lookup(holdID uuid.UUID) (*resource, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.index[holdID]
	if !ok {
		return nil, false
	}
	r, ok := c.resources[key]
	return r, ok
}

func (c *Calendar) forget(holdID uuid.UUID) {
	c.mu.Lock()
	delete(c.index, holdID)
	c.mu.Unlock()
}

// dropExpired compacts expired holds in place. Caller holds r.mu;
// index entries are cleaned up lazily by lookup misses and sweeps.
func (r *resource) dropExpired(now time.Time) {
	kept := r.entries[:0]
	for _, e := range r.entries {
		if !e.expired(now) {
			kept = append(kept, e)
		}
	}
	r.entries = kept
}

func (r *resource) remove(i int) {
	r.entries = append(r.entries[:i], r.entries[i+1:]...)
}
