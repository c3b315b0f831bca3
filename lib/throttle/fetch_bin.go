package throttle

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// fetchBin paces the start of successive fetches against one (group, bin
// name) so that two grants are never closer together than minInterval.
// Reservation is a queue slot, not a grant; waitNextFetch is what actually
// grants permission, one waiter at a time. When several goroutines wait on
// the same bin, the order in which they are granted is not defined: a
// timer wakeup broadcasts to all of them, and whichever retakes the lock
// first takes the slot.
type fetchBin struct {
	mu   sync.Mutex
	cond *sync.Cond
	log  *logrus.Entry
	now  clock

	name         string
	minInterval  time.Duration
	nextEarliest time.Time
	reserved     uint32
	alive        bool
}

func newFetchBin(fields logrus.Fields, name string, now clock) *fetchBin {
	b := &fetchBin{name: name, alive: true, now: now}
	b.cond = sync.NewCond(&b.mu)
	b.log = logrus.WithFields(fields).WithField("bin", name).WithField("kind", "fetch")
	b.nextEarliest = now()
	return b
}

// reserveFetchRequest takes a queue slot unconditionally; it only fails
// once the bin has been shut down.
func (b *fetchBin) reserveFetchRequest() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.alive {
		return false
	}
	b.reserved++
	return true
}

func (b *fetchBin) clearReservation() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reserved > 0 {
		b.reserved--
	}
	b.cond.Signal()
}

// waitNextFetch blocks until this reservation's turn arrives, then converts
// it into a grant by advancing next_fetch_earliest and decrementing
// reserved. Returns false if the bin shuts down while waiting, having
// already undone its own reservation.
func (b *fetchBin) waitNextFetch() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if !b.alive {
			if b.reserved > 0 {
				b.reserved--
			}
			return false
		}
		now := b.now()
		if !now.Before(b.nextEarliest) {
			b.nextEarliest = now.Add(b.minInterval)
			if b.reserved > 0 {
				b.reserved--
			}
			// Single-permit-at-a-time: wake the next waiter so it can
			// recompute the deadline against the slot we just took.
			b.cond.Signal()
			return true
		}
		waitUntil(&b.mu, b.cond, b.nextEarliest, b.now)
	}
}

func (b *fetchBin) updateMinTimeBetweenFetches(ms uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.minInterval = time.Duration(ms) * time.Millisecond
	b.cond.Broadcast()
}

func (b *fetchBin) shutDown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alive = false
	b.cond.Broadcast()
}
