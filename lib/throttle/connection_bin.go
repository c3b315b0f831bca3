package throttle

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// connectionBin tracks concurrent connection usage for one (group, bin
// name). Reservation is purely counter-based: it either succeeds
// immediately or fails immediately, so a connectionBin never waits. The
// invariant in_use+reserved <= max_active holds at every confirmation
// checkpoint, except transiently after max_active is lowered, in which case
// no new reservations succeed until the count drains.
type connectionBin struct {
	mu   sync.Mutex
	cond *sync.Cond
	log  *logrus.Entry

	name      string
	inUse     uint32
	reserved  uint32
	maxActive uint32
	alive     bool
}

func newConnectionBin(fields logrus.Fields, name string) *connectionBin {
	b := &connectionBin{name: name, alive: true}
	b.cond = sync.NewCond(&b.mu)
	b.log = logrus.WithFields(fields).WithField("bin", name).WithField("kind", "connection")
	return b
}

// reserveAConnection returns true, incrementing reserved, iff
// in_use+reserved < max_active.
func (b *connectionBin) reserveAConnection() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.alive {
		return false
	}
	if b.inUse+b.reserved >= b.maxActive {
		return false
	}
	b.reserved++
	return true
}

func (b *connectionBin) clearReservation() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reserved > 0 {
		b.reserved--
	}
}

// noteConnectionCreation converts a reservation into an in-use connection.
func (b *connectionBin) noteConnectionCreation() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reserved > 0 {
		b.reserved--
	}
	b.inUse++
}

func (b *connectionBin) noteConnectionDestruction() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inUse > 0 {
		b.inUse--
	}
	b.cond.Broadcast()
}

func (b *connectionBin) updateMaxActiveConnections(n uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxActive = n
	b.cond.Broadcast()
}

// overQuota returns max(0, in_use-max_active), i.e. how far this bin
// exceeds its current quota following a downward adjustment.
func (b *connectionBin) overQuota() uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inUse > b.maxActive {
		return b.inUse - b.maxActive
	}
	return 0
}

func (b *connectionBin) shutDown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alive = false
	b.cond.Broadcast()
}
