package throttle

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// throttleBin paces byte throughput for one (group, bin name) across the
// series of an active stream. A series runs from the moment activeStreams
// transitions 0->1 until it returns to 0, at which point totalBytesRead and
// seriesStart reset so the next fetch starts a fresh pacing window.
type throttleBin struct {
	mu   sync.Mutex
	cond *sync.Cond
	log  *logrus.Entry
	now  clock

	name           string
	msPerByte      float64
	activeStreams  uint32
	totalBytesRead int64
	seriesStart    time.Time
	alive          bool
}

func newThrottleBin(fields logrus.Fields, name string, now clock) *throttleBin {
	b := &throttleBin{name: name, alive: true, now: now}
	b.cond = sync.NewCond(&b.mu)
	b.log = logrus.WithFields(fields).WithField("bin", name).WithField("kind", "throttle")
	return b
}

// beginFetch increments activeStreams and, on the 0->1 transition, starts a
// fresh pacing series.
func (b *throttleBin) beginFetch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.activeStreams++
	if b.activeStreams == 1 {
		b.seriesStart = b.now()
		b.totalBytesRead = 0
	}
}

// endFetch decrements activeStreams and clears the series once it reaches
// zero.
func (b *throttleBin) endFetch() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.activeStreams > 0 {
		b.activeStreams--
	}
	if b.activeStreams == 0 {
		b.totalBytesRead = 0
		b.seriesStart = time.Time{}
	}
}

// beginRead blocks until reading byteCount more bytes would not exceed the
// bin's byte-rate pacing, then provisionally records them. Returns false if
// the bin shuts down while waiting.
func (b *throttleBin) beginRead(byteCount int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if !b.alive {
			return false
		}
		if b.msPerByte <= 0 {
			b.totalBytesRead += int64(byteCount)
			return true
		}
		projected := b.totalBytesRead + int64(byteCount)
		earliest := b.seriesStart.Add(time.Duration(float64(projected) * b.msPerByte * float64(time.Millisecond)))
		now := b.now()
		if !now.Before(earliest) {
			b.totalBytesRead = projected
			return true
		}
		waitUntil(&b.mu, b.cond, earliest, b.now)
	}
}

// endRead adjusts totalBytesRead by (actual-orig) to account for short
// reads, and wakes one waiter since the adjustment may have freed up
// headroom.
func (b *throttleBin) endRead(orig, actual int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.totalBytesRead += int64(actual - orig)
	b.cond.Signal()
}

func (b *throttleBin) updateMinimumMillisecondsPerByte(x float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msPerByte = x
	b.cond.Broadcast()
}

func (b *throttleBin) shutDown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alive = false
	b.cond.Broadcast()
}
