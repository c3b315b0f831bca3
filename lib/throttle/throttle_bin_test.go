package throttle

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestThrottleBin(msPerByte float64) *throttleBin {
	b := newThrottleBin(logrus.Fields{"group_type": "ut", "group_name": "ut"}, "h1", systemClock)
	b.updateMinimumMillisecondsPerByte(msPerByte)
	return b
}

func Test_throttleBin_ByteRatePacingRespected(t *testing.T) {
	// 1 ms/byte: a 100-byte read should pace to roughly 100ms after the
	// series started, and a following 200-byte read to roughly 300ms.
	bin := newTestThrottleBin(1)
	bin.beginFetch()
	defer bin.endFetch()

	start := time.Now()
	if !bin.beginRead(100) {
		t.Fatal("first beginRead should have succeeded")
	}
	bin.endRead(100, 100)
	firstGrant := time.Since(start)
	if firstGrant < 90*time.Millisecond {
		t.Errorf("first grant arrived after %v, want >= ~100ms", firstGrant)
	}

	if !bin.beginRead(200) {
		t.Fatal("second beginRead should have succeeded")
	}
	bin.endRead(200, 200)
	secondGrant := time.Since(start)
	if secondGrant < 290*time.Millisecond {
		t.Errorf("second grant arrived after %v, want >= ~300ms", secondGrant)
	}
}

func Test_throttleBin_ShortReadCorrectionSpeedsUpNextGrant(t *testing.T) {
	bin := newTestThrottleBin(1)
	bin.beginFetch()
	defer bin.endFetch()

	start := time.Now()
	if !bin.beginRead(200) {
		t.Fatal("first beginRead should have succeeded")
	}
	// Only 50 of the requested 200 bytes were actually read.
	bin.endRead(200, 50)

	if !bin.beginRead(250) {
		t.Fatal("second beginRead should have succeeded")
	}
	bin.endRead(250, 250)
	grant := time.Since(start)

	// Corrected total is 50+250=300 bytes at 1ms/byte, ~300ms, not the
	// ~450ms it would be without the short-read correction.
	if grant < 290*time.Millisecond || grant > 420*time.Millisecond {
		t.Errorf("second grant arrived after %v, want ~300ms reflecting the short-read correction", grant)
	}
}

func Test_throttleBin_ZeroRateNeverBlocks(t *testing.T) {
	bin := newTestThrottleBin(0)
	bin.beginFetch()
	defer bin.endFetch()

	start := time.Now()
	if !bin.beginRead(1_000_000) {
		t.Fatal("beginRead should have succeeded")
	}
	if elapsed := time.Since(start); elapsed > 10*time.Millisecond {
		t.Errorf("beginRead with zero rate took %v, want effectively instant", elapsed)
	}
}

func Test_throttleBin_SeriesResetsBetweenFetches(t *testing.T) {
	bin := newTestThrottleBin(1)

	bin.beginFetch()
	if !bin.beginRead(500) {
		t.Fatal("first series beginRead should have succeeded")
	}
	bin.endRead(500, 500)
	bin.endFetch()

	// A new series should start its own budget from zero, not continue
	// accumulating against the first series's pacing.
	start := time.Now()
	bin.beginFetch()
	defer bin.endFetch()
	if !bin.beginRead(50) {
		t.Fatal("second series beginRead should have succeeded")
	}
	bin.endRead(50, 50)
	if elapsed := time.Since(start); elapsed > 70*time.Millisecond {
		t.Errorf("second series grant took %v, want ~50ms from its own fresh start", elapsed)
	}
}

func Test_throttleBin_ShutdownReleasesWaiter(t *testing.T) {
	bin := newTestThrottleBin(1000)
	bin.beginFetch()
	defer bin.endFetch()

	if !bin.beginRead(1) {
		t.Fatal("first beginRead should have succeeded")
	}

	done := make(chan bool, 1)
	go func() {
		done <- bin.beginRead(1_000_000)
	}()

	time.Sleep(20 * time.Millisecond)
	bin.shutDown()

	select {
	case granted := <-done:
		if granted {
			t.Fatal("expected beginRead to report shutdown, not a grant")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was not released within a bounded time after shutdown")
	}
}
