package throttle

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func newTestFetchBin(minMs uint64) *fetchBin {
	b := newFetchBin(logrus.Fields{"group_type": "ut", "group_name": "ut"}, "h1", systemClock)
	b.updateMinTimeBetweenFetches(minMs)
	return b
}

func Test_fetchBin_SerialPacingRespected(t *testing.T) {
	bin := newTestFetchBin(60)

	start := time.Now()
	var grants []time.Duration
	for i := 0; i < 3; i++ {
		if !bin.reserveFetchRequest() {
			t.Fatalf("reservation %d should have succeeded", i)
		}
		if !bin.waitNextFetch() {
			t.Fatalf("waitNextFetch %d should have succeeded", i)
		}
		grants = append(grants, time.Since(start))
	}

	for i := 1; i < len(grants); i++ {
		gap := grants[i] - grants[i-1]
		if gap < 55*time.Millisecond {
			t.Errorf("grant %d arrived only %v after grant %d, want >= ~60ms", i, gap, i-1)
		}
	}
}

func Test_fetchBin_ClearReservationFreesSlot(t *testing.T) {
	bin := newTestFetchBin(1000)
	if !bin.reserveFetchRequest() {
		t.Fatal("expected reservation to succeed")
	}
	bin.clearReservation()
	if bin.reserved != 0 {
		t.Fatalf("reserved = %v, want 0 after clear", bin.reserved)
	}
}

func Test_fetchBin_ShutdownReleasesWaiter(t *testing.T) {
	bin := newTestFetchBin(10_000)
	if !bin.reserveFetchRequest() {
		t.Fatal("expected first reservation to succeed")
	}
	if !bin.waitNextFetch() {
		t.Fatal("expected first wait to succeed immediately")
	}

	if !bin.reserveFetchRequest() {
		t.Fatal("expected second reservation to succeed")
	}

	done := make(chan bool, 1)
	go func() {
		done <- bin.waitNextFetch()
	}()

	time.Sleep(20 * time.Millisecond)
	bin.shutDown()

	select {
	case granted := <-done:
		if granted {
			t.Fatal("expected waitNextFetch to report shutdown, not a grant")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter was not released within a bounded time after shutdown")
	}

	if bin.reserved != 0 {
		t.Fatalf("reserved = %v, want 0 after shutdown releases the waiter", bin.reserved)
	}
}

func Test_fetchBin_ReserveFailsAfterShutdown(t *testing.T) {
	bin := newTestFetchBin(100)
	bin.shutDown()
	if bin.reserveFetchRequest() {
		t.Fatal("expected reservation to fail after shutdown")
	}
}
