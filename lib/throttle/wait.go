package throttle

import (
	"sync"
	"time"
)

// waitUntil blocks the calling goroutine, which must already hold mu, until
// either deadline passes or cond is signaled/broadcast. It always returns
// with mu held again, same as sync.Cond.Wait. Callers loop and re-check
// their own condition and the bin's alive flag afterwards; this only
// arranges for the wakeup.
func waitUntil(mu *sync.Mutex, cond *sync.Cond, deadline time.Time, now clock) {
	wait := deadline.Sub(now())
	if wait <= 0 {
		return
	}
	timer := time.AfterFunc(wait, func() {
		mu.Lock()
		cond.Broadcast()
		mu.Unlock()
	})
	defer timer.Stop()
	cond.Wait()
}
