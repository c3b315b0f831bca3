package throttle

import "time"

// clock abstracts time retrieval so pacing can be driven by an injected
// clock in tests instead of the wall clock.
type clock func() time.Time

func systemClock() time.Time {
	return time.Now()
}
