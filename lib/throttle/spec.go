package throttle

import "github.com/pkg/errors"

// ErrSpecRequired is returned by Throttler.CreateOrUpdate when no spec is
// supplied; a group cannot be created or updated without one.
var ErrSpecRequired = errors.New("throttle spec is required")

// IThrottleSpec answers the three throttling queries a Group consults every
// time it polls: how many open connections a bin allows, the minimum
// spacing between fetches on a bin, and the minimum milliseconds per byte
// read from a bin. Implementations are supplied by the caller and may be
// swapped out live via Throttler.CreateOrUpdate; the live spec is re-read on
// every Throttler.Poll call, which pushes the current values into each bin
// that already exists.
type IThrottleSpec interface {
	// MaxOpenConnections returns the maximum number of simultaneously open
	// connections permitted for binName.
	MaxOpenConnections(binName string) uint32
	// MinMillisecondsPerFetch returns the minimum interval, in
	// milliseconds, that must separate the start of two fetches against
	// binName.
	MinMillisecondsPerFetch(binName string) uint64
	// MinMillisecondsPerByte returns the minimum milliseconds that must
	// elapse per byte read from binName. Zero disables byte-rate pacing.
	MinMillisecondsPerByte(binName string) float64
}
