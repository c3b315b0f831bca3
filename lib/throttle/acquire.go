package throttle

import "math"

// newConnectionHandle binds a ConnectionHandle to this Group and bin set.
// This does not reserve anything: the same bin names flow through the
// whole handle chain (connection -> fetch -> stream), and the actual
// reservation happens on ObtainFetchPermission.
func (g *Group) newConnectionHandle(binNames []string) *ConnectionHandle {
	if !g.isAlive() {
		return nil
	}
	names := append([]string(nil), binNames...)
	return &ConnectionHandle{group: g, binNames: names}
}

// obtainConnectionPermission runs phase 1 (reserve) and phase 3 (confirm) of
// the three-phase protocol across the named ConnectionBins; connection bins
// never wait, so there is no phase 2 here. On any reservation failure, all
// previously reserved bins are rewound in reverse order.
func (g *Group) obtainConnectionPermission(binNames []string) *FetchHandle {
	if !g.isAlive() {
		return nil
	}

	reserved := make([]*connectionBin, 0, len(binNames))
	for _, name := range binNames {
		bin := g.getOrCreateConnectionBin(name)
		if bin == nil || !bin.reserveAConnection() {
			rewindConnectionReservations(reserved)
			return nil
		}
		reserved = append(reserved, bin)
	}

	for _, bin := range reserved {
		bin.noteConnectionCreation()
	}
	return &FetchHandle{group: g, binNames: binNames}
}

func rewindConnectionReservations(bins []*connectionBin) {
	for i := len(bins) - 1; i >= 0; i-- {
		bins[i].clearReservation()
	}
}

func (g *Group) releaseConnectionPermission(binNames []string) {
	for _, name := range binNames {
		if bin := g.lookupConnectionBin(name); bin != nil {
			bin.noteConnectionDestruction()
		}
	}
}

// overConnectionQuotaCount returns sum(max(0, in_use-max_active)) across the
// named bins, or math.MaxUint32 while the Group is shutting down -- the
// sentinel callers treat as "release what you're holding and abandon this
// work unit".
func (g *Group) overConnectionQuotaCount(binNames []string) uint32 {
	if !g.isAlive() {
		return math.MaxUint32
	}
	var total uint32
	for _, name := range binNames {
		if bin := g.lookupConnectionBin(name); bin != nil {
			total += bin.overQuota()
		}
	}
	return total
}

// obtainFetchDocumentPermission runs all three phases across the named
// FetchBins (reserve, wait for pacing, confirm), then begins a fetch on the
// corresponding ThrottleBins -- created lazily here, rather than during
// reserve, because each stream corresponds to exactly one fetch.
func (g *Group) obtainFetchDocumentPermission(binNames []string) *StreamHandle {
	if !g.isAlive() {
		return nil
	}

	reserved := make([]*fetchBin, 0, len(binNames))
	for _, name := range binNames {
		bin := g.getOrCreateFetchBin(name)
		if bin == nil || !bin.reserveFetchRequest() {
			rewindFetchReservations(reserved)
			return nil
		}
		reserved = append(reserved, bin)
	}

	for i, bin := range reserved {
		if !bin.waitNextFetch() {
			// bin already cleared its own reservation on shutdown; rewind
			// the ones behind it that are still waiting their turn.
			rewindFetchReservations(reserved[i+1:])
			return nil
		}
	}

	throttleBins := make([]*throttleBin, 0, len(binNames))
	for _, name := range binNames {
		bin := g.getOrCreateThrottleBin(name)
		if bin == nil {
			// The Group vanished between the fetch grant and throttle-bin
			// creation. The grant itself already paced real time and
			// cannot be undone; end the fetch on any throttle bins already
			// begun in this call before failing the stream.
			for _, begun := range throttleBins {
				begun.endFetch()
			}
			return nil
		}
		bin.beginFetch()
		throttleBins = append(throttleBins, bin)
	}

	return &StreamHandle{group: g, binNames: binNames}
}

func rewindFetchReservations(bins []*fetchBin) {
	for i := len(bins) - 1; i >= 0; i-- {
		bins[i].clearReservation()
	}
}

// obtainReadPermission attempts begin_read on every named ThrottleBin,
// rewinding any provisional additions on the bins it already granted if a
// later bin reports shutdown.
func (g *Group) obtainReadPermission(binNames []string, byteCount int) bool {
	if !g.isAlive() {
		return false
	}

	granted := make([]*throttleBin, 0, len(binNames))
	for _, name := range binNames {
		bin := g.lookupThrottleBin(name)
		if bin == nil {
			continue
		}
		if !bin.beginRead(byteCount) {
			for i := len(granted) - 1; i >= 0; i-- {
				granted[i].endRead(byteCount, 0)
			}
			return false
		}
		granted = append(granted, bin)
	}
	return true
}

func (g *Group) releaseReadPermission(binNames []string, orig, actual int) {
	for _, name := range binNames {
		if bin := g.lookupThrottleBin(name); bin != nil {
			bin.endRead(orig, actual)
		}
	}
}

func (g *Group) closeStream(binNames []string) {
	for _, name := range binNames {
		if bin := g.lookupThrottleBin(name); bin != nil {
			bin.endFetch()
		}
	}
}
