package throttle

// ConnectionHandle is a scoped permission bound to a Group and the set of
// connection bin names it was issued against. It carries no mutable state
// of its own -- all state lives in the Group's bins -- so obtaining one is
// cheap and does not itself reserve anything.
type ConnectionHandle struct {
	group    *Group
	binNames []string
}

// ObtainFetchPermission reserves a slot in every bin this handle names,
// confirming into in-use counts on success. It never blocks. A nil result
// means the quota is exhausted, or the Group is shutting down -- either
// way, abandon this work unit rather than retrying indefinitely.
func (h *ConnectionHandle) ObtainFetchPermission() *FetchHandle {
	return h.group.obtainConnectionPermission(h.binNames)
}

// OverQuotaCount returns the total number of open connections by which this
// handle's bins currently exceed their quota (for example after a downward
// spec adjustment), summed over the bins, or math.MaxUint32 if the Group is
// shutting down.
func (h *ConnectionHandle) OverQuotaCount() uint32 {
	return h.group.overConnectionQuotaCount(h.binNames)
}

// Release returns the connection slot this handle was granted. Calling
// Release without a successful ObtainFetchPermission is a programming
// error: bin counters floor at zero, so none goes negative, but if other
// handles hold connections on the same bins, one of their slots is freed.
func (h *ConnectionHandle) Release() {
	h.group.releaseConnectionPermission(h.binNames)
}

// FetchHandle is issued by a successful ObtainFetchPermission. It is bound
// to the same Group and bin names as the ConnectionHandle that produced it.
type FetchHandle struct {
	group    *Group
	binNames []string
}

// ObtainStreamPermission runs the fetch-pacing wait and returns a
// StreamHandle once this bin set's turn to fetch arrives. A nil result
// means the Group is shutting down.
func (h *FetchHandle) ObtainStreamPermission() *StreamHandle {
	return h.group.obtainFetchDocumentPermission(h.binNames)
}

// StreamHandle paces byte reads from one open fetch.
type StreamHandle struct {
	group    *Group
	binNames []string
}

// ObtainReadPermission blocks until reading byteCount more bytes would not
// violate this bin set's byte-rate pacing. Returns false if the Group is
// shutting down.
func (h *StreamHandle) ObtainReadPermission(byteCount int) bool {
	return h.group.obtainReadPermission(h.binNames, byteCount)
}

// ReleaseReadPermission corrects the provisional byte count recorded by
// ObtainReadPermission to reflect how many bytes were actually read.
func (h *StreamHandle) ReleaseReadPermission(origByteCount, actualByteCount int) {
	h.group.releaseReadPermission(h.binNames, origByteCount, actualByteCount)
}

// Close notes the stream ending. Once the last stream referencing a bin
// closes, that bin's pacing series resets.
func (h *StreamHandle) Close() {
	h.group.closeStream(h.binNames)
}
