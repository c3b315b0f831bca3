// Package throttle implements a multi-dimensional throttling coordinator.
// It gates three independent resources -- concurrent connections to a
// remote resource, the minimum interval between fetches, and the minimum
// time per byte read from an open stream -- behind caller-named bins, so
// that limits can be expressed per bin and a single operation can be
// constrained by the intersection of several.
//
// A Throttler is the root of the hierarchy: Throttler -> GroupSet -> Group
// -> bins. Callers obtain a ConnectionHandle from a Group naming a set of
// bins, then a FetchHandle, then repeatedly a read permission, releasing in
// reverse order when the stream closes.
package throttle

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/danielepagano/throttlepool/internal/registry"
)

// Throttler is the top-level registry: one instance is typically created
// per connector family that needs throttling. Its lock guards only the
// group-type -> GroupSet map; it is never held across a blocking
// operation -- all waiting happens against bin-local condition variables.
type Throttler struct {
	mu     sync.Mutex
	groups map[string]*GroupSet

	registry registry.ServiceRegistry
	clock    clock
	log      *logrus.Entry
}

// New creates a Throttler. A nil registry defaults to registry.NoOp, so the
// engine runs standalone with no external service-discovery system wired
// in.
func New(svcRegistry registry.ServiceRegistry) *Throttler {
	if svcRegistry == nil {
		svcRegistry = registry.NoOp{}
	}
	return &Throttler{
		groups:   make(map[string]*GroupSet),
		registry: svcRegistry,
		clock:    systemClock,
		log:      logrus.WithField("component", "throttler"),
	}
}

func (t *Throttler) groupSet(groupType string, create bool) *GroupSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	gs := t.groups[groupType]
	if gs == nil && create {
		gs = newGroupSet(groupType, t.registry, t.clock, t.log)
		t.groups[groupType] = gs
	}
	return gs
}

// CreateOrUpdate installs or replaces the throttle spec for (groupType,
// groupName), creating the group if it does not yet exist. It is
// idempotent: calling it twice leaves exactly one group, with the latest
// spec, and destroys no bins.
func (t *Throttler) CreateOrUpdate(groupType, groupName string, spec IThrottleSpec) error {
	if spec == nil {
		return ErrSpecRequired
	}
	return t.groupSet(groupType, true).createOrUpdate(groupName, spec)
}

// Remove destroys a group. Any waiters on its bins are released with a
// shutting-down indication within a bounded time.
func (t *Throttler) Remove(groupType, groupName string) {
	if gs := t.groupSet(groupType, false); gs != nil {
		gs.remove(groupName)
	}
}

// Groups returns a snapshot of the known group names for groupType.
func (t *Throttler) Groups(groupType string) []string {
	gs := t.groupSet(groupType, false)
	if gs == nil {
		return nil
	}
	return gs.names()
}

// ObtainConnectionThrottler is a non-blocking lookup that returns a
// ConnectionHandle bound to binNames, or nil if the group does not exist or
// is being torn down. All subsequent blocking happens against bin-level
// condition variables within the Group, never this call.
func (t *Throttler) ObtainConnectionThrottler(groupType, groupName string, binNames []string) *ConnectionHandle {
	gs := t.groupSet(groupType, false)
	if gs == nil {
		return nil
	}
	return gs.obtainConnectionThrottler(groupName, binNames)
}

// Poll sweeps every group of groupType, refreshing bin parameters from
// each group's live spec.
func (t *Throttler) Poll(groupType string) {
	if gs := t.groupSet(groupType, false); gs != nil {
		gs.poll()
	}
}

// FreeUnusedResources sweeps every group of every type.
func (t *Throttler) FreeUnusedResources() {
	for _, gs := range t.allGroupSets() {
		gs.freeUnusedResources()
	}
}

// Destroy tears down every group of every type, releasing all waiters.
func (t *Throttler) Destroy() {
	t.mu.Lock()
	sets := t.groups
	t.groups = make(map[string]*GroupSet)
	t.mu.Unlock()
	for _, gs := range sets {
		gs.destroy()
	}
}

func (t *Throttler) allGroupSets() []*GroupSet {
	t.mu.Lock()
	defer t.mu.Unlock()
	sets := make([]*GroupSet, 0, len(t.groups))
	for _, gs := range t.groups {
		sets = append(sets, gs)
	}
	return sets
}
