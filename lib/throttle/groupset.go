package throttle

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/danielepagano/throttlepool/internal/registry"
)

// GroupSet is a namespace of Groups for one throttle group type. Its lock
// guards the groupName -> Group map only; no blocking operation is ever
// performed while holding it.
type GroupSet struct {
	groupType string

	mu     sync.Mutex
	groups map[string]*Group

	registry registry.ServiceRegistry
	clock    clock
	log      *logrus.Entry
}

func newGroupSet(groupType string, reg registry.ServiceRegistry, c clock, log *logrus.Entry) *GroupSet {
	return &GroupSet{
		groupType: groupType,
		groups:    make(map[string]*Group),
		registry:  reg,
		clock:     c,
		log:       log.WithField("group_type", groupType),
	}
}

func (gs *GroupSet) createOrUpdate(groupName string, spec IThrottleSpec) error {
	gs.mu.Lock()
	if g, ok := gs.groups[groupName]; ok {
		gs.mu.Unlock()
		g.updateSpec(spec)
		return nil
	}
	gs.mu.Unlock()

	// newGroup registers with the ServiceRegistry, which for a real
	// backend (e.g. Consul) is a blocking network call. Do this outside
	// gs.mu so a slow or unreachable registry cannot stall every other
	// operation on this group type.
	g, err := newGroup(gs.groupType, groupName, spec, gs.registry, gs.clock, gs.log)
	if err != nil {
		return err
	}

	gs.mu.Lock()
	if existing, ok := gs.groups[groupName]; ok {
		// Someone else created the group while we were registering.
		// Keep their group, update it with our spec, and discard ours.
		gs.mu.Unlock()
		existing.updateSpec(spec)
		g.destroy()
		return nil
	}
	gs.groups[groupName] = g
	gs.mu.Unlock()
	return nil
}

func (gs *GroupSet) obtainConnectionThrottler(groupName string, binNames []string) *ConnectionHandle {
	gs.mu.Lock()
	g := gs.groups[groupName]
	gs.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.newConnectionHandle(binNames)
}

func (gs *GroupSet) remove(groupName string) {
	gs.mu.Lock()
	g := gs.groups[groupName]
	delete(gs.groups, groupName)
	gs.mu.Unlock()
	if g != nil {
		g.destroy()
	}
}

func (gs *GroupSet) names() []string {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	names := make([]string, 0, len(gs.groups))
	for name := range gs.groups {
		names = append(names, name)
	}
	return names
}

func (gs *GroupSet) snapshot() []*Group {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	groups := make([]*Group, 0, len(gs.groups))
	for _, g := range gs.groups {
		groups = append(groups, g)
	}
	return groups
}

func (gs *GroupSet) poll() {
	for _, g := range gs.snapshot() {
		g.poll()
	}
}

func (gs *GroupSet) freeUnusedResources() {
	for _, g := range gs.snapshot() {
		g.freeUnusedResources()
	}
}

func (gs *GroupSet) destroy() {
	gs.mu.Lock()
	groups := gs.groups
	gs.groups = make(map[string]*Group)
	gs.mu.Unlock()
	for _, g := range groups {
		g.destroy()
	}
}
