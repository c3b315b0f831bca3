package throttle

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/danielepagano/throttlepool/internal/registry"
)

// serviceTypePrefix names the anonymous service a Group registers with its
// ServiceRegistry at construction.
const serviceTypePrefix = "_THROTTLEPOOL_"

// Group is a self-consistent throttling environment: one namespace of
// connection, fetch, and throttle bins sharing a single live spec. A Group
// owns three bin tables, each behind its own lock; the lock order is
// strictly table -> bin, and no structural lock is ever held across a wait.
type Group struct {
	groupType string
	groupName string

	specMu sync.RWMutex
	spec   IThrottleSpec

	aliveMu sync.RWMutex
	alive   bool

	connMu sync.Mutex
	conns  map[string]*connectionBin

	fetchMu sync.Mutex
	fetches map[string]*fetchBin

	throttleMu sync.Mutex
	throttles  map[string]*throttleBin

	registry    registry.ServiceRegistry
	serviceType string
	serviceID   string

	clock clock
	log   *logrus.Entry
}

func newGroup(groupType, groupName string, spec IThrottleSpec, reg registry.ServiceRegistry, c clock, log *logrus.Entry) (*Group, error) {
	serviceType := serviceTypePrefix + groupType + "_" + groupName
	serviceID, err := reg.RegisterAndBeginActivity(serviceType)
	if err != nil {
		return nil, err
	}
	g := &Group{
		groupType:   groupType,
		groupName:   groupName,
		spec:        spec,
		alive:       true,
		conns:       make(map[string]*connectionBin),
		fetches:     make(map[string]*fetchBin),
		throttles:   make(map[string]*throttleBin),
		registry:    reg,
		serviceType: serviceType,
		serviceID:   serviceID,
		clock:       c,
		log:         log.WithField("group_name", groupName),
	}
	return g, nil
}

func (g *Group) updateSpec(spec IThrottleSpec) {
	g.specMu.Lock()
	g.spec = spec
	g.specMu.Unlock()
	g.refreshBinParameters()
}

func (g *Group) currentSpec() IThrottleSpec {
	g.specMu.RLock()
	defer g.specMu.RUnlock()
	return g.spec
}

func (g *Group) isAlive() bool {
	g.aliveMu.RLock()
	defer g.aliveMu.RUnlock()
	return g.alive
}

// poll re-reads the live spec and pushes current values into every bin
// that already exists.
func (g *Group) poll() {
	g.refreshBinParameters()
}

func (g *Group) refreshBinParameters() {
	spec := g.currentSpec()

	g.connMu.Lock()
	for name, bin := range g.conns {
		bin.updateMaxActiveConnections(spec.MaxOpenConnections(name))
	}
	g.connMu.Unlock()

	g.fetchMu.Lock()
	for name, bin := range g.fetches {
		bin.updateMinTimeBetweenFetches(spec.MinMillisecondsPerFetch(name))
	}
	g.fetchMu.Unlock()

	g.throttleMu.Lock()
	for name, bin := range g.throttles {
		bin.updateMinimumMillisecondsPerByte(spec.MinMillisecondsPerByte(name))
	}
	g.throttleMu.Unlock()
}

// freeUnusedResources is a no-op: bins are cheap, lazily recreated, and
// hold no resources worth reclaiming outside of destroy.
func (g *Group) freeUnusedResources() {
}

// destroy transitions the Group to Dead: it marks the Group not-alive
// (blocking any new bin creation), shuts down every existing bin (releasing
// any waiters within a bounded time), and deregisters the Group's service
// identity. It is idempotent.
func (g *Group) destroy() {
	g.aliveMu.Lock()
	if !g.alive {
		g.aliveMu.Unlock()
		return
	}
	g.alive = false
	g.aliveMu.Unlock()

	g.connMu.Lock()
	for _, bin := range g.conns {
		bin.shutDown()
	}
	g.connMu.Unlock()

	g.fetchMu.Lock()
	for _, bin := range g.fetches {
		bin.shutDown()
	}
	g.fetchMu.Unlock()

	g.throttleMu.Lock()
	for _, bin := range g.throttles {
		bin.shutDown()
	}
	g.throttleMu.Unlock()

	if err := g.registry.EndActivity(g.serviceType, g.serviceID); err != nil {
		g.log.WithError(err).Warn("failed to end service activity")
	}
}

func (g *Group) fields() logrus.Fields {
	return logrus.Fields{"group_type": g.groupType, "group_name": g.groupName}
}

// --- lazy bin lookup, strict lock order table -> bin ---

func (g *Group) getOrCreateConnectionBin(name string) *connectionBin {
	g.connMu.Lock()
	defer g.connMu.Unlock()
	if !g.isAlive() {
		return nil
	}
	bin := g.conns[name]
	if bin == nil {
		bin = newConnectionBin(g.fields(), name)
		bin.updateMaxActiveConnections(g.currentSpec().MaxOpenConnections(name))
		g.conns[name] = bin
	}
	return bin
}

func (g *Group) getOrCreateFetchBin(name string) *fetchBin {
	g.fetchMu.Lock()
	defer g.fetchMu.Unlock()
	if !g.isAlive() {
		return nil
	}
	bin := g.fetches[name]
	if bin == nil {
		bin = newFetchBin(g.fields(), name, g.clock)
		bin.updateMinTimeBetweenFetches(g.currentSpec().MinMillisecondsPerFetch(name))
		g.fetches[name] = bin
	}
	return bin
}

func (g *Group) getOrCreateThrottleBin(name string) *throttleBin {
	g.throttleMu.Lock()
	defer g.throttleMu.Unlock()
	if !g.isAlive() {
		return nil
	}
	bin := g.throttles[name]
	if bin == nil {
		bin = newThrottleBin(g.fields(), name, g.clock)
		bin.updateMinimumMillisecondsPerByte(g.currentSpec().MinMillisecondsPerByte(name))
		g.throttles[name] = bin
	}
	return bin
}

func (g *Group) lookupConnectionBin(name string) *connectionBin {
	g.connMu.Lock()
	defer g.connMu.Unlock()
	return g.conns[name]
}

func (g *Group) lookupFetchBin(name string) *fetchBin {
	g.fetchMu.Lock()
	defer g.fetchMu.Unlock()
	return g.fetches[name]
}

func (g *Group) lookupThrottleBin(name string) *throttleBin {
	g.throttleMu.Lock()
	defer g.throttleMu.Unlock()
	return g.throttles[name]
}
