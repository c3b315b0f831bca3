package registry

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Consul backs ServiceRegistry with a real HashiCorp Consul agent: a
// cluster lock manager that a future fleet-apportionment feature could
// read from. It only registers and deregisters; it does not apportion
// quota.
type Consul struct {
	client *consulapi.Client
}

// NewConsul creates a Consul-backed ServiceRegistry. An empty addr uses the
// consul client's default address resolution (CONSUL_HTTP_ADDR, then
// 127.0.0.1:8500).
func NewConsul(addr string) (*Consul, error) {
	cfg := consulapi.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create consul client")
	}
	return &Consul{client: client}, nil
}

// RegisterAndBeginActivity registers an anonymous service instance of
// serviceType and returns its generated instance ID.
func (c *Consul) RegisterAndBeginActivity(serviceType string) (string, error) {
	id := fmt.Sprintf("%s-%s", serviceType, uuid.NewString())
	reg := &consulapi.AgentServiceRegistration{
		ID:   id,
		Name: serviceType,
		Tags: []string{"throttlepool"},
	}
	if err := c.client.Agent().ServiceRegister(reg); err != nil {
		return "", errors.Wrapf(err, "register service %s", serviceType)
	}
	return id, nil
}

// EndActivity deregisters the service instance serviceID.
func (c *Consul) EndActivity(_ string, serviceID string) error {
	if err := c.client.Agent().ServiceDeregister(serviceID); err != nil {
		return errors.Wrapf(err, "deregister service %s", serviceID)
	}
	return nil
}
