// Package discovery registers the management endpoint in HashiCorp Consul so
// dashboards and monitoring agents can find it.
package discovery

import (
	"fmt"

	"github.com/hashicorp/consul/api"
)

// ConsulConfig contains configuration options for service registration.
type ConsulConfig struct {
	// Address of the Consul server (default: "127.0.0.1:8500")
	Address string

	// Token for Consul ACL authentication (optional)
	Token string

	// Datacenter to use (optional)
	Datacenter string

	// ServiceName under which the endpoint is registered (default: "assetd")
	ServiceName string

	// ServiceID for this instance (default: ServiceName)
	ServiceID string

	// ServiceAddress advertised to consumers
	ServiceAddress string

	// ServicePort advertised to consumers
	ServicePort int

	// CheckPath is the HTTP path polled by the Consul health check
	// (default: the metrics route)
	CheckPath string

	// CheckInterval for the health check (default: "15s")
	CheckInterval string
}

// ConsulRegistrar registers and deregisters the service with a Consul agent.
type ConsulRegistrar struct {
	client *api.Client
	config *ConsulConfig
}

// NewConsulRegistrar creates a registrar from the given configuration.
func NewConsulRegistrar(config *ConsulConfig) (*ConsulRegistrar, error) {
	if config == nil {
		config = &ConsulConfig{}
	}

	// Set defaults
	if config.Address == "" {
		config.Address = "127.0.0.1:8500"
	}
	if config.ServiceName == "" {
		config.ServiceName = "assetd"
	}
	if config.ServiceID == "" {
		config.ServiceID = config.ServiceName
	}
	if config.CheckPath == "" {
		config.CheckPath = "/api-tools/v1/metrics"
	}
	if config.CheckInterval == "" {
		config.CheckInterval = "15s"
	}

	clientConfig := api.DefaultConfig()
	clientConfig.Address = config.Address
	if config.Token != "" {
		clientConfig.Token = config.Token
	}
	if config.Datacenter != "" {
		clientConfig.Datacenter = config.Datacenter
	}

	client, err := api.NewClient(clientConfig)
	if err != nil {
		return nil, err
	}

	return &ConsulRegistrar{
		client: client,
		config: config,
	}, nil
}

// Register announces the service with an HTTP health check on the check path.
func (cr *ConsulRegistrar) Register() error {
	registration := &api.AgentServiceRegistration{
		ID:      cr.config.ServiceID,
		Name:    cr.config.ServiceName,
		Address: cr.config.ServiceAddress,
		Port:    cr.config.ServicePort,
		Tags:    []string{"assetd", "management"},
		Check: &api.AgentServiceCheck{
			HTTP: fmt.Sprintf("http://%s:%d%s",
				cr.config.ServiceAddress, cr.config.ServicePort, cr.config.CheckPath),
			Interval: cr.config.CheckInterval,
			Timeout:  "5s",
		},
	}

	return cr.client.Agent().ServiceRegister(registration)
}

// Deregister removes the service registration on shutdown.
func (cr *ConsulRegistrar) Deregister() error {
	return cr.client.Agent().ServiceDeregister(cr.config.ServiceID)
}
