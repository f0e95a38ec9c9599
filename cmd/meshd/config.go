package main

import (
	"github.com/kbukum/meshkit/config"
	"github.com/kbukum/meshkit/discovery"
	"github.com/kbukum/meshkit/httpclient"
	"github.com/kbukum/meshkit/observability"
	"github.com/kbukum/meshkit/resilience"
	"github.com/kbukum/meshkit/server"
	"github.com/kbukum/meshkit/validation"
)

// MeshConfig is the meshd configuration file.
type MeshConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Server        server.Config        `yaml:"server" mapstructure:"server"`
	Discovery     discovery.Config     `yaml:"discovery" mapstructure:"discovery"`
	Breakers      resilience.Config    `yaml:"breakers" mapstructure:"breakers"`
	Client        httpclient.Config    `yaml:"client" mapstructure:"client"`
	Observability observability.Config `yaml:"observability" mapstructure:"observability"`
}

// ApplyDefaults fills every section. The client and telemetry identify
// themselves with the service name unless configured otherwise.
func (c *MeshConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Discovery.ApplyDefaults()
	c.Breakers.ApplyDefaults()

	if c.Client.ServiceName == "" {
		c.Client.ServiceName = c.Name
	}
	c.Client.ApplyDefaults()

	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = c.Name
	}
	if c.Observability.ServiceVersion == "" {
		c.Observability.ServiceVersion = c.Version
	}
	if c.Observability.Environment == "" {
		c.Observability.Environment = c.Environment
	}
	c.Observability.ApplyDefaults()
}

func (c *MeshConfig) Validate() error {
	return validation.New().
		Merge("", c.ServiceConfig.Validate()).
		Merge("server", c.Server.Validate()).
		Merge("discovery", c.Discovery.Validate()).
		Merge("breakers", c.Breakers.Validate()).
		Merge("client", c.Client.Validate()).
		Merge("observability", c.Observability.Validate()).
		Err()
}
