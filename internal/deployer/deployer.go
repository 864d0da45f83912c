package deployer

import (
	"context"
)

// PortMapping describes a host-to-container port binding.
type PortMapping struct {
	Host      int
	Container int
}

// ContainerSpec holds the options for one container of the service stack.
type ContainerSpec struct {
	Name    string
	Image   string
	Env     map[string]string
	Ports   []PortMapping
	Network string
}

// Deployer brings up the local Orbit service stack. Deploy is idempotent with
// respect to a pre-existing shared network.
type Deployer interface {
	Deploy(ctx context.Context) error
}
