package deployer

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog"
)

// Options configures the Docker deployment of the Orbit stack.
type Options struct {
	// NetworkName is the shared network joining the stack with other agent
	// services. It is created if missing; an existing network is not an error.
	NetworkName string
	KAIImage    string
	WorkerImage string
	// APIKey is injected into the worker container environment.
	APIKey string
}

// DockerDeployer implements Deployer using the Docker API.
type DockerDeployer struct {
	opts Options
	log  zerolog.Logger
}

// NewDockerDeployer creates a new DockerDeployer.
func NewDockerDeployer(opts Options, log zerolog.Logger) *DockerDeployer {
	return &DockerDeployer{opts: opts, log: log}
}

// StackSpec returns the fixed service topology: the KAI schema service and
// the orbit worker, both attached to the shared network.
func StackSpec(opts Options) []ContainerSpec {
	return []ContainerSpec{
		{
			Name:    "kai",
			Image:   opts.KAIImage,
			Ports:   []PortMapping{{Host: 8005, Container: 80}},
			Network: opts.NetworkName,
		},
		{
			Name:  "orbit-worker",
			Image: opts.WorkerImage,
			Env: map[string]string{
				"ORBIT_API_KEY": opts.APIKey,
				"KAI_ADDRESS":   "http://kai",
			},
			Network: opts.NetworkName,
		},
	}
}

// Deploy ensures the shared network exists and (re)creates the fixed service
// topology. Containers left over from a previous run are replaced.
func (d *DockerDeployer) Deploy(ctx context.Context) error {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return fmt.Errorf("create docker client: %w", err)
	}
	defer cli.Close()

	if err := d.ensureNetwork(ctx, cli); err != nil {
		return err
	}

	for _, spec := range StackSpec(d.opts) {
		if err := d.runContainer(ctx, cli, spec); err != nil {
			return err
		}
	}
	return nil
}

func (d *DockerDeployer) ensureNetwork(ctx context.Context, cli *client.Client) error {
	_, err := cli.NetworkCreate(ctx, d.opts.NetworkName, network.CreateOptions{})
	if err != nil {
		if errdefs.IsConflict(err) {
			d.log.Debug().Str("network", d.opts.NetworkName).Msg("network already exists")
			return nil
		}
		return fmt.Errorf("create network %s: %w", d.opts.NetworkName, err)
	}
	d.log.Info().Str("network", d.opts.NetworkName).Msg("network created")
	return nil
}

func (d *DockerDeployer) runContainer(ctx context.Context, cli *client.Client, spec ContainerSpec) error {
	reader, err := cli.ImagePull(ctx, spec.Image, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", spec.Image, err)
	}
	// Drain the pull output.
	_, _ = io.Copy(io.Discard, reader)
	reader.Close()

	err = cli.ContainerRemove(ctx, spec.Name, container.RemoveOptions{Force: true})
	if err != nil && !errdefs.IsNotFound(err) {
		return fmt.Errorf("remove container %s: %w", spec.Name, err)
	}

	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}

	exposedPorts := nat.PortSet{}
	portBindings := nat.PortMap{}
	for _, pm := range spec.Ports {
		cp := nat.Port(strconv.Itoa(pm.Container) + "/tcp")
		exposedPorts[cp] = struct{}{}
		portBindings[cp] = []nat.PortBinding{
			{HostPort: strconv.Itoa(pm.Host)},
		}
	}

	config := &container.Config{
		Image:        spec.Image,
		Env:          env,
		ExposedPorts: exposedPorts,
	}
	hostConfig := &container.HostConfig{
		PortBindings: portBindings,
	}

	var networkConfig *network.NetworkingConfig
	if spec.Network != "" {
		networkConfig = &network.NetworkingConfig{
			EndpointsConfig: map[string]*network.EndpointSettings{
				spec.Network: {},
			},
		}
	}

	resp, err := cli.ContainerCreate(ctx, config, hostConfig, networkConfig, nil, spec.Name)
	if err != nil {
		return fmt.Errorf("create container %s: %w", spec.Name, err)
	}

	if err := cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return fmt.Errorf("start container %s: %w", spec.Name, err)
	}

	d.log.Info().Str("container", spec.Name).Str("image", spec.Image).Msg("container started")
	return nil
}
