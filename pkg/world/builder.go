package world

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/runtime"
	"github.com/easyharun/easyharun/pkg/types"
)

// BuildError reports a runtime container that could not be turned into a
// world container. The container is left out of the World.
type BuildError struct {
	ID  types.ContainerID
	Err error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("container %s: %v", e.ID.Short(), e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// FromConfig builds the expected World: one container per replica
func FromConfig(cfg *config.Config) World {
	var containers []Container
	for _, ct := range cfg.Containers {
		proxies := make([]types.ProxyRef, 0, len(ct.Proxies))
		for _, p := range ct.Proxies {
			proxies = append(proxies, types.ProxyRef{Name: p.Name, ContainerPort: p.ContainerPort})
		}

		for replica := 0; replica < ct.Replicas; replica++ {
			containers = append(containers, Container{
				Name:           ct.Name,
				Image:          ct.Image,
				ReplicaID:      replica,
				ContainerPorts: slices.Clone(ct.ContainerPorts),
				HealthChecks:   slices.Clone(ct.HealthChecks),
				Proxies:        slices.Clone(proxies),
			})
		}
	}
	return New(containers)
}

// FromRuntime builds the current World from a runtime listing. Exited and
// dead containers are skipped, as are containers for which deleted returns
// true. Containers with missing or malformed labels are skipped and returned
// as BuildErrors.
func FromRuntime(containers []runtime.Container, deleted func(types.ContainerID) bool) (World, []error) {
	var (
		out  []Container
		errs []error
	)
	for _, rc := range containers {
		if rc.Gone() {
			continue
		}
		if deleted != nil && deleted(rc.ID) {
			continue
		}

		c, err := fromLabels(rc.ID, rc.Labels)
		if err != nil {
			errs = append(errs, &BuildError{ID: rc.ID, Err: err})
			continue
		}

		c.HostPorts = make(map[uint16]uint16, len(c.ContainerPorts))
		for _, p := range c.ContainerPorts {
			if hp, ok := rc.HostPort(p); ok {
				c.HostPorts[p] = hp
			}
		}
		out = append(out, c)
	}
	return New(out), errs
}

// Labels encodes c as ownership labels for the runtime
func Labels(c Container) map[string]string {
	ports := make([]string, len(c.ContainerPorts))
	for i, p := range c.ContainerPorts {
		ports[i] = strconv.Itoa(int(p))
	}
	proxies := make([]string, len(c.Proxies))
	for i, p := range c.Proxies {
		proxies[i] = p.String()
	}

	return map[string]string{
		types.LabelOwner:          types.LabelOwnerVersion,
		types.LabelName:           c.Name,
		types.LabelImage:          c.Image,
		types.LabelReplicaID:      strconv.Itoa(c.ReplicaID),
		types.LabelContainerPorts: strings.Join(ports, ","),
		types.LabelHealthChecks:   strings.Join(c.HealthChecks, ","),
		types.LabelProxies:        strings.Join(proxies, ","),
	}
}

func fromLabels(id types.ContainerID, labels map[string]string) (Container, error) {
	required := func(label string) (string, error) {
		v, ok := labels[label]
		if !ok || strings.TrimSpace(v) == "" {
			return "", &types.LabelError{Label: label, Reason: "missing"}
		}
		return v, nil
	}

	name, err := required(types.LabelName)
	if err != nil {
		return Container{}, err
	}
	image, err := required(types.LabelImage)
	if err != nil {
		return Container{}, err
	}
	replicaRaw, err := required(types.LabelReplicaID)
	if err != nil {
		return Container{}, err
	}
	replica, err := strconv.Atoi(strings.TrimSpace(replicaRaw))
	if err != nil || replica < 0 {
		return Container{}, &types.LabelError{Label: types.LabelReplicaID, Value: replicaRaw, Reason: "not a replica index"}
	}
	portsRaw, err := required(types.LabelContainerPorts)
	if err != nil {
		return Container{}, err
	}

	var ports []uint16
	for _, item := range types.SplitList(portsRaw) {
		p, err := types.ParsePort(item)
		if err != nil {
			return Container{}, &types.LabelError{Label: types.LabelContainerPorts, Value: portsRaw, Reason: err.Error()}
		}
		ports = append(ports, p)
	}
	if len(ports) == 0 {
		return Container{}, &types.LabelError{Label: types.LabelContainerPorts, Value: portsRaw, Reason: "no ports"}
	}

	var proxies []types.ProxyRef
	for _, item := range types.SplitList(labels[types.LabelProxies]) {
		ref, err := types.ParseProxyRef(item)
		if err != nil {
			return Container{}, err
		}
		proxies = append(proxies, ref)
	}

	return Container{
		ID:             id,
		Name:           name,
		Image:          image,
		ReplicaID:      replica,
		ContainerPorts: ports,
		HealthChecks:   types.SplitList(labels[types.LabelHealthChecks]),
		Proxies:        proxies,
	}, nil
}
