package types

import (
	"strconv"
	"strings"
)

// ContainerID is the identifier the container runtime assigned to a container.
// It is only ever learned from the runtime, never generated locally.
type ContainerID string

// String returns the raw id
func (id ContainerID) String() string {
	return string(id)
}

// Short returns the 12 character prefix used by the docker CLI
func (id ContainerID) Short() string {
	if len(id) > 12 {
		return string(id[:12])
	}
	return string(id)
}

// IsZero reports whether the id is absent
func (id ContainerID) IsZero() bool {
	return id == ""
}

// Ownership labels written on every container easyharun creates
const (
	LabelOwner          = "easyharun"
	LabelOwnerVersion   = "1.0.0"
	LabelName           = "easyharun_name"
	LabelImage          = "easyharun_image"
	LabelReplicaID      = "easyharun_replica_id"
	LabelContainerPorts = "easyharun_container_ports"
	LabelHealthChecks   = "easyharun_health_checks"
	LabelProxies        = "easyharun_proxies"
)

// OwnerFilter is the label filter selecting containers owned by easyharun
func OwnerFilter() string {
	return LabelOwner + "=" + LabelOwnerVersion
}

// ProxyRef is a container's declaration that one of its ports is served by a
// named proxy. ContainerPort 0 means the first declared container port.
type ProxyRef struct {
	Name          string
	ContainerPort uint16
}

// String encodes the ref the way it is stored in the proxies label
func (r ProxyRef) String() string {
	if r.ContainerPort == 0 {
		return r.Name
	}
	return r.Name + ":" + strconv.Itoa(int(r.ContainerPort))
}

// ParseProxyRef parses "name" or "name:port"
func ParseProxyRef(s string) (ProxyRef, error) {
	s = strings.TrimSpace(s)
	name, port, found := strings.Cut(s, ":")
	if name == "" {
		return ProxyRef{}, &LabelError{Label: LabelProxies, Value: s, Reason: "empty proxy name"}
	}
	if !found {
		return ProxyRef{Name: name}, nil
	}
	p, err := ParsePort(port)
	if err != nil {
		return ProxyRef{}, &LabelError{Label: LabelProxies, Value: s, Reason: err.Error()}
	}
	return ProxyRef{Name: name, ContainerPort: p}, nil
}

// ParsePort parses a TCP port in the range 1-65535
func ParsePort(s string) (uint16, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0, err
	}
	if v == 0 {
		return 0, strconv.ErrRange
	}
	return uint16(v), nil
}

// SplitList splits a comma-separated label value, dropping empty items
func SplitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LabelError reports a missing or malformed ownership label
type LabelError struct {
	Label  string
	Value  string
	Reason string
}

func (e *LabelError) Error() string {
	if e.Value == "" {
		return "label " + e.Label + ": " + e.Reason
	}
	return "label " + e.Label + "=" + strconv.Quote(e.Value) + ": " + e.Reason
}
