package api

import (
	"encoding/json"
	"sort"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/easyharun/easyharun/pkg/actor"
	"github.com/easyharun/easyharun/pkg/events"
	"github.com/easyharun/easyharun/pkg/kv"
	"github.com/easyharun/easyharun/pkg/metrics"
	"github.com/easyharun/easyharun/pkg/proxy"
)

// Actor is one task as reported by ListActors
type Actor struct {
	ID       uint64 `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Alive    bool   `json:"alive"`
	Failures uint64 `json:"failures"`
}

// ActorList is the ListActors response body
type ActorList struct {
	Actors []Actor `json:"actors"`
}

// TargetHealth is the last outcome of one health target
type TargetHealth struct {
	Target      string `json:"target"`
	ContainerID string `json:"container_id"`
	Healthy     bool   `json:"healthy"`
}

// ProxyBackend is one backend of a proxy
type ProxyBackend struct {
	Addr        string   `json:"addr"`
	ContainerID string   `json:"container_id"`
	Targets     []string `json:"targets,omitempty"`
}

// Proxy is one running proxy
type Proxy struct {
	Listen   string         `json:"listen"`
	Alive    bool           `json:"alive"`
	Backends []ProxyBackend `json:"backends"`
}

// StateView is the GetState response body
type StateView struct {
	Status        string            `json:"status,omitempty"`
	Components    map[string]string `json:"components,omitempty"`
	ConfigVersion uint64            `json:"config_version"`
	KVWrites      uint64            `json:"kv_writes"`
	Marked        []string          `json:"marked_for_deletion"`
	Health        []TargetHealth    `json:"health"`
	Proxies       []Proxy           `json:"proxies"`
}

// EventView is one WatchEvents message
type EventView struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Message   string            `json:"message,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// State gathers what GetState reports before it is encoded
type State struct {
	ConfigVersion uint64
	KV            kv.Snapshot
	KVWrites      uint64
	Proxies       []proxy.Status
	Health        metrics.HealthStatus
}

func (s State) view() StateView {
	v := StateView{
		Status:        s.Health.Status,
		Components:    s.Health.Components,
		ConfigVersion: s.ConfigVersion,
		KVWrites:      s.KVWrites,
		Marked:        []string{},
		Health:        make([]TargetHealth, 0, len(s.KV.Health)),
		Proxies:       make([]Proxy, 0, len(s.Proxies)),
	}

	for id, c := range s.KV.Containers {
		if c.ShouldBeDeleted {
			v.Marked = append(v.Marked, id.String())
		}
	}
	sort.Strings(v.Marked)

	for _, h := range s.KV.Health {
		v.Health = append(v.Health, TargetHealth{
			Target:      h.Target,
			ContainerID: h.ContainerID.String(),
			Healthy:     h.Healthy,
		})
	}

	for _, p := range s.Proxies {
		pv := Proxy{Listen: p.Listen, Alive: p.Alive, Backends: make([]ProxyBackend, 0, len(p.Backends))}
		for _, b := range p.Backends {
			pv.Backends = append(pv.Backends, ProxyBackend{
				Addr:        b.Addr,
				ContainerID: b.ContainerID.String(),
				Targets:     b.Targets,
			})
		}
		v.Proxies = append(v.Proxies, pv)
	}
	return v
}

func (s State) toStruct() (*structpb.Struct, error) {
	return encode(s.view())
}

func actorsToStruct(infos []actor.Info) (*structpb.Struct, error) {
	list := ActorList{Actors: make([]Actor, 0, len(infos))}
	for _, i := range infos {
		list.Actors = append(list.Actors, Actor{
			ID:       i.ID,
			Name:     i.Name,
			Kind:     i.Kind,
			Alive:    i.Alive,
			Failures: i.Failures,
		})
	}
	return encode(list)
}

func eventToStruct(e *events.Event) (*structpb.Struct, error) {
	return encode(EventView{
		ID:        e.ID,
		Type:      string(e.Type),
		Timestamp: e.Timestamp,
		Message:   e.Message,
		Metadata:  e.Metadata,
	})
}

// encode turns a JSON-tagged value into a Struct
func encode(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Decode fills v, a pointer to one of the view types, from a Struct
func Decode(s *structpb.Struct, v any) error {
	data, err := protojson.Marshal(s)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
