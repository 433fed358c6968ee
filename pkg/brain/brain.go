package brain

import (
	"errors"

	"github.com/easyharun/easyharun/pkg/types"
	"github.com/easyharun/easyharun/pkg/world"
)

// ErrStopWithoutID is returned when an extra container has no runtime id.
// Runtime-built worlds always carry ids, so this indicates a bug upstream.
var ErrStopWithoutID = errors.New("extra container has no container id")

// Action is the single next step the container reconciler takes.
// It is one of Start, Stop or NoOp.
type Action interface {
	isAction()
	Kind() string
}

// Start creates a container for an expected entry
type Start struct {
	Container world.Container
}

// Stop removes a running container that is not expected
type Stop struct {
	Container world.Container
	ID        types.ContainerID
}

// NoOp means the worlds already match
type NoOp struct{}

func (Start) isAction() {}
func (Stop) isAction()  {}
func (NoOp) isAction()  {}

func (Start) Kind() string { return "start" }
func (Stop) Kind() string  { return "stop" }
func (NoOp) Kind() string  { return "noop" }

// Decide picks at most one action from a diff. Missing containers are started
// before extra ones are stopped, so capacity is added before it is removed.
func Decide(diff world.WorldDiff) (Action, error) {
	if len(diff.Missing) > 0 {
		return Start{Container: diff.Missing[0]}, nil
	}

	if len(diff.Extra) > 0 {
		extra := diff.Extra[0]
		if extra.ID.IsZero() {
			return NoOp{}, ErrStopWithoutID
		}
		return Stop{Container: extra, ID: extra.ID}, nil
	}

	return NoOp{}, nil
}
