package world

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/easyharun/easyharun/pkg/config"
)

// ErrUnknownMatch is returned by KeyFor for an unsupported strategy
var ErrUnknownMatch = errors.New("unknown match strategy")

// KeyFunc computes the identity used to pair a current container with an
// expected one
type KeyFunc func(Container) string

// KeyImagePort identifies a container by image and its sorted container ports
func KeyImagePort(c Container) string {
	ports := slices.Clone(c.ContainerPorts)
	slices.Sort(ports)

	var b strings.Builder
	b.WriteString(c.Image)
	for _, p := range ports {
		b.WriteByte('|')
		b.WriteString(strconv.Itoa(int(p)))
	}
	return b.String()
}

// KeyNameImage identifies a container by declared name and image
func KeyNameImage(c Container) string {
	return c.Name + "|" + c.Image
}

// KeyFor returns the KeyFunc for a config match strategy
func KeyFor(match string) (KeyFunc, error) {
	switch match {
	case "", config.MatchImagePort:
		return KeyImagePort, nil
	case config.MatchNameImage:
		return KeyNameImage, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMatch, match)
	}
}

// WorldDiff is the result of matching current against expected
type WorldDiff struct {
	// Extra are current containers with no expected counterpart
	Extra []Container
	// Missing are expected containers with no current counterpart
	Missing []Container
}

// IsEmpty reports whether both worlds matched completely
func (d WorldDiff) IsEmpty() bool {
	return len(d.Extra) == 0 && len(d.Missing) == 0
}

// Diff matches current against expected by image and ports
func Diff(current, expected World) WorldDiff {
	return DiffBy(KeyImagePort, current, expected)
}

// DiffBy pairs containers greedily: each current container takes the first
// unmatched expected container with an equal key. There is no backtracking,
// so only the counts per key are guaranteed to converge.
func DiffBy(key KeyFunc, current, expected World) WorldDiff {
	expectedKeys := make([]string, len(expected.containers))
	for i, e := range expected.containers {
		expectedKeys[i] = key(e)
	}
	matched := make([]bool, len(expected.containers))

	var diff WorldDiff
	for _, c := range current.containers {
		k := key(c)
		found := false
		for i := range expected.containers {
			if !matched[i] && expectedKeys[i] == k {
				matched[i] = true
				found = true
				break
			}
		}
		if !found {
			diff.Extra = append(diff.Extra, c)
		}
	}

	for i, e := range expected.containers {
		if !matched[i] {
			diff.Missing = append(diff.Missing, e)
		}
	}
	return diff
}
