package health

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/easyharun/easyharun/pkg/world"
)

// ErrPortNotPublished is returned when a template refers to a container port
// that has no host port yet
var ErrPortNotPublished = errors.New("container port not published")

// {{container.port_dynamic_host}} or {{container.port_dynamic_host_<port>}}
var placeholder = regexp.MustCompile(`\{\{\s*container\.port_dynamic_host(?:_(\d+))?\s*\}\}`)

// Render substitutes host port placeholders in a check URL or address.
// The bare form resolves to the container's first declared port.
func Render(tmpl string, c world.Container) (string, error) {
	var renderErr error

	out := placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		if renderErr != nil {
			return match
		}

		var containerPort uint16
		if sub := placeholder.FindStringSubmatch(match); sub[1] != "" {
			p, err := strconv.ParseUint(sub[1], 10, 16)
			if err != nil || p == 0 {
				renderErr = fmt.Errorf("invalid port in %q", match)
				return match
			}
			containerPort = uint16(p)
		} else {
			p, ok := c.FirstPort()
			if !ok {
				renderErr = fmt.Errorf("%w: container declares no ports", ErrPortNotPublished)
				return match
			}
			containerPort = p
		}

		hostPort, ok := c.HostPort(containerPort)
		if !ok {
			renderErr = fmt.Errorf("%w: %d", ErrPortNotPublished, containerPort)
			return match
		}
		return strconv.Itoa(int(hostPort))
	})

	if renderErr != nil {
		return "", renderErr
	}
	return out, nil
}
