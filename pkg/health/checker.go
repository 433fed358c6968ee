package health

import (
	"errors"
	"fmt"

	"github.com/easyharun/easyharun/pkg/config"
	"github.com/easyharun/easyharun/pkg/world"
)

// ErrUnknownCheckType is returned for a check type with no checker
var ErrUnknownCheckType = errors.New("unknown check type")

// NewChecker builds the checker for one declared check on one container,
// rendering its URL or address against the container's host ports
func NewChecker(hc config.HealthCheck, c world.Container, rt Execer) (Checker, error) {
	switch CheckType(hc.Check) {
	case CheckTypeHTTP:
		url, err := Render(hc.URL, c)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", hc.Name, err)
		}
		return NewHTTPChecker(url).WithTimeout(hc.Timeout()), nil

	case CheckTypeTCP:
		addr, err := Render(hc.Address, c)
		if err != nil {
			return nil, fmt.Errorf("check %s: %w", hc.Name, err)
		}
		checker := NewTCPChecker(addr)
		checker.Timeout = hc.Timeout()
		return checker, nil

	case CheckTypeExec:
		return NewExecChecker(rt, c.ID, hc.Command), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCheckType, hc.Check)
	}
}
