// Package deps verifies that the external engine toolchain a configuration
// names is actually present before the daemon starts handing work to it.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"spectra/internal/config"
)

// Requirement defines an external dependency Spectra relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// File requirements are resolved with os.Stat instead of PATH lookup.
	File bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// ForConfig builds the requirement set implied by the configuration. Remote
// deployments run engines on worker hosts, so nothing is required locally.
func ForConfig(cfg *config.Config) []Requirement {
	if cfg.RemoteMode() {
		return nil
	}

	reqs := []Requirement{
		{
			Name:        "Interpreter",
			Command:     cfg.Engine.Interpreter,
			Description: "Runs the analysis and remediation scripts",
		},
	}
	switch cfg.Engine.Kind {
	case config.EngineSegment:
		reqs = append(reqs, Requirement{
			Name:        "Segment script",
			Command:     cfg.Engine.SegmentScript,
			Description: "Distributed analysis entry point",
			File:        true,
		})
	default:
		reqs = append(reqs, Requirement{
			Name:        "Analysis script",
			Command:     cfg.Engine.ScriptPath,
			Description: "Single-node analysis entry point",
			File:        true,
		})
	}
	reqs = append(reqs, Requirement{
		Name:        "Fix script",
		Command:     cfg.Engine.FixScript,
		Description: "Remediation entry point",
		Optional:    true,
		File:        true,
	})
	return reqs
}

// Check evaluates the provided requirements and reports availability.
func Check(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		switch {
		case cmd == "":
			status.Detail = "not configured"
		case req.File:
			info, err := os.Stat(cmd)
			switch {
			case err != nil:
				status.Detail = fmt.Sprintf("script %q not found", cmd)
			case info.IsDir():
				status.Detail = fmt.Sprintf("%q is a directory", cmd)
			default:
				status.Available = true
			}
		default:
			if _, err := exec.LookPath(cmd); err != nil {
				status.Detail = fmt.Sprintf("binary %q not found", cmd)
			} else {
				status.Available = true
			}
		}
		results = append(results, status)
	}
	return results
}

// Missing filters statuses down to unavailable required dependencies.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
