package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/geometa/internal/geometa"
	"github.com/canonica-labs/geometa/internal/metastore"
)

func (c *CLI) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Run system diagnostics",
		Long: `Run system diagnostics.

Checks:
  - configuration
  - engine connectivity
  - install state and schema version
  - shadow tables
  - stored capabilities`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDoctor(cmd.Context())
		},
	}
}

func (c *CLI) runDoctor(ctx context.Context) error {
	checks := []DiagnosticCheck{c.checkConfig()}

	var status *geometa.Status
	svc, err := c.openService(ctx)
	if err == nil {
		defer svc.Close()
		status, err = svc.Status(ctx)
	}
	checks = append(checks, checkEngine(status, err))
	if status != nil {
		checks = append(checks, checkInstall(status), checkShadowTables(status), checkCapabilities(status))
	}

	allPassed := true
	for _, check := range checks {
		if !check.Passed {
			allPassed = false
		}
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"checks":     checks,
			"all_passed": allPassed,
		})
	}

	c.println("geometa System Diagnostics")
	c.println("==========================")
	c.println("")
	for _, check := range checks {
		c.printCheck(check)
	}
	c.println("")
	if allPassed {
		c.printf("%s All checks passed\n", okMark())
	} else {
		c.printf("%s Some checks failed - see above for details\n", failMark())
	}
	return nil
}

// DiagnosticCheck represents a single diagnostic check result.
type DiagnosticCheck struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (c *CLI) printCheck(check DiagnosticCheck) {
	status := failMark()
	if check.Passed {
		status = okMark()
	}
	c.printf("%s %s: %s\n", status, check.Name, check.Message)
	if check.Details != "" && !check.Passed {
		c.printf("  → %s\n", check.Details)
	}
}

func (c *CLI) checkConfig() DiagnosticCheck {
	check := DiagnosticCheck{Name: "Configuration"}

	if c.cfg == nil {
		check.Message = "No configuration loaded"
		check.Details = "Create geometa.yaml with 'geometa init' or use --config"
		return check
	}

	check.Passed = true
	check.Message = fmt.Sprintf("Driver: %s, prefix: %s, SRID: %d",
		c.cfg.Engine.Driver, c.cfg.Schema.TablePrefix, c.cfg.Schema.SRID)
	return check
}

func checkEngine(status *geometa.Status, err error) DiagnosticCheck {
	check := DiagnosticCheck{Name: "Engine Connectivity"}
	if err != nil {
		check.Message = "Cannot reach the engine"
		check.Details = err.Error()
		return check
	}
	check.Passed = true
	check.Message = fmt.Sprintf("Connected to %s", strings.Join(status.Engines, ", "))
	return check
}

func checkInstall(status *geometa.Status) DiagnosticCheck {
	check := DiagnosticCheck{Name: "Install"}
	switch {
	case !status.Installed:
		check.Message = "Not installed"
		check.Details = "Run 'geometa install'"
	case !status.Current:
		check.Message = fmt.Sprintf("Schema version %s is older than %s", status.DBVersion, geometa.DBVersion)
		check.Details = "Run 'geometa upgrade'"
	default:
		check.Passed = true
		check.Message = fmt.Sprintf("Schema version %s", status.DBVersion)
	}
	return check
}

func checkShadowTables(status *geometa.Status) DiagnosticCheck {
	check := DiagnosticCheck{Name: "Shadow Tables"}
	if !status.Installed {
		check.Message = "Not created"
		check.Details = "Run 'geometa install'"
		return check
	}
	var total int64
	for _, t := range metastore.ObjectTypes() {
		total += status.ShadowRows[t]
	}
	check.Passed = true
	check.Message = fmt.Sprintf("%d tables, %d rows", len(metastore.ObjectTypes()), total)
	return check
}

func checkCapabilities(status *geometa.Status) DiagnosticCheck {
	check := DiagnosticCheck{Name: "Capabilities"}
	if status.Capabilities == 0 {
		check.Message = "No spatial functions recorded"
		check.Details = "Run 'geometa capabilities --retest'"
		return check
	}
	check.Passed = true
	check.Message = fmt.Sprintf("%d functions available", status.Capabilities)
	return check
}
