package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/geometa/internal/geometa"
)

// Set at build time through cmd/geometa.
var (
	Version   = geometa.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// VersionInfo is the payload of 'geometa version --json'.
type VersionInfo struct {
	Version   string `json:"version"`
	DBVersion string `json:"db_version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	Runtime   string `json:"runtime"`
}

func currentVersion() VersionInfo {
	return VersionInfo{
		Version:   Version,
		DBVersion: geometa.DBVersion,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		Runtime:   fmt.Sprintf("%s %s/%s", runtime.Version(), runtime.GOOS, runtime.GOARCH),
	}
}

func (c *CLI) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  `Display the geometa version and the shadow schema version it installs.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := currentVersion()
			if c.jsonOutput {
				return c.outputJSON(info)
			}
			c.printf("geometa %s\n", info.Version)
			c.printf("  schema:  %s\n", info.DBVersion)
			c.printf("  commit:  %s (%s)\n", info.GitCommit, info.BuildDate)
			c.printf("  runtime: %s\n", info.Runtime)
			return nil
		},
	}
}

// SetVersionInfo overrides the build metadata. Empty values are ignored.
func SetVersionInfo(version, commit, date string) {
	if version != "" {
		Version = version
	}
	if commit != "" {
		GitCommit = commit
	}
	if date != "" {
		BuildDate = date
	}
}

// GetVersionString is the one-line form printed by --version.
func GetVersionString() string {
	return fmt.Sprintf("geometa %s (schema %s, commit %s, built %s)\n",
		Version, geometa.DBVersion, GitCommit, BuildDate)
}
