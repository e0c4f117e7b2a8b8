// Package cli provides the command-line interface for geometa.
// The CLI installs and maintains the shadow tables, inspects engine
// capabilities and calls spatial functions.
package cli

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/canonica-labs/geometa/internal/bootstrap"
	"github.com/canonica-labs/geometa/internal/config"
	"github.com/canonica-labs/geometa/internal/dispatch"
	"github.com/canonica-labs/geometa/internal/errors"
	"github.com/canonica-labs/geometa/internal/geometa"
	"github.com/canonica-labs/geometa/internal/observability"
)

// Exit codes, one per error category.
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitConfig     = 2
	ExitEngine     = 3
	ExitInternal   = 4
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config
	ext     *bootstrap.Extensions
	logger  zerolog.Logger

	out    io.Writer
	errOut io.Writer

	// Global flags
	configPath string
	dsn        string
	jsonOutput bool
	quiet      bool
	debug      bool
}

// New creates a new CLI instance.
func New() *CLI {
	cli := &CLI{out: os.Stdout, errOut: os.Stderr}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// SetOutput redirects command output and error output.
func (c *CLI) SetOutput(out, errOut io.Writer) {
	c.out = out
	c.errOut = errOut
}

// Execute runs the CLI with os.Args and returns the exit code.
func (c *CLI) Execute() int {
	return c.ExecuteContext(context.Background())
}

// ExecuteContext is Execute with a context that cancels long-running
// commands such as populate.
func (c *CLI) ExecuteContext(ctx context.Context) int {
	if err := c.rootCmd.ExecuteContext(ctx); err != nil {
		c.errorf("%s %v\n", failMark(), err)
		return ExitCode(err)
	}
	return ExitSuccess
}

// Run runs the CLI with args instead of os.Args.
func (c *CLI) Run(args []string) int {
	c.rootCmd.SetArgs(args)
	return c.Execute()
}

// ExitCode maps an error to its exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitSuccess
	case stderrors.Is(err, dispatch.ErrUnavailable),
		stderrors.Is(err, dispatch.ErrNoArguments),
		stderrors.Is(err, dispatch.ErrArity):
		return ExitValidation
	}
	return int(errors.CodeOf(err))
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "geometa",
		Short: "geometa - spatial metadata shadow index",
		Long: `geometa mirrors geometry-valued metadata into spatially indexed shadow
tables and calls the engine's spatial functions.

It provides:
  • GeoJSON, WKT and WKB normalization
  • Shadow table install, upgrade, backfill and truncate
  • Engine capability probing
  • Spatial function calls with GeoJSON in and out`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initConfig()
		},
	}

	cmd.Version = Version
	cmd.SetVersionTemplate(GetVersionString())

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ./geometa.yaml or ~/.geometa/geometa.yaml)")
	cmd.PersistentFlags().StringVar(&c.dsn, "dsn", "", "engine DSN (overrides config)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "verbose debug logs")

	cmd.AddCommand(c.newInitCmd())
	cmd.AddCommand(c.newInstallCmd())
	cmd.AddCommand(c.newUpgradeCmd())
	cmd.AddCommand(c.newUninstallCmd())
	cmd.AddCommand(c.newTruncateCmd())
	cmd.AddCommand(c.newCapabilitiesCmd())
	cmd.AddCommand(c.newPopulateCmd())
	cmd.AddCommand(c.newCallCmd())
	cmd.AddCommand(c.newDoctorCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

func (c *CLI) initConfig() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	// Override with flags
	if c.dsn != "" {
		c.cfg.Engine.DSN = c.dsn
	}
	level := cfg.Logging.Level
	if c.debug {
		level = "debug"
	}
	c.logger = observability.NewLogger(observability.Config{
		Level:  level,
		Format: cfg.Logging.Format,
		Output: c.errOut,
	})

	extPath := cfg.Extensions
	if extPath != "" && !filepath.IsAbs(extPath) && c.configPath != "" {
		extPath = filepath.Join(filepath.Dir(c.configPath), extPath)
	}
	ext, err := bootstrap.LoadExtensions(extPath)
	if err != nil {
		return err
	}
	c.ext = ext
	return nil
}

// openService connects to the engine. Callers close the service.
func (c *CLI) openService(ctx context.Context) (*geometa.Service, error) {
	return geometa.New(ctx, c.cfg, c.ext, c.logger)
}

// withService opens the service, brings the install up to date and runs fn.
func (c *CLI) withService(ctx context.Context, fn func(*geometa.Service) error) error {
	svc, err := c.openService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.Init(ctx); err != nil {
		return err
	}
	return fn(svc)
}

// Helper functions for output

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet && !c.jsonOutput {
		fmt.Fprintf(c.out, format, args...)
	}
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet && !c.jsonOutput {
		fmt.Fprintln(c.out, args...)
	}
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(c.errOut, format, args...)
}

func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func okMark() string {
	return color.New(color.FgGreen).Sprint("✓")
}

func failMark() string {
	return color.New(color.FgRed).Sprint("✗")
}

func warnMark() string {
	return color.New(color.FgYellow).Sprint("!")
}
