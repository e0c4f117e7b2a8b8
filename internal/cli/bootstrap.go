package cli

import (
	"context"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/geometa/internal/bootstrap"
	"github.com/canonica-labs/geometa/internal/errors"
	"github.com/canonica-labs/geometa/internal/geometa"
)

func (c *CLI) newInitCmd() *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate example configuration",
		Long: `Generate an example geometa.yaml and extensions file.

This command does not touch the engine; it only creates template files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(outputDir)
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", ".", "output directory for the configuration files")

	return cmd
}

func (c *CLI) runInit(outputDir string) error {
	configPath, extPath, err := bootstrap.WriteExample(outputDir)
	if err != nil {
		return err
	}

	absConfig, _ := filepath.Abs(configPath)
	absExt, _ := filepath.Abs(extPath)

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"status":     "created",
			"config":     absConfig,
			"extensions": absExt,
		})
	}

	c.printf("%s Configuration file created: %s\n", okMark(), absConfig)
	c.printf("%s Extensions file created: %s\n", okMark(), absExt)
	c.println("\nNext steps:")
	c.println("  1. Edit the configuration file to match your engine")
	c.println("  2. Run 'geometa install' to create the shadow tables")
	c.println("  3. Run 'geometa populate' to mirror existing metadata")
	return nil
}

func (c *CLI) newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Create shadow tables and install spatial functions",
		Long: `Create the settings table and one shadow table per object type, install
the stored spatial functions (MySQL) and record the installed versions.

Running install on an existing install is harmless.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLifecycle(cmd.Context(), "install", func(ctx context.Context, svc *geometa.Service) error {
				return svc.Install(ctx)
			})
		},
	}
}

func (c *CLI) newUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Reinstall and retest capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLifecycle(cmd.Context(), "upgrade", func(ctx context.Context, svc *geometa.Service) error {
				return svc.Upgrade(ctx)
			})
		},
	}
}

func (c *CLI) newUninstallCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Drop shadow tables, spatial functions and settings",
		Long: `Drop every shadow table and stored spatial function and delete the stored
settings. The primary meta tables are not touched.

This is destructive and requires --confirm.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.NewConfirmationRequired("uninstall", "every shadow table, stored function and setting is dropped")
			}
			return c.runLifecycle(cmd.Context(), "uninstall", func(ctx context.Context, svc *geometa.Service) error {
				return svc.Uninstall(ctx)
			})
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "acknowledge destructive change")
	return cmd
}

func (c *CLI) newTruncateCmd() *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "truncate",
		Short: "Remove every shadow row",
		Long: `Empty the shadow tables. Run 'geometa populate' to rebuild them.

This is destructive and requires --confirm.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirm {
				return errors.NewConfirmationRequired("truncate", "every shadow row is removed")
			}
			return c.runLifecycle(cmd.Context(), "truncate", func(ctx context.Context, svc *geometa.Service) error {
				return svc.Truncate(ctx)
			})
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "acknowledge destructive change")
	return cmd
}

// runLifecycle opens the service without Init, so uninstall never installs
// first.
func (c *CLI) runLifecycle(ctx context.Context, action string, fn func(context.Context, *geometa.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	svc, err := c.openService(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := fn(ctx, svc); err != nil {
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"action":     action,
			"status":     "ok",
			"engine":     svc.Adapter().Name(),
			"db_version": geometa.DBVersion,
		})
	}
	c.printf("%s %s complete (%s)\n", okMark(), action, svc.Adapter().Name())
	return nil
}
