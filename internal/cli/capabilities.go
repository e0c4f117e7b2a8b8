package cli

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canonica-labs/geometa/internal/dispatch"
	"github.com/canonica-labs/geometa/internal/geometa"
)

func (c *CLI) newCapabilitiesCmd() *cobra.Command {
	var retest bool

	cmd := &cobra.Command{
		Use:   "capabilities",
		Short: "List the spatial functions the engine supports",
		Long: `List the catalog functions the engine supports.

Results are cached in the settings table; --retest probes the engine again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *geometa.Service) error {
				return c.runCapabilities(cmd.Context(), svc, retest)
			})
		},
	}

	cmd.Flags().BoolVar(&retest, "retest", false, "discard cached results and probe the engine again")
	return cmd
}

func (c *CLI) runCapabilities(ctx context.Context, svc *geometa.Service, retest bool) error {
	names, err := svc.Capabilities(ctx, retest)
	if err != nil {
		return err
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"engine":    svc.Adapter().Name(),
			"retested":  retest,
			"available": names,
		})
	}

	c.printf("%s %d functions available on %s\n", okMark(), len(names), svc.Adapter().Name())
	for _, n := range names {
		c.printf("  %s\n", n)
	}
	return nil
}

func (c *CLI) newCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <function> <args...>",
		Short: "Call a spatial function",
		Long: `Call a spatial function the engine supports.

GeoJSON and WKT arguments are passed as geometries; numbers are bound as
numbers and anything else as text. Geometry results are printed as GeoJSON.

Example:
  geometa call ST_Buffer '{"type":"Point","coordinates":[-122.6,45.5]}' 0.01`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *geometa.Service) error {
				return c.runCall(cmd.Context(), svc, args[0], args[1:])
			})
		},
	}

	// Negative numbers are arguments, not flags.
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func (c *CLI) runCall(ctx context.Context, svc *geometa.Service, name string, raw []string) error {
	args := make([]any, len(raw))
	for i, r := range raw {
		args[i] = parseArg(r)
	}

	res, err := svc.Call(ctx, name, args...)
	if err != nil {
		return err
	}
	return c.printResult(res)
}

func (c *CLI) printResult(res dispatch.Result) error {
	if res.IsGeometry() {
		data, err := res.Feature.MarshalJSON()
		if err != nil {
			return err
		}
		if c.jsonOutput {
			return c.outputJSON(json.RawMessage(data))
		}
		c.printf("%s\n", data)
		return nil
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{"value": res.Value})
	}
	if res.Value == nil {
		c.println("NULL")
		return nil
	}
	c.printf("%v\n", res.Value)
	return nil
}

// parseArg turns a command-line argument into an int64, a float64 or a
// string.
func parseArg(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
