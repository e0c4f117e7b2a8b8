package cli

import (
	"context"
	"sort"
	"strings"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cobra"

	"github.com/canonica-labs/geometa/internal/backfill"
	"github.com/canonica-labs/geometa/internal/geometa"
	"github.com/canonica-labs/geometa/internal/metastore"
	"github.com/canonica-labs/geometa/internal/observability"
)

func (c *CLI) newPopulateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "populate",
		Short: "Mirror existing geometry metadata into the shadow tables",
		Long: `Scan every meta table for geometry values that have no shadow row yet and
mirror them, then pair up latitude and longitude fields.

Rows that are already mirrored are skipped, so populate can be rerun.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withService(cmd.Context(), func(svc *geometa.Service) error {
				return c.runPopulate(cmd.Context(), svc)
			})
		},
	}
}

func (c *CLI) runPopulate(ctx context.Context, svc *geometa.Service) error {
	report, err := svc.Populate(ctx)
	if report != nil {
		c.printReport(report, svc.Summary())
		c.printMetrics(svc.Metrics())
	}
	return err
}

func (c *CLI) printReport(report *backfill.Report, summary *observability.SyncSummary) {
	total := report.Total()
	if c.jsonOutput {
		_ = c.outputJSON(map[string]interface{}{
			"report":  report,
			"total":   total,
			"summary": summary,
		})
		return
	}

	for _, t := range metastore.ObjectTypes() {
		tr := report.Types[t]
		if tr == nil {
			continue
		}
		mark := okMark()
		if tr.Failed > 0 {
			mark = warnMark()
		}
		c.printf("%s %-8s scanned %d, mirrored %d, skipped %d, failed %d\n",
			mark, t, tr.Scanned, tr.Mirrored, tr.Skipped, tr.Failed)
	}
	c.printf("  lat/lng pairs: %d\n", report.LatLngPairs)
	c.printf("  took %s\n", report.Duration.Round(time.Millisecond))

	for _, kc := range summary.TopFailedKeys {
		c.printf("%s %s failed %d times\n", failMark(), kc.Key, kc.Count)
	}
}

// printMetrics writes the counters gathered during the run, one line per
// label set.
func (c *CLI) printMetrics(m *observability.Metrics) {
	if m == nil || c.jsonOutput {
		return
	}
	families, err := m.Registry.Gather()
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to gather metrics")
		return
	}

	c.println("\nMetrics:")
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			value, ok := metricValue(mf.GetType(), metric)
			if !ok {
				continue
			}
			c.printf("  %s%s %g\n", mf.GetName(), labelText(metric.GetLabel()), value)
		}
	}
}

func metricValue(t dto.MetricType, m *dto.Metric) (float64, bool) {
	switch t {
	case dto.MetricType_COUNTER:
		return m.GetCounter().GetValue(), true
	case dto.MetricType_GAUGE:
		return m.GetGauge().GetValue(), true
	case dto.MetricType_HISTOGRAM:
		return float64(m.GetHistogram().GetSampleCount()), true
	}
	return 0, false
}

func labelText(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.GetName()+"=\""+p.GetValue()+"\"")
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}
