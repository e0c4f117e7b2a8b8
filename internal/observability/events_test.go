package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

// TestMutationLogEntry_Validate verifies required fields.
func TestMutationLogEntry_Validate(t *testing.T) {
	valid := MutationLogEntry{Action: "added", ObjectType: "post", Outcome: OutcomeUpserted}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid entry, got %v", err)
	}

	cases := map[string]MutationLogEntry{
		"missing action":      {ObjectType: "post", Outcome: OutcomeUpserted},
		"missing object type": {Action: "added", Outcome: OutcomeUpserted},
		"unknown outcome":     {Action: "added", ObjectType: "post", Outcome: "maybe"},
		"failed without err":  {Action: "added", ObjectType: "post", Outcome: OutcomeFailed},
		"negative duration":   {Action: "added", ObjectType: "post", Outcome: OutcomeSkipped, Duration: -time.Second},
	}
	for name, entry := range cases {
		if err := entry.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

// TestEventLogger_Summary verifies logged events are aggregated.
func TestEventLogger_Summary(t *testing.T) {
	var buf bytes.Buffer
	l := NewEventLogger(NewLogger(Config{Level: "debug", Output: &buf}))
	ctx := context.Background()

	entries := []MutationLogEntry{
		{Action: "added", ObjectType: "post", ObjectID: 10, MetaIDs: []int64{1}, Key: "geo_", Outcome: OutcomeUpserted},
		{Action: "deleted", ObjectType: "post", ObjectID: 10, MetaIDs: []int64{1, 2}, Key: "geo_latitude", Outcome: OutcomeDeleted},
		{Action: "added", ObjectType: "post", ObjectID: 11, Key: "color", Outcome: OutcomeSkipped, Reason: "not geometry"},
		{Action: "added", ObjectType: "user", ObjectID: 3, Key: "area", Outcome: OutcomeFailed, Error: "boom"},
		{Action: "updated", ObjectType: "user", ObjectID: 3, Key: "area", Outcome: OutcomeFailed, Error: "boom"},
	}
	for _, e := range entries {
		if err := l.LogMutation(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := l.LogMutation(ctx, MutationLogEntry{}); err == nil {
		t.Errorf("expected invalid entry to be rejected")
	}

	s := l.Summary()
	if s.Upserted != 1 || s.Deleted != 1 || s.Skipped != 1 || s.Failed != 2 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if len(s.TopFailedKeys) != 1 || s.TopFailedKeys[0].Key != "area" || s.TopFailedKeys[0].Count != 2 {
		t.Errorf("unexpected top failed keys: %+v", s.TopFailedKeys)
	}

	out := buf.String()
	for _, want := range []string{`"service":"geometa"`, `"outcome":"upserted"`, `"meta_ids":[1,2]`, `"error":"boom"`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected log output to contain %s", want)
		}
	}
}

// TestEventLogger_Probe verifies probe entries are validated.
func TestEventLogger_Probe(t *testing.T) {
	l := NewEventLogger(NewLogger(Config{Level: "error"}))
	ctx := context.Background()

	if err := l.LogProbe(ctx, ProbeLogEntry{Engine: "sqlite", Catalog: 10, Available: 3}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := l.LogProbe(ctx, ProbeLogEntry{Engine: "sqlite", Catalog: 1, Available: 3}); err == nil {
		t.Errorf("expected available > catalog to be rejected")
	}
	if err := l.LogProbe(ctx, ProbeLogEntry{}); err == nil {
		t.Errorf("expected missing engine to be rejected")
	}
}

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("WARN").String(); got != "warn" {
		t.Errorf("expected warn, got %s", got)
	}
	if got := ParseLevel("bogus").String(); got != "info" {
		t.Errorf("expected info default, got %s", got)
	}
}

func counterValue(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	total := 0.0
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, metric := range f.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

// TestMetrics_PrivateRegistry verifies metrics can be created twice.
func TestMetrics_PrivateRegistry(t *testing.T) {
	a := NewMetrics(nil)
	b := NewMetrics(nil)

	a.MutationsTotal.WithLabelValues("post", OutcomeUpserted).Inc()
	b.MutationsTotal.WithLabelValues("post", OutcomeSkipped)

	if got := counterValue(t, a, "geometa_shadow_mutations_total"); got != 1 {
		t.Errorf("expected 1, got %v", got)
	}
	if got := counterValue(t, b, "geometa_shadow_mutations_total"); got != 0 {
		t.Errorf("expected registries to be independent, got %v", got)
	}
}
