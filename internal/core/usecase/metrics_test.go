package usecase

import (
	"math"
	"testing"
	"time"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

func TestMetricsWindowEvictsOldestFirst(t *testing.T) {
	c := NewMetricsCollector(3)
	for i := 1; i <= 5; i++ {
		c.RecordQuery(domain.ModeBalanced, time.Duration(i)*time.Millisecond, i, true, "")
	}
	if c.Len() != 3 {
		t.Fatalf("expected window of 3, got %d", c.Len())
	}
	query := c.Summary()["balanced"].(map[string]any)["query"].(map[string]any)
	if query["avg_result_count"] != 4.0 {
		t.Fatalf("expected records 3..5 to remain, got avg %v", query["avg_result_count"])
	}
	if got := c.Counters()["balanced:queries"]; got != 5 {
		t.Fatalf("counters must not be windowed, got %d", got)
	}
}

func TestMetricsSummaryPerModeAndOverall(t *testing.T) {
	c := NewMetricsCollector(0)
	c.RecordDocumentProcessing(domain.ModeEfficiency, 100*time.Millisecond, true, "")
	c.RecordDocumentProcessing(domain.ModeEfficiency, 300*time.Millisecond, false, "boom")
	c.RecordQuery(domain.ModePrecision, 20*time.Millisecond, 2, false, "x")
	c.RecordEmbedding(domain.ModeEfficiency, 10, 50*time.Millisecond, true)

	summary := c.Summary()
	eff := summary["efficiency"].(map[string]any)
	docs := eff["document_processing"].(map[string]any)
	if docs["total"] != 2 || docs["successful"] != 1 || docs["error_rate"] != 0.5 {
		t.Fatalf("unexpected document metrics %+v", docs)
	}
	if docs["avg_duration_ms"] != 200.0 || docs["min_duration_ms"] != 100.0 || docs["max_duration_ms"] != 300.0 {
		t.Fatalf("unexpected document durations %+v", docs)
	}
	if eff["embedding"].(map[string]any)["total_vectors"] != 10 {
		t.Fatalf("unexpected embedding metrics %+v", eff["embedding"])
	}
	if _, ok := eff["query"]; ok {
		t.Fatalf("efficiency has no query records")
	}

	overall := summary["overall"].(map[string]any)
	if overall["total_operations"] != 4 || overall["failed"] != 2 || overall["overall_success_rate"] != 0.5 {
		t.Fatalf("unexpected overall %+v", overall)
	}

	comparison := c.ModeComparison()
	if _, ok := comparison["overall"]; ok || len(comparison) != 2 {
		t.Fatalf("comparison must hold only modes, got %v", comparison)
	}
}

func TestMetricsEmptySummary(t *testing.T) {
	if s := NewMetricsCollector(10).Summary(); len(s) != 0 {
		t.Fatalf("expected empty summary, got %v", s)
	}
}

func TestPercentile(t *testing.T) {
	values := make([]float64, 0, 100)
	for i := 100; i >= 1; i-- {
		values = append(values, float64(i))
	}
	if got := percentile(values, 95); got != 96 {
		t.Fatalf("p95 = %v, want 96", got)
	}
	if got := percentile(values, 100); got != 100 {
		t.Fatalf("p100 must clamp to the max, got %v", got)
	}
	if got := percentile([]float64{7}, 99); got != 7 {
		t.Fatalf("single value p99 = %v", got)
	}
	if got := percentile(nil, 50); got != 0 {
		t.Fatalf("empty percentile = %v", got)
	}
}

func TestABTestResults(t *testing.T) {
	ab := NewABTestFramework(discardLogger())
	id := ab.CreateExperiment("rerank", map[string]any{"mode": "balanced"}, map[string]any{"mode": "precision"}, 14*24*time.Hour)

	for _, s := range []struct {
		group string
		m     map[string]float64
	}{
		{"control", map[string]float64{"recall": 0.5, "cost": 0}},
		{"control", map[string]float64{"recall": 0.7, "cost": 0}},
		{"treatment", map[string]float64{"recall": 0.9, "cost": 2, "extra": 1}},
	} {
		if err := ab.RecordResult(id, s.group, s.m); err != nil {
			t.Fatalf("RecordResult() error = %v", err)
		}
	}

	res, err := ab.Results(id)
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	if res.Experiment != "rerank" || res.Duration != "14d" || res.ControlSamples != 2 || res.TreatmentSamples != 1 {
		t.Fatalf("unexpected results %+v", res)
	}
	recall := res.MetricsComparison["recall"]
	if math.Abs(recall.Control-0.6) > 1e-9 || math.Abs(recall.Improvement-50) > 1e-9 {
		t.Fatalf("unexpected recall comparison %+v", recall)
	}
	if res.MetricsComparison["cost"].Improvement != 0 {
		t.Fatalf("zero control mean must give zero improvement")
	}
	if _, ok := res.MetricsComparison["extra"]; ok {
		t.Fatalf("metrics missing from control must be skipped")
	}
}

func TestABTestErrors(t *testing.T) {
	ab := NewABTestFramework(discardLogger())
	if err := ab.RecordResult("missing", "control", nil); !domain.IsKind(err, domain.ErrExperimentNotFound) {
		t.Fatalf("expected ErrExperimentNotFound, got %v", err)
	}
	id := ab.CreateExperiment("x", nil, nil, 0)
	if err := ab.RecordResult(id, "placebo", nil); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	res, err := ab.Results(id)
	if err != nil || res.Duration != "7d" {
		t.Fatalf("expected default 7d duration, got %+v %v", res, err)
	}
	if _, err := ab.Results("missing"); !domain.IsKind(err, domain.ErrExperimentNotFound) {
		t.Fatalf("expected ErrExperimentNotFound, got %v", err)
	}
}
