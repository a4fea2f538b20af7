package usecase

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/wheel-rag/internal/core/domain"
)

const defaultExperimentDuration = 7 * 24 * time.Hour

type experimentSample struct {
	at      time.Time
	metrics map[string]float64
}

type experiment struct {
	name      string
	createdAt time.Time
	endAt     time.Time
	control   map[string]any
	treatment map[string]any
	samples   map[domain.ExperimentGroup][]experimentSample
}

// ABTestFramework keeps two-arm experiments in memory and compares arm means.
type ABTestFramework struct {
	mu          sync.RWMutex
	experiments map[string]*experiment
	now         func() time.Time
	logger      *slog.Logger
}

func NewABTestFramework(logger *slog.Logger) *ABTestFramework {
	if logger == nil {
		logger = slog.Default()
	}
	return &ABTestFramework{
		experiments: make(map[string]*experiment),
		now:         time.Now,
		logger:      logger,
	}
}

func (f *ABTestFramework) CreateExperiment(name string, control, treatment map[string]any, duration time.Duration) string {
	if duration <= 0 {
		duration = defaultExperimentDuration
	}
	id := "exp_" + uuid.NewString()
	now := f.now()

	f.mu.Lock()
	f.experiments[id] = &experiment{
		name:      name,
		createdAt: now,
		endAt:     now.Add(duration),
		control:   control,
		treatment: treatment,
		samples: map[domain.ExperimentGroup][]experimentSample{
			domain.GroupControl:   nil,
			domain.GroupTreatment: nil,
		},
	}
	f.mu.Unlock()

	f.logger.Info("experiment_created", "experiment_id", id, "name", name, "duration", duration.String())
	return id
}

func (f *ABTestFramework) RecordResult(id, group string, metrics map[string]float64) error {
	g := domain.ExperimentGroup(group)
	if g != domain.GroupControl && g != domain.GroupTreatment {
		return domain.WrapError(domain.ErrInvalidInput, "record experiment result", fmt.Errorf("unknown group %q", group))
	}

	copied := make(map[string]float64, len(metrics))
	for k, v := range metrics {
		copied[k] = v
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	exp, ok := f.experiments[id]
	if !ok {
		return domain.WrapError(domain.ErrExperimentNotFound, "record experiment result", fmt.Errorf("id %q", id))
	}
	exp.samples[g] = append(exp.samples[g], experimentSample{at: f.now(), metrics: copied})
	return nil
}

func (f *ABTestFramework) Results(id string) (domain.ExperimentResults, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	exp, ok := f.experiments[id]
	if !ok {
		return domain.ExperimentResults{}, domain.WrapError(domain.ErrExperimentNotFound, "experiment results", fmt.Errorf("id %q", id))
	}

	control := aggregateSamples(exp.samples[domain.GroupControl])
	treatment := aggregateSamples(exp.samples[domain.GroupTreatment])

	comparison := make(map[string]domain.MetricComparison)
	for key, c := range control {
		t, ok := treatment[key]
		if !ok {
			continue
		}
		improvement := 0.0
		if c != 0 {
			improvement = (t - c) / c * 100
		}
		comparison[key] = domain.MetricComparison{Control: c, Treatment: t, Improvement: improvement}
	}

	return domain.ExperimentResults{
		Experiment:        exp.name,
		Duration:          fmt.Sprintf("%dd", int(exp.endAt.Sub(exp.createdAt).Hours()/24)),
		ControlSamples:    len(exp.samples[domain.GroupControl]),
		TreatmentSamples:  len(exp.samples[domain.GroupTreatment]),
		MetricsComparison: comparison,
	}, nil
}

func aggregateSamples(samples []experimentSample) map[string]float64 {
	values := make(map[string][]float64)
	for _, s := range samples {
		for k, v := range s.metrics {
			values[k] = append(values[k], v)
		}
	}
	out := make(map[string]float64, len(values))
	for k, vs := range values {
		out[k] = mean(vs)
	}
	return out
}
