package report

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/reillywatson/impact/internal/metrics"
	"github.com/reillywatson/impact/internal/model"
)

// Status tells whether a requested metric produced a result.
type Status string

const (
	StatusOK            Status = "ok"
	StatusUnknownMetric Status = "unknown_metric"
)

// Outcome is the result of one requested slug.
type Outcome struct {
	Slug   string              `json:"slug" yaml:"slug"`
	Name   string              `json:"name,omitempty" yaml:"name,omitempty"`
	Status Status              `json:"status" yaml:"status"`
	Result *model.MetricResult `json:"result,omitempty" yaml:"result,omitempty"`
}

// Report is one run of several metrics for a single user and window.
type Report struct {
	User     string     `json:"user" yaml:"user"`
	Since    *time.Time `json:"since,omitempty" yaml:"since,omitempty"`
	Until    *time.Time `json:"until,omitempty" yaml:"until,omitempty"`
	Outcomes []Outcome  `json:"metrics" yaml:"metrics"`
}

type Runner struct {
	registry *metrics.Registry
	logger   logrus.FieldLogger
}

func NewRunner(registry *metrics.Registry, logger logrus.FieldLogger) *Runner {
	return &Runner{registry: registry, logger: logger}
}

// Run evaluates slugs against mc concurrently. Outcomes follow the order of
// slugs; an empty list means every registered metric. Unknown slugs are
// reported as such without stopping the others.
func (r *Runner) Run(ctx context.Context, mc *metrics.Context, slugs []string) (*Report, error) {
	if len(slugs) == 0 {
		slugs = r.registry.Slugs()
	}

	outcomes := make([]Outcome, len(slugs))
	g, gctx := errgroup.WithContext(ctx)
	for i, slug := range slugs {
		m, ok := r.registry.Lookup(slug)
		if !ok {
			r.logger.WithField("metric", slug).Warn("Unknown metric")
			outcomes[i] = Outcome{Slug: slug, Status: StatusUnknownMetric}
			continue
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			result := m.Run(mc)
			r.logger.WithFields(logrus.Fields{
				"metric":   slug,
				"duration": time.Since(start),
			}).Debug("Computed metric")

			outcomes[i] = Outcome{Slug: slug, Name: m.Name(), Status: StatusOK, Result: &result}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Report{
		User:     mc.UserLogin,
		Since:    mc.StartDate,
		Until:    mc.EndDate,
		Outcomes: outcomes,
	}, nil
}
