package metrics

import (
	"slices"
	"time"

	"github.com/reillywatson/impact/internal/ledger"
	"github.com/reillywatson/impact/internal/model"
)

// Context binds one report run: the shared ledger, the developer being
// assessed and an optional window. It is read-only once built.
type Context struct {
	Ledger    *ledger.Ledger
	UserLogin string
	StartDate *time.Time
	EndDate   *time.Time
}

// Metric is a stateless computation over a Context. Implementations must not
// keep state between runs; Run may be called concurrently.
type Metric interface {
	Slug() string
	Name() string
	Run(mc *Context) model.MetricResult
}

// Factory builds a Metric.
type Factory func() Metric

// Registry maps stable slugs to metric constructors.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a metric under its own slug, replacing any previous entry.
func (r *Registry) Register(f Factory) {
	r.factories[f().Slug()] = f
}

// Lookup returns a fresh instance of the metric registered under slug. The
// boolean is false for unknown slugs; callers decide how to report that.
func (r *Registry) Lookup(slug string) (Metric, bool) {
	f, ok := r.factories[slug]
	if !ok {
		return nil, false
	}
	return f(), true
}

// Slugs returns all registered slugs in sorted order.
func (r *Registry) Slugs() []string {
	slugs := make([]string, 0, len(r.factories))
	for slug := range r.factories {
		slugs = append(slugs, slug)
	}
	slices.Sort(slugs)
	return slugs
}

// Default returns a registry holding every built-in metric.
func Default() *Registry {
	r := NewRegistry()
	r.Register(func() Metric { return PRThroughput{} })
	r.Register(func() Metric { return CycleTime{} })
	r.Register(func() Metric { return PRMergeEffectiveness{} })
	r.Register(func() Metric { return ReviewLeverage{} })
	r.Register(func() Metric { return ReviewIterations{} })
	r.Register(func() Metric { return TimeToFirstReview{} })
	r.Register(func() Metric { return SlowReviewResponse{} })
	return r
}
