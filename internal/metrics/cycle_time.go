package metrics

import (
	"fmt"

	"github.com/reillywatson/impact/internal/model"
)

// CycleTime reports median and p75 created-to-merged hours for PRs merged in
// the window.
type CycleTime struct{}

func (CycleTime) Slug() string { return "cycle_time" }
func (CycleTime) Name() string { return "Cycle Time" }

func (m CycleTime) Run(mc *Context) model.MetricResult {
	merged := mc.Ledger.MergedPullRequestsForUser(mc.UserLogin, mc.StartDate, mc.EndDate)

	var hours []float64
	perPR := make([]map[string]any, 0, len(merged))
	for _, pr := range merged {
		h, ok := MergeTimeHours(pr)
		if !ok {
			continue
		}
		hours = append(hours, h)
		perPR = append(perPR, map[string]any{"number": pr.Number, "hours": h})
	}

	if len(hours) == 0 {
		return model.MetricResult{
			MetricSlug: m.Slug(),
			Summary:    "No PRs merged in the period.",
			Details: map[string]any{
				"merged_count": 0,
				"median_hours": 0.0,
				"p75_hours":    0.0,
				"per_pr_hours": perPR,
			},
		}
	}

	median := Percentile(hours, 0.5)
	p75 := Percentile(hours, 0.75)
	return model.MetricResult{
		MetricSlug: m.Slug(),
		Summary:    fmt.Sprintf("%d merged PRs. Median: %.2fh, p75: %.2fh.", len(hours), median, p75),
		Details: map[string]any{
			"merged_count": len(hours),
			"median_hours": median,
			"p75_hours":    p75,
			"per_pr_hours": perPR,
		},
	}
}
