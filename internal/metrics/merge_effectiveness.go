package metrics

import (
	"fmt"

	"github.com/reillywatson/impact/internal/model"
)

// PRMergeEffectiveness relates merge time to how much back-and-forth a PR
// needed. Back-and-forth counts third-party interactions observed before the
// merge.
type PRMergeEffectiveness struct{}

func (PRMergeEffectiveness) Slug() string { return "pr_merge_effectiveness" }
func (PRMergeEffectiveness) Name() string { return "PR Merge Effectiveness" }

func (m PRMergeEffectiveness) Run(mc *Context) model.MetricResult {
	merged := mergedOf(mc.Ledger.PullRequestsForUser(mc.UserLogin, mc.StartDate, mc.EndDate))
	if len(merged) == 0 {
		return model.MetricResult{
			MetricSlug: m.Slug(),
			Summary:    "No PRs merged in the period.",
			Details: map[string]any{
				"merged_pr_count":          0,
				"average_merge_time_hours": 0.0,
				"average_back_and_forth":   0.0,
				"pr_details":               []map[string]any{},
			},
		}
	}

	var mergeTimes, backAndForths []float64
	prDetails := make([]map[string]any, 0, len(merged))
	for _, pr := range merged {
		var mergeHours any
		if h, ok := MergeTimeHours(pr); ok {
			mergeTimes = append(mergeTimes, h)
			mergeHours = h
		}

		interactions := CollectPRInteractions(mc.Ledger, pr.Number, pr.User.Login, pr.MergedAt)
		backAndForths = append(backAndForths, float64(len(interactions)))

		byKind := make(map[string]int, len(InteractionKinds))
		for _, kind := range InteractionKinds {
			byKind[string(kind)] = 0
		}
		for _, in := range interactions {
			byKind[string(in.Kind)]++
		}

		prDetails = append(prDetails, map[string]any{
			"number":           pr.Number,
			"merge_time_hours": mergeHours,
			"back_and_forth":   len(interactions),
			"interactions":     byKind,
		})
	}

	avgMerge := mean(mergeTimes)
	avgBackAndForth := mean(backAndForths)
	return model.MetricResult{
		MetricSlug: m.Slug(),
		Summary: fmt.Sprintf("%d PRs merged, average merge time: %.1f hours, average back-and-forth: %.1f",
			len(merged), avgMerge, avgBackAndForth),
		Details: map[string]any{
			"merged_pr_count":          len(merged),
			"average_merge_time_hours": avgMerge,
			"average_back_and_forth":   avgBackAndForth,
			"pr_details":               prDetails,
		},
	}
}
