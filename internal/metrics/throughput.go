package metrics

import (
	"fmt"

	"github.com/reillywatson/impact/internal/model"
)

// PRThroughput compares PRs opened in the window with how many of those were
// also merged in it. Merged is a subset of opened, so the ratio stays in [0, 1].
type PRThroughput struct{}

func (PRThroughput) Slug() string { return "pr_throughput" }
func (PRThroughput) Name() string { return "PR Throughput" }

func (m PRThroughput) Run(mc *Context) model.MetricResult {
	opened := mc.Ledger.PullRequestsForUser(mc.UserLogin, mc.StartDate, mc.EndDate)
	merged := mergedWithin(opened, mc.StartDate, mc.EndDate)

	mergeRatio := ratio(float64(len(merged)), float64(len(opened)))

	return model.MetricResult{
		MetricSlug: m.Slug(),
		Summary: fmt.Sprintf("%d PRs opened, %d merged in window. Merge ratio: %.2f",
			len(opened), len(merged), mergeRatio),
		Details: map[string]any{
			"opened_count":      len(opened),
			"merged_count":      len(merged),
			"merge_ratio":       mergeRatio,
			"opened_pr_numbers": prNumbers(opened),
			"merged_pr_numbers": prNumbers(merged),
		},
	}
}

func prNumbers(prs []*model.PullRequest) []int {
	numbers := make([]int, 0, len(prs))
	for _, pr := range prs {
		numbers = append(numbers, pr.Number)
	}
	return numbers
}
