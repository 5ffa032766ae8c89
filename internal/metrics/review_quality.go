package metrics

import (
	"fmt"

	"github.com/reillywatson/impact/internal/model"
)

// ReviewIterations counts how many change-request rounds each merged PR went
// through.
type ReviewIterations struct{}

func (ReviewIterations) Slug() string { return "review_iterations" }
func (ReviewIterations) Name() string { return "Review Iterations" }

func (m ReviewIterations) Run(mc *Context) model.MetricResult {
	merged := mergedOf(mc.Ledger.PullRequestsForUser(mc.UserLogin, mc.StartDate, mc.EndDate))

	counts := make([]float64, 0, len(merged))
	perPR := make([]map[string]any, 0, len(merged))
	for _, pr := range merged {
		n := 0
		for _, r := range mc.Ledger.ReviewsForPR(pr.Number) {
			if r.State == model.ReviewChangesRequested {
				n++
			}
		}
		counts = append(counts, float64(n))
		perPR = append(perPR, map[string]any{"number": pr.Number, "iterations": n})
	}

	avg := mean(counts)
	summary := fmt.Sprintf("%d merged PRs; avg iterations: %.2f", len(merged), avg)
	if len(merged) == 0 {
		summary = "No PRs merged in the period."
	}
	return model.MetricResult{
		MetricSlug: m.Slug(),
		Summary:    summary,
		Details: map[string]any{
			"merged_prs":         len(merged),
			"average_iterations": avg,
			"per_pr":             perPR,
		},
	}
}

// TimeToFirstReview is the delay between opening a PR and the first review by
// someone other than its author.
type TimeToFirstReview struct{}

func (TimeToFirstReview) Slug() string { return "time_to_first_review" }
func (TimeToFirstReview) Name() string { return "Time to First Review" }

func (m TimeToFirstReview) Run(mc *Context) model.MetricResult {
	prs := mc.Ledger.PullRequestsForUser(mc.UserLogin, mc.StartDate, mc.EndDate)

	var durations []float64
	perPR := make([]map[string]any, 0, len(prs))
	for _, pr := range prs {
		var hours any
		// Reviews are time-ordered, so the first non-author one is the earliest.
		for _, r := range mc.Ledger.ReviewsForPR(pr.Number) {
			if r.User.Login == pr.User.Login {
				continue
			}
			h := hoursBetween(pr.CreatedAt, r.SubmittedAt)
			durations = append(durations, h)
			hours = h
			break
		}
		perPR = append(perPR, map[string]any{"number": pr.Number, "hours": hours})
	}

	median := Percentile(durations, 0.5)
	p75 := Percentile(durations, 0.75)
	summary := fmt.Sprintf("%d PRs reviewed; median: %.2fh, p75: %.2fh", len(durations), median, p75)
	if len(durations) == 0 {
		summary = "No reviewed PRs in the period."
	}
	return model.MetricResult{
		MetricSlug: m.Slug(),
		Summary:    summary,
		Details: map[string]any{
			"reviewed_prs": len(durations),
			"median_hours": median,
			"p75_hours":    p75,
			"per_pr":       perPR,
		},
	}
}

// SlowReviewResponse measures how long the author of a merged PR took to push
// a commit after each changes-requested review.
type SlowReviewResponse struct{}

func (SlowReviewResponse) Slug() string { return "slow_review_response" }
func (SlowReviewResponse) Name() string { return "Slow Review Response" }

func (m SlowReviewResponse) Run(mc *Context) model.MetricResult {
	merged := mergedOf(mc.Ledger.PullRequestsForUser(mc.UserLogin, mc.StartDate, mc.EndDate))

	var responses []float64
	perReview := make([]map[string]any, 0)
	for _, pr := range merged {
		var authorCommits []*model.Commit
		for _, c := range mc.Ledger.CommitsForPR(pr.Number) {
			if c.Author.Login == pr.User.Login {
				authorCommits = append(authorCommits, c)
			}
		}

		for _, r := range mc.Ledger.ReviewsForPR(pr.Number) {
			if r.State != model.ReviewChangesRequested {
				continue
			}
			var hours any
			for _, c := range authorCommits {
				if c.Date.After(r.SubmittedAt) {
					h := hoursBetween(r.SubmittedAt, c.Date)
					responses = append(responses, h)
					hours = h
					break
				}
			}
			perReview = append(perReview, map[string]any{
				"pr":        pr.Number,
				"review_id": r.ID,
				"hours":     hours,
			})
		}
	}

	median := Percentile(responses, 0.5)
	p75 := Percentile(responses, 0.75)
	summary := fmt.Sprintf("%d responses measured; median: %.2fh, p75: %.2fh", len(responses), median, p75)
	if len(responses) == 0 {
		summary = "No responses to change requests in the period."
	}
	return model.MetricResult{
		MetricSlug: m.Slug(),
		Summary:    summary,
		Details: map[string]any{
			"samples":      len(responses),
			"median_hours": median,
			"p75_hours":    p75,
			"per_review":   perReview,
		},
	}
}
