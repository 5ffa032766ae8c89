package metrics

import (
	"fmt"
	"time"

	"github.com/reillywatson/impact/internal/model"
)

// EffectivenessWindow caps how long after a change request an author commit
// can still be credited to it.
const EffectivenessWindow = 72 * time.Hour

// ReviewLeverage measures how often the assessed user's change requests led
// the PR author to push a follow-up commit.
//
// A change request counts as effective when the PR was merged and the author
// committed after the review, within EffectivenessWindow and before the PR was
// resolved, with no later review on the PR landing before that commit. When
// the review left inline comments on specific paths, the PR must have
// touched at least one of them.
type ReviewLeverage struct{}

func (ReviewLeverage) Slug() string { return "review_leverage" }
func (ReviewLeverage) Name() string { return "Review Leverage" }

func (m ReviewLeverage) Run(mc *Context) model.MetricResult {
	reviews := mc.Ledger.ReviewsForUser(mc.UserLogin, mc.StartDate, mc.EndDate)

	var changeRequests []*model.Review
	updated, mergedAfterReview := 0, 0
	for _, r := range reviews {
		if IsChangeRequest(mc.Ledger, r) {
			changeRequests = append(changeRequests, r)
		}
		if hasEventAfter(mc.Ledger, r.PullRequestNumber, r.SubmittedAt) {
			updated++
		}
		if mergedAfter(mc.Ledger, r.PullRequestNumber, r.SubmittedAt) {
			mergedAfterReview++
		}
	}

	effective := 0
	crDetails := make([]map[string]any, 0, len(changeRequests))
	for _, r := range changeRequests {
		ok := isEffectiveChangeRequest(mc, r)
		if ok {
			effective++
		}
		crDetails = append(crDetails, map[string]any{
			"pr_number": r.PullRequestNumber,
			"review_id": r.ID,
			"effective": ok,
		})
	}
	percentage := ratio(float64(effective), float64(len(changeRequests))) * 100

	details := map[string]any{
		"total_reviews":            len(reviews),
		"change_requests":          len(changeRequests),
		"effective_changes":        effective,
		"effectiveness_percentage": percentage,
		"updated_after_review":     updated,
		"merged_after_review":      mergedAfterReview,
		"change_request_details":   crDetails,
	}

	if len(changeRequests) == 0 {
		return model.MetricResult{
			MetricSlug: m.Slug(),
			Summary:    "No change requests made.",
			Details:    details,
		}
	}

	return model.MetricResult{
		MetricSlug: m.Slug(),
		Summary: fmt.Sprintf("%d PRs reviewed, %d effective change requests out of %d (%.1f%%). "+
			"Updated after review: %d, merged after review: %d",
			len(reviews), effective, len(changeRequests), percentage, updated, mergedAfterReview),
		Details: details,
	}
}

func isEffectiveChangeRequest(mc *Context, r *model.Review) bool {
	l := mc.Ledger
	pr, ok := l.PullRequest(r.PullRequestNumber)
	if !ok || !pr.Merged {
		return false
	}

	limit := r.SubmittedAt.Add(EffectivenessWindow)
	windowEnd := limit
	switch {
	case pr.MergedAt != nil:
		windowEnd = *pr.MergedAt
	case pr.ClosedAt != nil:
		windowEnd = *pr.ClosedAt
	}
	if windowEnd.After(limit) {
		windowEnd = limit
	}

	paths := make(map[string]bool)
	for _, c := range l.ReviewCommentsForReview(r.ID) {
		if c.Path != nil && *c.Path != "" {
			paths[*c.Path] = true
		}
	}

	var later []*model.Review
	for _, other := range l.ReviewsForPR(pr.Number) {
		if other.ID != r.ID && other.SubmittedAt.After(r.SubmittedAt) {
			later = append(later, other)
		}
	}

	for _, c := range l.CommitsForPR(pr.Number) {
		if !c.Date.After(r.SubmittedAt) || c.Date.After(windowEnd) {
			continue
		}
		if c.Author.Login != pr.User.Login {
			continue
		}
		if supersededBefore(later, c.Date) {
			continue
		}
		if len(paths) > 0 && !touchesAny(mc, pr.Number, paths) {
			continue
		}
		return true
	}
	return false
}

// supersededBefore reports whether a later review landed at or before t, in
// which case a commit at t answers that review instead.
func supersededBefore(later []*model.Review, t time.Time) bool {
	for _, r := range later {
		if !r.SubmittedAt.After(t) {
			return true
		}
	}
	return false
}

func touchesAny(mc *Context, number int, paths map[string]bool) bool {
	for _, f := range mc.Ledger.FilesForPR(number) {
		if paths[f.Filename] {
			return true
		}
	}
	return false
}
