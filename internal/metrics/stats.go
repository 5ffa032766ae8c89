package metrics

import (
	"math"
	"slices"
	"time"

	"github.com/reillywatson/impact/internal/ledger"
	"github.com/reillywatson/impact/internal/model"
)

// Percentile returns the p-th fraction (0..1) of values using linear
// interpolation between the closest ranks. Empty input yields 0, which
// callers must read as "no data".
func Percentile(values []float64, p float64) float64 {
	if len(values) == 0 || math.IsNaN(p) {
		return 0.0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	p = math.Max(0, math.Min(1, p))
	k := p * float64(len(sorted)-1)
	f := math.Floor(k)
	c := math.Min(f+1, float64(len(sorted)-1))
	lo, hi := sorted[int(f)], sorted[int(c)]
	if f == c {
		return lo
	}
	return lo + (hi-lo)*(k-f)
}

// MergeTimeHours is the created-to-merged duration of a merged PR. ok is
// false for PRs that were not merged.
func MergeTimeHours(pr *model.PullRequest) (hours float64, ok bool) {
	if !pr.IsMerged() || pr.CreatedAt.IsZero() {
		return 0, false
	}
	return hoursBetween(pr.CreatedAt, *pr.MergedAt), true
}

// mergedOf keeps the merged PRs of prs, in order.
func mergedOf(prs []*model.PullRequest) []*model.PullRequest {
	out := make([]*model.PullRequest, 0, len(prs))
	for _, pr := range prs {
		if pr.IsMerged() {
			out = append(out, pr)
		}
	}
	return out
}

// mergedWithin keeps the PRs of prs merged inside [start, end]. Naive bounds
// are read in the zone of each merge time.
func mergedWithin(prs []*model.PullRequest, start, end *time.Time) []*model.PullRequest {
	out := make([]*model.PullRequest, 0, len(prs))
	for _, pr := range mergedOf(prs) {
		mergedAt := *pr.MergedAt
		if start != nil && mergedAt.Before(ledger.Localize(*start, mergedAt.Location())) {
			continue
		}
		if end != nil && mergedAt.After(ledger.Localize(*end, mergedAt.Location())) {
			continue
		}
		out = append(out, pr)
	}
	return out
}

func hoursBetween(from, to time.Time) float64 {
	return to.Sub(from).Hours()
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0.0
	}
	return num / den
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return ratio(sum, float64(len(values)))
}
