package metrics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reillywatson/impact/internal/ledger"
	"github.com/reillywatson/impact/internal/model"
)

// simpleBundle: alice opens PR 1 at t0 and merges at t+10h. bob approves at
// t+2h and comments at t+3h.
func simpleBundle() *model.Bundle {
	alice, bob := makeUser(1, "alice"), makeUser(2, "bob")
	return &model.Bundle{
		Users:        []model.User{alice, bob},
		PullRequests: []model.PullRequest{makePR(1, alice, at(0), ptr(at(10)))},
		Reviews:      []model.Review{makeReview(10, 1, bob, at(2), model.ReviewApproved)},
		Comments:     []model.Comment{makeComment(20, 1, bob, at(3))},
	}
}

func TestSimpleScenario(t *testing.T) {
	mc := makeContext(simpleBundle(), "alice", nil, nil)

	cycle := CycleTime{}.Run(mc)
	assert.Equal(t, "cycle_time", cycle.MetricSlug)
	assert.InDelta(t, 10.0, cycle.Details["median_hours"], 1e-9)
	assert.InDelta(t, 10.0, cycle.Details["p75_hours"], 1e-9)

	eff := PRMergeEffectiveness{}.Run(mc)
	assert.Equal(t, 1, eff.Details["merged_pr_count"])
	assert.InDelta(t, 10.0, eff.Details["average_merge_time_hours"], 1e-9)
	assert.InDelta(t, 2.0, eff.Details["average_back_and_forth"], 1e-9)

	prDetails := eff.Details["pr_details"].([]map[string]any)
	require.Len(t, prDetails, 1)
	assert.Equal(t, 2, prDetails[0]["back_and_forth"])
	assert.Equal(t, map[string]int{
		"review":         1,
		"comment_review": 0,
		"comment_issue":  1,
		"timeline":       0,
	}, prDetails[0]["interactions"])
}

func TestThroughput(t *testing.T) {
	alice := makeUser(1, "alice")
	bundle := &model.Bundle{
		PullRequests: []model.PullRequest{
			makePR(1, alice, at(0), ptr(at(5))),
			makePR(2, alice, at(1), nil),
			// Opened before the window, merged inside it.
			makePR(3, alice, at(-48), ptr(at(2))),
			// Opened inside the window, merged after it.
			makePR(4, alice, at(3), ptr(at(30))),
		},
	}
	start, end := at(0), at(24)

	res := PRThroughput{}.Run(makeContext(bundle, "alice", &start, &end))
	assert.Equal(t, 3, res.Details["opened_count"])
	assert.Equal(t, 1, res.Details["merged_count"])
	assert.InDelta(t, 1.0/3.0, res.Details["merge_ratio"], 1e-9)
	assert.Equal(t, []int{1, 2, 4}, res.Details["opened_pr_numbers"])
	assert.Equal(t, []int{1}, res.Details["merged_pr_numbers"])
}

func TestThroughputRatioNeverExceedsOne(t *testing.T) {
	alice := makeUser(1, "alice")
	bundle := &model.Bundle{
		PullRequests: []model.PullRequest{
			makePR(1, alice, at(1), nil),
			makePR(2, alice, at(-48), ptr(at(2))),
			makePR(3, alice, at(-72), ptr(at(3))),
		},
	}
	start, end := at(0), at(24)

	res := PRThroughput{}.Run(makeContext(bundle, "alice", &start, &end))
	assert.Equal(t, 1, res.Details["opened_count"])
	assert.Equal(t, 0, res.Details["merged_count"])
	assert.LessOrEqual(t, res.Details["merge_ratio"].(float64), 1.0)
}

func TestThroughputNaiveBounds(t *testing.T) {
	alice := makeUser(1, "alice")
	bundle := &model.Bundle{
		PullRequests: []model.PullRequest{makePR(1, alice, at(0), ptr(at(5)))},
	}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, ledger.Naive)
	end := time.Date(2026, 1, 1, 5, 0, 0, 0, ledger.Naive)

	res := PRThroughput{}.Run(makeContext(bundle, "alice", &start, &end))
	assert.Equal(t, 1, res.Details["merged_count"])
}

// PRs opened before the window are out of scope even when merged inside it.
func TestMergedPRMetricsSelectByCreation(t *testing.T) {
	alice, bob := makeUser(1, "alice"), makeUser(2, "bob")
	bundle := &model.Bundle{
		PullRequests: []model.PullRequest{
			makePR(1, alice, at(1), ptr(at(30))),
			makePR(2, alice, at(-48), ptr(at(2))),
		},
		Reviews: []model.Review{
			makeReview(10, 1, bob, at(2), model.ReviewChangesRequested),
			makeReview(11, 2, bob, at(-40), model.ReviewChangesRequested),
		},
	}
	start, end := at(0), at(24)
	mc := makeContext(bundle, "alice", &start, &end)

	eff := PRMergeEffectiveness{}.Run(mc)
	assert.Equal(t, 1, eff.Details["merged_pr_count"])

	iter := ReviewIterations{}.Run(mc)
	assert.Equal(t, 1, iter.Details["merged_prs"])
	assert.Equal(t, []map[string]any{{"number": 1, "iterations": 1}}, iter.Details["per_pr"])

	slow := SlowReviewResponse{}.Run(mc)
	perReview := slow.Details["per_review"].([]map[string]any)
	require.Len(t, perReview, 1)
	assert.Equal(t, int64(10), perReview[0]["review_id"])
}

func TestThroughputNothingOpened(t *testing.T) {
	res := PRThroughput{}.Run(makeContext(&model.Bundle{}, "alice", nil, nil))
	assert.Equal(t, 0, res.Details["opened_count"])
	assert.Equal(t, 0.0, res.Details["merge_ratio"])
	assert.Equal(t, []int{}, res.Details["opened_pr_numbers"])
}

func TestCycleTimePercentiles(t *testing.T) {
	alice := makeUser(1, "alice")
	bundle := &model.Bundle{
		PullRequests: []model.PullRequest{
			makePR(1, alice, at(0), ptr(at(10))),
			makePR(2, alice, at(0), ptr(at(19))),
			makePR(3, alice, at(0), nil),
		},
	}

	res := CycleTime{}.Run(makeContext(bundle, "alice", nil, nil))
	assert.Equal(t, 2, res.Details["merged_count"])
	assert.InDelta(t, 14.5, res.Details["median_hours"], 1e-9)
	assert.InDelta(t, 16.75, res.Details["p75_hours"], 1e-9)
}

func TestEmptyLedgerAllMetrics(t *testing.T) {
	reg := Default()
	mc := makeContext(&model.Bundle{}, "alice", nil, nil)

	for _, slug := range reg.Slugs() {
		t.Run(slug, func(t *testing.T) {
			m, ok := reg.Lookup(slug)
			require.True(t, ok)
			res := m.Run(mc)
			assert.Equal(t, slug, res.MetricSlug)
			assert.NotEmpty(t, res.Summary)
			assert.NotNil(t, res.Details)
			_, err := json.Marshal(res)
			assert.NoError(t, err)
		})
	}
}

func TestMergeEffectivenessEmpty(t *testing.T) {
	res := PRMergeEffectiveness{}.Run(makeContext(&model.Bundle{}, "alice", nil, nil))
	assert.Equal(t, "No PRs merged in the period.", res.Summary)
	assert.Equal(t, 0, res.Details["merged_pr_count"])
	assert.Equal(t, 0.0, res.Details["average_back_and_forth"])
}

// leverageBundle: alice's PR 1 is reviewed by bob twice with change requests,
// then alice pushes a commit before the merge.
func leverageBundle() *model.Bundle {
	alice, bob := makeUser(1, "alice"), makeUser(2, "bob")
	return &model.Bundle{
		PullRequests: []model.PullRequest{makePR(1, alice, at(0), ptr(at(20)))},
		Reviews: []model.Review{
			makeReview(1, 1, bob, at(5), model.ReviewChangesRequested),
			makeReview(2, 1, bob, at(10), model.ReviewChangesRequested),
		},
		Commits: []model.Commit{makeCommit("c1", 1, alice, at(12))},
	}
}

func TestReviewLeverageCausalGating(t *testing.T) {
	res := ReviewLeverage{}.Run(makeContext(leverageBundle(), "bob", nil, nil))

	assert.Equal(t, 2, res.Details["total_reviews"])
	assert.Equal(t, 2, res.Details["change_requests"])
	assert.Equal(t, 1, res.Details["effective_changes"])
	assert.InDelta(t, 50.0, res.Details["effectiveness_percentage"], 1e-9)
	assert.Equal(t, 2, res.Details["merged_after_review"])
	assert.Equal(t, []map[string]any{
		{"pr_number": 1, "review_id": int64(1), "effective": false},
		{"pr_number": 1, "review_id": int64(2), "effective": true},
	}, res.Details["change_request_details"])
}

func TestReviewLeverageRequiresAuthorCommit(t *testing.T) {
	bundle := leverageBundle()
	bundle.Commits[0].Author = makeUser(3, "carol")

	res := ReviewLeverage{}.Run(makeContext(bundle, "bob", nil, nil))
	assert.Equal(t, 0, res.Details["effective_changes"])
}

func TestReviewLeverageUnmergedPR(t *testing.T) {
	bundle := leverageBundle()
	pr := &bundle.PullRequests[0]
	pr.Merged = false
	pr.MergedAt = nil
	pr.State = model.PullRequestOpen
	pr.ClosedAt = nil

	res := ReviewLeverage{}.Run(makeContext(bundle, "bob", nil, nil))
	assert.Equal(t, 2, res.Details["change_requests"])
	assert.Equal(t, 0, res.Details["effective_changes"])
	assert.Equal(t, 0, res.Details["merged_after_review"])
}

func TestReviewLeverageWindowCap(t *testing.T) {
	alice, bob := makeUser(1, "alice"), makeUser(2, "bob")
	bundle := &model.Bundle{
		PullRequests: []model.PullRequest{makePR(1, alice, at(0), ptr(at(100)))},
		Reviews:      []model.Review{makeReview(1, 1, bob, at(1), model.ReviewChangesRequested)},
		Commits:      []model.Commit{makeCommit("late", 1, alice, at(80))},
	}

	res := ReviewLeverage{}.Run(makeContext(bundle, "bob", nil, nil))
	assert.Equal(t, 0, res.Details["effective_changes"], "commit is past the 72h window")

	bundle.Commits = []model.Commit{makeCommit("inside", 1, alice, at(73))}
	res = ReviewLeverage{}.Run(makeContext(bundle, "bob", nil, nil))
	assert.Equal(t, 1, res.Details["effective_changes"], "72h after the review is still inside")
}

func TestReviewLeverageCommitAfterMergeIgnored(t *testing.T) {
	alice, bob := makeUser(1, "alice"), makeUser(2, "bob")
	bundle := &model.Bundle{
		PullRequests: []model.PullRequest{makePR(1, alice, at(0), ptr(at(10)))},
		Reviews:      []model.Review{makeReview(1, 1, bob, at(1), model.ReviewChangesRequested)},
		Commits:      []model.Commit{makeCommit("post", 1, alice, at(11))},
	}

	res := ReviewLeverage{}.Run(makeContext(bundle, "bob", nil, nil))
	assert.Equal(t, 0, res.Details["effective_changes"])
}

func TestReviewLeveragePathGating(t *testing.T) {
	alice, bob := makeUser(1, "alice"), makeUser(2, "bob")
	build := func(files ...string) *model.Bundle {
		b := &model.Bundle{
			PullRequests: []model.PullRequest{makePR(1, alice, at(0), ptr(at(20)))},
			// A COMMENTED review with inline comments still asks for changes.
			Reviews:  []model.Review{makeReview(1, 1, bob, at(2), model.ReviewCommented)},
			Comments: []model.Comment{makeReviewComment(10, 1, 1, bob, at(2), "a.go")},
			Commits:  []model.Commit{makeCommit("c1", 1, alice, at(4))},
		}
		for _, f := range files {
			b.Files = append(b.Files, model.File{SHA: "s", Filename: f, Status: "modified", PullRequestNumber: 1})
		}
		return b
	}

	res := ReviewLeverage{}.Run(makeContext(build("b.go"), "bob", nil, nil))
	assert.Equal(t, 1, res.Details["change_requests"])
	assert.Equal(t, 0, res.Details["effective_changes"])

	res = ReviewLeverage{}.Run(makeContext(build("b.go", "a.go"), "bob", nil, nil))
	assert.Equal(t, 1, res.Details["effective_changes"])
}

func TestReviewLeverageNoChangeRequests(t *testing.T) {
	res := ReviewLeverage{}.Run(makeContext(simpleBundle(), "bob", nil, nil))
	assert.Equal(t, "No change requests made.", res.Summary)
	assert.Equal(t, 1, res.Details["total_reviews"])
	assert.Equal(t, 0.0, res.Details["effectiveness_percentage"])
}

func TestReviewLeverageUpdatedAfterReview(t *testing.T) {
	bundle := leverageBundle()
	bundle.Timeline = []model.TimelineEvent{
		makeEvent(1, 1, "committed", makeUser(1, "alice"), at(7)),
	}

	res := ReviewLeverage{}.Run(makeContext(bundle, "bob", nil, nil))
	assert.Equal(t, 1, res.Details["updated_after_review"])
}

func TestReviewIterations(t *testing.T) {
	alice, bob := makeUser(1, "alice"), makeUser(2, "bob")
	bundle := &model.Bundle{
		PullRequests: []model.PullRequest{
			makePR(1, alice, at(0), ptr(at(20))),
			makePR(2, alice, at(0), ptr(at(20))),
		},
		Reviews: []model.Review{
			makeReview(1, 1, bob, at(1), model.ReviewChangesRequested),
			makeReview(2, 1, bob, at(2), model.ReviewChangesRequested),
			makeReview(3, 1, bob, at(3), model.ReviewApproved),
			makeReview(4, 2, bob, at(3), model.ReviewApproved),
		},
	}

	res := ReviewIterations{}.Run(makeContext(bundle, "alice", nil, nil))
	assert.Equal(t, 2, res.Details["merged_prs"])
	assert.InDelta(t, 1.0, res.Details["average_iterations"], 1e-9)
	assert.Equal(t, []map[string]any{
		{"number": 1, "iterations": 2},
		{"number": 2, "iterations": 0},
	}, res.Details["per_pr"])
}

func TestTimeToFirstReview(t *testing.T) {
	alice, bob := makeUser(1, "alice"), makeUser(2, "bob")
	bundle := &model.Bundle{
		PullRequests: []model.PullRequest{
			makePR(1, alice, at(0), nil),
			makePR(2, alice, at(1), nil),
		},
		Reviews: []model.Review{
			makeReview(1, 1, alice, at(1), model.ReviewCommented),
			makeReview(2, 1, bob, at(4), model.ReviewApproved),
			makeReview(3, 1, bob, at(6), model.ReviewApproved),
		},
	}

	res := TimeToFirstReview{}.Run(makeContext(bundle, "alice", nil, nil))
	assert.Equal(t, 1, res.Details["reviewed_prs"])
	assert.InDelta(t, 4.0, res.Details["median_hours"], 1e-9)
	perPR := res.Details["per_pr"].([]map[string]any)
	require.Len(t, perPR, 2)
	assert.InDelta(t, 4.0, perPR[0]["hours"], 1e-9)
	assert.Nil(t, perPR[1]["hours"])
}

func TestSlowReviewResponse(t *testing.T) {
	alice, bob := makeUser(1, "alice"), makeUser(2, "bob")
	bundle := &model.Bundle{
		PullRequests: []model.PullRequest{makePR(1, alice, at(0), ptr(at(30)))},
		Reviews: []model.Review{
			makeReview(1, 1, bob, at(2), model.ReviewChangesRequested),
			makeReview(2, 1, bob, at(10), model.ReviewChangesRequested),
			makeReview(3, 1, bob, at(20), model.ReviewApproved),
		},
		Commits: []model.Commit{
			makeCommit("c0", 1, alice, at(1)),
			makeCommit("c1", 1, bob, at(3)),
			makeCommit("c2", 1, alice, at(5)),
		},
	}

	res := SlowReviewResponse{}.Run(makeContext(bundle, "alice", nil, nil))
	assert.Equal(t, 1, res.Details["samples"])
	assert.InDelta(t, 3.0, res.Details["median_hours"], 1e-9)
	assert.Equal(t, []map[string]any{
		{"pr": 1, "review_id": int64(1), "hours": 3.0},
		{"pr": 1, "review_id": int64(2), "hours": nil},
	}, res.Details["per_review"])
}

func TestMetricsAreDeterministic(t *testing.T) {
	bundle := leverageBundle()
	bundle.Comments = []model.Comment{makeComment(20, 1, makeUser(2, "bob"), at(6))}

	reg := Default()
	for _, slug := range reg.Slugs() {
		m, _ := reg.Lookup(slug)
		for _, login := range []string{"alice", "bob"} {
			first, err := json.Marshal(m.Run(makeContext(bundle, login, nil, nil)))
			require.NoError(t, err)
			second, err := json.Marshal(m.Run(makeContext(bundle, login, nil, nil)))
			require.NoError(t, err)
			assert.JSONEq(t, string(first), string(second), slug)
		}
	}
}

func TestWindowBoundsAreInclusive(t *testing.T) {
	start, end := at(0), at(10)
	res := CycleTime{}.Run(makeContext(simpleBundle(), "alice", &start, &end))
	assert.Equal(t, 1, res.Details["merged_count"])

	end = at(9)
	res = CycleTime{}.Run(makeContext(simpleBundle(), "alice", &start, &end))
	assert.Equal(t, 0, res.Details["merged_count"])
}

func TestRegistryLookup(t *testing.T) {
	reg := Default()
	assert.Equal(t, []string{
		"cycle_time",
		"pr_merge_effectiveness",
		"pr_throughput",
		"review_iterations",
		"review_leverage",
		"slow_review_response",
		"time_to_first_review",
	}, reg.Slugs())

	m, ok := reg.Lookup("review_leverage")
	require.True(t, ok)
	assert.Equal(t, "Review Leverage", m.Name())

	_, ok = reg.Lookup("lines_of_code")
	assert.False(t, ok)
}
