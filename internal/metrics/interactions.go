package metrics

import (
	"slices"
	"time"

	"github.com/reillywatson/impact/internal/ledger"
	"github.com/reillywatson/impact/internal/model"
)

// InteractionKind names the source of an interaction.
type InteractionKind string

const (
	KindReview        InteractionKind = "review"
	KindCommentReview InteractionKind = "comment_review"
	KindCommentIssue  InteractionKind = "comment_issue"
	KindTimeline      InteractionKind = "timeline"
)

// InteractionKinds lists every kind in reporting order.
var InteractionKinds = []InteractionKind{KindReview, KindCommentReview, KindCommentIssue, KindTimeline}

// Interaction is one piece of third-party engagement on a pull request.
type Interaction struct {
	Actor string
	Kind  InteractionKind
	At    time.Time
}

type interactionKey struct {
	kind  InteractionKind
	actor string
	at    int64
}

// timelineEquivalents maps timeline events to the record kinds they mirror.
var timelineEquivalents = map[string][]InteractionKind{
	"reviewed":  {KindReview},
	"commented": {KindCommentIssue, KindCommentReview},
}

// CollectPRInteractions gathers reviews, comments and reviewed/commented
// timeline events on a PR, skipping the excluded login and bots. With a
// cutoff, only interactions strictly before it count. Timeline events that
// duplicate an already collected review or comment (same actor and instant)
// are dropped. The result is ordered by time.
func CollectPRInteractions(l *ledger.Ledger, number int, exclude string, cutoff *time.Time) []Interaction {
	var out []Interaction
	seen := make(map[interactionKey]bool)

	counts := func(u model.User, at time.Time) bool {
		if u.Login == exclude || u.IsBot() {
			return false
		}
		return cutoff == nil || at.Before(*cutoff)
	}
	add := func(kind InteractionKind, actor string, at time.Time) {
		out = append(out, Interaction{Actor: actor, Kind: kind, At: at})
		seen[interactionKey{kind, actor, at.UnixNano()}] = true
	}

	for _, r := range l.ReviewsForPR(number) {
		if counts(r.User, r.SubmittedAt) {
			add(KindReview, r.User.Login, r.SubmittedAt)
		}
	}

	for _, c := range l.CommentsForPR(number) {
		if !counts(c.User, c.CreatedAt) {
			continue
		}
		kind := KindCommentIssue
		if c.Type == model.CommentReview {
			kind = KindCommentReview
		}
		add(kind, c.User.Login, c.CreatedAt)
	}

	for _, e := range l.TimelineForPR(number) {
		equivalents, ok := timelineEquivalents[e.Event]
		if !ok || !counts(e.Actor, e.CreatedAt) {
			continue
		}
		at := e.CreatedAt.UnixNano()
		duplicate := seen[interactionKey{KindTimeline, e.Actor.Login, at}]
		for _, kind := range equivalents {
			if seen[interactionKey{kind, e.Actor.Login, at}] {
				duplicate = true
			}
		}
		if !duplicate {
			add(KindTimeline, e.Actor.Login, e.CreatedAt)
		}
	}

	slices.SortStableFunc(out, func(a, b Interaction) int {
		return a.At.Compare(b.At)
	})
	return out
}

// IsChangeRequest reports whether a review asks for changes, either through
// its state or by carrying inline comments.
func IsChangeRequest(l *ledger.Ledger, r *model.Review) bool {
	if r.State == model.ReviewChangesRequested {
		return true
	}
	return len(l.ReviewCommentsForReview(r.ID)) > 0
}

// mergedAfter reports whether the PR was merged at or after t, falling back
// to "merged" timeline events when the PR record lacks a merge time.
func mergedAfter(l *ledger.Ledger, number int, t time.Time) bool {
	pr, ok := l.PullRequest(number)
	if !ok || !pr.Merged {
		return false
	}
	if pr.MergedAt != nil && !pr.MergedAt.Before(t) {
		return true
	}
	for _, e := range l.TimelineForPR(number) {
		if e.Event == "merged" && !e.CreatedAt.Before(t) {
			return true
		}
	}
	return false
}

// hasEventAfter reports whether any timeline event on the PR is later than t.
func hasEventAfter(l *ledger.Ledger, number int, t time.Time) bool {
	for _, e := range l.TimelineForPR(number) {
		if e.CreatedAt.After(t) {
			return true
		}
	}
	return false
}
