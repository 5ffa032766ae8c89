package ledger

import (
	"slices"
	"time"

	"github.com/reillywatson/impact/internal/model"
)

// Ledger is a read-only, time-ordered index over a Bundle. It is fully built
// by New and never mutated afterwards, so it can be shared between goroutines.
// Slices returned by lookups are shared with the index and must not be modified.
type Ledger struct {
	bundle *model.Bundle

	prByNumber    map[int]*model.PullRequest
	prsByUser     map[string][]*model.PullRequest
	mergedByUser  map[string][]*model.PullRequest
	reviewsByPR   map[int][]*model.Review
	reviewsByUser map[string][]*model.Review
	commentsByPR  map[int][]*model.Comment
	commentsByRev map[int64][]*model.Comment
	commitsByPR   map[int][]*model.Commit
	commitsByUser map[string][]*model.Commit
	filesByPR     map[int][]*model.File
	timelineByPR  map[int][]*model.TimelineEvent
}

// New indexes the bundle. Records that point at a pull request absent from
// the bundle are left out of the by-PR indexes.
func New(bundle *model.Bundle) *Ledger {
	if bundle == nil {
		bundle = &model.Bundle{}
	}
	l := &Ledger{
		bundle:        bundle,
		prByNumber:    make(map[int]*model.PullRequest, len(bundle.PullRequests)),
		prsByUser:     make(map[string][]*model.PullRequest),
		mergedByUser:  make(map[string][]*model.PullRequest),
		reviewsByPR:   make(map[int][]*model.Review),
		reviewsByUser: make(map[string][]*model.Review),
		commentsByPR:  make(map[int][]*model.Comment),
		commentsByRev: make(map[int64][]*model.Comment),
		commitsByPR:   make(map[int][]*model.Commit),
		commitsByUser: make(map[string][]*model.Commit),
		filesByPR:     make(map[int][]*model.File),
		timelineByPR:  make(map[int][]*model.TimelineEvent),
	}
	l.build()
	return l
}

func (l *Ledger) build() {
	b := l.bundle

	for i := range b.PullRequests {
		pr := &b.PullRequests[i]
		l.prByNumber[pr.Number] = pr
		l.prsByUser[pr.User.Login] = append(l.prsByUser[pr.User.Login], pr)
		if pr.IsMerged() {
			l.mergedByUser[pr.User.Login] = append(l.mergedByUser[pr.User.Login], pr)
		}
	}
	sortEach(l.prsByUser, prCreated)
	sortEach(l.mergedByUser, prMerged)

	for i := range b.Reviews {
		r := &b.Reviews[i]
		if l.known(r.PullRequestNumber) {
			l.reviewsByPR[r.PullRequestNumber] = append(l.reviewsByPR[r.PullRequestNumber], r)
		}
		l.reviewsByUser[r.User.Login] = append(l.reviewsByUser[r.User.Login], r)
	}
	sortEach(l.reviewsByPR, reviewSubmitted)
	sortEach(l.reviewsByUser, reviewSubmitted)

	for i := range b.Comments {
		c := &b.Comments[i]
		if c.PullRequestNumber != nil && l.known(*c.PullRequestNumber) {
			l.commentsByPR[*c.PullRequestNumber] = append(l.commentsByPR[*c.PullRequestNumber], c)
		}
		if c.ReviewID != nil {
			l.commentsByRev[*c.ReviewID] = append(l.commentsByRev[*c.ReviewID], c)
		}
	}
	sortEach(l.commentsByPR, commentCreated)
	sortEach(l.commentsByRev, commentCreated)

	for i := range b.Commits {
		c := &b.Commits[i]
		if c.PullRequestNumber != nil && l.known(*c.PullRequestNumber) {
			l.commitsByPR[*c.PullRequestNumber] = append(l.commitsByPR[*c.PullRequestNumber], c)
		}
		l.commitsByUser[c.Author.Login] = append(l.commitsByUser[c.Author.Login], c)
	}
	sortEach(l.commitsByPR, commitDate)
	sortEach(l.commitsByUser, commitDate)

	// Files have no timestamp; insertion order is kept.
	for i := range b.Files {
		f := &b.Files[i]
		if l.known(f.PullRequestNumber) {
			l.filesByPR[f.PullRequestNumber] = append(l.filesByPR[f.PullRequestNumber], f)
		}
	}

	for i := range b.Timeline {
		e := &b.Timeline[i]
		if l.known(e.PullRequestNumber) {
			l.timelineByPR[e.PullRequestNumber] = append(l.timelineByPR[e.PullRequestNumber], e)
		}
	}
	sortEach(l.timelineByPR, eventCreated)
}

func (l *Ledger) known(number int) bool {
	_, ok := l.prByNumber[number]
	return ok
}

// sortEach sorts every list by the given timestamp. The sort is stable so
// ties keep bundle order and repeated builds produce identical indexes.
func sortEach[K comparable, T any](index map[K][]T, at func(T) time.Time) {
	for _, items := range index {
		slices.SortStableFunc(items, func(a, b T) int {
			return at(a).Compare(at(b))
		})
	}
}

func prCreated(pr *model.PullRequest) time.Time { return pr.CreatedAt }
func prMerged(pr *model.PullRequest) time.Time { return *pr.MergedAt }
func reviewSubmitted(r *model.Review) time.Time { return r.SubmittedAt }
func commentCreated(c *model.Comment) time.Time { return c.CreatedAt }
func commitDate(c *model.Commit) time.Time { return c.Date }
func eventCreated(e *model.TimelineEvent) time.Time { return e.CreatedAt }

// Bundle returns the bundle the ledger was built from.
func (l *Ledger) Bundle() *model.Bundle {
	return l.bundle
}

// PullRequest returns the pull request with the given number.
func (l *Ledger) PullRequest(number int) (*model.PullRequest, bool) {
	pr, ok := l.prByNumber[number]
	return pr, ok
}

// PullRequestsForUser returns PRs authored by login, ordered by creation and
// filtered to those created within [start, end]. Nil bounds are open.
func (l *Ledger) PullRequestsForUser(login string, start, end *time.Time) []*model.PullRequest {
	return within(l.prsByUser[login], prCreated, start, end)
}

// MergedPullRequestsForUser returns merged PRs authored by login, ordered by
// merge time and filtered by merged_at rather than created_at.
func (l *Ledger) MergedPullRequestsForUser(login string, start, end *time.Time) []*model.PullRequest {
	return within(l.mergedByUser[login], prMerged, start, end)
}

// ReviewsForUser returns reviews submitted by login within [start, end].
func (l *Ledger) ReviewsForUser(login string, start, end *time.Time) []*model.Review {
	return within(l.reviewsByUser[login], reviewSubmitted, start, end)
}

// CommitsForUser returns commits authored by login dated within [start, end].
func (l *Ledger) CommitsForUser(login string, start, end *time.Time) []*model.Commit {
	return within(l.commitsByUser[login], commitDate, start, end)
}

func (l *Ledger) ReviewsForPR(number int) []*model.Review {
	return l.reviewsByPR[number]
}

func (l *Ledger) CommentsForPR(number int) []*model.Comment {
	return l.commentsByPR[number]
}

func (l *Ledger) CommitsForPR(number int) []*model.Commit {
	return l.commitsByPR[number]
}

func (l *Ledger) FilesForPR(number int) []*model.File {
	return l.filesByPR[number]
}

func (l *Ledger) TimelineForPR(number int) []*model.TimelineEvent {
	return l.timelineByPR[number]
}

// ReviewCommentsForReview returns the inline comments attached to a review.
func (l *Ledger) ReviewCommentsForReview(id int64) []*model.Comment {
	return l.commentsByRev[id]
}
