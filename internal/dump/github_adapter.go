package dump

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v39/github"
	"github.com/sirupsen/logrus"

	"github.com/reillywatson/impact/internal/model"
)

// GitHubAdapter parses dumps written from the GitHub REST API.
//
// Only records inside the manifest window are kept, and only for PRs the
// manifest user authored or acted on (reviewed, commented, committed to or
// appeared in the timeline of). Child records of dropped PRs are dropped too.
type GitHubAdapter struct {
	logger logrus.FieldLogger
}

func NewGitHubAdapter(logger logrus.FieldLogger) *GitHubAdapter {
	return &GitHubAdapter{logger: logger}
}

func (a *GitHubAdapter) Provider() string {
	return "github"
}

// timelineRecord covers the fields used across timeline event shapes.
// "reviewed" events carry user/submitted_at instead of actor/created_at.
type timelineRecord struct {
	ID                *int64       `json:"id,omitempty"`
	NodeID            *string      `json:"node_id,omitempty"`
	URL               *string      `json:"url,omitempty"`
	Event             string       `json:"event"`
	Actor             *github.User `json:"actor,omitempty"`
	User              *github.User `json:"user,omitempty"`
	CreatedAt         *time.Time   `json:"created_at,omitempty"`
	SubmittedAt       *time.Time   `json:"submitted_at,omitempty"`
	CommitID          *string      `json:"commit_id,omitempty"`
	State             *string      `json:"state,omitempty"`
	PullRequestNumber *int         `json:"pull_request_number,omitempty"`
}

type githubParse struct {
	dir    string
	m      *Manifest
	logger logrus.FieldLogger

	users     map[int64]model.User
	userOrder []int64
	repos     map[int64]model.Repository
	repoOrder []int64
	prs       map[int]*github.PullRequest
	prOrder   []int
	acted     map[int]bool

	bundle model.Bundle
}

func (a *GitHubAdapter) Parse(dir string, m *Manifest) (*model.Bundle, error) {
	p := &githubParse{
		dir:    dir,
		m:      m,
		logger: a.logger.WithField("path", dir),
		users:  make(map[int64]model.User),
		repos:  make(map[int64]model.Repository),
		prs:    make(map[int]*github.PullRequest),
		acted:  make(map[int]bool),
	}

	// Pull requests go first: every other record is matched against them.
	steps := []func() error{
		p.pullRequests,
		p.reviews,
		p.commits,
		p.reviewComments,
		p.issueComments,
		p.timeline,
		p.files,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}
	p.buildPullRequests()
	p.trim()

	for _, id := range p.userOrder {
		p.bundle.Users = append(p.bundle.Users, p.users[id])
	}
	for _, id := range p.repoOrder {
		p.bundle.Repositories = append(p.bundle.Repositories, p.repos[id])
	}
	return &p.bundle, nil
}

func (p *githubParse) path(name string) string {
	return filepath.Join(p.dir, CanonicalDir, name)
}

func (p *githubParse) isUser(u model.User) bool {
	return u.Login == p.m.User
}

// ensureUser registers u on first sight; later sightings return the first
// version. ok is false when there is no usable user.
func (p *githubParse) ensureUser(u *github.User, defaultType model.UserType) (model.User, bool) {
	if u == nil || u.ID == nil {
		return model.User{}, false
	}
	id := u.GetID()
	if existing, ok := p.users[id]; ok {
		return existing, true
	}

	userType := model.UserType(u.GetType())
	if userType == "" {
		userType = defaultType
	}
	user := model.User{ID: id, Login: u.GetLogin(), AvatarURL: u.AvatarURL, Type: userType}
	p.users[id] = user
	p.userOrder = append(p.userOrder, id)
	return user, true
}

func (p *githubParse) known(number int) bool {
	_, ok := p.prs[number]
	return ok
}

func (p *githubParse) pullRequests() error {
	return readJSONL(p.path(PullRequestsFile), func(pr *github.PullRequest) error {
		if pr.CreatedAt == nil || pr.Number == nil || !p.m.InWindow(pr.GetCreatedAt()) {
			return nil
		}
		n := pr.GetNumber()
		if !p.known(n) {
			p.prOrder = append(p.prOrder, n)
		}
		p.prs[n] = pr
		if pr.GetUser().GetLogin() == p.m.User {
			p.acted[n] = true
		}
		return nil
	})
}

func (p *githubParse) reviews() error {
	return readJSONL(p.path(ReviewsFile), func(r *github.PullRequestReview) error {
		if r.SubmittedAt == nil || !p.m.InWindow(r.GetSubmittedAt()) {
			return nil
		}
		n, ok := numberFromURL(r.GetPullRequestURL(), 0)
		if !ok || !p.known(n) {
			return nil
		}
		user, ok := p.ensureUser(r.User, model.UserTypeUser)
		if !ok {
			return nil
		}

		p.bundle.Reviews = append(p.bundle.Reviews, model.Review{
			ID:                r.GetID(),
			User:              user,
			Body:              r.Body,
			State:             normalizeReviewState(r.GetState()),
			SubmittedAt:       r.GetSubmittedAt(),
			PullRequestNumber: n,
		})
		if p.isUser(user) {
			p.acted[n] = true
		}
		return nil
	})
}

func normalizeReviewState(state string) model.ReviewState {
	switch s := model.ReviewState(strings.ToUpper(state)); s {
	case model.ReviewApproved, model.ReviewChangesRequested, model.ReviewCommented:
		return s
	default:
		return model.ReviewCommented
	}
}

func (p *githubParse) commits() error {
	return readJSONL(p.path(CommitsFile), func(c *commitRecord) error {
		meta := c.GetCommit()
		if meta.GetAuthor() == nil || meta.GetAuthor().Date == nil {
			return nil
		}
		date := meta.GetAuthor().GetDate()
		if !p.m.InWindow(date) {
			return nil
		}
		if c.PullRequestNumber == nil || !p.known(*c.PullRequestNumber) {
			return nil
		}
		n := *c.PullRequestNumber

		committerRaw := c.GetCommitter()
		if committerRaw == nil {
			committerRaw = c.GetAuthor()
		}
		author, ok := p.ensureUser(c.GetAuthor(), model.UserTypeUser)
		if !ok {
			return nil
		}
		committer, ok := p.ensureUser(committerRaw, model.UserTypeUser)
		if !ok {
			return nil
		}
		if meta.GetMessage() == "" {
			return nil
		}

		p.bundle.Commits = append(p.bundle.Commits, model.Commit{
			SHA:               c.GetSHA(),
			Author:            author,
			Committer:         committer,
			Message:           meta.GetMessage(),
			Date:              date,
			PullRequestNumber: &n,
			Idx:               c.Idx,
		})
		if p.isUser(author) {
			p.acted[n] = true
		}
		return nil
	})
}

func (p *githubParse) reviewComments() error {
	return readJSONL(p.path(ReviewCommentsFile), func(c *github.PullRequestComment) error {
		if c.CreatedAt == nil || !p.m.InWindow(c.GetCreatedAt()) {
			return nil
		}
		n, ok := numberFromURL(c.GetPullRequestURL(), 0)
		if !ok || !p.known(n) {
			return nil
		}
		user, ok := p.ensureUser(c.User, model.UserTypeUser)
		if !ok {
			return nil
		}

		p.bundle.Comments = append(p.bundle.Comments, model.Comment{
			ID:                c.GetID(),
			User:              user,
			Body:              c.GetBody(),
			CreatedAt:         c.GetCreatedAt(),
			UpdatedAt:         c.UpdatedAt,
			Type:              model.CommentReview,
			PullRequestNumber: &n,
			ReviewID:          c.PullRequestReviewID,
			InReplyToID:       c.InReplyTo,
			Path:              c.Path,
			Position:          c.Position,
		})
		if p.isUser(user) {
			p.acted[n] = true
		}
		return nil
	})
}

func (p *githubParse) issueComments() error {
	return readJSONL(p.path(IssueCommentsFile), func(c *github.IssueComment) error {
		if c.CreatedAt == nil || !p.m.InWindow(c.GetCreatedAt()) {
			return nil
		}
		n, ok := numberFromURL(c.GetIssueURL(), 0)
		if !ok || !p.known(n) {
			return nil
		}
		user, ok := p.ensureUser(c.User, model.UserTypeUser)
		if !ok {
			return nil
		}

		p.bundle.Comments = append(p.bundle.Comments, model.Comment{
			ID:                c.GetID(),
			User:              user,
			Body:              c.GetBody(),
			CreatedAt:         c.GetCreatedAt(),
			UpdatedAt:         c.UpdatedAt,
			Type:              model.CommentIssue,
			PullRequestNumber: &n,
		})
		if p.isUser(user) {
			p.acted[n] = true
		}
		return nil
	})
}

func (p *githubParse) timeline() error {
	return readJSONL(p.path(TimelineFile), func(e *timelineRecord) error {
		var n int
		if e.PullRequestNumber != nil {
			n = *e.PullRequestNumber
		} else if parsed, ok := numberFromURL(derefString(e.URL), 1); ok {
			n = parsed
		} else {
			return nil
		}
		if !p.known(n) {
			return nil
		}

		created := e.CreatedAt
		if created == nil {
			created = e.SubmittedAt
		}
		if created == nil || !p.m.InWindow(*created) {
			return nil
		}

		actorRaw := e.Actor
		if actorRaw == nil && e.Event == "reviewed" {
			actorRaw = e.User
		}
		actor, ok := p.ensureUser(actorRaw, model.UserTypeUser)
		if !ok {
			return nil
		}

		event := model.TimelineEvent{
			NodeID:            e.NodeID,
			URL:               e.URL,
			Event:             e.Event,
			Actor:             actor,
			CreatedAt:         *created,
			PullRequestNumber: n,
			CommitID:          e.CommitID,
			State:             e.State,
		}
		if e.ID != nil {
			event.ID = *e.ID
			if e.Event == "commented" {
				event.CommentID = e.ID
			}
		}
		p.bundle.Timeline = append(p.bundle.Timeline, event)
		if p.isUser(actor) {
			p.acted[n] = true
		}
		return nil
	})
}

func (p *githubParse) files() error {
	return readJSONL(p.path(FilesFile), func(f *fileRecord) error {
		if f.PullRequestNumber == nil || !p.known(*f.PullRequestNumber) {
			return nil
		}
		p.bundle.Files = append(p.bundle.Files, model.File{
			SHA:               f.GetSHA(),
			Filename:          f.GetFilename(),
			Additions:         f.GetAdditions(),
			Deletions:         f.GetDeletions(),
			Changes:           f.GetChanges(),
			Status:            f.GetStatus(),
			PullRequestNumber: *f.PullRequestNumber,
		})
		return nil
	})
}

func (p *githubParse) buildPullRequests() {
	for _, n := range p.prOrder {
		raw := p.prs[n]
		if raw.GetUser().GetLogin() != p.m.User && !p.acted[n] {
			continue
		}
		author, ok := p.ensureUser(raw.GetUser(), model.UserTypeUser)
		if !ok {
			p.logger.WithField("pr", n).Warn("skipping pull request without author")
			continue
		}

		repo := p.ensureRepository(raw.GetBase().GetRepo())
		pr := model.PullRequest{
			ID:             raw.GetID(),
			Number:         n,
			Title:          raw.GetTitle(),
			Body:           raw.Body,
			State:          model.PullRequestState(raw.GetState()),
			User:           author,
			CreatedAt:      raw.GetCreatedAt(),
			UpdatedAt:      raw.UpdatedAt,
			ClosedAt:       raw.ClosedAt,
			MergedAt:       raw.MergedAt,
			Merged:         raw.GetMerged() || raw.MergedAt != nil,
			MergeCommitSHA: raw.MergeCommitSHA,
			Repository:     repo,
			Base:           p.branch(raw.GetBase(), repo),
			Head:           p.branch(raw.GetHead(), repo),
			Commits:        raw.GetCommits(),
			Additions:      raw.GetAdditions(),
			Deletions:      raw.GetDeletions(),
			ChangedFiles:   raw.GetChangedFiles(),
			Comments:       raw.GetComments(),
			ReviewComments: raw.GetReviewComments(),
		}
		if mergedBy, ok := p.ensureUser(raw.MergedBy, model.UserTypeUser); ok {
			pr.MergedBy = &mergedBy
		}
		p.bundle.PullRequests = append(p.bundle.PullRequests, pr)
	}
}

func (p *githubParse) ensureRepository(r *github.Repository) model.Repository {
	if r == nil || r.ID == nil {
		return model.Repository{}
	}
	id := r.GetID()
	if existing, ok := p.repos[id]; ok {
		return existing
	}
	owner, _ := p.ensureUser(r.GetOwner(), model.UserTypeOrganization)
	repo := model.Repository{ID: id, Name: r.GetName(), FullName: r.GetFullName(), Owner: owner}
	p.repos[id] = repo
	p.repoOrder = append(p.repoOrder, id)
	return repo
}

func (p *githubParse) branch(b *github.PullRequestBranch, repo model.Repository) model.Branch {
	user, _ := p.ensureUser(b.GetUser(), model.UserTypeUser)
	return model.Branch{
		Label: b.GetLabel(),
		Ref:   b.GetRef(),
		SHA:   b.GetSHA(),
		User:  user,
		Repo:  repo,
	}
}

// trim drops child records whose PR did not survive the author/acted filter.
func (p *githubParse) trim() {
	keep := make(map[int]bool, len(p.bundle.PullRequests))
	for _, pr := range p.bundle.PullRequests {
		keep[pr.Number] = true
	}

	b := &p.bundle
	b.Commits = filter(b.Commits, func(c model.Commit) bool { return keep[*c.PullRequestNumber] })
	b.Reviews = filter(b.Reviews, func(r model.Review) bool { return keep[r.PullRequestNumber] })
	b.Comments = filter(b.Comments, func(c model.Comment) bool { return keep[*c.PullRequestNumber] })
	b.Files = filter(b.Files, func(f model.File) bool { return keep[f.PullRequestNumber] })
	b.Timeline = filter(b.Timeline, func(e model.TimelineEvent) bool { return keep[e.PullRequestNumber] })
}

func filter[T any](items []T, keep func(T) bool) []T {
	var out []T
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// numberFromURL reads the path segment back positions from the end of an API
// URL, e.g. the PR number of .../pulls/42 with back 0.
func numberFromURL(u string, back int) (int, bool) {
	parts := strings.Split(strings.TrimRight(u, "/"), "/")
	i := len(parts) - 1 - back
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0, false
	}
	return n, true
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
