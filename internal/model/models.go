package model

import "time"

// UserType classifies the account behind an action.
type UserType string

const (
	UserTypeUser         UserType = "User"
	UserTypeOrganization UserType = "Organization"
	UserTypeBot          UserType = "Bot"
)

// PullRequestState is the open/closed state of a pull request.
type PullRequestState string

const (
	PullRequestOpen   PullRequestState = "open"
	PullRequestClosed PullRequestState = "closed"
)

// ReviewState is the verdict attached to a submitted review.
type ReviewState string

const (
	ReviewApproved         ReviewState = "APPROVED"
	ReviewChangesRequested ReviewState = "CHANGES_REQUESTED"
	ReviewCommented        ReviewState = "COMMENTED"
)

// CommentType distinguishes conversation comments from inline review comments.
type CommentType string

const (
	CommentIssue  CommentType = "issue"
	CommentReview CommentType = "review"
)

// User is identified by ID; Login is the join key used by metrics.
type User struct {
	ID        int64    `json:"id"`
	Login     string   `json:"login"`
	AvatarURL *string  `json:"avatar_url,omitempty"`
	Type      UserType `json:"type"`
}

// IsBot reports whether the user is an automation account.
func (u User) IsBot() bool {
	return u.Type == UserTypeBot
}

type Repository struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	Owner    User   `json:"owner"`
}

type Branch struct {
	Label string     `json:"label"`
	Ref   string     `json:"ref"`
	SHA   string     `json:"sha"`
	User  User       `json:"user"`
	Repo  Repository `json:"repo"`
}

// PullRequest is keyed across all other records by Number.
// Merged implies MergedAt is set and State is closed.
type PullRequest struct {
	ID             int64            `json:"id"`
	Number         int              `json:"number"`
	Title          string           `json:"title"`
	Body           *string          `json:"body,omitempty"`
	State          PullRequestState `json:"state"`
	User           User             `json:"user"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      *time.Time       `json:"updated_at,omitempty"`
	ClosedAt       *time.Time       `json:"closed_at,omitempty"`
	MergedAt       *time.Time       `json:"merged_at,omitempty"`
	Merged         bool             `json:"merged"`
	MergeCommitSHA *string          `json:"merge_commit_sha,omitempty"`
	Repository     Repository       `json:"repository"`
	Base           Branch           `json:"base"`
	Head           Branch           `json:"head"`
	Commits        int              `json:"commits"`
	Additions      int              `json:"additions"`
	Deletions      int              `json:"deletions"`
	ChangedFiles   int              `json:"changed_files"`
	MergedBy       *User            `json:"merged_by,omitempty"`
	Comments       int              `json:"comments"`
	ReviewComments int              `json:"review_comments"`
}

// IsMerged reports whether the pull request was merged with a known merge time.
func (pr PullRequest) IsMerged() bool {
	return pr.Merged && pr.MergedAt != nil
}

// Commit may be unlinked, in which case PullRequestNumber is nil.
type Commit struct {
	SHA               string    `json:"sha"`
	Author            User      `json:"author"`
	Committer         User      `json:"committer"`
	Message           string    `json:"message"`
	Date              time.Time `json:"date"`
	PullRequestNumber *int      `json:"pull_request_number,omitempty"`
	Idx               *int      `json:"idx,omitempty"`
}

type Review struct {
	ID                int64       `json:"id"`
	User              User        `json:"user"`
	Body              *string     `json:"body,omitempty"`
	State             ReviewState `json:"state"`
	SubmittedAt       time.Time   `json:"submitted_at"`
	PullRequestNumber int         `json:"pull_request_number"`
}

// Comment covers both issue and review comments. ReviewID, Path and Position
// are only set on review comments.
type Comment struct {
	ID                int64       `json:"id"`
	User              User        `json:"user"`
	Body              string      `json:"body"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         *time.Time  `json:"updated_at,omitempty"`
	Type              CommentType `json:"type"`
	PullRequestNumber *int        `json:"pull_request_number,omitempty"`
	ReviewID          *int64      `json:"review_id,omitempty"`
	InReplyToID       *int64      `json:"in_reply_to_id,omitempty"`
	Path              *string     `json:"path,omitempty"`
	Position          *int        `json:"position,omitempty"`
}

type File struct {
	SHA               string `json:"sha"`
	Filename          string `json:"filename"`
	Additions         int    `json:"additions"`
	Deletions         int    `json:"deletions"`
	Changes           int    `json:"changes"`
	Status            string `json:"status"`
	PullRequestNumber int    `json:"pull_request_number"`
}

// TimelineEvent is one entry of a pull request's issue timeline, e.g.
// "reviewed", "commented" or "merged".
type TimelineEvent struct {
	ID                int64     `json:"id"`
	NodeID            *string   `json:"node_id,omitempty"`
	URL               *string   `json:"url,omitempty"`
	Event             string    `json:"event"`
	Actor             User      `json:"actor"`
	CreatedAt         time.Time `json:"created_at"`
	PullRequestNumber int       `json:"pull_request_number"`
	CommitID          *string   `json:"commit_id,omitempty"`
	CommentID         *int64    `json:"comment_id,omitempty"`
	State             *string   `json:"state,omitempty"`
}

// Bundle is the normalized snapshot of one fetch. References between records
// are not guaranteed to resolve.
type Bundle struct {
	Users        []User          `json:"users"`
	Repositories []Repository    `json:"repositories"`
	PullRequests []PullRequest   `json:"pull_requests"`
	Commits      []Commit        `json:"commits"`
	Reviews      []Review        `json:"reviews"`
	Comments     []Comment       `json:"comments"`
	Files        []File          `json:"files"`
	Timeline     []TimelineEvent `json:"timeline"`
}

// MetricResult is the output of one metric run. Details holds primitives,
// slices and nested maps only, so it can be serialized as-is.
type MetricResult struct {
	MetricSlug string         `json:"metric_slug" yaml:"metric_slug"`
	Summary    string         `json:"summary" yaml:"summary"`
	Details    map[string]any `json:"details" yaml:"details"`
}
