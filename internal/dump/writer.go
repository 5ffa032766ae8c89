package dump

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/go-github/v39/github"
)

// Canonical JSONL file names under CanonicalDir.
const (
	PullRequestsFile   = "pull_requests.jsonl"
	ReviewsFile        = "reviews.jsonl"
	ReviewCommentsFile = "review_comments.jsonl"
	IssueCommentsFile  = "issue_comments.jsonl"
	CommitsFile        = "commits.jsonl"
	FilesFile          = "files.jsonl"
	TimelineFile       = "timeline.jsonl"
)

// PRBundle is the raw provider payload set for one pull request. Timeline
// entries stay raw because their shape varies by event.
type PRBundle struct {
	PullRequest    *github.PullRequest          `json:"pull_request"`
	Reviews        []*github.PullRequestReview  `json:"reviews"`
	ReviewComments []*github.PullRequestComment `json:"review_comments"`
	IssueComments  []*github.IssueComment       `json:"issue_comments"`
	Commits        []*github.RepositoryCommit   `json:"commits"`
	Files          []*github.CommitFile         `json:"files"`
	Timeline       []json.RawMessage            `json:"timeline"`
}

// commitRecord and fileRecord carry the PR context the raw payloads lack.
type commitRecord struct {
	*github.RepositoryCommit
	PullRequestNumber *int `json:"pull_request_number,omitempty"`
	Idx               *int `json:"idx,omitempty"`
}

type fileRecord struct {
	*github.CommitFile
	PullRequestNumber *int `json:"pull_request_number,omitempty"`
}

// Writer appends PR bundles to a dump directory. It is safe for concurrent use.
type Writer struct {
	dir string

	mu sync.Mutex
}

// NewWriter prepares dir and its canonical subdirectory.
func NewWriter(dir string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Join(dir, CanonicalDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create dump directory %s: %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

func (w *Writer) Dir() string {
	return w.dir
}

func (w *Writer) WriteManifest(m *Manifest) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return writeManifest(w.dir, m)
}

// WritePRBundle appends every record of b to its JSONL file. Commits get the
// PR number and their position in the PR, files and timeline entries get the
// PR number.
func (w *Writer) WritePRBundle(b *PRBundle) error {
	if b == nil || b.PullRequest == nil {
		return fmt.Errorf("bundle has no pull request")
	}
	number := b.PullRequest.GetNumber()

	commits := make([]any, 0, len(b.Commits))
	for i, c := range b.Commits {
		commits = append(commits, commitRecord{RepositoryCommit: c, PullRequestNumber: &number, Idx: github.Int(i)})
	}
	files := make([]any, 0, len(b.Files))
	for _, f := range b.Files {
		files = append(files, fileRecord{CommitFile: f, PullRequestNumber: &number})
	}
	timeline := make([]any, 0, len(b.Timeline))
	for _, raw := range b.Timeline {
		enriched, err := withPullRequestNumber(raw, number)
		if err != nil {
			return fmt.Errorf("failed to enrich timeline event of PR #%d: %w", number, err)
		}
		timeline = append(timeline, enriched)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	writes := []struct {
		file    string
		records []any
	}{
		{PullRequestsFile, []any{b.PullRequest}},
		{TimelineFile, timeline},
		{ReviewsFile, toAny(b.Reviews)},
		{ReviewCommentsFile, toAny(b.ReviewComments)},
		{IssueCommentsFile, toAny(b.IssueComments)},
		{CommitsFile, commits},
		{FilesFile, files},
	}
	for _, wr := range writes {
		if err := w.appendJSONL(wr.file, wr.records); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) appendJSONL(name string, records []any) error {
	if len(records) == 0 {
		return nil
	}
	path := filepath.Join(w.dir, CanonicalDir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return nil
}

func withPullRequestNumber(raw json.RawMessage, number int) (json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	n, err := json.Marshal(number)
	if err != nil {
		return nil, err
	}
	fields["pull_request_number"] = n
	return json.Marshal(fields)
}

func toAny[T any](items []T) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}
