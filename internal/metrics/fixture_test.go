package metrics

import (
	"time"

	"github.com/reillywatson/impact/internal/ledger"
	"github.com/reillywatson/impact/internal/model"
)

var base = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// at returns base shifted by h hours.
func at(h float64) time.Time {
	return base.Add(time.Duration(h * float64(time.Hour)))
}

func ptr[T any](v T) *T {
	return &v
}

func makeUser(id int64, login string) model.User {
	return model.User{ID: id, Login: login, Type: model.UserTypeUser}
}

func makeBot(id int64, login string) model.User {
	return model.User{ID: id, Login: login, Type: model.UserTypeBot}
}

func makePR(number int, author model.User, created time.Time, merged *time.Time) model.PullRequest {
	repo := model.Repository{ID: 1, Name: "repo", FullName: "org/repo", Owner: model.User{ID: 999, Login: "org", Type: model.UserTypeOrganization}}
	pr := model.PullRequest{
		ID:           int64(number),
		Number:       number,
		Title:        "PR",
		State:        model.PullRequestOpen,
		User:         author,
		CreatedAt:    created,
		Repository:   repo,
		Base:         model.Branch{Label: "base", Ref: "main", SHA: "sha1", User: author, Repo: repo},
		Head:         model.Branch{Label: "head", Ref: "feature", SHA: "sha2", User: author, Repo: repo},
		Commits:      1,
		Additions:    1,
		ChangedFiles: 1,
	}
	if merged != nil {
		pr.State = model.PullRequestClosed
		pr.Merged = true
		pr.MergedAt = merged
		pr.ClosedAt = merged
	}
	return pr
}

func makeReview(id int64, number int, by model.User, submitted time.Time, state model.ReviewState) model.Review {
	return model.Review{ID: id, User: by, State: state, SubmittedAt: submitted, PullRequestNumber: number}
}

func makeComment(id int64, number int, by model.User, created time.Time) model.Comment {
	return model.Comment{ID: id, User: by, Body: "Comment", CreatedAt: created, Type: model.CommentIssue, PullRequestNumber: ptr(number)}
}

func makeReviewComment(id int64, number int, reviewID int64, by model.User, created time.Time, path string) model.Comment {
	c := makeComment(id, number, by, created)
	c.Type = model.CommentReview
	c.ReviewID = ptr(reviewID)
	if path != "" {
		c.Path = ptr(path)
	}
	return c
}

func makeCommit(sha string, number int, author model.User, date time.Time) model.Commit {
	return model.Commit{SHA: sha, Author: author, Committer: author, Message: "commit", Date: date, PullRequestNumber: ptr(number)}
}

func makeEvent(id int64, number int, event string, actor model.User, created time.Time) model.TimelineEvent {
	return model.TimelineEvent{ID: id, Event: event, Actor: actor, CreatedAt: created, PullRequestNumber: number}
}

func makeContext(bundle *model.Bundle, login string, start, end *time.Time) *Context {
	return &Context{
		Ledger:    ledger.New(bundle),
		UserLogin: login,
		StartDate: start,
		EndDate:   end,
	}
}
