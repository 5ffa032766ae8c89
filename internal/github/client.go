package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v39/github"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/reillywatson/impact/internal/dump"
	apperrors "github.com/reillywatson/impact/internal/errors"
)

const provider = "github"

// ClientInterface defines the interface for GitHub operations
type ClientInterface interface {
	// ListPullRequests returns PRs last updated in [since, until].
	ListPullRequests(ctx context.Context, owner, repo string, since, until time.Time) ([]*github.PullRequest, error)
	// FetchPullRequestBundle returns every payload the dump keeps for one PR.
	FetchPullRequestBundle(ctx context.Context, owner, repo string, number int) (*dump.PRBundle, error)
}

type Options struct {
	// RateLimit is requests per second.
	RateLimit float64
	// BreakerFailures is the number of consecutive failures that opens the
	// circuit breaker.
	BreakerFailures int
	// BaseURL overrides the API endpoint (GitHub Enterprise, tests).
	BaseURL string
}

type Client struct {
	client  *github.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  logrus.FieldLogger
}

func NewClient(token string, opts Options, logger logrus.FieldLogger) (*Client, error) {
	var gh *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(
			&oauth2.Token{AccessToken: token},
		)
		gh = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		gh = github.NewClient(nil)
	}

	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", opts.BaseURL, err)
		}
		gh.BaseURL = u
	}

	if opts.RateLimit <= 0 {
		opts.RateLimit = 10
	}
	if opts.BreakerFailures <= 0 {
		opts.BreakerFailures = 5
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "github-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(opts.BreakerFailures)
		},
		IsSuccessful: breakerSuccess,
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("GitHub circuit breaker state changed")
		},
	})

	return &Client{
		client:  gh,
		limiter: rate.NewLimiter(rate.Limit(opts.RateLimit), 1),
		breaker: breaker,
		logger:  logger,
	}, nil
}

// breakerSuccess counts client errors other than rate limiting as healthy
// responses, so a run over deleted PRs does not open the breaker.
func breakerSuccess(err error) bool {
	if err == nil {
		return true
	}
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return false
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		code := ghErr.Response.StatusCode
		return code >= 400 && code < 500 && code != http.StatusTooManyRequests
	}
	return false
}

// call runs one API request behind the rate limiter and circuit breaker and
// maps failures to provider errors.
func (c *Client) call(ctx context.Context, op string, fn func() (*github.Response, error)) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.NewProviderError(provider, 0, "circuit breaker open").
			WithCause(err).
			WithContext("operation", op)
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return apperrors.NewProviderError(provider, ghErr.Response.StatusCode, ghErr.Message).
			WithCause(err).
			WithContext("operation", op)
	}
	return apperrors.NewProviderError(provider, 0, op).WithCause(err).WithContext("operation", op)
}

// paginate keeps fetching pages until the API reports no next page.
func paginate[T any](ctx context.Context, c *Client, op string, fetch func(opts github.ListOptions) ([]T, *github.Response, error)) ([]T, error) {
	var all []T
	opts := github.ListOptions{PerPage: 100}
	for {
		var page []T
		var resp *github.Response
		err := c.call(ctx, op, func() (*github.Response, error) {
			var err error
			page, resp, err = fetch(opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func (c *Client) ListPullRequests(ctx context.Context, owner, repo string, since, until time.Time) ([]*github.PullRequest, error) {
	var allPRs []*github.PullRequest
	opts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		var prs []*github.PullRequest
		var resp *github.Response
		err := c.call(ctx, "list pull requests", func() (*github.Response, error) {
			var err error
			prs, resp, err = c.client.PullRequests.List(ctx, owner, repo, opts)
			return resp, err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch pull requests: %w", err)
		}

		// Sorted by update time, newest first: the first PR older than
		// since ends the listing.
		for _, pr := range prs {
			updated := pr.GetUpdatedAt()
			if updated.Before(since) {
				return allPRs, nil
			}
			if updated.After(until) {
				continue
			}
			allPRs = append(allPRs, pr)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return allPRs, nil
}

func (c *Client) FetchPullRequestBundle(ctx context.Context, owner, repo string, number int) (*dump.PRBundle, error) {
	log := c.logger.WithFields(logrus.Fields{"repo": owner + "/" + repo, "pr": number})
	log.Debug("Fetching pull request")

	var pr *github.PullRequest
	err := c.call(ctx, "get pull request", func() (*github.Response, error) {
		var (
			resp *github.Response
			err  error
		)
		pr, resp, err = c.client.PullRequests.Get(ctx, owner, repo, number)
		return resp, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pull request #%d: %w", number, err)
	}

	b := &dump.PRBundle{PullRequest: pr}

	b.Timeline, err = c.fetchTimeline(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch timeline of #%d: %w", number, err)
	}

	b.Reviews, err = paginate(ctx, c, "list reviews", func(opts github.ListOptions) ([]*github.PullRequestReview, *github.Response, error) {
		return c.client.PullRequests.ListReviews(ctx, owner, repo, number, &opts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reviews of #%d: %w", number, err)
	}

	b.ReviewComments, err = paginate(ctx, c, "list review comments", func(opts github.ListOptions) ([]*github.PullRequestComment, *github.Response, error) {
		return c.client.PullRequests.ListComments(ctx, owner, repo, number, &github.PullRequestListCommentsOptions{ListOptions: opts})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch review comments of #%d: %w", number, err)
	}

	b.IssueComments, err = paginate(ctx, c, "list issue comments", func(opts github.ListOptions) ([]*github.IssueComment, *github.Response, error) {
		return c.client.Issues.ListComments(ctx, owner, repo, number, &github.IssueListCommentsOptions{ListOptions: opts})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch issue comments of #%d: %w", number, err)
	}

	b.Commits, err = paginate(ctx, c, "list commits", func(opts github.ListOptions) ([]*github.RepositoryCommit, *github.Response, error) {
		return c.client.PullRequests.ListCommits(ctx, owner, repo, number, &opts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch commits of #%d: %w", number, err)
	}

	b.Files, err = paginate(ctx, c, "list files", func(opts github.ListOptions) ([]*github.CommitFile, *github.Response, error) {
		return c.client.PullRequests.ListFiles(ctx, owner, repo, number, &opts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch files of #%d: %w", number, err)
	}

	return b, nil
}

// fetchTimeline reads the issue timeline as raw JSON. The typed timeline
// model drops fields of "reviewed" events (user, submitted_at, state).
func (c *Client) fetchTimeline(ctx context.Context, owner, repo string, number int) ([]json.RawMessage, error) {
	return paginate(ctx, c, "list timeline", func(opts github.ListOptions) ([]json.RawMessage, *github.Response, error) {
		u := fmt.Sprintf("repos/%v/%v/issues/%d/timeline?per_page=%d", owner, repo, number, opts.PerPage)
		if opts.Page > 0 {
			u += fmt.Sprintf("&page=%d", opts.Page)
		}
		req, err := c.client.NewRequest("GET", u, nil)
		if err != nil {
			return nil, nil, err
		}
		req.Header.Set("Accept", "application/vnd.github.mockingbird-preview+json")

		var events []json.RawMessage
		resp, err := c.client.Do(ctx, req, &events)
		if err != nil {
			return nil, resp, err
		}
		return events, resp, nil
	})
}
