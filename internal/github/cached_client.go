package github

import (
	"context"
	"errors"
	"time"

	"github.com/google/go-github/v39/github"
	"github.com/sirupsen/logrus"

	"github.com/reillywatson/impact/internal/cache"
	"github.com/reillywatson/impact/internal/dump"
)

// CachedClient wraps a ClientInterface with caching capabilities
type CachedClient struct {
	client ClientInterface
	cache  cache.Cache
	kb     *cache.CacheKeyBuilder
	logger logrus.FieldLogger
}

// NewCachedClient creates a new GitHub client with caching
func NewCachedClient(client ClientInterface, cacheImpl cache.Cache, logger logrus.FieldLogger) *CachedClient {
	return &CachedClient{
		client: client,
		cache:  cacheImpl,
		kb:     cache.NewCacheKeyBuilder("github"),
		logger: logger,
	}
}

// ListPullRequests lists pull requests with caching
func (c *CachedClient) ListPullRequests(ctx context.Context, owner, repo string, since, until time.Time) ([]*github.PullRequest, error) {
	cacheKey := c.kb.PRsListKey(owner, repo, since, until)
	var cachedPRs []*github.PullRequest
	if err := c.cache.Get(cacheKey, &cachedPRs); err == nil {
		return cachedPRs, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.WithError(err).Warn("Cache error for PRs list")
	}

	prs, err := c.client.ListPullRequests(ctx, owner, repo, since, until)
	if err != nil {
		return nil, err
	}

	// Longer TTL for historical windows, shorter for recent ones
	ttl := c.calculatePRListTTL(until)
	if err := c.cache.Set(cacheKey, prs, ttl); err != nil {
		c.logger.WithError(err).Warn("Failed to cache PRs list")
	}

	return prs, nil
}

// FetchPullRequestBundle fetches one PR's payloads with caching
func (c *CachedClient) FetchPullRequestBundle(ctx context.Context, owner, repo string, number int) (*dump.PRBundle, error) {
	cacheKey := c.kb.PRBundleKey(owner, repo, number)
	var cached dump.PRBundle
	if err := c.cache.Get(cacheKey, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.WithError(err).WithField("pr", number).Warn("Cache error for PR bundle")
	}

	b, err := c.client.FetchPullRequestBundle(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}

	// Closed PRs rarely change, open ones might get new activity any time
	ttl := 1 * time.Hour
	if c.isPRCacheable(b.PullRequest) {
		ttl = 24 * time.Hour
	}
	if err := c.cache.Set(cacheKey, b, ttl); err != nil {
		c.logger.WithError(err).WithField("pr", number).Warn("Failed to cache PR bundle")
	}

	return b, nil
}

// isPRCacheable determines if a PR is in a state that can be cached long-term
func (c *CachedClient) isPRCacheable(pr *github.PullRequest) bool {
	if pr == nil {
		return false
	}
	return pr.GetState() == "closed"
}

// calculatePRListTTL calculates TTL for PR list cache based on how recent the data is
func (c *CachedClient) calculatePRListTTL(endDate time.Time) time.Duration {
	daysSinceEnd := time.Since(endDate).Hours() / 24

	if daysSinceEnd > 7 {
		return 24 * time.Hour
	}
	return 1 * time.Hour
}

// Close cleans up the client
func (c *CachedClient) Close() error {
	return c.cache.Close()
}
