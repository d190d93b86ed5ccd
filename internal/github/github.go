// Package github fetches contribution statistics for a user. With a token
// configured it asks the GraphQL API for the rolling 12-month contribution
// calendar; without one (or when GraphQL fails) it estimates activity by
// sampling commit counts across the most recently pushed repositories.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/labstack/gommon/log"
	"golang.org/x/sync/errgroup"

	"portfolio-proxy/internal/httpx"
	"portfolio-proxy/internal/upstream"
)

// User mirrors the subset of the GitHub user object the UI renders.
type User struct {
	Login       string `json:"login"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
	Name        string `json:"name"`
	PublicRepos int    `json:"public_repos"`
	Followers   int    `json:"followers"`
}

// Metrics carries the five derived activity numbers.
type Metrics struct {
	TotalStars     int `json:"total_stars"`
	LanguagesCount int `json:"languages_count"`
	YearsActive    int `json:"years_active"`
	YearlyCommits  int `json:"yearly_commits"`
	TotalForks     int `json:"total_forks"`
}

// RepoSummary is the trimmed repository shape returned to the caller.
type RepoSummary struct {
	Name            string `json:"name"`
	HTMLURL         string `json:"html_url"`
	Description     string `json:"description"`
	StargazersCount int    `json:"stargazers_count"`
	Language        string `json:"language"`
}

// Stats is the contribution-stats response envelope. IsFallback marks
// synthesized payloads; the field is always present so genuine and
// fallback payloads stay structurally identical.
type Stats struct {
	User               User          `json:"user"`
	FunMetrics         Metrics       `json:"fun_metrics"`
	RecentRepositories []RepoSummary `json:"recent_repositories"`
	IsFallback         bool          `json:"is_fallback"`
}

type repo struct {
	Name            string    `json:"name"`
	HTMLURL         string    `json:"html_url"`
	Description     string    `json:"description"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	Language        string    `json:"language"`
	CreatedAt       time.Time `json:"created_at"`
}

const (
	defaultAPIURL     = "https://api.github.com"
	defaultGraphQLURL = "https://api.github.com/graphql"

	// The estimation heuristic: sample the 10 most recently pushed
	// repositories, approximate paginated counts from the Link header,
	// then scale by a buffer factor for the repositories not sampled.
	maxSampledRepos  = 10
	commitsPerPage   = 100
	estimationBuffer = 1.2
)

// Client talks to the GitHub REST and GraphQL APIs.
type Client struct {
	rest    *httpx.Client
	graphql *httpx.Client
	token   string
	now     func() time.Time
	logger  *log.Logger

	apiURL     string
	graphqlURL string
	timeout    time.Duration
}

type Option func(*Client)

// WithBaseURLs overrides the REST and GraphQL endpoints (tests point these
// at a local server).
func WithBaseURLs(apiURL, graphqlURL string) Option {
	return func(c *Client) {
		if apiURL != "" {
			c.apiURL = apiURL
		}
		if graphqlURL != "" {
			c.graphqlURL = graphqlURL
		}
	}
}

// WithToken configures the access token enabling the GraphQL path.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithTimeout bounds each outbound call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithClock overrides the wall clock used for date-window calculations.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger overrides the package logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		apiURL:     defaultAPIURL,
		graphqlURL: defaultGraphQLURL,
		timeout:    10 * time.Second,
		now:        time.Now,
		logger:     log.New("github"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.rest = httpx.NewClient(
		httpx.WithBaseURL(c.apiURL),
		httpx.WithClientTimeout(c.timeout),
		httpx.WithHeaders(map[string]string{"Accept": "application/vnd.github.v3+json"}),
	)
	c.graphql = httpx.NewClient(
		httpx.WithBaseURL(c.graphqlURL),
		httpx.WithClientTimeout(c.timeout),
	)
	return c
}

// FetchContributions resolves the user, determines the yearly contribution
// count, and derives the remaining metrics from the repository listing.
// A failed user lookup is the only hard failure; everything downstream
// degrades to estimates and defaults.
func (c *Client) FetchContributions(ctx context.Context, username string) (*Stats, error) {
	var user User
	resp, err := c.rest.Get(ctx, "/users/"+username, &user, httpx.WithTokenAuth(c.token))
	if err != nil {
		return nil, upstream.Errorf(statusOf(resp), "user lookup for %s failed: %v", username, err)
	}
	if user.Name == "" {
		user.Name = username
	}

	yearly := 0
	if c.token != "" {
		yearly, err = c.yearlyFromGraphQL(ctx, username)
		if err != nil {
			c.logger.Warnf("graphql contributions for %s failed: %v", username, err)
			yearly = c.estimateYearlyCommits(ctx, username)
		}
	} else {
		yearly = c.estimateYearlyCommits(ctx, username)
	}
	if yearly <= 0 {
		c.logger.Warnf("using fallback commit count for %s", username)
		yearly = fallbackYearlyCommits
	}

	var repos []repo
	if _, err := c.rest.Get(ctx, "/users/"+username+"/repos", &repos,
		httpx.WithQuery(map[string]string{"per_page": "100", "sort": "updated"}),
		httpx.WithTokenAuth(c.token),
	); err != nil {
		c.logger.Warnf("repository listing for %s failed: %v", username, err)
		repos = nil
	}

	return &Stats{
		User:               user,
		FunMetrics:         computeMetrics(repos, yearly, c.now()),
		RecentRepositories: summarize(repos, 5),
	}, nil
}

const contributionsQuery = `{
  user(login: %q) {
    contributionsCollection(from: %q, to: %q) {
      contributionCalendar {
        totalContributions
      }
    }
  }
}`

func (c *Client) yearlyFromGraphQL(ctx context.Context, username string) (int, error) {
	to := c.now().UTC()
	from := to.AddDate(-1, 0, 0)
	query := fmt.Sprintf(contributionsQuery, username, from.Format(time.RFC3339), to.Format(time.RFC3339))

	var out struct {
		Data struct {
			User struct {
				ContributionsCollection struct {
					ContributionCalendar struct {
						TotalContributions int `json:"totalContributions"`
					} `json:"contributionCalendar"`
				} `json:"contributionsCollection"`
			} `json:"user"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}

	resp, err := c.graphql.Post(ctx, "", map[string]string{"query": query}, &out, httpx.WithBearer(c.token))
	if err != nil {
		return 0, upstream.Errorf(statusOf(resp), "graphql request failed: %v", err)
	}
	if len(out.Errors) > 0 {
		return 0, upstream.Errorf(resp.StatusCode(), "graphql: %s", out.Errors[0].Message)
	}

	total := out.Data.User.ContributionsCollection.ContributionCalendar.TotalContributions
	if total <= 0 {
		return 0, upstream.Errorf(0, "graphql returned no contribution calendar for %s", username)
	}
	return total, nil
}

// estimateYearlyCommits is the REST approximation used when GraphQL is
// unavailable. Per-repo failures are tolerated; the result is a documented
// estimate, not an exact count.
func (c *Client) estimateYearlyCommits(ctx context.Context, username string) int {
	var repos []repo
	if _, err := c.rest.Get(ctx, "/users/"+username+"/repos", &repos,
		httpx.WithQuery(map[string]string{"per_page": "100", "sort": "pushed"}),
		httpx.WithTokenAuth(c.token),
	); err != nil {
		c.logger.Warnf("repository listing for estimation failed: %v", err)
		return fallbackYearlyCommits
	}
	if len(repos) > maxSampledRepos {
		repos = repos[:maxSampledRepos]
	}

	since := c.now().UTC().AddDate(-1, 0, 0).Format(time.RFC3339)

	var total int64
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range repos {
		r := r
		g.Go(func() error {
			var commits []json.RawMessage
			resp, err := c.rest.Get(gctx, fmt.Sprintf("/repos/%s/%s/commits", username, r.Name), &commits,
				httpx.WithQuery(map[string]string{"since": since, "author": username, "per_page": "100"}),
				httpx.WithTokenAuth(c.token),
			)
			if err != nil {
				c.logger.Warnf("commit sampling for %s/%s failed: %v", username, r.Name, err)
				return nil
			}
			if pages, ok := lastPage(resp.Header().Get("Link")); ok {
				atomic.AddInt64(&total, int64(pages*commitsPerPage))
				return nil
			}
			atomic.AddInt64(&total, int64(len(commits)))
			return nil
		})
	}
	_ = g.Wait()

	estimated := int(math.Ceil(float64(total) * estimationBuffer))
	if estimated <= 0 {
		return fallbackYearlyCommits
	}
	return estimated
}

func summarize(repos []repo, n int) []RepoSummary {
	if len(repos) > n {
		repos = repos[:n]
	}
	out := make([]RepoSummary, 0, len(repos))
	for _, r := range repos {
		out = append(out, RepoSummary{
			Name:            r.Name,
			HTMLURL:         r.HTMLURL,
			Description:     r.Description,
			StargazersCount: r.StargazersCount,
			Language:        r.Language,
		})
	}
	return out
}

func statusOf(resp *resty.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode()
}
