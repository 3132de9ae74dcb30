// Package github wraps the GitHub REST and GraphQL APIs behind a single
// client, sharing one rate-limit-aware HTTP transport.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v55/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/githunter/githunter/internal/domain"
	apperrors "github.com/githunter/githunter/internal/errors"
)

// recentPageSize bounds the commit/pull sample per repository
const recentPageSize = 30

// Client defines the upstream operations the aggregator and sampler need
type Client interface {
	// GetUser fetches the profile. 404 and 403/429 map to typed errors.
	GetUser(ctx context.Context, username string) (*domain.Profile, error)

	// ListRepos fetches all repositories for a user. Same error mapping
	// as GetUser: this is a primary fetch.
	ListRepos(ctx context.Context, username string) ([]domain.Repo, error)

	// GetPinnedRepoNames returns pinned repository names in pin order.
	// GraphQL only; callers tolerate failure with an empty slice.
	GetPinnedRepoNames(ctx context.Context, username string) ([]string, error)

	// ListRecentCommits returns the recent commit count (bounded at 30)
	// and their subject lines for a repository
	ListRecentCommits(ctx context.Context, owner, repo string) (int, []string, error)

	// ListRecentPulls returns the recent pull request count (bounded at
	// 30, all states) for a repository
	ListRecentPulls(ctx context.Context, owner, repo string) (int, error)

	// ListTreePaths returns all blob paths of the repository tree at ref
	ListTreePaths(ctx context.Context, owner, repo, ref string) ([]string, error)

	// GetFileContent returns the decoded content of one file at ref
	GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error)

	// GetReadme returns the decoded repository README
	GetReadme(ctx context.Context, owner, repo string) (string, error)
}

// githubClient implements Client over go-github and githubv4
type githubClient struct {
	rest     *github.Client
	graphql  *githubv4.Client
	log      *zap.SugaredLogger
	hasToken bool
}

// NewClient creates a GitHub client. The token is optional; without it the
// REST calls run anonymously (lower rate ceiling) and pinned lookups are
// skipped since the GraphQL API requires authentication.
func NewClient(token string, log *zap.SugaredLogger) (Client, error) {
	waiter, err := github_ratelimit.NewRateLimitWaiter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}

	var transport http.RoundTripper = waiter
	if token != "" {
		transport = &oauth2.Transport{
			Base:   waiter,
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
		}
	}
	httpClient := &http.Client{Transport: transport}

	return &githubClient{
		rest:     github.NewClient(httpClient),
		graphql:  githubv4.NewClient(httpClient),
		log:      log.Named("github"),
		hasToken: token != "",
	}, nil
}

func (c *githubClient) GetUser(ctx context.Context, username string) (*domain.Profile, error) {
	user, _, err := c.rest.Users.Get(ctx, username)
	if err != nil {
		return nil, mapPrimaryError(err, "user")
	}

	return &domain.Profile{
		Login:       user.GetLogin(),
		Name:        user.GetName(),
		AvatarURL:   user.GetAvatarURL(),
		HTMLURL:     user.GetHTMLURL(),
		Bio:         user.GetBio(),
		Company:     user.GetCompany(),
		Location:    user.GetLocation(),
		PublicRepos: user.GetPublicRepos(),
		Followers:   user.GetFollowers(),
		Following:   user.GetFollowing(),
		CreatedAt:   user.GetCreatedAt().Time,
	}, nil
}

func (c *githubClient) ListRepos(ctx context.Context, username string) ([]domain.Repo, error) {
	var all []domain.Repo
	opts := &github.RepositoryListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		repos, resp, err := c.rest.Repositories.List(ctx, username, opts)
		if err != nil {
			return nil, mapPrimaryError(err, "repositories")
		}

		for _, repo := range repos {
			all = append(all, domain.Repo{
				Name:            repo.GetName(),
				Owner:           repo.GetOwner().GetLogin(),
				Description:     repo.GetDescription(),
				Language:        repo.GetLanguage(),
				Fork:            repo.GetFork(),
				StargazersCount: repo.GetStargazersCount(),
				ForksCount:      repo.GetForksCount(),
				WatchersCount:   repo.GetWatchersCount(),
				Size:            repo.GetSize(),
				PushedAt:        repo.GetPushedAt().Time,
				DefaultBranch:   repo.GetDefaultBranch(),
				HTMLURL:         repo.GetHTMLURL(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return all, nil
}

func (c *githubClient) GetPinnedRepoNames(ctx context.Context, username string) ([]string, error) {
	if !c.hasToken {
		return nil, nil
	}

	var q struct {
		User struct {
			PinnedItems struct {
				Nodes []struct {
					Repository struct {
						Name string
					} `graphql:"... on Repository"`
				}
			} `graphql:"pinnedItems(first: 6, types: REPOSITORY)"`
		} `graphql:"user(login: $login)"`
	}
	variables := map[string]interface{}{
		"login": githubv4.String(username),
	}

	if err := c.graphql.Query(ctx, &q, variables); err != nil {
		return nil, fmt.Errorf("failed to query pinned items: %w", err)
	}

	names := make([]string, 0, len(q.User.PinnedItems.Nodes))
	for _, node := range q.User.PinnedItems.Nodes {
		if node.Repository.Name != "" {
			names = append(names, node.Repository.Name)
		}
	}
	return names, nil
}

func (c *githubClient) ListRecentCommits(ctx context.Context, owner, repo string) (int, []string, error) {
	opts := &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: recentPageSize},
	}
	commits, resp, err := c.rest.Repositories.ListCommits(ctx, owner, repo, opts)
	if err != nil {
		// Empty repositories answer 409
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return 0, nil, nil
		}
		return 0, nil, fmt.Errorf("failed to list commits for %s/%s: %w", owner, repo, err)
	}

	messages := make([]string, 0, len(commits))
	for _, commit := range commits {
		if msg := commit.GetCommit().GetMessage(); msg != "" {
			if i := strings.IndexByte(msg, '\n'); i >= 0 {
				msg = msg[:i]
			}
			messages = append(messages, msg)
		}
	}
	return len(commits), messages, nil
}

func (c *githubClient) ListRecentPulls(ctx context.Context, owner, repo string) (int, error) {
	opts := &github.PullRequestListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: recentPageSize},
	}
	pulls, _, err := c.rest.PullRequests.List(ctx, owner, repo, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to list pull requests for %s/%s: %w", owner, repo, err)
	}
	return len(pulls), nil
}

func (c *githubClient) ListTreePaths(ctx context.Context, owner, repo, ref string) ([]string, error) {
	tree, _, err := c.rest.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		return nil, fmt.Errorf("failed to get tree for %s/%s: %w", owner, repo, err)
	}

	var paths []string
	for _, entry := range tree.Entries {
		if entry.GetType() == "blob" && entry.GetPath() != "" {
			paths = append(paths, entry.GetPath())
		}
	}
	return paths, nil
}

func (c *githubClient) GetFileContent(ctx context.Context, owner, repo, path, ref string) (string, error) {
	opts := &github.RepositoryContentGetOptions{Ref: ref}
	file, _, _, err := c.rest.Repositories.GetContents(ctx, owner, repo, path, opts)
	if err != nil {
		return "", fmt.Errorf("failed to get contents of %s: %w", path, err)
	}
	if file == nil {
		return "", fmt.Errorf("%s is not a file", path)
	}
	content, err := file.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return content, nil
}

func (c *githubClient) GetReadme(ctx context.Context, owner, repo string) (string, error) {
	readme, _, err := c.rest.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		return "", fmt.Errorf("failed to get readme for %s/%s: %w", owner, repo, err)
	}
	content, err := readme.GetContent()
	if err != nil {
		return "", fmt.Errorf("failed to decode readme for %s/%s: %w", owner, repo, err)
	}
	return content, nil
}

// mapPrimaryError translates upstream failures of primary fetches into the
// application's typed errors. Rate-limit messages pass through verbatim.
func mapPrimaryError(err error, resource string) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return apperrors.NewRateLimitedError(rateErr.Message)
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return apperrors.NewRateLimitedError(abuseErr.Message)
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case http.StatusNotFound:
			return apperrors.NewNotFoundError(resource)
		case http.StatusForbidden, http.StatusTooManyRequests:
			return apperrors.NewRateLimitedError(respErr.Message)
		}
	}
	return apperrors.NewInternalError(fmt.Sprintf("failed to fetch %s", resource), err)
}
