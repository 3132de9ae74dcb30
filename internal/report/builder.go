// Package report builds the canonical profile report from the upstream
// API, tolerating failures in secondary enrichment calls.
package report

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/githunter/githunter/internal/domain"
	"github.com/githunter/githunter/internal/github"
	"github.com/githunter/githunter/internal/metrics"
)

// TopRepoLimit caps how many non-fork repositories get the per-repo
// commit/pull enrichment. Each selected repo costs two further network
// calls, so the cap is the enrichment stage's rate limiter.
const TopRepoLimit = 15

// Builder assembles profile reports
type Builder struct {
	gh  github.Client
	log *zap.SugaredLogger
}

// NewBuilder creates a report builder
func NewBuilder(gh github.Client, log *zap.SugaredLogger) *Builder {
	return &Builder{
		gh:  gh,
		log: log.Named("report"),
	}
}

// Build fetches and assembles the report for a username. Only a failure
// of the primary profile or repository-list fetch is returned; pinned
// ordering and per-repo enrichment degrade silently.
func (b *Builder) Build(ctx context.Context, username string) (*domain.Report, error) {
	var (
		profile *domain.Profile
		repos   []domain.Repo
		pinned  []string
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		profile, err = b.gh.GetUser(egCtx, username)
		return err
	})
	eg.Go(func() error {
		var err error
		repos, err = b.gh.ListRepos(egCtx, username)
		return err
	})
	eg.Go(func() error {
		names, err := b.gh.GetPinnedRepoNames(egCtx, username)
		if err != nil {
			// Pin order only affects presentation, never the report itself
			b.log.Debugw("pinned lookup failed, falling back to popularity order",
				"username", username, "error", err)
			return nil
		}
		pinned = names
		return nil
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	SortRepos(repos, pinned)

	results := b.enrich(ctx, repos, topRepoIndexes(repos, TopRepoLimit))
	applyEnrichment(repos, results)

	return &domain.Report{
		User:  *profile,
		Repos: repos,
		Stats: ComputeStats(repos),
	}, nil
}

// SortRepos orders repos for the report: pinned first in pin order, then
// stars descending, forks descending, most recently pushed
func SortRepos(repos []domain.Repo, pinnedNames []string) {
	pinRank := make(map[string]int, len(pinnedNames))
	for i, name := range pinnedNames {
		pinRank[strings.ToLower(name)] = i
	}

	sort.SliceStable(repos, func(i, j int) bool {
		ri, iPinned := pinRank[strings.ToLower(repos[i].Name)]
		rj, jPinned := pinRank[strings.ToLower(repos[j].Name)]
		if iPinned != jPinned {
			return iPinned
		}
		if iPinned && jPinned {
			return ri < rj
		}
		if repos[i].StargazersCount != repos[j].StargazersCount {
			return repos[i].StargazersCount > repos[j].StargazersCount
		}
		if repos[i].ForksCount != repos[j].ForksCount {
			return repos[i].ForksCount > repos[j].ForksCount
		}
		return repos[i].PushedAt.After(repos[j].PushedAt)
	})
}

// ComputeStats derives the report aggregates in a single pass. It is a
// pure function of the repo slice, enrichment sub-records included.
func ComputeStats(repos []domain.Repo) domain.Stats {
	stats := domain.Stats{
		Language:    make(map[string]int),
		ProjectType: make([]string, 0, len(repos)),
	}

	for _, repo := range repos {
		if repo.Language != "" {
			stats.Language[repo.Language]++
		}
		if repo.Fork {
			stats.ForkCount++
		}
		stats.UserForkedProjects += repo.ForksCount
		stats.RepoSize += repo.Size
		stats.Watchers += repo.WatchersCount
		stats.Stars += repo.StargazersCount
		stats.ProjectType = append(stats.ProjectType, repo.Description)

		if repo.Enrichment != nil {
			stats.Commits += repo.Enrichment.CommitCount
			stats.Pulls += repo.Enrichment.PullCount
		}
	}

	return stats
}

// topRepoIndexes returns the indexes of the first limit non-fork repos in
// the already-sorted slice
func topRepoIndexes(repos []domain.Repo, limit int) []int {
	indexes := make([]int, 0, limit)
	for i := range repos {
		if repos[i].Fork {
			continue
		}
		indexes = append(indexes, i)
		if len(indexes) == limit {
			break
		}
	}
	return indexes
}

// enrich fetches commit and pull counts for the selected repos. The two
// sub-requests per repo run concurrently; if either fails the repo is
// skipped entirely rather than partially credited.
func (b *Builder) enrich(ctx context.Context, repos []domain.Repo, indexes []int) []domain.EnrichmentResult {
	results := make([]domain.EnrichmentResult, len(indexes))

	var wg sync.WaitGroup
	for slot, idx := range indexes {
		wg.Add(1)
		go func(slot int, repo domain.Repo) {
			defer wg.Done()
			results[slot] = b.enrichOne(ctx, repo)
		}(slot, repos[idx])
	}
	wg.Wait()

	for _, res := range results {
		if res.Skipped {
			metrics.EnrichmentSkipped.Inc()
			b.log.Warnw("skipping repo enrichment", "repo", res.Repo, "reason", res.Reason)
		}
	}
	return results
}

func (b *Builder) enrichOne(ctx context.Context, repo domain.Repo) domain.EnrichmentResult {
	var commitCount, pullCount int

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		commitCount, _, err = b.gh.ListRecentCommits(egCtx, repo.Owner, repo.Name)
		return err
	})
	eg.Go(func() error {
		var err error
		pullCount, err = b.gh.ListRecentPulls(egCtx, repo.Owner, repo.Name)
		return err
	})
	if err := eg.Wait(); err != nil {
		return domain.EnrichmentResult{
			Repo:    repo.FullName(),
			Skipped: true,
			Reason:  err.Error(),
		}
	}

	return domain.EnrichmentResult{
		Repo: repo.FullName(),
		Enrichment: &domain.RepoEnrichment{
			CommitCount: commitCount,
			PullCount:   pullCount,
		},
	}
}

// applyEnrichment attaches successful enrichment records to their repos.
// Skipped repos keep a nil enrichment, which is distinct from zero
// activity.
func applyEnrichment(repos []domain.Repo, results []domain.EnrichmentResult) {
	byFullName := make(map[string]*domain.RepoEnrichment, len(results))
	for _, res := range results {
		if !res.Skipped {
			byFullName[res.Repo] = res.Enrichment
		}
	}
	for i := range repos {
		if enr, ok := byFullName[repos[i].FullName()]; ok {
			repos[i].Enrichment = enr
		}
	}
}
