// Package sampler selects and truncates a bounded sample of per-repository
// file content to feed the AI scoring stage.
package sampler

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/githunter/githunter/internal/domain"
	"github.com/githunter/githunter/internal/github"
)

const (
	// MaxReposSampled bounds how many repos contribute samples
	MaxReposSampled = 15
	// MaxFilesPerRepo bounds the files fetched per repository
	MaxFilesPerRepo = 18
	// MaxLinesPerFile truncates each sampled file
	MaxLinesPerFile = 150
	// ReadmeCharLimit truncates the README excerpt per repository
	ReadmeCharLimit = 1200
	// RecentCommitLimit bounds the commit subjects kept per repository
	RecentCommitLimit = 5
)

// priorityPattern weights a path for selection. Higher weight wins.
type priorityPattern struct {
	pattern *regexp.Regexp
	weight  int
}

// Manifest, README, entry point, test, CI workflow, then config files, in
// that order of interest.
var priorityPatterns = []priorityPattern{
	{regexp.MustCompile(`(?i)^(package\.json|go\.mod|Cargo\.toml|pyproject\.toml|pom\.xml)$`), 100},
	{regexp.MustCompile(`(?i)^README\.(md|mdx|txt|rst)$`), 95},
	{regexp.MustCompile(`^(src/)?index\.(js|ts|jsx|tsx)$`), 90},
	{regexp.MustCompile(`^(cmd/.+/)?main\.go$`), 88},
	{regexp.MustCompile(`^(src/)?(main|app)\.(js|ts|jsx|tsx|py|rs)$`), 85},
	{regexp.MustCompile(`\.(test|spec)\.(js|ts|jsx|tsx)$`), 80},
	{regexp.MustCompile(`_test\.go$`), 78},
	{regexp.MustCompile(`^(src/)?__tests__/`), 75},
	{regexp.MustCompile(`^\.github/workflows/`), 70},
	{regexp.MustCompile(`^(tsconfig|webpack|vite|rollup|jest|babel)\.`), 65},
	{regexp.MustCompile(`^\.(env|eslintrc|prettierrc)`), 60},
	{regexp.MustCompile(`\.(go|js|ts|jsx|tsx|py|rs|java|rb)$`), 50},
	{regexp.MustCompile(`\.(json|yaml|yml|toml)$`), 40},
}

var skippedDirs = []string{"node_modules/", "vendor/", "dist/", "build/"}

// Sampler fetches code samples under the same rate-limit discipline as
// the aggregator: requests are paced, and every failure is skipped.
type Sampler struct {
	gh      github.Client
	limiter *rate.Limiter
	log     *zap.SugaredLogger
}

// New creates a sampler. The limiter spaces content requests so a deep
// sample cannot burn the remaining rate budget.
func New(gh github.Client, log *zap.SugaredLogger) *Sampler {
	return &Sampler{
		gh:      gh,
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
		log:     log.Named("sampler"),
	}
}

// Collect gathers file samples, README excerpts and recent commit
// subjects for the top non-fork repos. It never fails: repos or files
// that cannot be fetched are simply absent.
func (s *Sampler) Collect(ctx context.Context, repos []domain.Repo) *domain.CodeSamples {
	samples := &domain.CodeSamples{}

	count := 0
	for _, repo := range repos {
		if repo.Fork {
			continue
		}
		if count == MaxReposSampled {
			break
		}
		count++

		sample := s.sampleRepo(ctx, repo)
		samples.Repos = append(samples.Repos, sample)
	}

	return samples
}

func (s *Sampler) sampleRepo(ctx context.Context, repo domain.Repo) domain.RepoSample {
	sample := domain.RepoSample{Name: repo.Name}

	ref := repo.DefaultBranch
	if ref == "" {
		ref = "HEAD"
	}

	if err := s.wait(ctx); err != nil {
		return sample
	}
	paths, err := s.gh.ListTreePaths(ctx, repo.Owner, repo.Name, ref)
	if err != nil {
		s.log.Debugw("skipping repo sample, tree unavailable", "repo", repo.FullName(), "error", err)
	} else {
		for _, path := range selectPaths(paths, MaxFilesPerRepo) {
			if err := s.wait(ctx); err != nil {
				break
			}
			content, err := s.gh.GetFileContent(ctx, repo.Owner, repo.Name, path, ref)
			if err != nil {
				continue
			}
			sample.Files = append(sample.Files, domain.FileSample{
				Path:     path,
				Content:  TruncateLines(content, MaxLinesPerFile),
				Language: InferLanguage(path),
			})
		}
	}

	if err := s.wait(ctx); err == nil {
		if readme, err := s.gh.GetReadme(ctx, repo.Owner, repo.Name); err == nil {
			sample.Readme = TruncateChars(readme, ReadmeCharLimit)
		}
	}

	if err := s.wait(ctx); err == nil {
		if _, messages, err := s.gh.ListRecentCommits(ctx, repo.Owner, repo.Name); err == nil {
			if len(messages) > RecentCommitLimit {
				messages = messages[:RecentCommitLimit]
			}
			sample.RecentCommits = messages
		}
	}

	return sample
}

func (s *Sampler) wait(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// selectPaths scores every blob path and returns the top limit paths
func selectPaths(paths []string, limit int) []string {
	type scored struct {
		path   string
		weight int
	}

	candidates := make([]scored, 0, len(paths))
	for _, path := range paths {
		if isSkipped(path) {
			continue
		}
		candidates = append(candidates, scored{path: path, weight: ScorePath(path)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].weight > candidates[j].weight
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	selected := make([]string, len(candidates))
	for i, c := range candidates {
		selected[i] = c.path
	}
	return selected
}

func isSkipped(path string) bool {
	for _, dir := range skippedDirs {
		if strings.Contains(path, dir) {
			return true
		}
	}
	return false
}

// ScorePath returns the selection weight for a path
func ScorePath(path string) int {
	for _, p := range priorityPatterns {
		if p.pattern.MatchString(path) {
			return p.weight
		}
	}
	return 10
}

// TruncateChars keeps at most maxBytes bytes of text without splitting a
// multi-byte rune
func TruncateChars(text string, maxBytes int) string {
	if len(text) <= maxBytes {
		return text
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

// TruncateLines keeps at most maxLines lines of text
func TruncateLines(text string, maxLines int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= maxLines {
		return text
	}
	return strings.Join(lines[:maxLines], "\n") + "\n... truncated"
}

// InferLanguage guesses a display language from the file extension
func InferLanguage(path string) string {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".go"):
		return "Go"
	case strings.HasSuffix(lower, ".js"), strings.HasSuffix(lower, ".jsx"),
		strings.HasSuffix(lower, ".mjs"), strings.HasSuffix(lower, ".cjs"):
		return "JavaScript"
	case strings.HasSuffix(lower, ".ts"), strings.HasSuffix(lower, ".tsx"):
		return "TypeScript"
	case strings.HasSuffix(lower, ".py"):
		return "Python"
	case strings.HasSuffix(lower, ".rs"):
		return "Rust"
	case strings.HasSuffix(lower, ".java"):
		return "Java"
	case strings.HasSuffix(lower, ".rb"):
		return "Ruby"
	case strings.HasSuffix(lower, ".json"):
		return "JSON"
	case strings.HasSuffix(lower, ".md"), strings.HasSuffix(lower, ".mdx"):
		return "Markdown"
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return "YAML"
	case strings.HasSuffix(lower, ".toml"):
		return "TOML"
	default:
		return "Text"
	}
}
