package domain

import "time"

// Profile represents the canonical GitHub user summary.
// Login is the platform's returned login and may differ in case from the
// user-supplied input; it is the canonical cache key.
type Profile struct {
	Login       string    `json:"login"`
	Name        string    `json:"name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	HTMLURL     string    `json:"html_url,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	Company     string    `json:"company,omitempty"`
	Location    string    `json:"location,omitempty"`
	PublicRepos int       `json:"public_repos"`
	Followers   int       `json:"followers"`
	Following   int       `json:"following"`
	CreatedAt   time.Time `json:"created_at"`
}

// RepoEnrichment holds best-effort activity counts for one repository,
// sampled at up to 30 entries per list. A nil enrichment on a Repo means
// the fetch was skipped or failed; it never means zero activity.
type RepoEnrichment struct {
	CommitCount int `json:"commit_count"`
	PullCount   int `json:"pull_count"`
}

// Repo represents one repository entry in a report
type Repo struct {
	Name            string          `json:"name"`
	Owner           string          `json:"owner"`
	Description     string          `json:"description,omitempty"`
	Language        string          `json:"language,omitempty"`
	Fork            bool            `json:"fork"`
	StargazersCount int             `json:"stargazers_count"`
	ForksCount      int             `json:"forks_count"`
	WatchersCount   int             `json:"watchers_count"`
	Size            int             `json:"size"`
	PushedAt        time.Time       `json:"pushed_at"`
	DefaultBranch   string          `json:"default_branch,omitempty"`
	HTMLURL         string          `json:"html_url,omitempty"`
	Enrichment      *RepoEnrichment `json:"enrichment,omitempty"`
}

// FullName returns the owner-qualified repository name
func (r *Repo) FullName() string {
	return r.Owner + "/" + r.Name
}

// Stats holds the report's derived aggregates. It is a pure function of
// the repo slice: recomputing from the same repos yields the same values.
type Stats struct {
	// Language is a histogram of repos per language (non-empty only)
	Language map[string]int `json:"language"`
	// ProjectType carries the repo descriptions, in report order
	ProjectType []string `json:"project_type"`
	// ForkCount is the number of repos that are themselves forks
	ForkCount int `json:"fork_count"`
	// UserForkedProjects sums each repo's own forks_count. The name is
	// historical; the formula double-counts forks of forks relative to
	// "how many times this user's work was forked".
	UserForkedProjects int `json:"user_forked_projects"`
	RepoSize           int `json:"repo_size"`
	Watchers           int `json:"watchers"`
	Stars              int `json:"stars"`
	// Commits and Pulls are best-effort sums over only the top repos whose
	// enrichment succeeded
	Commits int `json:"commits"`
	Pulls   int `json:"pulls"`
}

// Report is the canonical profile report
type Report struct {
	User  Profile `json:"user"`
	Repos []Repo  `json:"repos"`
	Stats Stats   `json:"stats"`
}

// ScoreResult holds the AI scoring sections. The prompt/response contract
// lives in the scoring collaborator; this is just its parsed shape.
type ScoreResult struct {
	Scores                 map[string]int `json:"scores"`
	ScoreBreakdown         string         `json:"score_breakdown,omitempty"`
	StrengthsWeaknesses    SWSection      `json:"strengths_weaknesses"`
	TechnicalHighlights    []string       `json:"technical_highlights"`
	ImprovementSuggestions []string       `json:"improvement_suggestions"`
	HiringRecommendation   string         `json:"hiring_recommendation"`
}

// SWSection splits strengths from weaknesses
type SWSection struct {
	Strengths  []string `json:"strengths"`
	Weaknesses []string `json:"weaknesses"`
}

// Analysis is a report enriched with AI scoring, the payload cached for
// completed jobs
type Analysis struct {
	Report Report       `json:"report"`
	Score  *ScoreResult `json:"score,omitempty"`
}
