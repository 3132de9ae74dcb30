package domain

// FileSample is one truncated file fetched for scoring context
type FileSample struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

// RepoSample bundles the scoring context gathered for one repository:
// a bounded set of file samples, a README excerpt, and recent commit
// subjects
type RepoSample struct {
	Name          string       `json:"name"`
	Files         []FileSample `json:"files"`
	Readme        string       `json:"readme,omitempty"`
	RecentCommits []string     `json:"recent_commits,omitempty"`
}

// CodeSamples is the sampler's output for one profile
type CodeSamples struct {
	Repos []RepoSample `json:"repos"`
}
