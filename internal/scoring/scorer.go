// Package scoring calls the AI scoring collaborator. The model is a black
// box: this package only assembles a bounded prompt and parses the JSON
// sections back out.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/githunter/githunter/internal/domain"
)

const (
	// MaxReposInPrompt bounds the repos summarized for the model
	MaxReposInPrompt = 12
	// PreviewCharLimit bounds code per file in the prompt
	PreviewCharLimit = 800
)

const scoringGuide = `You are a senior engineer producing a hiring-grade report on a GitHub profile. Score each category 0-100 and compute overall_score as the weighted mix.

Default weights (must sum to 100%):
1. code_quality (30%) - readability, structure, error handling, naming.
2. project_complexity (20%) - architecture, separation of concerns, tests and CI.
3. documentation (15%) - README, comments, setup instructions.
4. consistency (15%) - style and patterns across repos.
5. technical_breadth (20%) - languages, frameworks, domains.

Respond with a single JSON object using exactly these keys:
{"scores": {"code_quality": 0, "project_complexity": 0, "documentation": 0, "consistency": 0, "technical_breadth": 0, "overall_score": 0}, "score_breakdown": "", "strengths_weaknesses": {"strengths": [], "weaknesses": []}, "technical_highlights": [], "improvement_suggestions": [], "hiring_recommendation": ""}`

const jobContextGuide = `A job description follows. Adjust the category weights to the role's priorities (they must still sum to 100%) and reference fit for this specific role in hiring_recommendation.`

// Scorer produces AI scoring sections for a report
type Scorer interface {
	Score(ctx context.Context, report *domain.Report, samples *domain.CodeSamples, view, jobContext string) (*domain.ScoreResult, error)
}

// openAIScorer implements Scorer against the OpenAI chat completion API
type openAIScorer struct {
	client *openai.Client
	model  string
	log    *zap.SugaredLogger
}

// NewOpenAIScorer creates a scorer. The model name comes from
// configuration so deployments can trade cost for quality.
func NewOpenAIScorer(apiKey, model string, log *zap.SugaredLogger) Scorer {
	return &openAIScorer{
		client: openai.NewClient(apiKey),
		model:  model,
		log:    log.Named("scoring"),
	}
}

func (s *openAIScorer) Score(ctx context.Context, report *domain.Report, samples *domain.CodeSamples, view, jobContext string) (*domain.ScoreResult, error) {
	prompt := buildPrompt(report, samples, view, jobContext)

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: scoringGuide},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.2,
	})
	if err != nil {
		return nil, fmt.Errorf("scoring request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("scoring service returned no choices")
	}

	result, err := ParseResult(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	s.log.Debugw("scoring complete", "user", report.User.Login,
		"overall", result.Scores["overall_score"])
	return result, nil
}

// ParseResult decodes the model's JSON response, tolerating a fenced code
// block around it
func ParseResult(content string) (*domain.ScoreResult, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var result domain.ScoreResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &result); err != nil {
		return nil, fmt.Errorf("scoring response is not valid JSON: %w", err)
	}
	if len(result.Scores) == 0 {
		return nil, fmt.Errorf("scoring response has no scores section")
	}
	return &result, nil
}

// promptPayload is the bounded report summary serialized into the prompt
type promptPayload struct {
	User      string         `json:"user"`
	View      string         `json:"view,omitempty"`
	RepoCount int            `json:"repo_count"`
	Language  map[string]int `json:"language"`
	Stars     int            `json:"stars"`
	Forks     int            `json:"fork_count"`
	Commits   int            `json:"commits"`
	Pulls     int            `json:"pulls"`
	TopRepos  []promptRepo   `json:"top_repos"`
	Samples   []promptSample `json:"code_samples,omitempty"`
}

type promptRepo struct {
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
	Stars    int    `json:"stars"`
}

type promptSample struct {
	Repo          string       `json:"repo"`
	Readme        string       `json:"readme,omitempty"`
	RecentCommits []string     `json:"recent_commits,omitempty"`
	Files         []promptFile `json:"files"`
}

type promptFile struct {
	Path    string `json:"path"`
	Lang    string `json:"lang"`
	Preview string `json:"preview"`
}

// truncateChars cuts text to maxBytes on a rune boundary so the JSON
// prompt never carries a mangled partial rune
func truncateChars(text string, maxBytes int) string {
	if len(text) <= maxBytes {
		return text
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func buildPrompt(report *domain.Report, samples *domain.CodeSamples, view, jobContext string) string {
	payload := promptPayload{
		User:      report.User.Login,
		View:      view,
		RepoCount: len(report.Repos),
		Language:  report.Stats.Language,
		Stars:     report.Stats.Stars,
		Forks:     report.Stats.ForkCount,
		Commits:   report.Stats.Commits,
		Pulls:     report.Stats.Pulls,
	}

	for _, repo := range report.Repos {
		if repo.Fork {
			continue
		}
		payload.TopRepos = append(payload.TopRepos, promptRepo{
			Name:     repo.Name,
			Language: repo.Language,
			Stars:    repo.StargazersCount,
		})
		if len(payload.TopRepos) == MaxReposInPrompt {
			break
		}
	}

	if samples != nil {
		for i, repo := range samples.Repos {
			if i == MaxReposInPrompt {
				break
			}
			ps := promptSample{
				Repo:          repo.Name,
				Readme:        repo.Readme,
				RecentCommits: repo.RecentCommits,
			}
			for _, file := range repo.Files {
				preview := truncateChars(file.Content, PreviewCharLimit)
				ps.Files = append(ps.Files, promptFile{
					Path:    file.Path,
					Lang:    file.Language,
					Preview: preview,
				})
			}
			payload.Samples = append(payload.Samples, ps)
		}
	}

	encoded, _ := json.Marshal(payload)

	var b strings.Builder
	b.WriteString("## Profile summary and code samples\n")
	b.Write(encoded)
	if jobContext = strings.TrimSpace(jobContext); jobContext != "" {
		b.WriteString("\n\n")
		b.WriteString(jobContextGuide)
		b.WriteString("\n")
		b.WriteString(jobContext)
	}
	return b.String()
}
