package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/githunter/githunter/internal/domain"
	"github.com/githunter/githunter/pkg/client"
)

var (
	apiEndpoint string
	api         *client.Client
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "githunter",
		Short: "GitHub profile analysis CLI",
		Long:  "Command-line client for the GitHunter profile analysis API.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			api = client.NewClient(apiEndpoint)
		},
	}

	defaultEndpoint := os.Getenv("API_ENDPOINT")
	if defaultEndpoint == "" {
		defaultEndpoint = "http://localhost:5000"
	}
	rootCmd.PersistentFlags().StringVar(&apiEndpoint, "api", defaultEndpoint, "API endpoint URL")

	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(reportCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func userCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "user <username>",
		Short: "Fetch a profile report synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analysis, err := api.GetUser(args[0])
			if err != nil {
				return err
			}
			renderAnalysis(analysis)
			return nil
		},
	}
}

func analyzeCmd() *cobra.Command {
	var (
		wait       bool
		view       string
		jobContext string
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "analyze <username>",
		Short: "Queue a full analysis job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := api.Analyze(args[0], view, jobContext)
			if err != nil {
				return err
			}
			fmt.Printf("Job queued: %s\n", jobID)
			if !wait {
				fmt.Printf("Check progress with: githunter status %s\n", jobID)
				return nil
			}

			job, err := api.WaitForCompletion(jobID, 2*time.Second, timeout)
			if err != nil {
				return err
			}
			if job.Status == domain.JobStatusFailed {
				return fmt.Errorf("job failed: %s", job.Error)
			}
			analysis, err := api.GetReport(jobID)
			if err != nil {
				return err
			}
			renderAnalysis(analysis)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "poll until the job completes and print the report")
	cmd.Flags().StringVar(&view, "view", "", "analysis view (e.g. recruiter)")
	cmd.Flags().StringVar(&jobContext, "context", "", "free-form context passed to the scorer")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Minute, "maximum time to wait with --wait")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <jobId>",
		Short: "Show the status of an analysis job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := api.GetStatus(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Status:   %s\n", job.Status)
			fmt.Printf("Progress: %d%%\n", job.Progress)
			if job.Error != "" {
				fmt.Printf("Error:    %s\n", job.Error)
			}
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	var latest bool
	cmd := &cobra.Command{
		Use:   "report <jobId|username>",
		Short: "Fetch a completed analysis report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				analysis *domain.Analysis
				err      error
			)
			if latest {
				analysis, err = api.GetLatestReport(args[0])
			} else {
				analysis, err = api.GetReport(args[0])
			}
			if err == client.ErrReportNotReady {
				return fmt.Errorf("report not ready yet, check: githunter status %s", args[0])
			}
			if err != nil {
				return err
			}
			renderAnalysis(analysis)
			return nil
		},
	}
	cmd.Flags().BoolVar(&latest, "latest", false, "treat the argument as a username and fetch the latest cached report")
	return cmd
}

func renderAnalysis(a *domain.Analysis) {
	rep := &a.Report

	fmt.Printf("\n%s", rep.User.Login)
	if rep.User.Name != "" {
		fmt.Printf(" (%s)", rep.User.Name)
	}
	fmt.Printf(" — %d public repos, %d followers\n\n", rep.User.PublicRepos, rep.User.Followers)

	statsTable := tablewriter.NewWriter(os.Stdout)
	statsTable.SetHeader([]string{"Metric", "Value"})
	statsTable.Append([]string{"Stars", strconv.Itoa(rep.Stats.Stars)})
	statsTable.Append([]string{"Watchers", strconv.Itoa(rep.Stats.Watchers)})
	statsTable.Append([]string{"Forked repos", strconv.Itoa(rep.Stats.ForkCount)})
	statsTable.Append([]string{"Forks received", strconv.Itoa(rep.Stats.UserForkedProjects)})
	statsTable.Append([]string{"Total size (KB)", strconv.Itoa(rep.Stats.RepoSize)})
	if rep.Stats.Commits > 0 || rep.Stats.Pulls > 0 {
		statsTable.Append([]string{"Recent commits", strconv.Itoa(rep.Stats.Commits)})
		statsTable.Append([]string{"Recent pulls", strconv.Itoa(rep.Stats.Pulls)})
	}
	statsTable.Render()

	if len(rep.Stats.Language) > 0 {
		fmt.Println("\nLanguages:")
		langTable := tablewriter.NewWriter(os.Stdout)
		langTable.SetHeader([]string{"Language", "Repos"})
		for _, lang := range sortedLanguages(rep.Stats.Language) {
			langTable.Append([]string{lang, strconv.Itoa(rep.Stats.Language[lang])})
		}
		langTable.Render()
	}

	if len(rep.Repos) > 0 {
		fmt.Println("\nRepositories:")
		repoTable := tablewriter.NewWriter(os.Stdout)
		repoTable.SetHeader([]string{"Name", "Language", "Stars", "Forks", "Pushed"})
		limit := len(rep.Repos)
		if limit > 15 {
			limit = 15
		}
		for _, r := range rep.Repos[:limit] {
			repoTable.Append([]string{
				r.Name,
				r.Language,
				strconv.Itoa(r.StargazersCount),
				strconv.Itoa(r.ForksCount),
				r.PushedAt.Format("2006-01-02"),
			})
		}
		repoTable.Render()
	}

	if a.Score != nil {
		renderScore(a.Score)
	}
}

func renderScore(s *domain.ScoreResult) {
	fmt.Println("\nAI Assessment:")
	scoreTable := tablewriter.NewWriter(os.Stdout)
	scoreTable.SetHeader([]string{"Dimension", "Score"})
	keys := make([]string, 0, len(s.Scores))
	for k := range s.Scores {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		scoreTable.Append([]string{k, strconv.Itoa(s.Scores[k])})
	}
	scoreTable.Render()

	for _, line := range s.StrengthsWeaknesses.Strengths {
		fmt.Printf("  + %s\n", line)
	}
	for _, line := range s.StrengthsWeaknesses.Weaknesses {
		fmt.Printf("  - %s\n", line)
	}
	if s.HiringRecommendation != "" {
		fmt.Printf("\nRecommendation: %s\n", s.HiringRecommendation)
	}
}

// sortedLanguages orders languages by descending repo count, then name
func sortedLanguages(langs map[string]int) []string {
	keys := make([]string, 0, len(langs))
	for k := range langs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if langs[keys[i]] != langs[keys[j]] {
			return langs[keys[i]] > langs[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}
