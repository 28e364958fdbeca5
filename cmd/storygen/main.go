package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"storygen/internal/cache"
	"storygen/internal/config"
	"storygen/internal/github"
	"storygen/internal/pipeline"
	"storygen/internal/render"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed)
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		failure.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "storygen",
	Short:         "Generate user stories from GitHub repositories",
	Long:          "Storygen analyzes a GitHub repository with an AI agent and produces user stories, architecture deep dives, and test plans.",
	Version:       version,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			if configPath == "" {
				// No config anywhere: fall back to built-in defaults.
				cfg = config.Default()
				return nil
			}
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(quickCmd)
	rootCmd.AddCommand(testsCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(ratelimitCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("storygen", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/storygen/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set your GitHub token env var and agent settings.")
		return nil
	},
}

// --- analyze command ---

var (
	focusArea     string
	maxStories    int
	outputFormat  string
	outputFile    string
	generateTests bool
	noResearch    bool
	noEnrich      bool
	dryRun        bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [owner/repo]",
	Short: "Run the full pipeline: fetch -> research -> analyze -> enrich -> tests -> save",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(args[0])
		if err != nil {
			return err
		}
		opts.GenerateTests = generateTests
		opts.SkipResearch = noResearch
		opts.SkipEnrich = noEnrich
		return runPipeline(opts, dryRun)
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&focusArea, "focus", "", "Focus area for story generation (e.g. security, performance)")
	analyzeCmd.Flags().IntVar(&maxStories, "max-stories", 0, "Maximum number of user stories (0 uses the config default)")
	analyzeCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "Output format: text, json, markdown, html")
	analyzeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default derives from the repository name)")
	analyzeCmd.Flags().BoolVar(&generateTests, "tests", false, "Also generate a test plan")
	analyzeCmd.Flags().BoolVar(&noResearch, "no-research", false, "Skip web research")
	analyzeCmd.Flags().BoolVar(&noEnrich, "no-enrich", false, "Skip the architecture and API deep dive")
	analyzeCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
}

// --- quick command ---

var quickCmd = &cobra.Command{
	Use:   "quick [owner/repo]",
	Short: "Fast analysis: stories only, no research or deep dive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(args[0])
		if err != nil {
			return err
		}
		opts.SkipResearch = true
		opts.SkipEnrich = true
		return runPipeline(opts, false)
	},
}

func init() {
	quickCmd.Flags().StringVar(&focusArea, "focus", "", "Focus area for story generation")
	quickCmd.Flags().IntVar(&maxStories, "max-stories", 0, "Maximum number of user stories")
	quickCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "Output format: text, json, markdown, html")
	quickCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path")
}

// --- tests command ---

var testsCmd = &cobra.Command{
	Use:   "tests [owner/repo]",
	Short: "Generate user stories plus a full test plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := buildOptions(args[0])
		if err != nil {
			return err
		}
		opts.GenerateTests = true
		opts.SkipEnrich = true
		return runPipeline(opts, false)
	},
}

func init() {
	testsCmd.Flags().StringVar(&focusArea, "focus", "", "Focus area for story and test generation")
	testsCmd.Flags().IntVar(&maxStories, "max-stories", 0, "Maximum number of user stories")
	testsCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "Output format: text, json, markdown, html")
	testsCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path")
}

// --- info command ---

var infoCmd = &cobra.Command{
	Use:   "info [owner/repo]",
	Short: "Show repository metadata without running the agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, name, err := github.SplitRepo(args[0])
		if err != nil {
			return err
		}

		client := newGitHubClient()
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GitHubTimeout())
		defer cancel()

		repo, err := client.Repository(ctx, owner, name)
		if err != nil {
			return err
		}

		heading.Printf("%s\n", repo.FullName)
		if repo.Description != "" {
			fmt.Printf("  %s\n", repo.Description)
		}
		fmt.Println()
		fmt.Printf("  Language: %s\n", orDash(repo.Language))
		fmt.Printf("  Stars: %d\n", repo.Stars)
		fmt.Printf("  Forks: %d\n", repo.Forks)
		fmt.Printf("  License: %s\n", orDash(repo.License))
		fmt.Printf("  Default branch: %s\n", repo.DefaultBranch)
		fmt.Printf("  Created: %s\n", repo.CreatedAt.Format("2006-01-02"))
		fmt.Printf("  Updated: %s\n", repo.UpdatedAt.Format("2006-01-02"))
		if len(repo.Topics) > 0 {
			fmt.Printf("  Topics: %v\n", repo.Topics)
		}
		if repo.Readme != "" {
			fmt.Printf("  README: %d bytes\n", len(repo.Readme))
		}
		return nil
	},
}

// --- ratelimit command ---

var ratelimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Show GitHub API rate limit status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newGitHubClient()
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GitHubTimeout())
		defer cancel()

		limits, err := client.RateLimits(ctx)
		if err != nil {
			return err
		}

		printLimit := func(name string, l github.RateLimit) {
			reset := l.Reset.Format("15:04:05")
			line := fmt.Sprintf("  %s: %d/%d remaining (resets %s)\n", name, l.Remaining, l.Limit, reset)
			if l.Remaining == 0 {
				failure.Print(line)
			} else if l.Remaining < l.Limit/10 {
				warning.Print(line)
			} else {
				fmt.Print(line)
			}
		}

		fmt.Println("GitHub API rate limits:")
		printLimit("core", limits.Core)
		printLimit("search", limits.Search)

		if os.Getenv(cfg.GitHub.TokenEnv) == "" {
			warning.Printf("\nNo token in $%s; unauthenticated limits are much lower.\n", cfg.GitHub.TokenEnv)
		}
		return nil
	},
}

// --- shared helpers ---

func buildOptions(repoRef string) (pipeline.Options, error) {
	owner, name, err := github.SplitRepo(repoRef)
	if err != nil {
		return pipeline.Options{}, err
	}

	formatName := outputFormat
	if formatName == "" {
		formatName = cfg.Output.Format
	}
	format, err := render.ParseFormat(formatName)
	if err != nil {
		return pipeline.Options{}, err
	}

	return pipeline.Options{
		Owner:      owner,
		Name:       name,
		FocusArea:  focusArea,
		MaxStories: maxStories,
		Format:     format,
		OutputPath: outputFile,
	}, nil
}

func runPipeline(opts pipeline.Options, dry bool) error {
	store := openCache()
	if store != nil {
		defer store.Close()
	}

	pipe := pipeline.New(cfg, store)

	var result *pipeline.Result
	if dry {
		result = pipe.DryRun(opts)
	} else {
		heading.Printf("Analyzing %s/%s...\n", opts.Owner, opts.Name)
		result = pipe.Run(context.Background(), opts)
	}

	failed := false
	for i, step := range result.Steps {
		fmt.Printf("\nStep %d/6: %s\n", i+1, step.Name)
		if step.Err != nil {
			failed = true
			failure.Printf("  Error: %v\n", step.Err)
		} else {
			fmt.Printf("  %s\n", step.Summary)
		}
	}
	fmt.Println()

	if failed {
		return fmt.Errorf("pipeline finished with errors")
	}
	if !dry && result.OutputPath != "" {
		success.Printf("Done! Stories saved to %s\n", result.OutputPath)
		if result.TestPlanPath != "" {
			success.Printf("Test plan saved to %s\n", result.TestPlanPath)
		}
	}
	return nil
}

func newGitHubClient() *github.Client {
	token := os.Getenv(cfg.GitHub.TokenEnv)
	return github.NewClient(cfg.GitHub.BaseURL, token, cfg.GitHubTimeout())
}

// openCache opens the repository cache, or returns nil when caching is
// disabled or the database cannot be opened.
func openCache() *cache.Cache {
	if !cfg.GitHub.Cache {
		return nil
	}
	dataDir := cfg.GetDataDir()
	store, err := cache.Open(filepath.Join(dataDir, "storygen.db"))
	if err != nil {
		log.Printf("Repository cache unavailable: %v", err)
		return nil
	}
	return store
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
