package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zen-systems/repoflow/pkg/adapter"
	"github.com/zen-systems/repoflow/pkg/config"
	"github.com/zen-systems/repoflow/pkg/gitops"
	"github.com/zen-systems/repoflow/pkg/notify"
	"github.com/zen-systems/repoflow/pkg/sandbox"
	"github.com/zen-systems/repoflow/pkg/steps"
)

var (
	adapterFlag string
	modelFlag   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "repoflow",
		Short: "Repository analysis pipeline with structured LLM output",
		Long: `Repoflow clones a repository into a sandbox, runs concurrent
	structure, quality, and build analyses through an LLM, synthesizes the
	results into a context document, and publishes it as a pull request.`,
	}

	rootCmd.PersistentFlags().StringVar(&adapterFlag, "adapter", "", "adapter to use (anthropic, openai, google, mock)")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "model identifier")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(validateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	var projectID string
	var repoURL string
	var repoPath string
	var evidenceDir string
	var maxAttempts int
	var maxSteps int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Analyze a repository and publish the context",
		Long: `Runs the full analysis pipeline against a repository.

	Use --repo with a GitHub URL to clone and publish a pull request, or
	--path with a local checkout for an offline analysis (no publication).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project is required")
			}
			if repoURL == "" && repoPath == "" {
				return fmt.Errorf("--repo or --path is required")
			}

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, model, err := selectAdapter(cfg)
			if err != nil {
				return err
			}

			engine, err := sandbox.NewEngine(nil, logger)
			if err != nil {
				return err
			}
			git, err := gitops.NewClient(cfg.GitHubToken, logger)
			if err != nil {
				return err
			}

			var notifier notify.Notifier = notify.NopNotifier{}
			if cfg.DashboardURL != "" {
				notifier = notify.NewHTTPNotifier(cfg.DashboardURL, logger)
			}

			out, err := steps.Run(cmd.Context(), &steps.Deps{
				Agent:        a,
				Model:        model,
				MaxAttempts:  maxAttempts,
				MaxSteps:     maxSteps,
				Sandbox:      engine,
				Git:          git,
				SandboxImage: cfg.SandboxImage,
				EvidenceDir:  evidenceDir,
				Logger:       logger,
				Notifier:     notifier,
			}, steps.RunInput{
				ProjectID:      projectID,
				RepositoryURL:  repoURL,
				RepositoryPath: repoPath,
			})
			if err != nil {
				return err
			}

			if jsonOut {
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
			} else {
				fmt.Fprintf(os.Stderr, "Run complete. Success: %v\n", out.Success)
				fmt.Fprintf(os.Stderr, "Result: %s\n", out.Result)
				if out.PRURL != "" {
					fmt.Fprintf(os.Stderr, "Pull request: %s\n", out.PRURL)
				}
			}

			if !out.Success {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "project identifier (required)")
	cmd.Flags().StringVar(&repoURL, "repo", "", "repository URL to clone and analyze")
	cmd.Flags().StringVar(&repoPath, "path", "", "local repository path for offline analysis")
	cmd.Flags().StringVar(&evidenceDir, "out", "", "evidence output base directory")
	cmd.Flags().IntVar(&maxAttempts, "retries", 3, "attempt budget per analysis step")
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "provider internal tool-loop budget (0 = provider default)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the exit record as JSON")

	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List available adapters and their models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")

			for _, name := range []string{"anthropic", "openai", "google", "mock"} {
				a, err := createAdapter(cfg, name)
				status := "ready"
				models := ""
				if err != nil {
					status = "no key"
				} else {
					models = formatList(a.Models())
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, models, status)
			}

			return w.Flush()
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the pipeline composition and its step contracts",
		Long:  "Builds the pipeline without executing it and reports the composed steps.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Composition checking needs no git or docker binaries; inert
			// collaborators stand in for the real engines.
			p, err := steps.Build(&steps.Deps{
				Agent:   adapter.NewMockAdapter(),
				Model:   "mock-1",
				Sandbox: inertSandbox{},
				Git:     inertGit{},
			})
			if err != nil {
				return err
			}

			fmt.Println("Pipeline composition is valid.")
			for _, id := range p.Steps() {
				fmt.Printf("  %s\n", id)
			}
			return nil
		},
	}
}

type inertSandbox struct{}

func (inertSandbox) Start(ctx context.Context, image, repoPath string) (*sandbox.Container, error) {
	return &sandbox.Container{ID: "inert", Image: image}, nil
}

func (inertSandbox) Exec(ctx context.Context, c *sandbox.Container, argv ...string) (string, error) {
	return "", nil
}

func (inertSandbox) Remove(ctx context.Context, c *sandbox.Container) {}

type inertGit struct{}

func (inertGit) Clone(ctx context.Context, url, dest string) error { return nil }

func (inertGit) CommitAndPush(ctx context.Context, dir, branch, message string) error { return nil }

func (inertGit) OpenPullRequest(ctx context.Context, coords gitops.Coordinates, branch, title, body string) (string, error) {
	return "", nil
}

func selectAdapter(cfg *config.Config) (adapter.Adapter, string, error) {
	name := adapterFlag
	if name == "" {
		switch {
		case cfg.HasAdapter("anthropic"):
			name = "anthropic"
		case cfg.HasAdapter("openai"):
			name = "openai"
		case cfg.HasAdapter("google"):
			name = "google"
		default:
			return nil, "", fmt.Errorf("no adapter available: configure an API key or pass --adapter mock")
		}
	}

	a, err := createAdapter(cfg, name)
	if err != nil {
		return nil, "", err
	}

	model := modelFlag
	if model == "" {
		models := a.Models()
		if len(models) == 0 {
			return nil, "", fmt.Errorf("adapter %q exposes no models; pass --model", name)
		}
		model = models[0]
	}
	return a, model, nil
}

func createAdapter(cfg *config.Config, name string) (adapter.Adapter, error) {
	switch name {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not configured")
		}
		return adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is not configured")
		}
		return adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
	case "google":
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("GOOGLE_API_KEY is not configured")
		}
		return adapter.NewGoogleAdapter(cfg.GoogleAPIKey)
	case "mock":
		return adapter.NewMockAdapter(), nil
	default:
		return nil, fmt.Errorf("unknown adapter %q", name)
	}
}

func formatList(items []string) string {
	if len(items) == 0 {
		return ""
	}
	result := items[0]
	for i := 1; i < len(items); i++ {
		result += ", " + items[i]
	}
	return result
}
