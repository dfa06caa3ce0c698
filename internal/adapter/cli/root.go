// Package cli wires the cobra command surface. All real work happens in the
// injected runner so commands stay thin and testable.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackalby/pr-review-bot/internal/adapter/github"
	"github.com/jackalby/pr-review-bot/internal/usecase/review"
)

// ErrVersionRequested indicates the user requested the CLI version and no
// further work should be done.
var ErrVersionRequested = errors.New("version requested")

// Runner executes one review run.
type Runner interface {
	Run(ctx context.Context, req review.RunRequest) (review.RunReport, error)
}

// EventResolver loads the triggering event, normally from
// GITHUB_EVENT_PATH. It is injected so tests can run without a workflow
// environment.
type EventResolver func() (github.Event, error)

// Arguments encapsulates IO writers injected from the host process.
type Arguments struct {
	OutWriter io.Writer
	ErrWriter io.Writer
}

// Dependencies captures the collaborators for the CLI.
type Dependencies struct {
	Runner       Runner
	ResolveEvent EventResolver
	Args         Arguments
	Version      string
}

// NewRootCommand constructs the root cobra command.
func NewRootCommand(deps Dependencies) *cobra.Command {
	versionString := deps.Version
	if versionString == "" {
		versionString = "v0.0.0"
	}

	root := &cobra.Command{
		Use:   "prb",
		Short: "Automated pull request reviewer",
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	outWriter := deps.Args.OutWriter
	if outWriter == nil {
		outWriter = os.Stdout
	}
	errWriter := deps.Args.ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	root.SetOut(outWriter)
	root.SetErr(errWriter)

	root.AddCommand(reviewCommand(deps.Runner, deps.ResolveEvent))

	var showVersion bool
	root.PersistentFlags().BoolVarP(&showVersion, "version", "v", false, "Show version and exit")
	versionHandler := func(cmd *cobra.Command, args []string) error {
		if showVersion {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), versionString)
			return ErrVersionRequested
		}
		return nil
	}
	root.PersistentPreRunE = versionHandler
	root.RunE = func(cmd *cobra.Command, args []string) error {
		if err := versionHandler(cmd, args); err != nil {
			return err
		}
		return cmd.Help()
	}

	return root
}

func reviewCommand(runner Runner, resolveEvent EventResolver) *cobra.Command {
	var (
		repo   string
		number int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review a pull request and post the comments",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := buildRequest(repo, number, resolveEvent)
			if err != nil {
				return err
			}
			req.DryRun = dryRun

			report, err := runner.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			switch {
			case report.Skipped:
				fmt.Fprintf(cmd.OutOrStdout(), "skipped: %s\n", report.SkipNote)
			case dryRun:
				printDryRun(cmd.OutOrStdout(), report)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d comment(s) posted\n", report.Status, report.Posted)
			}

			if report.FailedChunks > 0 || report.FailedBatches > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d chunk(s) and %d batch(es) failed\n",
					report.FailedChunks, report.FailedBatches)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "Repository in owner/name form (defaults to the workflow event)")
	cmd.Flags().IntVar(&number, "pr", 0, "Pull request number (defaults to the workflow event)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Review without posting comments")

	return cmd
}

// buildRequest prefers explicit flags; anything missing comes from the
// workflow event payload.
func buildRequest(repo string, number int, resolveEvent EventResolver) (review.RunRequest, error) {
	if repo != "" && number > 0 {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok || owner == "" || name == "" {
			return review.RunRequest{}, fmt.Errorf("--repo must be in owner/name form, got %q", repo)
		}
		return review.RunRequest{Owner: owner, Repo: name, Number: number}, nil
	}

	if resolveEvent == nil {
		return review.RunRequest{}, fmt.Errorf("--repo and --pr are required outside a workflow run")
	}
	event, err := resolveEvent()
	if err != nil {
		return review.RunRequest{}, fmt.Errorf("resolve workflow event: %w", err)
	}
	return review.RunRequest{
		Owner:       event.Owner,
		Repo:        event.Repo,
		Number:      event.Number,
		CommentBody: event.CommentBody,
		FromComment: event.CommentBody != "",
	}, nil
}

func printDryRun(w io.Writer, report review.RunReport) {
	fmt.Fprintf(w, "dry run: %d comment(s) would be posted\n", len(report.Comments))
	for _, c := range report.Comments {
		fmt.Fprintf(w, "  %s:%d [%s] %s\n", c.File, c.Line, c.Severity, c.Message)
	}
}
