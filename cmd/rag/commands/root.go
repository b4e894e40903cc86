// Package commands implements the rag command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"ragchat/internal/app"
	"ragchat/internal/config"
	"ragchat/internal/domain"
	"ragchat/internal/logger"
	"ragchat/internal/service"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath string
	verbose    bool
}

// runtime is what a subcommand needs after setup.
type runtime struct {
	cfg *config.AppConfig
	log *slog.Logger
	svc *service.RAGService
}

// NewRootCmd creates the rag command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Ask questions about your documents",
		Long: `rag indexes local text, Markdown and PDF files and answers questions
about them. Answers are written by a language model when one is configured
(OPENAI_API_KEY or ANTHROPIC_API_KEY) and are otherwise the most relevant
passages from the documents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (.yaml or .toml; default ./config.yaml or ~/.config/rag/config.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(
		newIndexCmd(opts),
		newAskCmd(opts),
		newChatCmd(opts),
		newCompareCmd(opts),
		newStatusCmd(opts),
		newMCPCmd(opts),
		NewVersionCmd(),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// setup loads .env and the config, then assembles the service. mutate may
// adjust the config before the service is built.
func (o *globalOptions) setup(cmd *cobra.Command, mutate func(*config.AppConfig)) (*runtime, error) {
	_ = godotenv.Load()

	var cfg *config.AppConfig
	var err error
	if o.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(o.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if mutate != nil {
		mutate(cfg)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	log := logger.New(logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cmd.ErrOrStderr(),
		Verbose: o.verbose,
	})
	svc, err := app.NewService(cfg, log)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, log: log, svc: svc}, nil
}

// restoreOrBuild indexes files when given, otherwise reloads the last snapshot.
func (r *runtime) restoreOrBuild(ctx context.Context, files []string) (string, error) {
	if len(files) > 0 {
		stats, err := r.svc.BuildIndex(ctx, files)
		if err != nil {
			return "", r.userError(err)
		}
		return stats.Summary, nil
	}
	if _, err := r.svc.Restore(ctx); err != nil {
		r.log.Warn("snapshot not restored", "error", err)
	}
	return r.svc.Status().Summary, nil
}

// watchPaths is what a watcher should follow: the command-line paths when
// given, so new files in those directories are picked up, otherwise the
// files of the restored index.
func (r *runtime) watchPaths(args []string) []string {
	if len(args) > 0 {
		return args
	}
	return r.svc.Status().Files
}

// userError logs err in full and returns an error carrying its short
// user-facing message.
func (r *runtime) userError(err error) error {
	r.log.Debug("command failed", "error", err)
	return &cliError{msg: domain.UserMessage(err), err: err}
}

type cliError struct {
	msg string
	err error
}

func (e *cliError) Error() string { return e.msg }
func (e *cliError) Unwrap() error { return e.err }

var errNoInput = errors.New("no input files given")

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
