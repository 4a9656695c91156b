// Package cli implements the qwikask command line.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qwikask/qwikask/internal/app"
	"github.com/qwikask/qwikask/internal/config"
	"github.com/qwikask/qwikask/pkg/logger"
)

// Version is set at build time.
var Version = "dev"

// env carries state shared by all commands.
type env struct {
	logLevel string
	logFile  bool
}

// config loads the environment configuration with flag overrides applied.
func (e *env) config() *config.Config {
	cfg := config.Load()
	if e.logLevel != "" {
		cfg.LogLevel = e.logLevel
	}
	return cfg
}

func (e *env) logger(cfg *config.Config) (*logger.Logger, error) {
	if !e.logFile {
		return logger.New(cfg.LogLevel)
	}
	return logger.NewWithFile(cfg.LogLevel, cfg.LogFile)
}

// open builds the application for one command run.
func (e *env) open(ctx context.Context) (*app.App, error) {
	cfg := e.config()
	log, err := e.logger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	logger.SetGlobal(log)
	return app.New(ctx, cfg, log)
}

// shutdown lets the title and pending writes land, then closes the app.
func shutdown(ctx context.Context, a *app.App) {
	if err := a.Session.Wait(ctx); err != nil {
		a.Logger.Warn("background work did not finish", zap.Error(err))
	}
	if err := a.Close(ctx); err != nil {
		a.Logger.Error("shutdown incomplete", zap.Error(err))
	}
}

// NewRootCommand builds the qwikask command tree.
func NewRootCommand() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:     "qwikask",
		Short:   "Qwik Ask launcher backend",
		Version: Version,
		Long: `Qwik Ask answers questions with the LLM provider of your choice
(Gemini, OpenAI, Anthropic or any OpenAI-compatible server) and keeps a
local, searchable history of every conversation.`,
		Example: `  # Run the local API for the launcher window
  $ qwikask serve

  # Ask a one-off question and render the answer as markdown
  $ qwikask ask --render "How do I reverse a slice in Go?"

  # Switch to a local OpenAI-compatible server
  $ qwikask settings set llm.base_url http://localhost:11434/v1
  $ qwikask settings set llm.provider custom`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate("qwikask version {{.Version}}\n")

	root.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides QWIKASK_LOG_LEVEL")

	root.AddCommand(
		newServeCommand(e),
		newAskCommand(e),
		newHistoryCommand(e),
		newSettingsCommand(e),
	)
	return root
}

// Execute runs the command line.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}
