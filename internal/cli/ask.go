package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/qwikask/qwikask/internal/llm"
	"github.com/qwikask/qwikask/internal/service"
	"github.com/qwikask/qwikask/internal/settings"
)

type askOptions struct {
	render       bool
	copy         bool
	provider     string
	model        string
	conversation string
}

func newAskCommand(e *env) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "ask a question and stream the answer",
		Long: `Ask a question with the configured provider. The answer streams to stdout
and the exchange is saved to history like any launcher conversation.`,
		Example: `  $ qwikask ask "What is 2+2?"
  $ qwikask ask --render --copy "Explain Go channels"
  $ qwikask ask --provider anthropic --model claude-3-5-haiku-20241022 "Hi"
  $ qwikask ask --conversation 0190b5f6-... "And in Rust?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), e, opts, strings.Join(args, " "), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&opts.render, "render", false, "render the answer as markdown once complete")
	cmd.Flags().BoolVar(&opts.copy, "copy", false, "copy the answer to the clipboard")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "provider for this question only (gemini, openai, anthropic, custom)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model for this question only")
	cmd.Flags().StringVar(&opts.conversation, "conversation", "", "continue a stored conversation")
	return cmd
}

// overrideSettings applies per-question flags on top of the stored settings.
type overrideSettings struct {
	source   service.SettingsSource
	provider llm.Provider
	model    string
}

func (o overrideSettings) Get() settings.AppSettings {
	s := o.source.Get()
	if o.provider != "" && o.provider != s.LLM.Provider {
		s.LLM.Provider = o.provider
		// The stored model belongs to the stored provider.
		s.LLM.Model = ""
	}
	if o.model != "" {
		s.LLM.Model = o.model
	}
	return s
}

func runAsk(ctx context.Context, e *env, opts *askOptions, question string, out io.Writer) error {
	var provider llm.Provider
	if opts.provider != "" {
		p, err := llm.ParseProvider(opts.provider)
		if err != nil {
			return err
		}
		provider = p
	}

	a, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdown(closeCtx, a)
	}()

	if opts.conversation != "" {
		if _, err := a.Conversations.Open(ctx, opts.conversation); err != nil {
			return fmt.Errorf("failed to open conversation: %w", err)
		}
	}

	chat := service.NewChatService(a.Session, overrideSettings{
		source:   a.Settings,
		provider: provider,
		model:    opts.model,
	}, a.Logger)

	var onDelta service.TokenCallback
	if !opts.render {
		onDelta = func(delta string) { fmt.Fprint(out, delta) }
	}

	reply, err := chat.Ask(ctx, question, onDelta)
	if err != nil {
		if reply != "" && !opts.render {
			fmt.Fprintln(out)
		}
		return err
	}

	if opts.render {
		if isStdoutTTY() {
			fmt.Fprint(out, renderMarkdown(reply))
		} else {
			fmt.Fprintln(out, reply)
		}
	} else {
		fmt.Fprintln(out)
	}

	if opts.copy && !chat.CopyLastResponse() {
		return fmt.Errorf("failed to copy the answer to the clipboard")
	}
	return nil
}
