package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"votematch/config"
	"votematch/llm"
	"votematch/logger"
	"votematch/services"

	"github.com/spf13/cobra"
)

type paraphraseOptions struct {
	configFile string
	input      string
	output     string
	provider   string
	model      string
	maxRetries int
}

func newRootCmd() *cobra.Command {
	opts := &paraphraseOptions{}
	cmd := &cobra.Command{
		Use:   "paraphrase",
		Short: "Turn raw candidate statements into quiz opinions",
		Long: `paraphrase reads a CSV of candidate statements (columns "id" and "text"),
asks a language model to classify each one as an opinion, fact or proposal and to
rewrite it as a concise, assertive opinion, and writes
id,original_text,classification,transformed_text.

Rows the model cannot handle are written with classification ERROR.

Example:
  paraphrase --input statements.csv --output opinions.csv
  paraphrase --input statements.csv --output opinions.csv --provider gemini`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runParaphrase(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.configFile, "config", "./config/config.yml", "path to the YAML config file")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input CSV with id,text columns")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output CSV path")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "llm provider: anthropic, gemini or openai (default from config)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model name (default from config)")
	cmd.Flags().IntVar(&opts.maxRetries, "max-retries", 0, "give up on a row after this many rate-limited attempts (0 retries until interrupted)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runParaphrase(ctx context.Context, opts *paraphraseOptions) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(opts.configFile)
	if err != nil {
		return err
	}
	if opts.provider != "" {
		cfg.LLM.Provider = opts.provider
	}
	if opts.model != "" {
		cfg.LLM.Model = opts.model
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.HashSalt)
	if err != nil {
		return err
	}
	defer log.Sync()

	model, err := llm.New(ctx, cfg.LLM.Provider, llm.Options{
		APIKey: cfg.APIKey(),
		Model:  cfg.LLM.Model,
	})
	if err != nil {
		return err
	}

	in, err := os.Open(opts.input)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer out.Close()

	p := services.NewParaphraser(model, services.ParaphraserConfig{
		RetryWait:         cfg.LLM.RetryWait,
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		MaxRetries:        opts.maxRetries,
	}, nil, log)

	report, err := p.ProcessCSV(ctx, in, out)
	if err != nil {
		return err
	}
	log.Info("results saved", "output", opts.output, "rows", report.Rows, "failed", report.Failed)
	return nil
}
