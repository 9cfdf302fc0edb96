// Package main provides the semdigest binary entry point.
// Semdigest runs a configured source → transformers → formatter →
// destination pipeline, indexing every processed article.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	// Register LLM providers via init()
	_ "github.com/c360studio/semdigest/llm/providers"

	"github.com/c360studio/semdigest/components"
	"github.com/c360studio/semdigest/config"
	"github.com/c360studio/semdigest/pipeline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "semdigest"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func rootCmd() *cobra.Command {
	var g globalFlags

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Article digest pipeline",
		Long: `Semdigest fetches articles from a source, enriches them through a chain
of transformers (content fetch, LLM summaries, tags), renders a digest and
delivers it to a destination. Every processed article is indexed.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "Config file path (YAML); default: nearest "+config.ProjectConfigFile)
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "Log format (text, json)")

	cmd.AddCommand(runCmd(&g), validateCmd(&g), initCmd(&g), componentsCmd(), versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func runCmd(g *globalFlags) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once, or on every config change with --watch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			opts.configPath = g.configPath
			opts.out = cmd.OutOrStdout()
			opts.progressOut = cmd.ErrOrStderr()

			if opts.watch {
				return watch(cmd.Context(), opts, logger)
			}
			_, err = runOnce(cmd.Context(), opts, logger)
			return err
		},
	}

	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Worker count (overrides runtime.workers and MAX_WORKER_THREADS)")
	cmd.Flags().StringVar(&opts.progress, "progress", "bar", "Progress display (bar, log, none)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Re-run whenever the config file changes")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Use an in-memory index and print the payload instead of delivering it")
	return cmd
}

func validateCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config and resolve every pipeline component type",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			cfg, err := config.NewLoader(logger).Load(g.configPath)
			if err != nil {
				return err
			}
			reg, err := components.NewRegistry()
			if err != nil {
				return err
			}
			if err := pipeline.Resolve(&cfg.Pipeline, reg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s → %d transformer(s) → %s → %s\n",
				cfg.Pipeline.Source.Type, len(cfg.Pipeline.Transformers),
				cfg.Pipeline.Formatter.Type, cfg.Pipeline.Destination.Type)
			return nil
		},
	}
}

func componentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "components",
		Short: "List registered component types",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := components.NewRegistry()
			if err != nil {
				return err
			}
			writeComponents(cmd.OutOrStdout(), reg)
			return nil
		},
	}
}

func writeComponents(w io.Writer, reg *pipeline.Registry) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Kind", "Type", "Description"})
	for _, kind := range pipeline.Kinds {
		for _, name := range reg.Names(kind) {
			r, _ := reg.Lookup(kind, name)
			t.AppendRow(table.Row{kind, name, r.Description})
		}
	}
	t.Render()
}

func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}
