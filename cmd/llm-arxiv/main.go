package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	cfgpkg "github.com/local/llmarxiv/internal/config"
	"github.com/local/llmarxiv/internal/loader"
	logpkg "github.com/local/llmarxiv/internal/logger"
	"github.com/local/llmarxiv/internal/metrics"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	cfg, err := cfgpkg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	if err := logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer logpkg.Close()

	metrics.Init()
	defer func() {
		if err := metrics.Flush(cfg.Metrics.Textfile, cfg.Metrics.PushURL, cfg.Metrics.Job); err != nil {
			log.Warn().Err(err).Msg("failed to flush metrics")
		}
	}()

	if cfg.Temp.SweepOnStart {
		if n, err := loader.SweepStale("", cfg.Temp.StaleAge); err != nil {
			log.Warn().Err(err).Msg("temp sweep failed")
		} else if n > 0 {
			log.Info().Int("removed", n).Msg("removed stale temp dirs")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(cfg).Run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func newApp(cfg cfgpkg.Config) *cli.Command {
	return &cli.Command{
		Name:  "llm-arxiv",
		Usage: "Load arXiv papers as Markdown plus images and prompt a model with them",
		Commands: []*cli.Command{
			paperCommand(cfg),
			searchCommand(cfg),
			doctorCommand(cfg),
			fetchExportCommand(cfg),
			cleanupCommand(cfg),
		},
	}
}
