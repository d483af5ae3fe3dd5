package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/local/llmarxiv/internal/arxiv"
	cfgpkg "github.com/local/llmarxiv/internal/config"
	"github.com/local/llmarxiv/internal/loader"
	"github.com/local/llmarxiv/internal/statuscheck"
	"github.com/local/llmarxiv/internal/store"
)

func searchCommand(cfg cfgpkg.Config) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search arXiv by keywords",
		ArgsUsage: "<query...>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "max", Aliases: []string{"n"}, Usage: "number of results", Value: arxiv.DefaultMaxResults},
			&cli.StringFlag{Name: "sort", Usage: "relevance, updated or submitted", Value: "relevance"},
			&cli.StringFlag{Name: "order", Usage: "descending or ascending", Value: "descending"},
			&cli.BoolFlag{Name: "details", Aliases: []string{"d"}, Usage: "show authors, dates and abstract"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			terms := strings.Join(cmd.Args().Slice(), " ")
			if strings.TrimSpace(terms) == "" {
				return errors.New("missing search query")
			}
			sortBy, err := arxiv.ParseSortBy(cmd.String("sort"))
			if err != nil {
				return err
			}
			order, err := arxiv.ParseSortOrder(cmd.String("order"))
			if err != nil {
				return err
			}
			papers, err := newArxivClient(cfg).Search(ctx, arxiv.Query{
				Terms:      terms,
				MaxResults: cmd.Int("max"),
				SortBy:     sortBy,
				SortOrder:  order,
			})
			if err != nil {
				return fmt.Errorf("arXiv search failed: %w", err)
			}
			if len(papers) == 0 {
				fmt.Println("No results.")
				return nil
			}
			for i := range papers {
				printPaper(&papers[i], cmd.Bool("details"))
			}
			return nil
		},
	}
}

func printPaper(p *arxiv.Paper, details bool) {
	fmt.Printf("%s  %s\n", p.ID, p.Title)
	if !details {
		return
	}
	fmt.Printf("  Authors:   %s\n", strings.Join(p.Authors, ", "))
	if !p.Published.IsZero() {
		fmt.Printf("  Published: %s\n", p.Published.Format("2006-01-02"))
	}
	if len(p.Categories) > 0 {
		fmt.Printf("  Categories: %s\n", strings.Join(p.Categories, ", "))
	}
	fmt.Printf("  URL:       %s\n", p.AbstractURL())
	if p.Summary != "" {
		fmt.Printf("  Abstract:  %s\n", p.Summary)
	}
	fmt.Println()
}

func doctorCommand(cfg cfgpkg.Config) *cli.Command {
	return &cli.Command{
		Name:  "doctor",
		Usage: "Check connectivity to arXiv, Redis, S3 and the model providers",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "print the summary as JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts := statuscheck.Options{
				OpenAIKey:    cfg.LLM.OpenAIKey,
				AnthropicKey: cfg.LLM.AnthropicKey,
				ArxivURL:     doctorArxivURL(cfg),
			}
			if cfg.Cache.RedisURL != "" {
				client, err := store.Connect(ctx, cfg.Cache.RedisURL)
				if err != nil {
					opts.Redis = statuscheck.PingFunc(func(context.Context) error { return err })
				} else {
					defer client.Close()
					opts.Redis = statuscheck.PingFunc(func(ctx context.Context) error { return client.Ping(ctx).Err() })
				}
			}
			if cfg.Export.Bucket != "" {
				exp, err := newExporter(ctx, cfg)
				if err != nil {
					opts.Bucket = statuscheck.PingFunc(func(context.Context) error { return err })
				} else {
					opts.Bucket = exp
				}
			}

			summary := statuscheck.New(opts).Summary(ctx)
			if cmd.Bool("json") {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return err
				}
			} else {
				for _, e := range summary.Entries() {
					state := "ok"
					switch {
					case e.Status.Skipped:
						state = "skipped"
					case !e.Status.OK:
						state = "FAIL"
					}
					fmt.Printf("%-10s %-8s %s\n", e.Name, state, e.Status.Message)
				}
			}
			if !summary.Ready() {
				return errors.New("one or more configured subsystems are not ready")
			}
			return nil
		},
	}
}

func doctorArxivURL(cfg cfgpkg.Config) string {
	if cfg.Arxiv.APIURL == "" || cfg.Arxiv.APIURL == arxiv.DefaultBaseURL {
		return ""
	}
	return cfg.Arxiv.APIURL + "?search_query=all:electron&max_results=1"
}

func fetchExportCommand(cfg cfgpkg.Config) *cli.Command {
	return &cli.Command{
		Name:      "fetch-export",
		Usage:     "Download an exported object, decrypting it when needed",
		ArgsUsage: "<key>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to `FILE` instead of stdout"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			key := cmd.Args().First()
			if key == "" {
				return errors.New("missing object key")
			}
			exp, err := newExporter(ctx, cfg)
			if err != nil {
				return err
			}
			data, err := exp.Fetch(ctx, key)
			if err != nil {
				return err
			}
			if out := cmd.String("output"); out != "" {
				return os.WriteFile(out, data, 0o644)
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}

func cleanupCommand(cfg cfgpkg.Config) *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Remove stale llm-arxiv temp directories",
		Flags: []cli.Flag{
			&cli.DurationFlag{Name: "older-than", Usage: "minimum age of a directory to remove", Value: cfg.Temp.StaleAge},
			&cli.StringFlag{Name: "root", Usage: "directory to sweep (default: system temp dir)"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			n, err := loader.SweepStale(cmd.String("root"), cmd.Duration("older-than"))
			if err != nil {
				return err
			}
			fmt.Printf("removed %d stale director%s\n", n, plural(n, "y", "ies"))
			return nil
		},
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
