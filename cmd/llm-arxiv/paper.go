package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/local/llmarxiv/internal/ai"
	"github.com/local/llmarxiv/internal/arxiv"
	"github.com/local/llmarxiv/internal/assembler"
	cfgpkg "github.com/local/llmarxiv/internal/config"
	"github.com/local/llmarxiv/internal/imaging"
	"github.com/local/llmarxiv/internal/loader"
	logpkg "github.com/local/llmarxiv/internal/logger"
	"github.com/local/llmarxiv/internal/selection"
	"github.com/local/llmarxiv/internal/storage"
	"github.com/local/llmarxiv/internal/store"
)

func paperCommand(cfg cfgpkg.Config) *cli.Command {
	return &cli.Command{
		Name:      "paper",
		Aliases:   []string{"arxiv"},
		Usage:     "Load a paper; print it as Markdown or prompt a model with it",
		ArgsUsage: "<id|url> [prompt...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "include-images",
				Aliases: []string{"i"},
				Usage:   "images to attach: all, G:<ranges> (global indices) or P:<ranges> (pages)",
			},
			&cli.BoolFlag{Name: "resize", Usage: "downscale images so the longer side fits --max-size", Value: cfg.Images.Resize},
			&cli.IntFlag{Name: "max-size", Usage: "bound for --resize in pixels", Value: cfg.Images.MaxSize},
			&cli.StringFlag{Name: "model", Aliases: []string{"m"}, Usage: "model to prompt", Value: cfg.LLM.Model},
			&cli.StringFlag{Name: "system", Aliases: []string{"s"}, Usage: "system prompt"},
			&cli.StringFlag{Name: "save-images", Usage: "write attachments into `DIR`"},
			&cli.BoolFlag{Name: "export", Usage: "export the document to the configured S3 bucket"},
			&cli.BoolFlag{Name: "no-cache", Usage: "skip the metadata cache"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runPaper(ctx, cmd, cfg)
		},
	}
}

func runPaper(ctx context.Context, cmd *cli.Command, cfg cfgpkg.Config) error {
	if cmd.Args().Len() == 0 {
		return errors.New("missing arXiv identifier or URL")
	}
	argument := cmd.Args().First()
	prompt := strings.Join(cmd.Args().Tail(), " ")

	criteria, err := includeCriteria(cmd, cfg)
	if err != nil {
		return err
	}
	if err := checkMaxSize(cmd.Int("max-size")); err != nil {
		return err
	}

	deps := loader.Deps{
		Source: newArxivClient(cfg),
		Logger: logpkg.Get(),
	}
	if cfg.Cache.Enabled && !cmd.Bool("no-cache") {
		client, err := store.Connect(ctx, cfg.Cache.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis unavailable, cache disabled")
		} else {
			defer client.Close()
			deps.Cache = store.NewPaperCache(client, cfg.Cache.TTL)
			deps.Index = store.NewExportIndex(client, 0)
		}
	}
	if cmd.Bool("export") {
		exp, err := newExporter(ctx, cfg)
		if err != nil {
			return err
		}
		deps.Exporter = exp
	}

	res, err := loader.New(deps).Load(ctx, loader.Request{
		Argument: argument,
		Criteria: criteria,
		Resize:   imaging.Resize{Enabled: cmd.Bool("resize"), MaxSize: cmd.Int("max-size")},
		NoCache:  cmd.Bool("no-cache"),
		Export:   cmd.Bool("export"),
	})
	if err != nil {
		return err
	}
	doc := res.Document
	if doc.ScannedHint {
		fmt.Fprintln(os.Stderr, "warning: the PDF has little extractable text and may be a scan")
	}
	if res.ExportKey != "" {
		fmt.Fprintf(os.Stderr, "exported to %s\n", res.ExportKey)
	}

	if dir := cmd.String("save-images"); dir != "" {
		paths, err := loader.SaveAttachments(dir, doc.Attachments)
		if err != nil {
			return fmt.Errorf("failed to save images: %w", err)
		}
		for _, p := range paths {
			fmt.Fprintln(os.Stderr, p)
		}
	}

	if prompt == "" {
		fmt.Println(doc.Text)
		return nil
	}

	client, model := newAIClient(cfg, cmd.String("model"))
	_, err = client.Stream(ctx, ai.Request{
		Model:       model,
		Prompt:      prompt,
		System:      cmd.String("system"),
		Fragment:    ai.Fragment{Text: doc.Text, Source: doc.Source},
		Attachments: aiAttachments(doc.Attachments),
		MaxTokens:   cfg.LLM.MaxTokens,
	}, func(chunk string) error {
		_, err := fmt.Fprint(os.Stdout, chunk)
		return err
	})
	fmt.Println()
	return err
}

// includeCriteria resolves -i, falling back to the configured default. A
// missing flag and an empty default both mean no images.
func includeCriteria(cmd *cli.Command, cfg cfgpkg.Config) (selection.Criteria, error) {
	if cmd.IsSet("include-images") {
		spec := cmd.String("include-images")
		return selection.ParseOptional(&spec)
	}
	if cfg.Images.Include == "" {
		return nil, nil
	}
	return selection.Parse(cfg.Images.Include)
}

// checkMaxSize rejects a bound that is not a positive pixel count, whether
// it came from --max-size or LLM_ARXIV_MAX_SIZE.
func checkMaxSize(n int) error {
	if n <= 0 {
		return fmt.Errorf("invalid --max-size %d: must be a positive number of pixels", n)
	}
	return nil
}

func aiAttachments(atts []assembler.Attachment) []ai.Attachment {
	out := make([]ai.Attachment, 0, len(atts))
	for _, a := range atts {
		out = append(out, ai.Attachment{Name: a.Name, MediaType: a.MediaType, Data: a.Data})
	}
	return out
}

func newArxivClient(cfg cfgpkg.Config) *arxiv.Client {
	return arxiv.NewClient(arxiv.Options{
		BaseURL:    cfg.Arxiv.APIURL,
		HTTPClient: &http.Client{Timeout: cfg.Arxiv.Timeout},
		Interval:   cfg.Arxiv.Interval,
		UserAgent:  cfg.Arxiv.UserAgent,
		Logger:     logpkg.Get(),
	})
}

func newExporter(ctx context.Context, cfg cfgpkg.Config) (*storage.Exporter, error) {
	if cfg.Export.Bucket == "" {
		return nil, errors.New("EXPORT_S3_BUCKET is not set")
	}
	return storage.NewExporter(ctx, storage.Options{
		Bucket:    cfg.Export.Bucket,
		Region:    cfg.Export.Region,
		Endpoint:  cfg.Export.Endpoint,
		PathStyle: cfg.Export.PathStyle,
		Prefix:    cfg.Export.Prefix,
		Password:  cfg.Export.Password,
		AccessKey: cfg.Export.AccessKey,
		SecretKey: cfg.Export.SecretKey,
	})
}

// newAIClient routes to the provider that serves the requested model first
// and falls back to the other configured provider on transient errors. When
// that provider has no key the model is dropped so the fallback route's own
// model applies.
func newAIClient(cfg cfgpkg.Config, model string) (ai.Client, string) {
	httpClient := &http.Client{Timeout: cfg.LLM.Timeout}
	var anthropicRoute, openAIRoute ai.Route
	if cfg.LLM.AnthropicKey != "" {
		anthropicRoute.Client = ai.NewAnthropicClient(ai.AnthropicOptions{
			APIKey:     cfg.LLM.AnthropicKey,
			BaseURL:    cfg.LLM.AnthropicURL,
			HTTPClient: httpClient,
			MaxRetries: cfg.LLM.MaxRetries,
		})
		anthropicRoute.Model = cfg.LLM.Model
	}
	if cfg.LLM.OpenAIKey != "" {
		openAIRoute.Client = ai.NewOpenAIClient(ai.OpenAIOptions{
			APIKey:     cfg.LLM.OpenAIKey,
			BaseURL:    cfg.LLM.OpenAIURL,
			HTTPClient: httpClient,
		})
		openAIRoute.Model = cfg.LLM.FallbackModel
	}
	if cfg.LLM.AnthropicKey == "" && cfg.LLM.OpenAIKey == "" {
		// Let the Anthropic client report the missing key.
		anthropicRoute.Client = ai.NewAnthropicClient(ai.AnthropicOptions{})
	}
	if isOpenAIModel(model) {
		if openAIRoute.Client == nil {
			model = ""
		}
		return ai.NewFailover(openAIRoute, anthropicRoute), model
	}
	if anthropicRoute.Client == nil {
		model = ""
	}
	return ai.NewFailover(anthropicRoute, openAIRoute), model
}

func isOpenAIModel(model string) bool {
	for _, p := range []string{"gpt-", "o1", "o3", "o4", "chatgpt-"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}
