// Package statuscheck reports whether the services llm-arxiv talks to are reachable.
package statuscheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/local/llmarxiv/internal/mupdf"
)

// Pinger models a dependency that can be checked with one call.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Default endpoints probed by the checker.
const (
	DefaultArxivURL     = "https://export.arxiv.org/api/query?search_query=all:electron&max_results=1"
	DefaultOpenAIURL    = "https://api.openai.com/v1/models?limit=1"
	DefaultAnthropicURL = "https://api.anthropic.com/v1/models"
)

// Checker aggregates health checks for external dependencies.
type Checker struct {
	redis        Pinger
	bucket       Pinger
	httpClient   *http.Client
	openAIKey    string
	anthropicKey string
	arxivURL     string
	openAIURL    string
	anthropicURL string
}

// Options configures the Checker. A nil Redis or Bucket marks that
// subsystem as not configured.
type Options struct {
	Redis        Pinger
	Bucket       Pinger
	HTTPClient   *http.Client
	OpenAIKey    string
	AnthropicKey string
	ArxivURL     string
	OpenAIURL    string
	AnthropicURL string
}

// Status represents the readiness of a subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Message string `json:"message"`
}

// Summary bundles all subsystem statuses.
type Summary struct {
	ArXiv     Status `json:"arxiv"`
	MuPDF     Status `json:"mupdf"`
	Redis     Status `json:"redis"`
	S3        Status `json:"s3"`
	Anthropic Status `json:"anthropic"`
	OpenAI    Status `json:"openai"`
}

// Ready reports whether every configured subsystem is OK.
func (s Summary) Ready() bool {
	for _, st := range s.Entries() {
		if !st.Status.Skipped && !st.Status.OK {
			return false
		}
	}
	return true
}

// Entry is a named status, for ordered printing.
type Entry struct {
	Name   string
	Status Status
}

func (s Summary) Entries() []Entry {
	return []Entry{
		{"arxiv", s.ArXiv},
		{"mupdf", s.MuPDF},
		{"redis", s.Redis},
		{"s3", s.S3},
		{"anthropic", s.Anthropic},
		{"openai", s.OpenAI},
	}
}

// New creates a new Checker with the provided options.
func New(opts Options) *Checker {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Checker{
		redis:        opts.Redis,
		bucket:       opts.Bucket,
		httpClient:   client,
		openAIKey:    strings.TrimSpace(opts.OpenAIKey),
		anthropicKey: strings.TrimSpace(opts.AnthropicKey),
		arxivURL:     orDefault(opts.ArxivURL, DefaultArxivURL),
		openAIURL:    orDefault(opts.OpenAIURL, DefaultOpenAIURL),
		anthropicURL: orDefault(opts.AnthropicURL, DefaultAnthropicURL),
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Summary returns the current status snapshot.
func (c *Checker) Summary(ctx context.Context) Summary {
	return Summary{
		ArXiv:     c.checkArxiv(ctx),
		MuPDF:     Status{OK: true, Message: "embedded MuPDF " + mupdf.Version()},
		Redis:     c.checkPinger(ctx, c.redis, 2*time.Second),
		S3:        c.checkPinger(ctx, c.bucket, 5*time.Second),
		Anthropic: c.checkAnthropic(ctx),
		OpenAI:    c.checkOpenAI(ctx),
	}
}

func (c *Checker) checkPinger(ctx context.Context, p Pinger, timeout time.Duration) Status {
	if p == nil {
		return Status{Skipped: true, Message: "not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "Connected"}
}

func (c *Checker) checkArxiv(ctx context.Context) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.arxivURL, nil)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return c.probe(req)
}

func (c *Checker) checkOpenAI(ctx context.Context) Status {
	if c.openAIKey == "" {
		return Status{Skipped: true, Message: "API key missing"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.openAIURL, nil)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.openAIKey)
	return c.probe(req)
}

func (c *Checker) checkAnthropic(ctx context.Context) Status {
	if c.anthropicKey == "" {
		return Status{Skipped: true, Message: "API key missing"}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.anthropicURL, nil)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	req.Header.Set("x-api-key", c.anthropicKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	return c.probe(req)
}

func (c *Checker) probe(req *http.Request) Status {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return Status{OK: false, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}
	return Status{OK: true, Message: "Available"}
}

func trimError(err error) string {
	if err == nil {
		return ""
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	msg := err.Error()
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
