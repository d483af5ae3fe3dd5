package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Fragment is a unit of text fed to the model together with where it came from.
type Fragment struct {
	Text   string
	Source string
}

// Attachment is an image sent alongside the prompt.
type Attachment struct {
	Name      string
	MediaType string
	Data      []byte
}

// Request is a single prompt for a provider.
type Request struct {
	Model       string
	Prompt      string
	System      string
	Fragment    Fragment
	Attachments []Attachment
	MaxTokens   int
}

// Response is the outcome of a completed request.
type Response struct {
	Text      string
	Provider  string
	Model     string
	TokensIn  int
	TokensOut int
}

// ChunkFunc receives streamed output. Returning an error stops the stream.
type ChunkFunc func(chunk string) error

// Client interface for providers like OpenAI, Anthropic.
type Client interface {
	Name() string
	Do(ctx context.Context, req Request) (Response, error)
	Stream(ctx context.Context, req Request, fn ChunkFunc) (Response, error)
}

// DefaultMaxTokens applies when a request does not set MaxTokens.
const DefaultMaxTokens = 4096

var (
	ErrRateLimited    = errors.New("rate_limited")
	ErrContentRefused = errors.New("content_refused")
)

func IsRateLimited(err error) bool   { return errors.Is(err, ErrRateLimited) }
func IsContentRefused(err error) bool { return errors.Is(err, ErrContentRefused) }

// fragmentText renders the paper fragment as the first text block of a prompt.
func fragmentText(f Fragment) string {
	if f.Source == "" {
		return f.Text
	}
	return fmt.Sprintf("Source: %s\n\n%s", f.Source, f.Text)
}

func maxTokens(req Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return DefaultMaxTokens
}

func validate(provider string, req Request) error {
	if strings.TrimSpace(req.Model) == "" {
		return &ValidationError{Provider: provider, Message: "model is required"}
	}
	if strings.TrimSpace(req.Prompt) == "" && strings.TrimSpace(req.Fragment.Text) == "" {
		return &ValidationError{Provider: provider, Message: "empty prompt"}
	}
	return nil
}
