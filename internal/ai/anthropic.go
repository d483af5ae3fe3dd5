package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
)

// AnthropicOptions configures the Anthropic client.
type AnthropicOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	MaxRetries int
}

// AnthropicClient talks to the Messages API through the official SDK.
type AnthropicClient struct {
	client anthropic.Client
	hasKey bool
}

func NewAnthropicClient(o AnthropicOptions) *AnthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(o.APIKey)}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	if o.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(o.HTTPClient))
	}
	if o.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(o.MaxRetries))
	}
	return &AnthropicClient{client: anthropic.NewClient(opts...), hasKey: o.APIKey != ""}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

func (c *AnthropicClient) Do(ctx context.Context, req Request) (Response, error) {
	params, err := c.prepare(req)
	if err != nil {
		return Response{}, err
	}

	start := time.Now()
	msg, err := c.client.Messages.New(ctx, params)
	observe(c.Name(), req.Model, start, err)
	if err != nil {
		return Response{}, anthropicError(req.Model, err)
	}
	return anthropicResponse(req.Model, msg)
}

func (c *AnthropicClient) Stream(ctx context.Context, req Request, fn ChunkFunc) (Response, error) {
	params, err := c.prepare(req)
	if err != nil {
		return Response{}, err
	}

	start := time.Now()
	stream := c.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			observe(c.Name(), req.Model, start, err)
			return Response{}, err
		}
		switch ev := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if err := fn(delta.Text); err != nil {
					observe(c.Name(), req.Model, start, err)
					return Response{}, err
				}
			}
		}
	}
	err = stream.Err()
	observe(c.Name(), req.Model, start, err)
	if err != nil {
		return Response{}, anthropicError(req.Model, err)
	}
	return anthropicResponse(req.Model, &msg)
}

func (c *AnthropicClient) prepare(req Request) (anthropic.MessageNewParams, error) {
	if !c.hasKey {
		return anthropic.MessageNewParams{}, &ValidationError{Provider: c.Name(), Message: "missing ANTHROPIC_API_KEY"}
	}
	if err := validate(c.Name(), req); err != nil {
		return anthropic.MessageNewParams{}, err
	}
	return buildMessageParams(req), nil
}

// buildMessageParams lays out one user turn: the paper fragment, the images
// in attachment order, then the prompt.
func buildMessageParams(req Request) anthropic.MessageNewParams {
	var blocks []anthropic.ContentBlockParamUnion
	if req.Fragment.Text != "" {
		blocks = append(blocks, anthropic.NewTextBlock(fragmentText(req.Fragment)))
	}
	for _, a := range req.Attachments {
		blocks = append(blocks, anthropic.NewImageBlockBase64(a.MediaType, base64.StdEncoding.EncodeToString(a.Data)))
	}
	if req.Prompt != "" {
		blocks = append(blocks, anthropic.NewTextBlock(req.Prompt))
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens(req)),
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	return params
}

func anthropicResponse(model string, msg *anthropic.Message) (Response, error) {
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if msg.StopReason == "refusal" {
		return Response{}, ErrContentRefused
	}
	resp := Response{
		Text:      text.String(),
		Provider:  "anthropic",
		Model:     model,
		TokensIn:  int(msg.Usage.InputTokens),
		TokensOut: int(msg.Usage.OutputTokens),
	}
	log.Debug().
		Str("provider", resp.Provider).
		Str("model", model).
		Int("tokens_in", resp.TokensIn).
		Int("tokens_out", resp.TokensOut).
		Msg("AI provider call success")
	return resp, nil
}

func anthropicError(model string, err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		pErr := &ProviderError{Provider: "anthropic", Model: model, StatusCode: apiErr.StatusCode, Err: err}
		if apiErr.StatusCode == http.StatusTooManyRequests {
			pErr.Err = errors.Join(ErrRateLimited, err)
		}
		return pErr
	}
	return err
}
