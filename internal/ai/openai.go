package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultOpenAIBaseURL is the public OpenAI API root.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIOptions configures the OpenAI client.
type OpenAIOptions struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// OpenAIClient calls the chat completions endpoint. It does not stream;
// Stream delivers the whole answer as one chunk.
type OpenAIClient struct {
	http    *http.Client
	apiKey  string
	baseURL string
}

func NewOpenAIClient(o OpenAIOptions) *OpenAIClient {
	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	base := strings.TrimRight(o.BaseURL, "/")
	if base == "" {
		base = DefaultOpenAIBaseURL
	}
	return &OpenAIClient{http: hc, apiKey: o.APIKey, baseURL: base}
}

func (c *OpenAIClient) Name() string { return "openai" }

type openAIMessage struct {
	Role    string                   `json:"role"`
	Content []map[string]interface{} `json:"content"`
}

type openAIChatReq struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIChatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func buildOpenAIRequest(req Request) openAIChatReq {
	var messages []openAIMessage
	if req.System != "" {
		messages = append(messages, openAIMessage{
			Role:    "system",
			Content: []map[string]interface{}{{"type": "text", "text": req.System}},
		})
	}

	var userContent []map[string]interface{}
	if req.Fragment.Text != "" {
		userContent = append(userContent, map[string]interface{}{"type": "text", "text": fragmentText(req.Fragment)})
	}
	for _, a := range req.Attachments {
		imageURL := fmt.Sprintf("data:%s;base64,%s", a.MediaType, base64.StdEncoding.EncodeToString(a.Data))
		userContent = append(userContent, map[string]interface{}{
			"type":      "image_url",
			"image_url": map[string]string{"url": imageURL},
		})
	}
	if req.Prompt != "" {
		userContent = append(userContent, map[string]interface{}{"type": "text", "text": req.Prompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: userContent})

	return openAIChatReq{Model: req.Model, Messages: messages, MaxTokens: maxTokens(req)}
}

func (c *OpenAIClient) Do(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, &ValidationError{Provider: c.Name(), Message: "missing OPENAI_API_KEY"}
	}
	if err := validate(c.Name(), req); err != nil {
		return Response{}, err
	}

	start := time.Now()
	resp, err := c.do(ctx, req)
	observe(c.Name(), req.Model, start, err)
	return resp, err
}

func (c *OpenAIClient) Stream(ctx context.Context, req Request, fn ChunkFunc) (Response, error) {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if resp.Text != "" {
		if err := fn(resp.Text); err != nil {
			return Response{}, err
		}
	}
	return resp, nil
}

func (c *OpenAIClient) do(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(buildOpenAIRequest(req))
	if err != nil {
		return Response{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		pErr := &ProviderError{Provider: c.Name(), Model: req.Model, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		if resp.StatusCode == http.StatusTooManyRequests {
			pErr.Err = ErrRateLimited
		}
		return Response{}, pErr
	}

	var r openAIChatResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Response{}, fmt.Errorf("decode openai response: %w", err)
	}
	if len(r.Choices) == 0 {
		return Response{}, errors.New("no choices")
	}
	if r.Choices[0].Message.Refusal != "" {
		return Response{}, fmt.Errorf("%w: %s", ErrContentRefused, r.Choices[0].Message.Refusal)
	}

	return Response{
		Text:      r.Choices[0].Message.Content,
		Provider:  c.Name(),
		Model:     req.Model,
		TokensIn:  r.Usage.PromptTokens,
		TokensOut: r.Usage.CompletionTokens,
	}, nil
}
