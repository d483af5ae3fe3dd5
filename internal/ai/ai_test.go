package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = Request{
	Model:       "claude-test",
	Prompt:      "summarize",
	System:      "be brief",
	Fragment:    Fragment{Text: "paper body", Source: "http://arxiv.org/abs/2310.06825v1"},
	Attachments: []Attachment{{Name: "page_1_img_1.png", MediaType: "image/png", Data: []byte{1, 2, 3}}},
}

func TestBuildMessageParams(t *testing.T) {
	params := buildMessageParams(sample)
	assert.Equal(t, "claude-test", string(params.Model))
	assert.EqualValues(t, DefaultMaxTokens, params.MaxTokens)
	require.Len(t, params.System, 1)
	assert.Equal(t, "be brief", params.System[0].Text)

	require.Len(t, params.Messages, 1)
	blocks := params.Messages[0].Content
	require.Len(t, blocks, 3)
	require.NotNil(t, blocks[0].OfText)
	assert.Contains(t, blocks[0].OfText.Text, "Source: http://arxiv.org/abs/2310.06825v1")
	assert.Contains(t, blocks[0].OfText.Text, "paper body")
	require.NotNil(t, blocks[1].OfImage)
	require.NotNil(t, blocks[1].OfImage.Source.OfBase64)
	assert.Equal(t, "AQID", blocks[1].OfImage.Source.OfBase64.Data)
	require.NotNil(t, blocks[2].OfText)
	assert.Equal(t, "summarize", blocks[2].OfText.Text)
}

func newAnthropicTest(t *testing.T, h http.HandlerFunc) *AnthropicClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewAnthropicClient(AnthropicOptions{APIKey: "test-key", BaseURL: srv.URL, HTTPClient: srv.Client()})
}

func TestAnthropicDo(t *testing.T) {
	c := newAnthropicTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/v1/messages"))
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-test", body["model"])
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"a short summary"}],
			"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":4}}`)
	})

	resp, err := c.Do(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, "a short summary", resp.Text)
	assert.Equal(t, "anthropic", resp.Provider)
	assert.Equal(t, 10, resp.TokensIn)
	assert.Equal(t, 4, resp.TokensOut)
}

func TestAnthropicStatusError(t *testing.T) {
	c := newAnthropicTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"type":"error","error":{"type":"overloaded_error","message":"overloaded"}}`)
	})

	_, err := c.Do(context.Background(), sample)
	var pErr *ProviderError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, http.StatusServiceUnavailable, pErr.StatusCode)
	assert.True(t, IsTransient(err))
	assert.False(t, IsFatal(err))
}

const sseBody = `event: message_start
data: {"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-test","content":[],"stop_reason":null,"stop_sequence":null,"usage":{"input_tokens":7,"output_tokens":1}}}

event: content_block_start
data: {"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}

event: content_block_delta
data: {"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"lo"}}

event: content_block_stop
data: {"type":"content_block_stop","index":0}

event: message_delta
data: {"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}

event: message_stop
data: {"type":"message_stop"}

`

func TestAnthropicStream(t *testing.T) {
	c := newAnthropicTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, sseBody)
	})

	var chunks []string
	resp, err := c.Stream(context.Background(), sample, func(s string) error {
		chunks = append(chunks, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
	assert.Equal(t, "Hello", resp.Text)
	assert.Equal(t, 2, resp.TokensOut)
}

func TestAnthropicMissingKey(t *testing.T) {
	c := NewAnthropicClient(AnthropicOptions{})
	_, err := c.Do(context.Background(), sample)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.True(t, IsFatal(err))
}

func TestValidate(t *testing.T) {
	assert.Error(t, validate("x", Request{Prompt: "p"}))
	assert.Error(t, validate("x", Request{Model: "m"}))
	assert.NoError(t, validate("x", Request{Model: "m", Fragment: Fragment{Text: "t"}}))
}

func newOpenAITest(t *testing.T, h http.HandlerFunc) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewOpenAIClient(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL, HTTPClient: srv.Client()})
}

func TestOpenAIStream(t *testing.T) {
	c := newOpenAITest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var body openAIChatReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)
		user := body.Messages[1].Content
		require.Len(t, user, 3)
		assert.Equal(t, "image_url", user[1]["type"])
		url := user[1]["image_url"].(map[string]any)["url"].(string)
		assert.Equal(t, "data:image/png;base64,AQID", url)
		io.WriteString(w, `{"choices":[{"message":{"content":"answer"}}],"usage":{"prompt_tokens":3,"completion_tokens":1}}`)
	})

	var got []string
	resp, err := c.Stream(context.Background(), sample, func(s string) error { got = append(got, s); return nil })
	require.NoError(t, err)
	assert.Equal(t, []string{"answer"}, got)
	assert.Equal(t, 3, resp.TokensIn)
}

func TestOpenAIErrors(t *testing.T) {
	tests := []struct {
		status    int
		transient bool
		fatal     bool
	}{
		{http.StatusTooManyRequests, true, false},
		{http.StatusBadGateway, true, false},
		{http.StatusUnauthorized, false, true},
		{http.StatusBadRequest, false, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			c := newOpenAITest(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, `{"error":"nope"}`)
			})
			_, err := c.Do(context.Background(), sample)
			require.Error(t, err)
			assert.Equal(t, tt.transient, IsTransient(err))
			assert.Equal(t, tt.fatal, IsFatal(err))
		})
	}
}

func TestOpenAIRefusal(t *testing.T) {
	c := newOpenAITest(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[{"message":{"content":"","refusal":"cannot help"}}]}`)
	})
	_, err := c.Do(context.Background(), sample)
	assert.True(t, IsContentRefused(err))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "success", classify(nil))
	assert.Equal(t, "rate_limited", classify(&ProviderError{StatusCode: 429, Err: ErrRateLimited}))
	assert.Equal(t, "fatal", classify(&ValidationError{Message: "x"}))
	assert.Equal(t, "transient", classify(errors.New("read: connection reset by peer")))
	assert.Equal(t, "unknown", classify(errors.New("something odd")))
}

type fakeClient struct {
	name   string
	chunks []string
	err    error
	calls  []string
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Do(ctx context.Context, req Request) (Response, error) {
	return f.Stream(ctx, req, func(string) error { return nil })
}

func (f *fakeClient) Stream(_ context.Context, req Request, fn ChunkFunc) (Response, error) {
	f.calls = append(f.calls, req.Model)
	for _, c := range f.chunks {
		if err := fn(c); err != nil {
			return Response{}, err
		}
	}
	if f.err != nil {
		return Response{}, f.err
	}
	return Response{Text: strings.Join(f.chunks, ""), Provider: f.name, Model: req.Model}, nil
}

func TestFailoverTransient(t *testing.T) {
	primary := &fakeClient{name: "anthropic", err: &ProviderError{Provider: "anthropic", StatusCode: 529}}
	secondary := &fakeClient{name: "openai", chunks: []string{"ok"}}
	f := NewFailover(Route{Client: primary, Model: "claude"}, Route{Client: secondary, Model: "gpt"})

	resp, err := f.Do(context.Background(), Request{Model: "claude-explicit", Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, []string{"claude-explicit"}, primary.calls)
	assert.Equal(t, []string{"gpt"}, secondary.calls)
}

func TestFailoverFatalStops(t *testing.T) {
	primary := &fakeClient{name: "anthropic", err: &ProviderError{Provider: "anthropic", StatusCode: 401}}
	secondary := &fakeClient{name: "openai"}
	f := NewFailover(Route{Client: primary}, Route{Client: secondary})

	_, err := f.Do(context.Background(), Request{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.Empty(t, secondary.calls)
}

func TestFailoverNoRetryAfterOutput(t *testing.T) {
	primary := &fakeClient{name: "anthropic", chunks: []string{"partial"}, err: errors.New("unexpected EOF")}
	secondary := &fakeClient{name: "openai", chunks: []string{"full"}}
	f := NewFailover(Route{Client: primary}, Route{Client: secondary})

	var out strings.Builder
	_, err := f.Stream(context.Background(), Request{Model: "m", Prompt: "p"}, func(s string) error {
		out.WriteString(s)
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, "partial", out.String())
	assert.Empty(t, secondary.calls)
}

func TestFailoverAllFail(t *testing.T) {
	a := &fakeClient{name: "a", err: ErrRateLimited}
	b := &fakeClient{name: "b", err: context.DeadlineExceeded}
	f := NewFailover(Route{Client: a}, Route{Client: b}, Route{})
	assert.Equal(t, "failover", f.Name())

	_, err := f.Do(context.Background(), Request{Model: "m", Prompt: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "all AI providers failed")

	_, err = NewFailover().Do(context.Background(), Request{})
	assert.Error(t, err)
}
