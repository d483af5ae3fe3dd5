package ai

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/llmarxiv/internal/metrics"
)

// Route is one provider and model to try.
type Route struct {
	Client Client
	// Model overrides the request model when set. The first route keeps an
	// explicit request model.
	Model string
}

// Failover tries routes in order, moving on only after a transient error.
// A streamed request never fails over once output has been delivered.
type Failover struct {
	routes []Route
}

func NewFailover(routes ...Route) *Failover {
	var rs []Route
	for _, r := range routes {
		if r.Client != nil {
			rs = append(rs, r)
		}
	}
	return &Failover{routes: rs}
}

func (f *Failover) Name() string {
	if len(f.routes) == 1 {
		return f.routes[0].Client.Name()
	}
	return "failover"
}

func (f *Failover) Do(ctx context.Context, req Request) (Response, error) {
	return f.run(ctx, req, func(c Client, r Request) (Response, bool, error) {
		resp, err := c.Do(ctx, r)
		return resp, false, err
	})
}

func (f *Failover) Stream(ctx context.Context, req Request, fn ChunkFunc) (Response, error) {
	return f.run(ctx, req, func(c Client, r Request) (Response, bool, error) {
		emitted := false
		resp, err := c.Stream(ctx, r, func(chunk string) error {
			emitted = true
			return fn(chunk)
		})
		return resp, emitted, err
	})
}

func (f *Failover) run(ctx context.Context, req Request, call func(Client, Request) (Response, bool, error)) (Response, error) {
	if len(f.routes) == 0 {
		return Response{}, &ValidationError{Provider: "failover", Message: "no providers configured"}
	}

	var lastErr error
	for i, route := range f.routes {
		r := req
		if route.Model != "" && (i > 0 || r.Model == "") {
			r.Model = route.Model
		}
		provider := route.Client.Name()

		log.Debug().
			Str("provider", provider).
			Str("model", r.Model).
			Int("attempt", i+1).
			Int("routes", len(f.routes)).
			Msg("attempting AI request")

		resp, emitted, err := call(route.Client, r)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if emitted || ctx.Err() != nil || IsFatal(err) || !IsTransient(err) {
			return Response{}, err
		}
		log.Warn().
			Err(err).
			Str("provider", provider).
			Str("model", r.Model).
			Msg("transient error - trying fallback")
	}
	return Response{}, errors.Join(errors.New("all AI providers failed"), lastErr)
}

func observe(provider, model string, start time.Time, err error) {
	metrics.ObserveLLM(provider, model, classify(err), time.Since(start))
}
