// Package llm talks to the hosted generative model that writes chat replies
// and recipes.
//
// The Client retries transient failures (HTTP 429, 5xx, timeouts) with
// exponential backoff, then gives the first alternate model one more round.
// Every failure is returned as a *ProviderError carrying a canned fallback
// reply for the message, so callers never have to invent one.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/tbourn/recipe-chat-backend/internal/config"
	"github.com/tbourn/recipe-chat-backend/internal/observability"
)

// Completer produces a reply for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Completion is a successful model reply.
type Completion struct {
	Text       string
	TokensUsed int
	Model      string
}

// Client is a Completer backed by the Gemini generateContent REST API.
type Client struct {
	cfg   config.GeminiConfig
	http  *http.Client
	sleep func(ctx context.Context, d time.Duration) error
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport, mostly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a Client. Zero-valued tuning fields fall back to safe defaults.
func New(cfg config.GeminiConfig, opts ...Option) *Client {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 200 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	c := &Client{
		cfg:   cfg,
		http:  &http.Client{},
		sleep: sleepCtx,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type genConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content `json:"contents"`
	GenerationConfig genConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Complete renders the prompt for req and asks the provider for a reply.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	ctx, span := otel.Tracer("llm").Start(ctx, "llm.Complete")
	defer span.End()

	fallback := FallbackResponse(req.Message)
	if req.Recipe != nil {
		fallback = FallbackResponse(strings.Join(req.Recipe.Ingredients, " ") + " " + req.Recipe.Preferences)
	}

	if strings.TrimSpace(c.cfg.APIKey) == "" {
		observability.LLMRequests.WithLabelValues(c.cfg.Model, Permanent.String()).Inc()
		return nil, &ProviderError{Kind: Permanent, Model: c.cfg.Model, Fallback: fallback, Err: ErrNotConfigured}
	}

	body, err := json.Marshal(c.buildRequest(req))
	if err != nil {
		return nil, &ProviderError{Kind: Permanent, Model: c.cfg.Model, Fallback: fallback, Err: err}
	}

	comp, err := c.tryModel(ctx, c.cfg.Model, body)
	if err != nil && len(c.cfg.AltModels) > 0 {
		if pe, ok := AsProviderError(err); ok && pe.Kind == Transient && ctx.Err() == nil {
			alt := c.cfg.AltModels[0]
			log.Ctx(ctx).Warn().Str("model", c.cfg.Model).Str("alt_model", alt).Err(err).Msg("primary model unavailable, trying alternate")
			comp, err = c.tryModel(ctx, alt, body)
		}
	}
	if err != nil {
		pe, ok := AsProviderError(err)
		if !ok {
			pe = &ProviderError{Kind: Transient, Model: c.cfg.Model, Err: err}
		}
		pe.Fallback = fallback
		span.RecordError(pe)
		span.SetStatus(codes.Error, pe.Kind.String())
		span.SetAttributes(attribute.Int("llm.status", pe.Status))
		return nil, pe
	}

	span.SetAttributes(
		attribute.String("llm.model", comp.Model),
		attribute.Int("llm.tokens", comp.TokensUsed),
	)
	return comp, nil
}

func (c *Client) buildRequest(req Request) generateRequest {
	gc := genConfig{
		Temperature:     c.cfg.Temperature,
		TopK:            c.cfg.TopK,
		TopP:            c.cfg.TopP,
		MaxOutputTokens: c.cfg.MaxOutputTokens,
	}
	var prompt string
	if req.Recipe != nil {
		prompt = BuildRecipePrompt(*req.Recipe, req.Profile)
		gc.Temperature = 0.8
		gc.MaxOutputTokens = 1500
	} else {
		prompt = BuildPrompt(req, c.cfg.HistoryTurns)
	}
	return generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: gc,
	}
}

// tryModel runs up to MaxRetries attempts against one model. Only 429 and 5xx
// responses are retried; a timeout ends the round at once so the alternate
// model gets its own full budget.
func (c *Client) tryModel(ctx context.Context, model string, body []byte) (*Completion, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.BackoffBase << (attempt - 1)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, &ProviderError{Kind: Transient, Model: model, Err: err}
			}
		}
		comp, err := c.call(ctx, model, body)
		if err == nil {
			observability.LLMRequests.WithLabelValues(model, "ok").Inc()
			return comp, nil
		}
		lastErr = err
		pe, _ := AsProviderError(err)
		observability.LLMRequests.WithLabelValues(model, pe.Kind.String()).Inc()
		if pe.Kind != Transient || pe.Status == 0 {
			return nil, err
		}
		log.Ctx(ctx).Debug().Str("model", model).Int("attempt", attempt+1).Int("status", pe.Status).Msg("retrying completion")
	}
	return nil, lastErr
}

// call performs one HTTP attempt. It always returns a *ProviderError on failure.
func (c *Client) call(ctx context.Context, model string, body []byte) (*Completion, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.BaseURL, model)
	httpReq, err := http.NewRequestWithContext(actx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Kind: Permanent, Model: model, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	observability.LLMLatency.WithLabelValues(model).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, &ProviderError{Kind: Transient, Model: model, Err: transportErr(err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, &ProviderError{Kind: Transient, Model: model, Err: transportErr(err)}
	}

	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Error.Message != "" {
			msg = ae.Error.Message
		}
		return nil, &ProviderError{
			Kind:   classifyStatus(resp.StatusCode),
			Status: resp.StatusCode,
			Model:  model,
			Err:    errors.New(msg),
		}
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return nil, &ProviderError{Kind: Permanent, Status: resp.StatusCode, Model: model, Err: fmt.Errorf("decode response: %w", err)}
	}
	if gr.PromptFeedback != nil && gr.PromptFeedback.BlockReason != "" {
		return nil, &ProviderError{Kind: Permanent, Status: resp.StatusCode, Model: model, Err: fmt.Errorf("prompt blocked: %s", gr.PromptFeedback.BlockReason)}
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, &ProviderError{Kind: Permanent, Status: resp.StatusCode, Model: model, Err: errors.New("empty response")}
	}
	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, &ProviderError{Kind: Permanent, Status: resp.StatusCode, Model: model, Err: errors.New("empty response text")}
	}
	return &Completion{Text: text, TokensUsed: gr.UsageMetadata.TotalTokenCount, Model: model}, nil
}

// ErrTimeout is wrapped when an attempt exceeds the per-call timeout.
var ErrTimeout = errors.New("llm: request timed out")

func transportErr(err error) error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
