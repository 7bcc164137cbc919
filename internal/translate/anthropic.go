// Anthropic Messages API provider.
//
// This is a thin HTTP client: one user turn carrying the rendered prompt,
// plain JSON in and out. Transient failures (network errors, 429, 5xx) are
// retried with exponential backoff up to a configured attempt budget; 4xx
// responses other than 429 are permanent.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

const (
	anthropicEndpoint = "https://api.anthropic.com/v1/messages"
	anthropicVersion  = "2023-06-01"
	maxOutputTokens   = 1000
)

// AnthropicOptions configures the provider.
type AnthropicOptions struct {
	APIKey      string
	Model       string
	Timeout     time.Duration // per-attempt deadline
	MaxAttempts int           // total tries including the first
	BaseURL     string        // test override; defaults to the public API
	Logger      zerolog.Logger
}

// AnthropicTranslator implements Translator against the Anthropic Messages
// API.
type AnthropicTranslator struct {
	opts   AnthropicOptions
	client *http.Client
}

// NewAnthropicTranslator builds the provider with its own bounded HTTP
// client.
func NewAnthropicTranslator(opts AnthropicOptions) *AnthropicTranslator {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BaseURL == "" {
		opts.BaseURL = anthropicEndpoint
	}
	return &AnthropicTranslator{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout},
	}
}

// Translate renders the translation prompt and runs one completion.
func (t *AnthropicTranslator) Translate(ctx context.Context, req Request) (string, error) {
	return t.complete(ctx, BuildTranslationPrompt(req))
}

// ExtractActionItems renders the extraction prompt and runs one completion.
func (t *AnthropicTranslator) ExtractActionItems(ctx context.Context, req ExtractionRequest) (string, error) {
	return t.complete(ctx, BuildExtractionPrompt(req))
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// complete runs the prompt with retry. Each attempt gets its own deadline;
// the overall call respects ctx.
func (t *AnthropicTranslator) complete(ctx context.Context, prompt string) (string, error) {
	attempt := 0
	operation := func() (string, error) {
		attempt++
		out, err := t.completeOnce(ctx, prompt)
		if err != nil && attempt < t.opts.MaxAttempts {
			t.opts.Logger.Warn().Err(err).Int("attempt", attempt).Msg("translator attempt failed")
		}
		return out, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second

	return backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(uint(t.opts.MaxAttempts)),
	)
}

func (t *AnthropicTranslator) completeOnce(ctx context.Context, prompt string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, t.opts.Timeout)
	defer cancel()

	body, err := json.Marshal(anthropicRequest{
		Model:     t.opts.Model,
		MaxTokens: maxOutputTokens,
		Messages:  []anthropicMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", backoff.Permanent(err)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, t.opts.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", t.opts.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", err // network errors retry
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to parse
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return "", fmt.Errorf("provider returned %d", resp.StatusCode)
	default:
		return "", backoff.Permanent(fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncateBody(raw)))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	if parsed.Error != nil {
		return "", backoff.Permanent(errors.New(parsed.Error.Message))
	}

	var out strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	result := strings.TrimSpace(out.String())
	if result == "" {
		return "", ErrEmptyResult
	}
	return result, nil
}

func truncateBody(raw []byte) string {
	const max = 256
	if len(raw) > max {
		raw = raw[:max]
	}
	return string(raw)
}
