package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/deckforge/deckforge-backend/internal/pkg/httpx"
	"github.com/deckforge/deckforge-backend/internal/platform/envutil"
	"github.com/deckforge/deckforge-backend/internal/platform/logger"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
)

type CompletionRequest struct {
	System      string
	User        string
	Model       string // empty -> client default
	MaxTokens   int    // <=0 -> client default
	Temperature *float64
}

type Completion struct {
	Text         string
	Model        string
	StopReason   string
	InputTokens  int
	OutputTokens int
}

// Client is the LLM gateway used by the generation pipeline: prompt in,
// raw text plus usage out.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	maxTokens  int
	httpClient *http.Client

	maxRetries  int
	temperature *float64
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	apiKey := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing ANTHROPIC_API_KEY")
	}

	baseURL := strings.TrimRight(envutil.Str("ANTHROPIC_BASE_URL", defaultBaseURL), "/")
	model := envutil.Str("ANTHROPIC_MODEL", "claude-sonnet-4-20250514")
	maxTokens := envutil.Int("ANTHROPIC_MAX_TOKENS", 4096)
	timeoutSec := envutil.Int("ANTHROPIC_TIMEOUT_SECONDS", 120)
	maxRetries := envutil.Int("ANTHROPIC_MAX_RETRIES", 3)

	var tempPtr *float64
	if t := envutil.Float("ANTHROPIC_TEMPERATURE", 0.7); t >= 0 {
		tempPtr = &t
	}

	return &client{
		log:         log.With("service", "AnthropicClient"),
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries:  maxRetries,
		temperature: tempPtr,
	}, nil
}

// WithAPIKey returns a client using the caller-supplied key for this
// request's calls. Used for the per-request apiKey override in the API body.
func WithAPIKey(base Client, apiKey string) Client {
	apiKey = strings.TrimSpace(apiKey)
	if base == nil || apiKey == "" {
		return base
	}
	c, ok := base.(*client)
	if !ok {
		return base
	}
	clone := *c
	clone.apiKey = apiKey
	return &clone
}

type messagesRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	Messages    []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *client) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}
	temp := req.Temperature
	if temp == nil {
		temp = c.temperature
	}

	body := messagesRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      strings.TrimSpace(req.System),
		Temperature: temp,
		Messages:    []message{{Role: "user", Content: req.User}},
	}

	ctx, span := otel.Tracer("anthropic").Start(ctx, "anthropic.complete")
	span.SetAttributes(attribute.String("llm.model", model))
	defer span.End()

	var resp messagesResponse
	if err := c.do(ctx, "/v1/messages", body, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete failed")
		return Completion{}, err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return Completion{}, fmt.Errorf("%w: no text content blocks", ErrMalformed)
	}

	span.SetAttributes(
		attribute.Int("llm.input_tokens", resp.Usage.InputTokens),
		attribute.Int("llm.output_tokens", resp.Usage.OutputTokens),
	)
	return Completion{
		Text:         text.String(),
		Model:        resp.Model,
		StopReason:   resp.StopReason,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

func (c *client) doOnce(ctx context.Context, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, path, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("%w: %v", ErrMalformed, uErr)
			}
			return nil
		}

		// Auth failures are fatal immediately; everything retryable goes
		// through the backoff loop until the budget runs out.
		if errors.Is(err, ErrAuth) {
			return err
		}
		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 15*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)
		c.log.Warn("Anthropic request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}
