package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/pkg/httpx"
	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
	"github.com/yungbote/vibelist-backend/internal/platform/rotation"
)

type Config struct {
	BaseURL    string        `koanf:"base_url"`
	APIKeys    []string      `koanf:"api_keys"`
	Model      string        `koanf:"model"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
}

// Mood is a point on the valence/energy plane, both in [0,1].
type Mood struct {
	Valence float64 `json:"valence"`
	Energy  float64 `json:"energy"`
}

// MoodAnalyzer turns free text describing how someone feels into a Mood.
type MoodAnalyzer interface {
	AnalyzeMood(ctx context.Context, text string) (Mood, error)
}

// Client calls an OpenAI-compatible chat completions endpoint. API keys are
// rotated when the current key is rate limited.
type Client struct {
	log        *logger.Logger
	baseURL    string
	model      string
	keys       *rotation.Rotation[string]
	httpClient *http.Client
	maxRetries int
	metrics    *observability.Metrics
	sleep      func(time.Duration)
}

func NewClient(log *logger.Logger, cfg Config, metrics *observability.Metrics) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	keys := make([]string, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("missing openai api key")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    baseURL,
		model:      model,
		keys:       rotation.New(keys...),
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		metrics:    metrics,
		sleep:      time.Sleep,
	}, nil
}

const moodSystemPrompt = `You map a listener's description of how they feel onto two audio features.
valence: musical positiveness, 0.0 (sad, angry) to 1.0 (happy, cheerful).
energy: intensity and activity, 0.0 (calm, sleepy) to 1.0 (fast, loud, tense).
Answer with JSON only, exactly {"valence": <number>, "energy": <number>}.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) AnalyzeMood(ctx context.Context, text string) (Mood, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Mood{}, fmt.Errorf("%w: empty mood text", apierr.ErrInvalidInput)
	}
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: moodSystemPrompt},
			{Role: "user", Content: text},
		},
		Temperature:    0,
		ResponseFormat: map[string]string{"type": "json_object"},
	}
	var resp chatResponse
	if err := c.do(ctx, "/v1/chat/completions", req, &resp); err != nil {
		c.metrics.IncMoodRequest("error")
		return Mood{}, fmt.Errorf("%w: mood analysis: %v", apierr.ErrUpstream, err)
	}
	if len(resp.Choices) == 0 {
		c.metrics.IncMoodRequest("invalid")
		return Mood{}, fmt.Errorf("%w: mood analysis returned no choices", apierr.ErrUpstream)
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		c.metrics.IncMoodRequest("refused")
		return Mood{}, fmt.Errorf("%w: model refused: %s", apierr.ErrUpstream, msg.Refusal)
	}
	mood, err := parseMood(msg.Content)
	if err != nil {
		c.metrics.IncMoodRequest("invalid")
		return Mood{}, fmt.Errorf("%w: %v", apierr.ErrUpstream, err)
	}
	c.metrics.IncMoodRequest("ok")
	return mood, nil
}

// parseMood reads the JSON object spanning the first '{' to the last '}' of
// the reply, tolerating prose or code fences around it.
func parseMood(reply string) (Mood, error) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end <= start {
		return Mood{}, fmt.Errorf("mood reply has no json object: %q", reply)
	}
	var raw struct {
		Valence *float64 `json:"valence"`
		Energy  *float64 `json:"energy"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return Mood{}, fmt.Errorf("decode mood reply: %w", err)
	}
	if raw.Valence == nil || raw.Energy == nil {
		return Mood{}, fmt.Errorf("mood reply missing valence or energy: %q", reply)
	}
	return Mood{Valence: *raw.Valence, Energy: *raw.Energy}, nil
}

func (c *Client) doOnce(ctx context.Context, key, path string, body []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+key)
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
		return resp, raw, &httpx.StatusError{Service: "openai", StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

var errKeysExhausted = errors.New("all api keys are rate limited")

// do posts body and decodes the reply into out. Each call walks the keys with
// its own cursor, starting from the key that last succeeded. A 429 moves to
// the next key without sleeping; other retryable failures back off on the
// same key.
func (c *Client) do(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	keys := c.keys.Cursor()
	backoff := 500 * time.Millisecond

	for attempt := 0; ; {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		key, _ := keys.Item()
		resp, raw, err := c.doOnce(ctx, key, path, payload)
		if err == nil {
			keys.Commit()
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w", uErr)
			}
			return nil
		}

		if httpx.IsRateLimited(err) {
			if !keys.Next() {
				return fmt.Errorf("%w: %v", errKeysExhausted, err)
			}
			c.log.Warn("OpenAI key rate limited, rotating", "path", path)
			continue
		}
		if !httpx.IsRetryableError(err) || attempt >= c.maxRetries {
			return err
		}
		attempt++
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 5*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		c.sleep(sleepFor)
		backoff *= 2
	}
}
