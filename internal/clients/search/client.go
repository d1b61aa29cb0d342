// Package search talks to the Elasticsearch cluster holding the audio
// feature index (track retrieval) and the post index (trend ranking).
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
)

type Config struct {
	Addresses      []string      `koanf:"addresses"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	APIKey         string        `koanf:"api_key"`
	TrackIndex     string        `koanf:"track_index"`
	PostIndex      string        `koanf:"post_index"`
	PostScoreField string        `koanf:"post_score_field"`
	Timeout        time.Duration `koanf:"timeout"`
}

// DefaultConfig is the single source of index and field defaults. Both the
// app config layer and withDefaults start from it.
func DefaultConfig() Config {
	return Config{
		Addresses:      []string{"http://localhost:9200"},
		TrackIndex:     "tracks",
		PostIndex:      "posts",
		PostScoreField: "trend_score",
		Timeout:        10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if len(c.Addresses) == 0 {
		c.Addresses = d.Addresses
	}
	if strings.TrimSpace(c.TrackIndex) == "" {
		c.TrackIndex = d.TrackIndex
	}
	if strings.TrimSpace(c.PostIndex) == "" {
		c.PostIndex = d.PostIndex
	}
	if strings.TrimSpace(c.PostScoreField) == "" {
		c.PostScoreField = d.PostScoreField
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	return c
}

// Client is the shared low-level search client. Every request goes through
// one circuit breaker so a down cluster fails fast for all callers.
type Client struct {
	es      *elasticsearch.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker[[]byte]
	log     *logger.Logger
}

func NewClient(log *logger.Logger, cfg Config, metrics *observability.Metrics) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg = cfg.withDefaults()
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
		Transport: &http.Transport{ResponseHeaderTimeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	l := log.With("client", "ElasticsearchClient")
	return &Client{
		es:      es,
		cfg:     cfg,
		breaker: newBreaker("elasticsearch", l, metrics),
		log:     l,
	}, nil
}

func (c *Client) Config() Config { return c.cfg }

// search runs body against index and returns the raw response body.
func (c *Client) search(ctx context.Context, index string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	return c.breaker.Execute(func() ([]byte, error) {
		res, err := c.es.Search(
			c.es.Search.WithContext(ctx),
			c.es.Search.WithIndex(index),
			c.es.Search.WithBody(bytes.NewReader(payload)),
		)
		if err != nil {
			return nil, err
		}
		defer res.Body.Close()
		raw, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if res.IsError() {
			return nil, fmt.Errorf("search %s: status %d: %s", index, res.StatusCode, truncate(raw, 256))
		}
		return raw, nil
	})
}

// Ping reports whether the cluster answers.
func (c *Client) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping: status %d", res.StatusCode)
	}
	return nil
}

type hitsEnvelope[T any] struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source T       `json:"_source"`
			Sort   []any   `json:"sort"`
		} `json:"hits"`
	} `json:"hits"`
}

var errMalformed = errors.New("malformed search response")

func decodeHits[T any](raw []byte) (*hitsEnvelope[T], error) {
	var env hitsEnvelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformed, err)
	}
	return &env, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
