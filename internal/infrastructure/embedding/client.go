// Package embedding provides an HTTP client for the embedding service
// used by semantic candidate retrieval.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aduanet/hs-classify/internal/classify"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// Config holds embedding service connection settings.
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

func (c *Config) applyDefaults() {
	if c.Model == "" {
		c.Model = "multilingual-e5-base"
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
}

// Client calls an OpenAI-compatible /embeddings endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	logger     logging.Logger
}

var _ classify.Embedder = (*Client)(nil)

// NewClient builds an embedding client.
func NewClient(cfg *Config, log logging.Logger) (*Client, error) {
	if cfg == nil {
		return nil, errors.Internal("embedding config is required")
	}
	if log == nil {
		return nil, errors.Internal("logger is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.Validation("embedding base_url is required")
	}
	cfg.applyDefaults()

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		logger:     log.Named("embedding"),
	}, nil
}

type embedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Embed returns the embedding vector for a single text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Input: []string{text}, Model: c.model})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode embedding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "embedding request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "failed to read embedding response")
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr embedResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != nil {
			return nil, errors.New(errors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("embedding service error: %s", apiErr.Error.Message))
		}
		return nil, errors.New(errors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedding service returned status %d", resp.StatusCode))
	}

	var out embedResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "malformed embedding response")
	}
	if len(out.Data) == 0 || len(out.Data[0].Embedding) == 0 {
		return nil, errors.New(errors.ErrCodeEmbeddingFailed, "embedding service returned no vector")
	}
	return out.Data[0].Embedding, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}
