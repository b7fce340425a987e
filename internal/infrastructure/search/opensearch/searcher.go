// Package opensearch provides the full-text lexical search backend over
// catalog descriptions.  Each catalog version has its own index; the
// classification engine queries the index matching its pinned version so
// in-flight calls never see a half-reindexed catalog.
package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/aduanet/hs-classify/internal/classify"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// Config holds the connection settings for the catalog description indices.
type Config struct {
	Addresses   []string
	Username    string
	Password    string
	IndexPrefix string
	Timeout     time.Duration
}

func (c *Config) applyDefaults() {
	if c.IndexPrefix == "" {
		c.IndexPrefix = "hs-catalog"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
}

// Searcher implements classify.IndexSearcher.  Documents carry the fields
// "code" and "description"; the document id is the catalog code.
type Searcher struct {
	client *opensearch.Client
	cfg    Config
	logger logging.Logger
}

// NewSearcher builds the client and returns a ready Searcher.
func NewSearcher(cfg Config, logger logging.Logger) (*Searcher, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New(errors.ErrCodeValidation, "at least one opensearch address is required")
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "building opensearch client")
	}
	return &Searcher{client: client, cfg: cfg, logger: logger.Named("opensearch.searcher")}, nil
}

// indexName returns the per-version index, e.g. "hs-catalog-2026-01".
func (s *Searcher) indexName(version string) string {
	return s.cfg.IndexPrefix + "-" + strings.ToLower(version)
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float64 `json:"_score"`
			Source struct {
				Code string `json:"code"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchDescriptions runs a match query of the joined tokens against the
// description field and returns up to k hits with the backend's relevance
// score as raw score.
func (s *Searcher) SearchDescriptions(ctx context.Context, version string, tokens []string, k int) ([]classify.Hit, error) {
	if version == "" {
		return nil, errors.New(errors.ErrCodeValidation, "catalog version is required")
	}
	if len(tokens) == 0 || k <= 0 {
		return nil, nil
	}

	dsl := map[string]interface{}{
		"size": k,
		"query": map[string]interface{}{
			"match": map[string]interface{}{
				"description": map[string]interface{}{
					"query":     strings.Join(tokens, " "),
					"fuzziness": "AUTO",
				},
			},
		},
		"_source": []string{"code"},
	}
	body, err := json.Marshal(dsl)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "marshaling search query")
	}

	sctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req := opensearchapi.SearchRequest{
		Index: []string{s.indexName(version)},
		Body:  bytes.NewReader(body),
	}
	start := time.Now()
	resp, err := req.Do(sctx, s.client)
	if err != nil {
		if sctx.Err() == context.DeadlineExceeded {
			return nil, errors.New(errors.ErrCodeTimeout, "lexical search timed out")
		}
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "lexical search request failed")
	}
	defer resp.Body.Close()

	if resp.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, errors.New(errors.ErrCodeExternalService, "lexical search failed").
			WithDetail(resp.Status() + ": " + string(msg))
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decoding search response")
	}

	hits := make([]classify.Hit, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		if h.Source.Code == "" {
			continue
		}
		hits = append(hits, classify.Hit{Code: h.Source.Code, RawScore: h.Score})
	}

	s.logger.Debug("lexical search executed",
		logging.String("index", s.indexName(version)),
		logging.Int("hits", len(hits)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return hits, nil
}

// Ping checks cluster reachability.
func (s *Searcher) Ping(ctx context.Context) error {
	req := opensearchapi.PingRequest{}
	resp, err := req.Do(ctx, s.client)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "opensearch ping failed")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return errors.New(errors.ErrCodeExternalService, "opensearch ping returned "+resp.Status())
	}
	return nil
}
