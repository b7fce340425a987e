package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/pkg/errors"
)

const defaultBulkBatchSize = 500

// catalogDocument is the indexed shape of one catalog entry.
type catalogDocument struct {
	Code        string `json:"code"`
	Level       string `json:"level"`
	Description string `json:"description"`
}

// Indexer writes catalog snapshots into per-version indices.  Used by the
// ingestion flow, never by the classification path.
type Indexer struct {
	searcher  *Searcher
	batchSize int
	logger    logging.Logger
}

// NewIndexer wires an Indexer sharing the Searcher's client and naming.
func NewIndexer(searcher *Searcher, logger logging.Logger) (*Indexer, error) {
	if searcher == nil {
		return nil, errors.New(errors.ErrCodeInternal, "searcher is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Indexer{
		searcher:  searcher,
		batchSize: defaultBulkBatchSize,
		logger:    logger.Named("opensearch.indexer"),
	}, nil
}

// IndexSnapshot bulk-writes every entry of the snapshot into the snapshot
// version's index.  The document id is the catalog code, so re-running an
// ingest overwrites rather than duplicates.
func (i *Indexer) IndexSnapshot(ctx context.Context, snap *catalog.Snapshot) error {
	index := i.searcher.indexName(snap.Version())
	entries := snap.All()
	start := time.Now()

	for begin := 0; begin < len(entries); begin += i.batchSize {
		end := begin + i.batchSize
		if end > len(entries) {
			end = len(entries)
		}

		var buf bytes.Buffer
		for n := begin; n < end; n++ {
			e := &entries[n]
			fmt.Fprintf(&buf, `{"index":{"_index":%q,"_id":%q}}`+"\n", index, e.Code)
			doc, err := json.Marshal(catalogDocument{
				Code:        e.Code,
				Level:       e.Level.String(),
				Description: e.Description,
			})
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeSerialization, "marshaling catalog document "+e.Code)
			}
			buf.Write(doc)
			buf.WriteByte('\n')
		}

		req := opensearchapi.BulkRequest{Body: bytes.NewReader(buf.Bytes())}
		resp, err := req.Do(ctx, i.searcher.client)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeExternalService, "bulk indexing catalog entries")
		}
		failed := resp.IsError()
		status := resp.Status()
		resp.Body.Close()
		if failed {
			return errors.New(errors.ErrCodeExternalService, "bulk indexing returned "+status)
		}
	}

	i.logger.Info("catalog snapshot indexed",
		logging.String("index", index),
		logging.Int("entries", len(entries)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
}
