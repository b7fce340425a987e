// Package minio loads published catalog exports from an S3-compatible
// object store. Each catalog release is a pair of JSON objects under a
// version prefix, plus a LATEST marker naming the current release:
//
//	catalog/LATEST                      -> "2026-01"
//	catalog/2026-01/entries.json        -> []exportEntry
//	catalog/2026-01/notes.json          -> []exportNote
package minio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aduanet/hs-classify/internal/domain/catalog"
	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/pkg/errors"
)

// ObjectAPI is the slice of the minio client the source needs.
type ObjectAPI interface {
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (*minio.Object, error)
	BucketExists(ctx context.Context, bucketName string) (bool, error)
}

// Config holds object store connection settings.
type Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	UseSSL          bool          `mapstructure:"use_ssl"`
	Region          string        `mapstructure:"region"`
	Bucket          string        `mapstructure:"bucket"`
	Prefix          string        `mapstructure:"prefix"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

func (c *Config) applyDefaults() {
	if c.Region == "" {
		c.Region = "us-east-1"
	}
	if c.Bucket == "" {
		c.Bucket = "hs-catalog"
	}
	if c.Prefix == "" {
		c.Prefix = "catalog"
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// exportEntry mirrors one row of entries.json.
type exportEntry struct {
	Code          string   `json:"code"`
	Level         string   `json:"level"`
	Description   string   `json:"description"`
	ParentCode    string   `json:"parent_code,omitempty"`
	EmbeddingID   int64    `json:"embedding_id,omitempty"`
	AttributeTags []string `json:"attribute_tags,omitempty"`
}

// exportNote mirrors one row of notes.json.
type exportNote struct {
	Code     string `json:"code"`
	Priority int    `json:"priority"`
	Text     string `json:"text"`
}

// Source reads catalog releases from the object store.
type Source struct {
	client ObjectAPI
	cfg    *Config
	logger logging.Logger
}

var _ catalog.Source = (*Source)(nil)

// NewSource dials the object store and verifies the catalog bucket exists.
func NewSource(cfg *Config, log logging.Logger) (*Source, error) {
	if cfg == nil {
		return nil, errors.Internal("minio config is required")
	}
	if log == nil {
		return nil, errors.Internal("logger is required")
	}
	cfg.applyDefaults()

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to create minio client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "failed to connect to minio")
	}
	if !exists {
		return nil, errors.New(errors.ErrCodeNotFound, fmt.Sprintf("catalog bucket %q does not exist", cfg.Bucket))
	}

	log.Info("catalog object store connected",
		logging.String("endpoint", cfg.Endpoint),
		logging.String("bucket", cfg.Bucket),
	)
	return &Source{client: client, cfg: cfg, logger: log.Named("catalog.minio")}, nil
}

// NewSourceWithClient builds a Source on an existing client. Used by tests.
func NewSourceWithClient(client ObjectAPI, cfg *Config, log logging.Logger) *Source {
	cfg.applyDefaults()
	return &Source{client: client, cfg: cfg, logger: log.Named("catalog.minio")}
}

func (s *Source) objectName(parts ...string) string {
	return s.cfg.Prefix + "/" + strings.Join(parts, "/")
}

func (s *Source) readObject(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.cfg.Bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, fmt.Sprintf("failed to fetch %s", name))
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, errors.Wrap(err, errors.ErrCodeVersionNotFound, fmt.Sprintf("catalog object %s not found", name))
		}
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, fmt.Sprintf("failed to read %s", name))
	}
	return data, nil
}

// LatestVersion resolves the LATEST marker to a release version.
func (s *Source) LatestVersion(ctx context.Context) (string, error) {
	data, err := s.readObject(ctx, s.objectName("LATEST"))
	if err != nil {
		return "", err
	}
	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", errors.New(errors.ErrCodeVersionNotFound, "LATEST marker is empty")
	}
	return version, nil
}

// LoadEntries fetches and decodes entries.json for a release.
func (s *Source) LoadEntries(ctx context.Context, version string) ([]catalog.Entry, error) {
	data, err := s.readObject(ctx, s.objectName(version, "entries.json"))
	if err != nil {
		return nil, err
	}

	entries, err := decodeEntries(version, data)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded catalog entries from object store",
		logging.String("version", version),
		logging.Int("entries", len(entries)),
	)
	return entries, nil
}

// decodeEntries parses an entries.json export. Entries without an
// explicit level get theirs derived from the code length; a code no
// level fits fails the whole load.
func decodeEntries(version string, data []byte) ([]catalog.Entry, error) {
	var raw []exportEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIngestFailed, fmt.Sprintf("malformed entries export for version %s", version))
	}

	entries := make([]catalog.Entry, 0, len(raw))
	for _, e := range raw {
		level := catalog.Level(e.Level)
		if e.Level == "" {
			derived, err := catalog.LevelForCode(e.Code)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeIngestFailed, fmt.Sprintf("entry %q in entries export for version %s", e.Code, version))
			}
			level = derived
		}
		entries = append(entries, catalog.Entry{
			Code:          e.Code,
			Level:         level,
			Description:   e.Description,
			ParentCode:    e.ParentCode,
			EmbeddingID:   e.EmbeddingID,
			AttributeTags: e.AttributeTags,
		})
	}
	return entries, nil
}

// LoadNotes fetches and decodes notes.json for a release. A missing
// notes object is not an error; a release may carry no legal notes.
func (s *Source) LoadNotes(ctx context.Context, version string) ([]catalog.LegalNote, error) {
	data, err := s.readObject(ctx, s.objectName(version, "notes.json"))
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeVersionNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var raw []exportNote
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeIngestFailed, fmt.Sprintf("malformed notes export for version %s", version))
	}

	notes := make([]catalog.LegalNote, 0, len(raw))
	for _, n := range raw {
		notes = append(notes, catalog.LegalNote{Code: n.Code, Priority: n.Priority, Text: n.Text})
	}
	return notes, nil
}
