package client

import (
	"context"
	"fmt"
	"net/url"
)

// CatalogClient calls the catalog browsing and ingest endpoints.
type CatalogClient struct {
	client *Client
}

// EntrySummary is the compact view of one nomenclature entry.
type EntrySummary struct {
	Code        string `json:"code"`
	Level       string `json:"level"`
	Description string `json:"description"`
	Leaf        bool   `json:"leaf"`
}

// NoteView is one legal note attached to an entry or its ancestors.
type NoteView struct {
	Code     string `json:"code"`
	Priority int    `json:"priority"`
	Text     string `json:"text"`
}

// EntryDetail is the full view of one entry including inherited notes
// and direct children.
type EntryDetail struct {
	EntrySummary
	ParentCode    string          `json:"parent_code,omitempty"`
	AttributeTags []string        `json:"attribute_tags,omitempty"`
	Notes         []NoteView      `json:"notes,omitempty"`
	Children      []*EntrySummary `json:"children,omitempty"`
}

// VersionInfo describes the nomenclature release currently served.
type VersionInfo struct {
	Version string `json:"version"`
	Entries int    `json:"entries"`
}

// Chapters lists all chapter-level entries.
func (cc *CatalogClient) Chapters(ctx context.Context) ([]*EntrySummary, error) {
	var out struct {
		Chapters []*EntrySummary `json:"chapters"`
	}
	if err := cc.client.get(ctx, "/api/v1/catalog/chapters", &out); err != nil {
		return nil, err
	}
	return out.Chapters, nil
}

// Get fetches one entry with its inherited notes and children.
func (cc *CatalogClient) Get(ctx context.Context, code string) (*EntryDetail, error) {
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	var out EntryDetail
	if err := cc.client.get(ctx, "/api/v1/catalog/codes/"+url.PathEscape(code), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Children lists the direct children of an entry.
func (cc *CatalogClient) Children(ctx context.Context, code string) ([]*EntrySummary, error) {
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}
	var out struct {
		Children []*EntrySummary `json:"children"`
	}
	if err := cc.client.get(ctx, "/api/v1/catalog/codes/"+url.PathEscape(code)+"/children", &out); err != nil {
		return nil, err
	}
	return out.Children, nil
}

// Version returns the nomenclature release currently served.
func (cc *CatalogClient) Version(ctx context.Context) (*VersionInfo, error) {
	var out VersionInfo
	if err := cc.client.get(ctx, "/api/v1/catalog/version", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ingest triggers a catalog ingest. An empty version ingests the
// latest published release.
func (cc *CatalogClient) Ingest(ctx context.Context, version string) (*VersionInfo, error) {
	var body interface{}
	if version != "" {
		body = map[string]string{"version": version}
	}
	var out VersionInfo
	if err := cc.client.post(ctx, "/api/v1/catalog/ingest", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
