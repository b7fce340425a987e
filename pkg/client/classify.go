package client

import (
	"context"
	"fmt"
	"strings"
)

// ClassifyClient calls the classification endpoints.
type ClassifyClient struct {
	client *Client
}

// Attributes carries structured product facts alongside the free-text
// description.
type Attributes struct {
	Material                string             `json:"material,omitempty"`
	Use                     string             `json:"use,omitempty"`
	Composition             map[string]float64 `json:"composition,omitempty"`
	Completeness            string             `json:"completeness,omitempty"`
	PackagingSoldSeparately bool               `json:"packaging_sold_separately,omitempty"`
}

// ClassifyRequest is the request body for Classify.
type ClassifyRequest struct {
	Description string      `json:"description"`
	Attributes  *Attributes `json:"attributes,omitempty"`
	SkipCache   bool        `json:"skip_cache,omitempty"`
}

// RuleStep is one applied interpretation rule in a classification trail.
type RuleStep struct {
	Rule   string `json:"rule"`
	Level  string `json:"level"`
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// Alternative is a non-winning candidate returned with a classification.
type Alternative struct {
	Code        string   `json:"code"`
	Description string   `json:"description"`
	Confidence  float64  `json:"confidence"`
	Methods     []string `json:"methods"`
}

// Classification is the result of a classify call.
type Classification struct {
	Code            string        `json:"code"`
	Description     string        `json:"description"`
	Confidence      float64       `json:"confidence"`
	Methods         []string      `json:"methods"`
	RuleTrail       []RuleStep    `json:"rule_trail"`
	Alternatives    []Alternative `json:"alternatives,omitempty"`
	CatalogVersion  string        `json:"catalog_version"`
	Degraded        bool          `json:"degraded"`
	DegradedReasons []string      `json:"degraded_reasons,omitempty"`
	Cached          bool          `json:"cached"`
	ElapsedMs       int64         `json:"elapsed_ms"`
}

// Explanation is the rule trail for a description without the full
// candidate ranking.
type Explanation struct {
	Code           string     `json:"code"`
	RuleTrail      []RuleStep `json:"rule_trail"`
	CatalogVersion string     `json:"catalog_version"`
}

// Classify submits a product description and returns the classified
// HS code with its confidence and rule trail.
func (cc *ClassifyClient) Classify(ctx context.Context, req *ClassifyRequest) (*Classification, error) {
	if req == nil || strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("description is required")
	}
	var out Classification
	if err := cc.client.post(ctx, "/api/v1/classify", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Explain returns only the interpretation rule trail for a description.
func (cc *ClassifyClient) Explain(ctx context.Context, req *ClassifyRequest) (*Explanation, error) {
	if req == nil || strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("description is required")
	}
	var out Explanation
	if err := cc.client.post(ctx, "/api/v1/classify/explain", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
