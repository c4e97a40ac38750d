// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kraklabs/memorygraph/pkg/tools"
)

// CloudBackend implements Backend against the hosted MemoryGraph REST
// API. It carries no local state; every call is one HTTP round trip.
type CloudBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// CloudConfig configures the cloud backend. APIURL and APIKey are
// required; Timeout defaults to 30s.
type CloudConfig struct {
	APIURL  string
	APIKey  string
	Timeout time.Duration
}

// NewCloudBackend builds a cloud backend from the config. It does not
// contact the API; use Ping to verify connectivity.
func NewCloudBackend(cfg CloudConfig) (*CloudBackend, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("cloud backend requires an API URL")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cloud backend requires an API key")
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &CloudBackend{
		baseURL: cfg.APIURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// EnsureSchema is a no-op: the hosted API owns its schema.
func (b *CloudBackend) EnsureSchema(ctx context.Context) error { return nil }

func (b *CloudBackend) StoreMemory(ctx context.Context, m *tools.Memory) (*tools.Memory, error) {
	var stored tools.Memory
	err := b.do(ctx, http.MethodPut, "/api/v1/memories/"+url.PathEscape(m.ID), m, &stored)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

func (b *CloudBackend) GetMemory(ctx context.Context, id string) (*tools.Memory, error) {
	var m tools.Memory
	err := b.do(ctx, http.MethodGet, "/api/v1/memories/"+url.PathEscape(id), nil, &m)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (b *CloudBackend) DeleteMemory(ctx context.Context, id string) (bool, error) {
	err := b.do(ctx, http.MethodDelete, "/api/v1/memories/"+url.PathEscape(id), nil, nil)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *CloudBackend) ListMemories(ctx context.Context, f MemoryFilter) ([]tools.Memory, error) {
	q := url.Values{}
	for _, t := range f.Types {
		q.Add("type", t)
	}
	if f.MinImportance != nil {
		q.Set("min_importance", strconv.FormatFloat(*f.MinImportance, 'f', -1, 64))
	}
	if f.MaxImportance != nil {
		q.Set("max_importance", strconv.FormatFloat(*f.MaxImportance, 'f', -1, 64))
	}
	if f.MinConfidence != nil {
		q.Set("min_confidence", strconv.FormatFloat(*f.MinConfidence, 'f', -1, 64))
	}
	if f.ProjectPath != "" {
		q.Set("project_path", f.ProjectPath)
	}
	if f.DateFrom != nil {
		q.Set("date_from", f.DateFrom.UTC().Format(time.RFC3339Nano))
	}
	if f.DateTo != nil {
		q.Set("date_to", f.DateTo.UTC().Format(time.RFC3339Nano))
	}
	var memories []tools.Memory
	if err := b.do(ctx, http.MethodGet, "/api/v1/memories?"+q.Encode(), nil, &memories); err != nil {
		return nil, err
	}
	return memories, nil
}

func (b *CloudBackend) AllMemories(ctx context.Context) ([]tools.Memory, error) {
	var memories []tools.Memory
	if err := b.do(ctx, http.MethodGet, "/api/v1/memories?all=true", nil, &memories); err != nil {
		return nil, err
	}
	return memories, nil
}

func (b *CloudBackend) CountMemories(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := b.do(ctx, http.MethodGet, "/api/v1/memories/count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (b *CloudBackend) CreateRelationship(ctx context.Context, r *tools.Relationship) error {
	return b.do(ctx, http.MethodPost, "/api/v1/relationships", r, nil)
}

func (b *CloudBackend) GetRelationship(ctx context.Context, id string) (*tools.Relationship, error) {
	var r tools.Relationship
	err := b.do(ctx, http.MethodGet, "/api/v1/relationships/"+url.PathEscape(id), nil, &r)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (b *CloudBackend) UpdateRelationship(ctx context.Context, r *tools.Relationship) error {
	return b.do(ctx, http.MethodPut, "/api/v1/relationships/"+url.PathEscape(r.ID), r, nil)
}

func (b *CloudBackend) GetRelationships(ctx context.Context, rq RelationshipQuery) ([]tools.Relationship, error) {
	q := url.Values{}
	q.Set("memory_id", rq.MemoryID)
	switch rq.Direction {
	case DirectionOut:
		q.Set("direction", "out")
	case DirectionIn:
		q.Set("direction", "in")
	default:
		q.Set("direction", "both")
	}
	for _, t := range rq.Types {
		q.Add("type", t)
	}
	if rq.AsOf != nil {
		q.Set("as_of", rq.AsOf.UTC().Format(time.RFC3339Nano))
	}
	if rq.IncludeInvalidated {
		q.Set("include_invalidated", "true")
	}
	var rels []tools.Relationship
	if err := b.do(ctx, http.MethodGet, "/api/v1/relationships?"+q.Encode(), nil, &rels); err != nil {
		return nil, err
	}
	return rels, nil
}

func (b *CloudBackend) AllRelationships(ctx context.Context) ([]tools.Relationship, error) {
	var rels []tools.Relationship
	if err := b.do(ctx, http.MethodGet, "/api/v1/relationships?all=true", nil, &rels); err != nil {
		return nil, err
	}
	return rels, nil
}

func (b *CloudBackend) ChangedSince(ctx context.Context, since time.Time) (created, invalidated []tools.Relationship, err error) {
	var out struct {
		Created     []tools.Relationship `json:"created"`
		Invalidated []tools.Relationship `json:"invalidated"`
	}
	path := "/api/v1/changes?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339Nano))
	if err := b.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, nil, err
	}
	return out.Created, out.Invalidated, nil
}

func (b *CloudBackend) Ping(ctx context.Context) error {
	return b.do(ctx, http.MethodGet, "/api/v1/health", nil, nil)
}

// IsCypherCapable reports false: the REST API exposes no query language.
func (b *CloudBackend) IsCypherCapable() bool { return false }

func (b *CloudBackend) Close() error { return nil }

// statusError carries the HTTP status for classification.
type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.status, e.body)
}

func (e *statusError) Unwrap() error {
	switch {
	case e.status == http.StatusRequestTimeout || e.status == http.StatusGatewayTimeout:
		return tools.ErrBackendTimeout
	case e.status >= 500 || e.status == http.StatusTooManyRequests:
		return ErrConnectionFailed
	case e.status == http.StatusConflict:
		return ErrIntegrity
	default:
		return nil
	}
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

func (b *CloudBackend) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &statusError{status: resp.StatusCode, body: string(detail)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
