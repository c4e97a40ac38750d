// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kraklabs/memorygraph/pkg/tools"
)

// schemaVersion is written to the schema_version table at init.
const schemaVersion = 1

// columnTimeFormat is the fixed-width UTC format used for TIMESTAMP
// columns. Fixed millisecond precision keeps lexicographic and
// chronological ordering identical.
const columnTimeFormat = "2006-01-02T15:04:05.000Z"

// SQLiteBackend implements Backend over a single SQLite file. This is
// the reference embedded backend and the only one guaranteed to exist in
// every deployment.
type SQLiteBackend struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// SQLiteConfig configures the embedded backend.
type SQLiteConfig struct {
	// Path is the database file. ":memory:" opens a private in-memory
	// database, used by tests.
	Path string
}

// NewSQLiteBackend opens (creating if needed) the database at the
// configured path and applies the schema.
func NewSQLiteBackend(cfg SQLiteConfig) (*SQLiteBackend, error) {
	path := cfg.Path
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		path = filepath.Join(homeDir, ".memorygraph", "memorygraph.db")
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection serializes writers and keeps :memory:
	// databases visible across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil && !strings.Contains(pragma, "journal_mode") {
			db.Close()
			return nil, fmt.Errorf("apply %s: %w", pragma, err)
		}
	}

	b := &SQLiteBackend{db: db, path: path}
	if err := b.EnsureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return b, nil
}

// schemaStatements returns the DDL for the embedded backend. Every
// statement is idempotent.
func schemaStatements() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS schema_version (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS nodes (
			id         TEXT PRIMARY KEY,
			label      TEXT NOT NULL,
			properties TEXT NOT NULL,
			created_at TIMESTAMP,
			updated_at TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			id             TEXT PRIMARY KEY,
			from_id        TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
			to_id          TEXT NOT NULL REFERENCES nodes(id) ON DELETE CASCADE,
			rel_type       TEXT NOT NULL,
			properties     TEXT NOT NULL,
			valid_from     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			valid_until    TIMESTAMP,
			recorded_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			invalidated_by TEXT REFERENCES relationships(id) ON DELETE SET NULL,
			created_at     TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_created ON nodes(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_rel_from ON relationships(from_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rel_to ON relationships(to_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rel_type ON relationships(rel_type)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_temporal ON relationships(valid_from, valid_until)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_current ON relationships(valid_until) WHERE valid_until IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_recorded ON relationships(recorded_at)`,
	}
}

// EnsureSchema creates tables and indexes if they don't exist and
// records the schema version. Safe to call multiple times.
func (b *SQLiteBackend) EnsureSchema(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, stmt := range schemaStatements() {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", mapSQLiteError(err))
		}
	}
	_, err := b.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)`,
		schemaVersion, formatColumnTime(time.Now()))
	if err != nil {
		return fmt.Errorf("record schema version: %w", mapSQLiteError(err))
	}
	return nil
}

// StoreMemory upserts the memory by id. On replace, created_at is
// preserved and the persisted version is incremented past the stored one.
func (b *SQLiteBackend) StoreMemory(ctx context.Context, m *tools.Memory) (*tools.Memory, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed: %w", ErrConnectionFailed)
	}

	stored := *m
	now := time.Now().UTC()

	existing, err := b.getMemoryLocked(ctx, m.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		stored.CreatedAt = existing.CreatedAt
		stored.Version = existing.Version + 1
		stored.UpdatedAt = now
	} else {
		// New rows keep supplied timestamps so imports reproduce the
		// source exactly.
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		if stored.UpdatedAt.IsZero() {
			stored.UpdatedAt = now
		}
		if stored.Version == 0 {
			stored.Version = 1
		}
	}

	payload, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("encode memory: %w", err)
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO nodes (id, label, properties, created_at, updated_at)
		VALUES (?, 'Memory', ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			properties = excluded.properties,
			updated_at = excluded.updated_at`,
		stored.ID, string(payload),
		formatColumnTime(stored.CreatedAt), formatColumnTime(stored.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("store memory: %w", mapSQLiteError(err))
	}
	return &stored, nil
}

// GetMemory returns the memory with the given id, or nil when absent.
func (b *SQLiteBackend) GetMemory(ctx context.Context, id string) (*tools.Memory, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed: %w", ErrConnectionFailed)
	}
	return b.getMemoryLocked(ctx, id)
}

func (b *SQLiteBackend) getMemoryLocked(ctx context.Context, id string) (*tools.Memory, error) {
	var properties string
	err := b.db.QueryRowContext(ctx,
		`SELECT properties FROM nodes WHERE id = ? AND label = 'Memory'`, id).Scan(&properties)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get memory: %w", mapSQLiteError(err))
	}
	var m tools.Memory
	if err := json.Unmarshal([]byte(properties), &m); err != nil {
		return nil, fmt.Errorf("decode memory %s: %w", id, err)
	}
	return &m, nil
}

// DeleteMemory removes the memory row; the foreign keys cascade the
// delete to every relationship touching it.
func (b *SQLiteBackend) DeleteMemory(ctx context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false, fmt.Errorf("backend is closed: %w", ErrConnectionFailed)
	}

	result, err := b.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete memory: %w", mapSQLiteError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListMemories applies the filter's predicates via json_extract and
// returns rows ordered by importance DESC, updated_at DESC, id ASC.
func (b *SQLiteBackend) ListMemories(ctx context.Context, f MemoryFilter) ([]tools.Memory, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed: %w", ErrConnectionFailed)
	}

	query := `SELECT properties FROM nodes WHERE label = 'Memory'`
	var args []any

	if len(f.Types) > 0 {
		query += ` AND json_extract(properties, '$.type') IN (` + placeholders(len(f.Types)) + `)`
		for _, t := range f.Types {
			args = append(args, t)
		}
	}
	if f.MinImportance != nil {
		query += ` AND CAST(json_extract(properties, '$.importance') AS REAL) >= ?`
		args = append(args, *f.MinImportance)
	}
	if f.MaxImportance != nil {
		query += ` AND CAST(json_extract(properties, '$.importance') AS REAL) <= ?`
		args = append(args, *f.MaxImportance)
	}
	if f.MinConfidence != nil {
		query += ` AND CAST(json_extract(properties, '$.confidence') AS REAL) >= ?`
		args = append(args, *f.MinConfidence)
	}
	if f.ProjectPath != "" {
		query += ` AND json_extract(properties, '$.context.project_path') = ?`
		args = append(args, f.ProjectPath)
	}
	if f.DateFrom != nil {
		query += ` AND created_at >= ?`
		args = append(args, formatColumnTime(*f.DateFrom))
	}
	if f.DateTo != nil {
		query += ` AND created_at <= ?`
		args = append(args, formatColumnTime(*f.DateTo))
	}
	query += ` ORDER BY CAST(json_extract(properties, '$.importance') AS REAL) DESC, updated_at DESC, id ASC`

	return b.scanMemories(ctx, query, args...)
}

// AllMemories returns every memory ordered by (created_at, id), the
// canonical snapshot order.
func (b *SQLiteBackend) AllMemories(ctx context.Context) ([]tools.Memory, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed: %w", ErrConnectionFailed)
	}
	return b.scanMemories(ctx,
		`SELECT properties FROM nodes WHERE label = 'Memory' ORDER BY created_at ASC, id ASC`)
}

func (b *SQLiteBackend) scanMemories(ctx context.Context, query string, args ...any) ([]tools.Memory, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list memories: %w", mapSQLiteError(err))
	}
	defer rows.Close()

	var memories []tools.Memory
	for rows.Next() {
		var properties string
		if err := rows.Scan(&properties); err != nil {
			return nil, err
		}
		var m tools.Memory
		if err := json.Unmarshal([]byte(properties), &m); err != nil {
			return nil, fmt.Errorf("decode memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// CountMemories returns the number of stored memories. Used as the
// health probe.
func (b *SQLiteBackend) CountMemories(ctx context.Context) (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, fmt.Errorf("backend is closed: %w", ErrConnectionFailed)
	}
	var count int
	err := b.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM nodes WHERE label = 'Memory'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count memories: %w", mapSQLiteError(err))
	}
	return count, nil
}

// CreateRelationship inserts a relationship row with the supplied
// temporal fields.
func (b *SQLiteBackend) CreateRelationship(ctx context.Context, r *tools.Relationship) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("backend is closed: %w", ErrConnectionFailed)
	}

	payload, err := json.Marshal(&r.Properties)
	if err != nil {
		return fmt.Errorf("encode relationship properties: %w", err)
	}

	var validUntil, invalidatedBy any
	if r.ValidUntil != nil {
		validUntil = formatColumnTime(*r.ValidUntil)
	}
	if r.InvalidatedBy != "" {
		invalidatedBy = r.InvalidatedBy
	}

	_, err = b.db.ExecContext(ctx, `
		INSERT INTO relationships
			(id, from_id, to_id, rel_type, properties, valid_from, valid_until, recorded_at, invalidated_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.FromMemoryID, r.ToMemoryID, r.Type, string(payload),
		formatColumnTime(r.ValidFrom), validUntil,
		formatColumnTime(r.RecordedAt), invalidatedBy,
		formatColumnTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("create relationship: %w", mapSQLiteError(err))
	}
	return nil
}

// GetRelationship returns the relationship with the given id, or nil.
func (b *SQLiteBackend) GetRelationship(ctx context.Context, id string) (*tools.Relationship, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed: %w", ErrConnectionFailed)
	}

	rels, err := b.scanRelationships(ctx,
		relationshipSelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return nil, nil
	}
	return &rels[0], nil
}

// UpdateRelationship persists the mutable fields of an existing row.
func (b *SQLiteBackend) UpdateRelationship(ctx context.Context, r *tools.Relationship) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return fmt.Errorf("backend is closed: %w", ErrConnectionFailed)
	}

	payload, err := json.Marshal(&r.Properties)
	if err != nil {
		return fmt.Errorf("encode relationship properties: %w", err)
	}
	var validUntil, invalidatedBy any
	if r.ValidUntil != nil {
		validUntil = formatColumnTime(*r.ValidUntil)
	}
	if r.InvalidatedBy != "" {
		invalidatedBy = r.InvalidatedBy
	}

	result, err := b.db.ExecContext(ctx, `
		UPDATE relationships
		SET properties = ?, valid_until = ?, invalidated_by = ?
		WHERE id = ?`,
		string(payload), validUntil, invalidatedBy, r.ID)
	if err != nil {
		return fmt.Errorf("update relationship: %w", mapSQLiteError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("relationship %s: %w", r.ID, sql.ErrNoRows)
	}
	return nil
}

// GetRelationships returns relationships touching a memory, filtered by
// direction, type, and the temporal visibility rule.
func (b *SQLiteBackend) GetRelationships(ctx context.Context, q RelationshipQuery) ([]tools.Relationship, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed: %w", ErrConnectionFailed)
	}

	query := relationshipSelect
	var conds []string
	var args []any

	switch q.Direction {
	case DirectionOut:
		conds = append(conds, `from_id = ?`)
		args = append(args, q.MemoryID)
	case DirectionIn:
		conds = append(conds, `to_id = ?`)
		args = append(args, q.MemoryID)
	default:
		conds = append(conds, `(from_id = ? OR to_id = ?)`)
		args = append(args, q.MemoryID, q.MemoryID)
	}

	if len(q.Types) > 0 {
		conds = append(conds, `rel_type IN (`+placeholders(len(q.Types))+`)`)
		for _, t := range q.Types {
			args = append(args, t)
		}
	}

	if !q.IncludeInvalidated {
		if q.AsOf != nil {
			ts := formatColumnTime(*q.AsOf)
			conds = append(conds, `valid_from <= ?`, `(valid_until IS NULL OR valid_until > ?)`)
			args = append(args, ts, ts)
		} else {
			conds = append(conds, `valid_until IS NULL`)
		}
	}

	query += ` WHERE ` + strings.Join(conds, ` AND `) + ` ORDER BY valid_from ASC, id ASC`
	return b.scanRelationships(ctx, query, args...)
}

// AllRelationships returns every relationship, invalidated rows
// included, ordered by (created_at, id).
func (b *SQLiteBackend) AllRelationships(ctx context.Context) ([]tools.Relationship, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("backend is closed: %w", ErrConnectionFailed)
	}
	return b.scanRelationships(ctx, relationshipSelect+` ORDER BY created_at ASC, id ASC`)
}

// ChangedSince returns relationships recorded since the given instant
// and relationships invalidated since it.
func (b *SQLiteBackend) ChangedSince(ctx context.Context, since time.Time) (created, invalidated []tools.Relationship, err error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, nil, fmt.Errorf("backend is closed: %w", ErrConnectionFailed)
	}

	ts := formatColumnTime(since)
	created, err = b.scanRelationships(ctx,
		relationshipSelect+` WHERE recorded_at >= ? ORDER BY recorded_at ASC, id ASC`, ts)
	if err != nil {
		return nil, nil, err
	}
	invalidated, err = b.scanRelationships(ctx,
		relationshipSelect+` WHERE valid_until IS NOT NULL AND valid_until >= ? ORDER BY valid_until ASC, id ASC`, ts)
	if err != nil {
		return nil, nil, err
	}
	return created, invalidated, nil
}

const relationshipSelect = `
	SELECT id, from_id, to_id, rel_type, properties,
	       valid_from, valid_until, recorded_at, invalidated_by, created_at
	FROM relationships`

func (b *SQLiteBackend) scanRelationships(ctx context.Context, query string, args ...any) ([]tools.Relationship, error) {
	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query relationships: %w", mapSQLiteError(err))
	}
	defer rows.Close()

	var rels []tools.Relationship
	for rows.Next() {
		var (
			r             tools.Relationship
			properties    string
			validFrom     string
			validUntil    sql.NullString
			recordedAt    string
			invalidatedBy sql.NullString
			createdAt     string
		)
		if err := rows.Scan(&r.ID, &r.FromMemoryID, &r.ToMemoryID, &r.Type, &properties,
			&validFrom, &validUntil, &recordedAt, &invalidatedBy, &createdAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(properties), &r.Properties); err != nil {
			return nil, fmt.Errorf("decode relationship %s: %w", r.ID, err)
		}
		if r.ValidFrom, err = parseColumnTime(validFrom); err != nil {
			return nil, err
		}
		if validUntil.Valid {
			t, err := parseColumnTime(validUntil.String)
			if err != nil {
				return nil, err
			}
			r.ValidUntil = &t
		}
		if r.RecordedAt, err = parseColumnTime(recordedAt); err != nil {
			return nil, err
		}
		if invalidatedBy.Valid {
			r.InvalidatedBy = invalidatedBy.String
		}
		if r.CreatedAt, err = parseColumnTime(createdAt); err != nil {
			return nil, err
		}
		r.UpdatedAt = relationshipUpdatedAt(&r)
		rels = append(rels, r)
	}
	return rels, rows.Err()
}

// relationshipUpdatedAt derives the last-touched instant from the
// persisted fields; the schema carries no updated_at column.
func relationshipUpdatedAt(r *tools.Relationship) time.Time {
	updated := r.CreatedAt
	if r.Properties.LastReinforced.After(updated) {
		updated = r.Properties.LastReinforced
	}
	if r.ValidUntil != nil && r.ValidUntil.After(updated) {
		updated = *r.ValidUntil
	}
	return updated
}

// Ping answers whether the database responds to a trivial query.
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return fmt.Errorf("backend is closed: %w", ErrConnectionFailed)
	}
	var one int
	if err := b.db.QueryRowContext(ctx, `SELECT 1`).Scan(&one); err != nil {
		return fmt.Errorf("ping: %w", mapSQLiteError(err))
	}
	return nil
}

// IsCypherCapable reports false: the embedded backend speaks SQL only.
func (b *SQLiteBackend) IsCypherCapable() bool { return false }

// Close closes the database connection. Safe to call twice.
func (b *SQLiteBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.db.Close()
}

// Path returns the database file path.
func (b *SQLiteBackend) Path() string { return b.path }

func formatColumnTime(t time.Time) string {
	return t.UTC().Format(columnTimeFormat)
}

func parseColumnTime(s string) (time.Time, error) {
	t, err := time.Parse(columnTimeFormat, s)
	if err != nil {
		// The driver returns TIMESTAMP columns as time.Time; scanning
		// that into a string yields RFC3339Nano.
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		// Rows written by SQLite defaults use its own format.
		t, err = time.Parse("2006-01-02 15:04:05", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
		}
	}
	return t.UTC(), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// mapSQLiteError classifies driver errors into the backend error kinds.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY"):
		return fmt.Errorf("%w: %v", ErrDatabaseLocked, err)
	case strings.Contains(msg, "constraint") || strings.Contains(msg, "SQLITE_CONSTRAINT"):
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	case strings.Contains(msg, "unable to open") || strings.Contains(msg, "SQLITE_CANTOPEN"):
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	default:
		return err
	}
}
