// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

// Package migrate moves memory graphs between backends through a
// canonical snapshot format. The engine is backend-neutral: it speaks
// only through the storage capability set.
package migrate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kraklabs/memorygraph/pkg/storage"
	"github.com/kraklabs/memorygraph/pkg/tools"
)

// snapshotSchemaVersion is the version stamped on exported snapshots.
const snapshotSchemaVersion = 1

var (
	ErrVerificationFailed = errors.New("verification failed")
	ErrImportValidation   = errors.New("import validation failed")
	ErrTransport          = errors.New("transport error")
)

// ImportMode governs conflicts when importing into a non-empty target.
type ImportMode int

const (
	// MergeByID overwrites target rows that share an id with the snapshot.
	MergeByID ImportMode = iota
	// RefuseIfExists aborts the import when any snapshot id already
	// exists in the target.
	RefuseIfExists
)

// Counts holds the snapshot's entity counts.
type Counts struct {
	Memories      int `json:"memories"`
	Relationships int `json:"relationships"`
}

// Snapshot is the canonical export artifact. Memories and relationships
// are ordered by (created_at, id); invalidated relationships are
// included.
type Snapshot struct {
	SchemaVersion int                  `json:"schema_version"`
	GeneratedAt   time.Time            `json:"generated_at"`
	Counts        Counts               `json:"counts"`
	Memories      []tools.Memory       `json:"memories"`
	Relationships []tools.Relationship `json:"relationships"`
}

// canonicalBody is the checksummed part of a snapshot. GeneratedAt is
// excluded so that two exports of identical graphs hash identically.
type canonicalBody struct {
	SchemaVersion int                  `json:"schema_version"`
	Counts        Counts               `json:"counts"`
	Memories      []tools.Memory       `json:"memories"`
	Relationships []tools.Relationship `json:"relationships"`
}

// Engine performs exports, imports, migrations, and validations.
type Engine struct {
	logger *slog.Logger
}

// NewEngine builds a migration engine.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Export reads the full graph from a backend into a snapshot. Memories
// and relationships are fetched concurrently.
func (e *Engine) Export(ctx context.Context, backend storage.Backend) (*Snapshot, error) {
	var (
		memories      []tools.Memory
		relationships []tools.Relationship
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		memories, err = backend.AllMemories(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		relationships, err = backend.AllRelationships(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	if memories == nil {
		memories = []tools.Memory{}
	}
	if relationships == nil {
		relationships = []tools.Relationship{}
	}
	return &Snapshot{
		SchemaVersion: snapshotSchemaVersion,
		GeneratedAt:   time.Now().UTC(),
		Counts:        Counts{Memories: len(memories), Relationships: len(relationships)},
		Memories:      memories,
		Relationships: relationships,
	}, nil
}

// validateSnapshot re-checks the facade invariants on snapshot content:
// schema version, id uniqueness, type validity, endpoint presence, and
// acyclicity of the current ordering-imposing sub-graph.
func validateSnapshot(s *Snapshot) error {
	if s.SchemaVersion > snapshotSchemaVersion {
		return fmt.Errorf("%w: snapshot schema version %d is newer than supported %d",
			ErrImportValidation, s.SchemaVersion, snapshotSchemaVersion)
	}
	if s.Counts.Memories != len(s.Memories) || s.Counts.Relationships != len(s.Relationships) {
		return fmt.Errorf("%w: counts do not match body", ErrImportValidation)
	}

	memoryIDs := make(map[string]bool, len(s.Memories))
	for i := range s.Memories {
		m := &s.Memories[i]
		if m.ID == "" {
			return fmt.Errorf("%w: memory without id", ErrImportValidation)
		}
		if memoryIDs[m.ID] {
			return fmt.Errorf("%w: duplicate memory id %s", ErrImportValidation, m.ID)
		}
		memoryIDs[m.ID] = true
		if !tools.ValidMemoryTypes[m.Type] {
			return fmt.Errorf("%w: memory %s has unknown type %q", ErrImportValidation, m.ID, m.Type)
		}
	}

	relIDs := make(map[string]bool, len(s.Relationships))
	ordering := make(map[string][]string)
	for i := range s.Relationships {
		r := &s.Relationships[i]
		if r.ID == "" {
			return fmt.Errorf("%w: relationship without id", ErrImportValidation)
		}
		if relIDs[r.ID] {
			return fmt.Errorf("%w: duplicate relationship id %s", ErrImportValidation, r.ID)
		}
		relIDs[r.ID] = true
		if !tools.ValidRelationshipType(r.Type) {
			return fmt.Errorf("%w: relationship %s has unknown type %q", ErrImportValidation, r.ID, r.Type)
		}
		if r.FromMemoryID == r.ToMemoryID {
			return fmt.Errorf("%w: relationship %s is self-referential", ErrImportValidation, r.ID)
		}
		if !memoryIDs[r.FromMemoryID] || !memoryIDs[r.ToMemoryID] {
			return fmt.Errorf("%w: relationship %s references a memory outside the snapshot",
				ErrImportValidation, r.ID)
		}
		if r.Current() && tools.OrderingRelationshipType(r.Type) {
			ordering[r.FromMemoryID] = append(ordering[r.FromMemoryID], r.ToMemoryID)
		}
	}

	if cyclic(ordering) {
		return fmt.Errorf("%w: current ordering-imposing relationships contain a cycle", ErrImportValidation)
	}
	return nil
}

// cyclic detects a cycle in a directed adjacency map via three-color DFS.
func cyclic(adj map[string][]string) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(adj))
	var visit func(string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, next := range adj[id] {
			switch color[next] {
			case gray:
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	for id := range adj {
		if color[id] == white && visit(id) {
			return true
		}
	}
	return false
}

// Import writes a snapshot into the target backend, preserving ids,
// versions, and the temporal fields. Invariants are re-checked before
// any write.
func (e *Engine) Import(ctx context.Context, s *Snapshot, target storage.Backend, mode ImportMode) error {
	if err := validateSnapshot(s); err != nil {
		return err
	}

	if mode == RefuseIfExists {
		for i := range s.Memories {
			existing, err := target.GetMemory(ctx, s.Memories[i].ID)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrTransport, err)
			}
			if existing != nil {
				return fmt.Errorf("%w: memory %s already exists in target",
					ErrImportValidation, s.Memories[i].ID)
			}
		}
	}

	for i := range s.Memories {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if _, err := target.StoreMemory(ctx, &s.Memories[i]); err != nil {
			return fmt.Errorf("%w: store memory %s: %v", ErrTransport, s.Memories[i].ID, err)
		}
	}
	for i := range s.Relationships {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		r := s.Relationships[i]
		existing, err := target.GetRelationship(ctx, r.ID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransport, err)
		}
		if existing != nil {
			err = target.UpdateRelationship(ctx, &r)
		} else {
			err = target.CreateRelationship(ctx, &r)
		}
		if err != nil {
			return fmt.Errorf("%w: write relationship %s: %v", ErrTransport, r.ID, err)
		}
	}

	e.logger.Info("snapshot imported",
		"memories", s.Counts.Memories, "relationships", s.Counts.Relationships)
	return nil
}

// Checksum returns the SHA-256 of the snapshot's canonical body.
func Checksum(s *Snapshot) (string, error) {
	body := canonicalBody{
		SchemaVersion: s.SchemaVersion,
		Counts:        s.Counts,
		Memories:      s.Memories,
		Relationships: s.Relationships,
	}
	payload, err := json.Marshal(&body)
	if err != nil {
		return "", fmt.Errorf("canonicalize snapshot: %w", err)
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// Migrate exports the source graph and imports it into the target, then
// verifies counts and checksum against a fresh export of the target.
// On verification failure the target is rolled back to its
// pre-migration state. With dryRun the target is never written.
func (e *Engine) Migrate(ctx context.Context, source, target storage.Backend, dryRun bool) (*tools.MigrationReport, error) {
	snapshot, err := e.Export(ctx, source)
	if err != nil {
		return nil, err
	}
	sum, err := Checksum(snapshot)
	if err != nil {
		return nil, err
	}

	report := &tools.MigrationReport{
		DryRun:        dryRun,
		Memories:      snapshot.Counts.Memories,
		Relationships: snapshot.Counts.Relationships,
		Checksum:      sum,
	}
	if dryRun {
		if err := validateSnapshot(snapshot); err != nil {
			return nil, err
		}
		return report, nil
	}

	// Keep the pre-migration target state as the rollback path.
	before, err := e.Export(ctx, target)
	if err != nil {
		return nil, err
	}

	if err := e.Import(ctx, snapshot, target, MergeByID); err != nil {
		e.rollback(ctx, target, before)
		return nil, err
	}

	after, err := e.Export(ctx, target)
	if err != nil {
		e.rollback(ctx, target, before)
		return nil, err
	}
	afterSum, err := Checksum(after)
	if err != nil {
		e.rollback(ctx, target, before)
		return nil, err
	}
	if after.Counts != snapshot.Counts || afterSum != sum {
		e.rollback(ctx, target, before)
		return nil, fmt.Errorf("%w: target state does not match source after import", ErrVerificationFailed)
	}

	report.Verified = true
	e.logger.Info("migration verified", "checksum", sum)
	return report, nil
}

// rollback restores a target to a previously exported state. Best
// effort: failures are logged, the primary error is never masked.
func (e *Engine) rollback(ctx context.Context, target storage.Backend, before *Snapshot) {
	e.logger.Warn("rolling back target to pre-migration state")
	if err := e.clear(ctx, target); err != nil {
		e.logger.Error("rollback clear failed", "error", err)
		return
	}
	if err := e.Import(ctx, before, target, MergeByID); err != nil {
		e.logger.Error("rollback import failed", "error", err)
	}
}

// clear deletes every memory from the backend; relationship rows go
// with them by cascade.
func (e *Engine) clear(ctx context.Context, backend storage.Backend) error {
	memories, err := backend.AllMemories(ctx)
	if err != nil {
		return err
	}
	for i := range memories {
		if _, err := backend.DeleteMemory(ctx, memories[i].ID); err != nil {
			return err
		}
	}
	return nil
}

// Validate compares two backends through fresh exports: counts,
// checksums, and id ordering.
func (e *Engine) Validate(ctx context.Context, source, target storage.Backend) (*tools.ValidationReport, error) {
	src, err := e.Export(ctx, source)
	if err != nil {
		return nil, err
	}
	dst, err := e.Export(ctx, target)
	if err != nil {
		return nil, err
	}
	srcSum, err := Checksum(src)
	if err != nil {
		return nil, err
	}
	dstSum, err := Checksum(dst)
	if err != nil {
		return nil, err
	}

	report := &tools.ValidationReport{
		SourceMemories:  src.Counts.Memories,
		TargetMemories:  dst.Counts.Memories,
		SourceRelations: src.Counts.Relationships,
		TargetRelations: dst.Counts.Relationships,
		SourceChecksum:  srcSum,
		TargetChecksum:  dstSum,
		CountsMatch:     src.Counts == dst.Counts,
		ChecksumsMatch:  srcSum == dstSum,
	}
	report.OrderingPreserved = orderingEqual(src, dst)
	return report, nil
}

func orderingEqual(a, b *Snapshot) bool {
	if len(a.Memories) != len(b.Memories) || len(a.Relationships) != len(b.Relationships) {
		return false
	}
	for i := range a.Memories {
		if a.Memories[i].ID != b.Memories[i].ID {
			return false
		}
	}
	for i := range a.Relationships {
		if a.Relationships[i].ID != b.Relationships[i].ID {
			return false
		}
	}
	return true
}

// MarshalIndent renders the snapshot as indented JSON.
func (s *Snapshot) MarshalIndent() ([]byte, error) {
	payload, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return payload, nil
}

// WriteSnapshotFile serializes a snapshot to disk as indented JSON.
func WriteSnapshotFile(path string, s *Snapshot) error {
	payload, err := s.MarshalIndent()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, payload, 0600); err != nil {
		return fmt.Errorf("%w: write snapshot: %v", ErrTransport, err)
	}
	return nil
}

// ReadSnapshotFile loads a snapshot from disk.
func ReadSnapshotFile(path string) (*Snapshot, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read snapshot: %v", ErrTransport, err)
	}
	var s Snapshot
	if err := json.Unmarshal(payload, &s); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", ErrImportValidation, err)
	}
	return &s, nil
}
