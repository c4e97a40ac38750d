// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

// Package storage provides the persistence backends for the memory
// graph.
//
// A Backend is a dumb store: it persists memories and relationships and
// answers the cheap filtered queries it can evaluate natively. All graph
// semantics — validation, cycle detection, search matching, traversal,
// pagination — live one layer up in pkg/memory.
//
// Two backends ship today: SQLiteBackend, the embedded zero-dependency
// default, and CloudBackend, a thin adapter over the hosted REST API.
// Relationship rows are bi-temporal: valid_from/valid_until track when
// the fact held, recorded_at tracks when it was learned. Invalidation
// sets valid_until and never deletes the row.
package storage
