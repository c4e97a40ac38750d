// Copyright (C) 2025-2026 Kraklabs. All rights reserved.
// Use of this source code is governed by the AGPL-3.0
// license that can be found in the LICENSE file.

package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Error kinds surfaced by the memory facade. Handlers classify with
// errors.Is; the concrete error carries the detail message.
var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrRelationship       = errors.New("relationship error")
	ErrCycle              = errors.New("cycle detected")
	ErrConflict           = errors.New("version conflict")
	ErrBackendUnavailable = errors.New("backend unavailable")
	ErrBackendTimeout     = errors.New("backend timeout")
)

// CycleError is returned when a relationship would close a cycle. Path
// holds the memory IDs along the discovered cycle, starting and ending
// at the same memory.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Classify converts an error into a user-visible tool result. Operation
// names the tool action for the fallback message. Internal errors are
// logged in full; the user-visible text never carries a stack trace.
func Classify(logger *slog.Logger, operation string, err error) *ToolResult {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case errors.Is(err, ErrValidation):
		return NewError(fmt.Sprintf("Invalid input: %v", err))
	case errors.Is(err, ErrNotFound):
		return NewError(fmt.Sprintf("Not found: %v", err))
	case errors.Is(err, ErrCycle):
		var cycErr *CycleError
		if errors.As(err, &cycErr) {
			return NewError(fmt.Sprintf("Relationship rejected, would create a cycle: %s", strings.Join(cycErr.Path, " -> ")))
		}
		return NewError(fmt.Sprintf("Relationship rejected, would create a cycle: %v", err))
	case errors.Is(err, ErrRelationship):
		return NewError(fmt.Sprintf("Relationship error: %v", err))
	case errors.Is(err, ErrConflict):
		return NewError(fmt.Sprintf("Conflict: %v", err))
	case errors.Is(err, ErrBackendTimeout):
		return NewError(fmt.Sprintf("Backend timed out while trying to %s. Retry later.", operation))
	case errors.Is(err, ErrBackendUnavailable):
		return NewError(fmt.Sprintf("Backend unavailable while trying to %s. Retry later.", operation))
	case errors.Is(err, context.DeadlineExceeded):
		return NewError(fmt.Sprintf("Timed out while trying to %s.", operation))
	default:
		logger.Error("internal error", "operation", operation, "error", err)
		return NewError(fmt.Sprintf("Failed to %s: %v", operation, err))
	}
}
