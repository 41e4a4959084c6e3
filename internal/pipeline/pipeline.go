// Package pipeline implements the carrier award workflow: quick status
// changes, award and not-award decisions, stage-gate checks, bulk
// operations, and assignment notes with mention fanout.
//
// The pipeline owns orchestration and validation; all multi-row atomicity
// lives in the store layer.
package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/notify"
	"github.com/sells-group/sourcing-cli/internal/store"
	"github.com/sells-group/sourcing-cli/pkg/directory"
)

// Pipeline coordinates workflow operations over the store. Directory and
// fanout are optional; without them notes are saved but mentions are not
// resolved or delivered.
type Pipeline struct {
	store         store.Store
	dir           directory.Lookup
	fanout        *notify.Fanout
	maxConcurrent int
}

// New creates a Pipeline. dir and fanout may be nil. maxConcurrent bounds
// bulk operation parallelism; values below 1 fall back to 1.
func New(st store.Store, dir directory.Lookup, fanout *notify.Fanout, maxConcurrent int) *Pipeline {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Pipeline{
		store:         st,
		dir:           dir,
		fanout:        fanout,
		maxConcurrent: maxConcurrent,
	}
}

// logActivity appends an audit entry. The operation the entry describes has
// already committed, so a failure here is logged rather than surfaced.
func (p *Pipeline) logActivity(ctx context.Context, e model.ActivityEntry) {
	e.CreatedAt = time.Now().UTC()
	if err := p.store.AppendActivity(ctx, &e); err != nil {
		zap.L().Warn("pipeline: activity append failed",
			zap.String("action", e.Action),
			zap.String("assignment_id", e.AssignmentID),
			zap.Error(err),
		)
	}
}
