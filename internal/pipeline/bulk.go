package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/store"
)

// BulkAction names a per-assignment operation that can run over a set.
type BulkAction string

const (
	BulkMarkSubmitted BulkAction = "mark_submitted"
	BulkAward         BulkAction = "award"
	BulkNotAward      BulkAction = "not_award"
)

// BulkItem is the outcome for one assignment in a bulk run. Exactly one of
// Err or the success fields is meaningful.
type BulkItem struct {
	AssignmentID string              `json:"assignment_id"`
	Err          error               `json:"-"`
	Error        string              `json:"error,omitempty"`
	Award        *store.AwardOutcome `json:"award,omitempty"`
}

// BulkApply runs one action across many assignments with bounded
// concurrency. Failures are isolated per item: one assignment failing its
// preconditions never blocks the rest, and the result map always has an
// entry for every requested id.
func (p *Pipeline) BulkApply(ctx context.Context, action BulkAction, ids []string, reason, actor string) (map[string]BulkItem, error) {
	switch action {
	case BulkMarkSubmitted, BulkAward, BulkNotAward:
	default:
		return nil, eris.Wrapf(model.ErrValidation, "unknown bulk action %q", action)
	}
	if len(ids) == 0 {
		return nil, eris.Wrap(model.ErrValidation, "no assignment ids given")
	}

	results := make([]BulkItem, len(ids))
	var g errgroup.Group
	g.SetLimit(p.maxConcurrent)
	for i, id := range ids {
		g.Go(func() error {
			item := BulkItem{AssignmentID: id}
			switch action {
			case BulkMarkSubmitted:
				_, item.Err = p.QuickStatusChange(ctx, id, model.StatusSubmitted, actor)
			case BulkAward:
				item.Award, item.Err = p.Award(ctx, id, actor)
			case BulkNotAward:
				_, item.Err = p.NotAward(ctx, id, reason, "", actor)
			}
			if item.Err != nil {
				item.Error = item.Err.Error()
			}
			results[i] = item
			return nil
		})
	}
	// workers never return errors; per-item failures live in results
	_ = g.Wait()

	out := make(map[string]BulkItem, len(ids))
	for _, r := range results {
		out[r.AssignmentID] = r
	}
	return out, nil
}
