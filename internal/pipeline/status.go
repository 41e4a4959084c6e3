package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/store"
)

// QuickStatusChange moves an assignment to another active status. Active
// statuses form a fully connected set, so any active-to-active move is
// legal, including backwards (e.g. under_review back to submitted).
// Terminal statuses are never reachable from here.
//
// The first move into submitted stamps submitted_at; later re-entries
// leave the original timestamp alone.
func (p *Pipeline) QuickStatusChange(ctx context.Context, assignmentID string, to model.AssignmentStatus, actor string) (*model.CarrierAssignment, error) {
	if !to.IsActive() {
		return nil, eris.Wrapf(model.ErrInvalidTransition, "%q is not a quick-change status", to)
	}

	a, err := p.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, eris.Wrapf(model.ErrInvalidTransition, "assignment is %s; terminal statuses cannot change", a.Status)
	}
	if a.Status == to {
		return a, nil
	}

	err = p.store.TransitionStatus(ctx, assignmentID, store.Transition{
		To:               to,
		Expected:         []model.AssignmentStatus{a.Status},
		StampSubmittedAt: to == model.StatusSubmitted,
	})
	if err != nil {
		return nil, err
	}

	p.logActivity(ctx, model.ActivityEntry{
		AssignmentID: assignmentID,
		EventID:      a.EventID,
		Actor:        actor,
		Action:       model.ActionStatusChange,
		Detail:       fmt.Sprintf("%s -> %s", a.Status, to),
	})

	return p.store.GetAssignment(ctx, assignmentID)
}

// Withdraw marks an assignment withdrawn by the carrier. Allowed from any
// active status; terminal.
func (p *Pipeline) Withdraw(ctx context.Context, assignmentID, actor string) (*model.CarrierAssignment, error) {
	return p.terminate(ctx, assignmentID, model.StatusWithdrawn, model.ActiveStatuses, actor)
}

// Decline marks an invitation declined. Only valid while the assignment is
// still invited; a carrier that has submitted a bid withdraws instead.
func (p *Pipeline) Decline(ctx context.Context, assignmentID, actor string) (*model.CarrierAssignment, error) {
	return p.terminate(ctx, assignmentID, model.StatusDeclined, []model.AssignmentStatus{model.StatusInvited}, actor)
}

func (p *Pipeline) terminate(ctx context.Context, assignmentID string, to model.AssignmentStatus, from []model.AssignmentStatus, actor string) (*model.CarrierAssignment, error) {
	a, err := p.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, eris.Wrapf(model.ErrInvalidTransition, "assignment is already %s", a.Status)
	}
	allowed := false
	for _, f := range from {
		if a.Status == f {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, eris.Wrapf(model.ErrInvalidTransition, "cannot move %s assignment to %s", a.Status, to)
	}

	err = p.store.TransitionStatus(ctx, assignmentID, store.Transition{To: to, Expected: from})
	if err != nil {
		return nil, err
	}

	p.logActivity(ctx, model.ActivityEntry{
		AssignmentID: assignmentID,
		EventID:      a.EventID,
		Actor:        actor,
		Action:       model.ActionStatusChange,
		Detail:       fmt.Sprintf("%s -> %s", a.Status, to),
	})

	return p.store.GetAssignment(ctx, assignmentID)
}
