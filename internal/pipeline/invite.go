package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// Invite adds a carrier to a sourcing event. The new assignment starts in
// invited; re-inviting a carrier already on the event is a conflict, never
// a second assignment.
func (p *Pipeline) Invite(ctx context.Context, eventID, carrierID, carrierName string, scope model.LaneScope, actor string) (*model.CarrierAssignment, error) {
	if strings.TrimSpace(carrierID) == "" {
		return nil, eris.Wrap(model.ErrValidation, "carrier id is required")
	}

	ev, err := p.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	a := &model.CarrierAssignment{
		EventID:     ev.ID,
		CarrierID:   carrierID,
		CarrierName: carrierName,
		Status:      model.StatusInvited,
		InvitedAt:   now,
		LaneScope:   scope,
	}
	if err := p.store.CreateAssignment(ctx, a); err != nil {
		return nil, err
	}

	p.logActivity(ctx, model.ActivityEntry{
		AssignmentID: a.ID,
		EventID:      ev.ID,
		Actor:        actor,
		Action:       model.ActionInvited,
		Detail:       carrierName,
	})
	return a, nil
}
