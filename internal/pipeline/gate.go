package pipeline

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// GateResult reports whether an event may advance and, when it may not,
// why.
type GateResult struct {
	CanAdvance bool             `json:"can_advance"`
	Reason     string           `json:"reason,omitempty"`
	Stage      model.EventStage `json:"stage"`
	NextStage  model.EventStage `json:"next_stage,omitempty"`
	Awarded    int              `json:"awarded"`
}

// CanAdvanceStage evaluates the stage gate for an event. Early stages
// (invited, planning) advance freely; from rfp_sent onward the event needs
// at least one awarded assignment before it can move forward.
func (p *Pipeline) CanAdvanceStage(ctx context.Context, eventID string) (*GateResult, error) {
	ev, err := p.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	res := &GateResult{Stage: ev.Stage, NextStage: model.NextStage(ev.Stage)}
	if res.NextStage == "" {
		res.Reason = fmt.Sprintf("event is already %s", ev.Stage)
		return res, nil
	}

	if ev.Stage == model.StageInvited || ev.Stage == model.StagePlanning {
		res.CanAdvance = true
		return res, nil
	}

	awarded, err := p.store.CountAwarded(ctx, eventID)
	if err != nil {
		return nil, err
	}
	res.Awarded = awarded
	if awarded >= 1 {
		res.CanAdvance = true
		return res, nil
	}
	res.Reason = "no awarded carriers yet"
	return res, nil
}

// AdvanceStage moves an event to its next stage, enforcing the gate.
// force skips the gate for users allowed to override it; the override is
// recorded in the activity log either way.
func (p *Pipeline) AdvanceStage(ctx context.Context, eventID, actor string, force bool) (*model.SourcingEvent, error) {
	gate, err := p.CanAdvanceStage(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if gate.NextStage == "" {
		return nil, eris.Wrapf(model.ErrValidation, "event is already %s", gate.Stage)
	}
	if !gate.CanAdvance && !force {
		return nil, eris.Wrap(model.ErrStageGate, gate.Reason)
	}

	if err := p.store.UpdateEventStage(ctx, eventID, gate.Stage, gate.NextStage); err != nil {
		return nil, err
	}

	detail := fmt.Sprintf("%s -> %s", gate.Stage, gate.NextStage)
	if !gate.CanAdvance && force {
		detail += " (gate overridden)"
	}
	p.logActivity(ctx, model.ActivityEntry{
		EventID: eventID,
		Actor:   actor,
		Action:  model.ActionStageChange,
		Detail:  detail,
	})

	return p.store.GetEvent(ctx, eventID)
}
