package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/store"
)

// Award awards an assignment. The store runs the whole decision as one
// transaction: the status flip, the tariff family find-or-create, the
// proposed tariff, and the back-link either all commit or none do.
//
// Preconditions: the assignment is under_review or revision_requested and
// its event sits at award_tariff_finalization. An assignment that is
// already awarded returns model.ErrConflict with nothing written.
func (p *Pipeline) Award(ctx context.Context, assignmentID, actor string) (*store.AwardOutcome, error) {
	out, err := p.store.AwardAssignment(ctx, store.AwardParams{
		AssignmentID: assignmentID,
		AwardedBy:    actor,
	})
	if err != nil {
		return nil, err
	}

	a, aerr := p.store.GetAssignment(ctx, assignmentID)
	eventID := ""
	if aerr == nil {
		eventID = a.EventID
	}
	p.logActivity(ctx, model.ActivityEntry{
		AssignmentID: assignmentID,
		EventID:      eventID,
		Actor:        actor,
		Action:       model.ActionAwarded,
		Detail:       "tariff " + out.ReferenceID,
	})
	zap.L().Info("assignment awarded",
		zap.String("assignment_id", assignmentID),
		zap.String("tariff_id", out.TariffID),
		zap.String("reference", out.ReferenceID),
		zap.Bool("family_created", out.FamilyCreated),
	)
	return out, nil
}

// NotAward marks an assignment not awarded. A reason is mandatory; the
// operation exists so every losing carrier has an explanation on record.
// A non-empty notes text is appended to the assignment's note log.
func (p *Pipeline) NotAward(ctx context.Context, assignmentID, reason, notes, actor string) (*model.CarrierAssignment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, eris.Wrap(model.ErrValidation, "not-award reason is required")
	}

	a, err := p.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if a.Status.IsTerminal() {
		return nil, eris.Wrapf(model.ErrInvalidTransition, "assignment is already %s", a.Status)
	}

	ev, err := p.store.GetEvent(ctx, a.EventID)
	if err != nil {
		return nil, err
	}
	if ev.Stage != model.StageAwardFinalization {
		return nil, eris.Wrapf(model.ErrPreconditionFailed, "event is at %s, not %s", ev.Stage, model.StageAwardFinalization)
	}

	err = p.store.TransitionStatus(ctx, assignmentID, store.Transition{
		To:               model.StatusNotAwarded,
		Expected:         model.ActiveStatuses,
		NotAwardedReason: reason,
	})
	if err != nil {
		return nil, err
	}

	p.logActivity(ctx, model.ActivityEntry{
		AssignmentID: assignmentID,
		EventID:      a.EventID,
		Actor:        actor,
		Action:       model.ActionNotAwarded,
		Detail:       reason,
	})

	if notes = strings.TrimSpace(notes); notes != "" {
		note := &model.Note{AssignmentID: assignmentID, AuthorID: actor, Body: notes}
		if nerr := p.store.AddNote(ctx, note); nerr != nil {
			zap.L().Warn("not-award note", zap.String("assignment_id", assignmentID), zap.Error(nerr))
		}
	}

	return p.store.GetAssignment(ctx, assignmentID)
}
