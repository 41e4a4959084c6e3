package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sourcing-cli/internal/mention"
	"github.com/sells-group/sourcing-cli/internal/model"
)

// NoteReceipt reports what happened when a note was added. FanoutErr is
// set when the note saved but mention notifications could not be
// delivered; the note itself is never rolled back for a fanout failure.
type NoteReceipt struct {
	Note      *model.Note           `json:"note"`
	Mentions  []model.DirectoryUser `json:"mentions,omitempty"`
	Notified  int                   `json:"notified"`
	FanoutErr error                 `json:"-"`
}

// AddNote appends a note to an assignment, resolves any @First Last
// mentions against the directory, and fans out one notification per
// resolved user. Mentions that match nobody, or more than one person, are
// dropped silently.
func (p *Pipeline) AddNote(ctx context.Context, assignmentID, authorID, body string) (*NoteReceipt, error) {
	if strings.TrimSpace(body) == "" {
		return nil, eris.Wrap(model.ErrValidation, "note body is required")
	}

	a, err := p.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	note := &model.Note{
		AssignmentID: assignmentID,
		AuthorID:     authorID,
		Body:         body,
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.store.AddNote(ctx, note); err != nil {
		return nil, err
	}

	p.logActivity(ctx, model.ActivityEntry{
		AssignmentID: assignmentID,
		EventID:      a.EventID,
		Actor:        authorID,
		Action:       model.ActionNoteAdded,
	})

	receipt := &NoteReceipt{Note: note}
	if p.dir == nil || len(mention.Parse(body)) == 0 {
		return receipt, nil
	}

	users, err := p.dir.ListUsers(ctx)
	if err != nil {
		zap.L().Warn("pipeline: directory lookup failed, skipping mentions",
			zap.String("note_id", note.ID),
			zap.Error(err),
		)
		receipt.FanoutErr = err
		return receipt, nil
	}
	dirUsers := make([]model.DirectoryUser, len(users))
	for i, u := range users {
		dirUsers[i] = model.DirectoryUser{
			ID:        u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
		}
	}

	receipt.Mentions = mention.Resolve(body, dirUsers)
	if len(receipt.Mentions) == 0 || p.fanout == nil {
		return receipt, nil
	}

	n, ferr := p.fanout.FanOut(ctx, note, a.EventID, receipt.Mentions)
	receipt.Notified = n
	receipt.FanoutErr = ferr
	return receipt, nil
}
