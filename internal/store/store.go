package store

import (
	"context"
	"strings"
	"time"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// AssignmentFilter specifies criteria for listing assignments.
type AssignmentFilter struct {
	EventID string                 `json:"event_id,omitempty"`
	Status  model.AssignmentStatus `json:"status,omitempty"`
	Limit   int                    `json:"limit,omitempty"`
	Offset  int                    `json:"offset,omitempty"`
}

// Transition describes a conditional single-row status update. The update
// applies only while the stored status is one of Expected; losing that race
// surfaces as model.ErrConflict.
type Transition struct {
	To               model.AssignmentStatus
	Expected         []model.AssignmentStatus
	StampSubmittedAt bool   // set submitted_at = now() if currently unset
	NotAwardedReason string // persisted when To == not_awarded
}

// AwardParams identifies the assignment to award and who awarded it.
type AwardParams struct {
	AssignmentID string
	AwardedBy    string
}

// AwardOutcome reports the records created by a successful award.
type AwardOutcome struct {
	TariffID       string    `json:"tariff_id"`
	TariffFamilyID string    `json:"tariff_family_id"`
	ReferenceID    string    `json:"tariff_reference_id"`
	FamilyCreated  bool      `json:"family_created"`
	AwardedAt      time.Time `json:"awarded_at"`
}

// Store defines the persistence interface for the sourcing workflow.
//
// AwardAssignment is the only multi-row operation: it runs as one atomic
// transaction and is the sole code path allowed to create a tariff as a
// side effect of a status transition.
type Store interface {
	// Events
	CreateEvent(ctx context.Context, ev *model.SourcingEvent) error
	GetEvent(ctx context.Context, id string) (*model.SourcingEvent, error)
	UpdateEventStage(ctx context.Context, id string, from, to model.EventStage) error
	ListEvents(ctx context.Context, limit, offset int) ([]model.SourcingEvent, error)

	// Assignments
	CreateAssignment(ctx context.Context, a *model.CarrierAssignment) error
	GetAssignment(ctx context.Context, id string) (*model.CarrierAssignment, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]model.CarrierAssignment, error)
	CountAwarded(ctx context.Context, eventID string) (int, error)
	TransitionStatus(ctx context.Context, assignmentID string, t Transition) error

	// Award transaction
	AwardAssignment(ctx context.Context, p AwardParams) (*AwardOutcome, error)

	// Tariffs
	GetTariff(ctx context.Context, id string) (*model.Tariff, error)
	GetTariffFamily(ctx context.Context, customerID, carrierID string, ownership model.OwnershipType) (*model.TariffFamily, error)

	// Notes
	AddNote(ctx context.Context, n *model.Note) error
	ListNotes(ctx context.Context, assignmentID string) ([]model.Note, error)

	// Notifications
	EnqueueNotifications(ctx context.Context, ns []model.Notification) (int, error)
	ListUndelivered(ctx context.Context, limit int) ([]model.Notification, error)
	MarkDelivered(ctx context.Context, ids []string) error

	// Activity log
	AppendActivity(ctx context.Context, e *model.ActivityEntry) error
	ListActivity(ctx context.Context, assignmentID string, limit int) ([]model.ActivityEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// TariffReference builds the human-readable display id for a tariff created
// at award time. Deterministic from the tariff id so a re-rendered award
// response never mints a different reference.
func TariffReference(tariffID string, awardedAt time.Time) string {
	short := strings.ReplaceAll(tariffID, "-", "")
	if len(short) > 6 {
		short = short[:6]
	}
	return "TRF-" + awardedAt.UTC().Format("2006") + "-" + strings.ToUpper(short)
}
