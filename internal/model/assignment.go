package model

import "time"

// AssignmentStatus represents a carrier's participation state within a
// sourcing event.
type AssignmentStatus string

const (
	StatusInvited           AssignmentStatus = "invited"
	StatusSubmitted         AssignmentStatus = "submitted"
	StatusUnderReview       AssignmentStatus = "under_review"
	StatusRevisionRequested AssignmentStatus = "revision_requested"
	StatusAwarded           AssignmentStatus = "awarded"
	StatusNotAwarded        AssignmentStatus = "not_awarded"
	StatusWithdrawn         AssignmentStatus = "withdrawn"
	StatusDeclined          AssignmentStatus = "declined"
)

// ActiveStatuses are the non-terminal statuses reachable through quick
// status changes. Terminal statuses require their dedicated operations.
var ActiveStatuses = []AssignmentStatus{
	StatusInvited,
	StatusSubmitted,
	StatusUnderReview,
	StatusRevisionRequested,
}

// IsActive reports whether s belongs to the active (non-terminal) set.
func (s AssignmentStatus) IsActive() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// IsTerminal reports whether s is terminal. There is no transition out of
// a terminal status.
func (s AssignmentStatus) IsTerminal() bool {
	switch s {
	case StatusAwarded, StatusNotAwarded, StatusWithdrawn, StatusDeclined:
		return true
	default:
		return false
	}
}

// LaneScope narrows an assignment to a subset of the event's freight.
// Every field may be absent; an all-zero LaneScope means the assignment
// covers the full event scope.
type LaneScope struct {
	Origins       []string `json:"origins,omitempty"`
	Destinations  []string `json:"destinations,omitempty"`
	Equipment     []string `json:"equipment,omitempty"`
	Mode          string   `json:"mode,omitempty"`
	AnnualVolume  int      `json:"annual_volume,omitempty"`
	VolumeUnit    string   `json:"volume_unit,omitempty"`
}

// IsZero reports whether no scope fields are set.
func (l LaneScope) IsZero() bool {
	return len(l.Origins) == 0 && len(l.Destinations) == 0 &&
		len(l.Equipment) == 0 && l.Mode == "" && l.AnnualVolume == 0 && l.VolumeUnit == ""
}

// BidDoc is metadata for one document a carrier attached to its bid.
// Upload/download is owned by the document-storage service; the workflow
// passes these through untouched.
type BidDoc struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StorageKey string    `json:"storage_key"`
	SizeBytes  int64     `json:"size_bytes,omitempty"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// CarrierAssignment is one carrier's participation in one sourcing event.
// Assignments are created on invite and never hard-deleted; withdrawal and
// decline are terminal statuses, not deletions.
type CarrierAssignment struct {
	ID               string           `json:"id"`
	EventID          string           `json:"event_id"`
	CarrierID        string           `json:"carrier_id"`
	CarrierName      string           `json:"carrier_name"`
	Status           AssignmentStatus `json:"status"`
	InvitedAt        time.Time        `json:"invited_at"`
	SubmittedAt      *time.Time       `json:"submitted_at,omitempty"`
	AwardedAt        *time.Time       `json:"awarded_at,omitempty"`
	AwardedBy        string           `json:"awarded_by,omitempty"`
	NotAwardedReason string           `json:"not_awarded_reason,omitempty"`
	LaneScope        LaneScope        `json:"lane_scope,omitempty"`
	BidDocs          []BidDoc         `json:"bid_docs,omitempty"`
	ProposedTariffID string           `json:"proposed_tariff_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}
