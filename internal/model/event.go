package model

import "time"

// EventStage represents where a sourcing event sits in its lifecycle.
type EventStage string

const (
	StageInvited           EventStage = "invited"
	StagePlanning          EventStage = "planning"
	StageRFPSent           EventStage = "rfp_sent"
	StageBidsReceived      EventStage = "bids_received"
	StageAwardFinalization EventStage = "award_tariff_finalization"
	StageTariffPublished   EventStage = "tariff_published"
	StageComplete          EventStage = "complete"
)

// stageOrder defines the forward progression of event stages.
var stageOrder = []EventStage{
	StageInvited,
	StagePlanning,
	StageRFPSent,
	StageBidsReceived,
	StageAwardFinalization,
	StageTariffPublished,
	StageComplete,
}

// NextStage returns the stage following s, or "" if s is the last stage
// or unknown.
func NextStage(s EventStage) EventStage {
	for i, st := range stageOrder {
		if st == s && i < len(stageOrder)-1 {
			return stageOrder[i+1]
		}
	}
	return ""
}

// ValidStage reports whether s is a known event stage.
func ValidStage(s EventStage) bool {
	for _, st := range stageOrder {
		if st == s {
			return true
		}
	}
	return false
}

// SourcingEvent is a carrier-bidding campaign for a customer. The award
// workflow only reads its stage, customer, and mode; everything else is
// owned by the event-management screens.
type SourcingEvent struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	CustomerID string     `json:"customer_id"`
	Stage      EventStage `json:"stage"`
	Mode       string     `json:"mode,omitempty"` // default transport mode for tariffs
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
