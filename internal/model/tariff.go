package model

import "time"

// OwnershipType distinguishes primary tariff families from secondary
// (spot/backup) ones. The award workflow only ever creates primary families.
type OwnershipType string

const (
	OwnershipPrimary   OwnershipType = "primary"
	OwnershipSecondary OwnershipType = "secondary"
)

// TariffStatus is the lifecycle state of a tariff version.
type TariffStatus string

const (
	TariffProposed TariffStatus = "proposed"
	TariffActive   TariffStatus = "active"
	TariffExpired  TariffStatus = "expired"
	TariffRejected TariffStatus = "rejected"
)

// TariffFamily groups successive tariff versions for one
// (customer, carrier, ownership) combination. At most one family exists per
// (customer, carrier, primary) triple; it is created lazily on first award
// and reused thereafter.
type TariffFamily struct {
	ID            string        `json:"id"`
	CustomerID    string        `json:"customer_id"`
	CarrierID     string        `json:"carrier_id"`
	OwnershipType OwnershipType `json:"ownership_type"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Tariff is one priced, dated version of a carrier service agreement within
// a family. Awarding an assignment creates exactly one proposed tariff.
type Tariff struct {
	ID          string       `json:"id"`
	FamilyID    string       `json:"family_id"`
	CarrierID   string       `json:"carrier_id"`
	CustomerIDs []string     `json:"customer_ids"`
	CSPEventID  string       `json:"csp_event_id"`
	Mode        string       `json:"mode,omitempty"`
	Status      TariffStatus `json:"status"`
	ReferenceID string       `json:"reference_id"`
	EffectiveAt *time.Time   `json:"effective_at,omitempty"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}
