package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan tiers. FREE has a monthly generation limit; PRO and TEAM are
// unlimited for generation (the TEAM seat cap constrains membership, which
// the billing system owns).
const (
	PlanFree = "FREE"
	PlanPro  = "PRO"
	PlanTeam = "TEAM"
)

// Subscription is the engine's read model of an organization's plan.
type Subscription struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	Plan           string    `json:"plan"`
	Seats          int       `json:"seats"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// QuotaUsage reports generation quota state for the current billing period.
type QuotaUsage struct {
	Plan      string    `json:"plan"`
	Used      int       `json:"used"`
	Remaining int       `json:"remaining"` // -1 means unlimited
	ResetsAt  time.Time `json:"resets_at"`
}
