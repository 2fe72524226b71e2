package models

import (
	"time"

	"github.com/google/uuid"
)

// GenerationSession records one successful generation run. Metrics attribute
// save events to the session that displayed them.
type GenerationSession struct {
	ID                uuid.UUID `json:"id"`
	OrganizationID    uuid.UUID `json:"organization_id"`
	ItemsGenerated    int       `json:"items_generated"`
	ScoringConfigName string    `json:"scoring_config_name"`
	CreatedAt         time.Time `json:"created_at"`
}

// AttributedSave records that a user saved the item shown at a 1-based rank
// position within a generation session. Immutable once written.
type AttributedSave struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"session_id"`
	AnnouncementID uuid.UUID `json:"announcement_id"`
	Position       int       `json:"position"`
	CreatedAt      time.Time `json:"created_at"`
}
