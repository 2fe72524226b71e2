package models

import (
	"time"

	"github.com/google/uuid"
)

// Announcement status values.
const (
	AnnouncementActive  = "ACTIVE"
	AnnouncementExpired = "EXPIRED"
)

// Announcement type labels assigned by the ingestion classifier. Only
// R_D_PROJECT announcements are eligible for matching.
const (
	TypeRDProject = "R_D_PROJECT"
	TypeSurvey    = "SURVEY"
	TypeEvent     = "EVENT"
	TypeNotice    = "NOTICE"
	TypeUnknown   = "UNKNOWN"
)

// ValidAnnouncementType reports whether t is a known classifier label.
func ValidAnnouncementType(t string) bool {
	switch t {
	case TypeRDProject, TypeSurvey, TypeEvent, TypeNotice, TypeUnknown:
		return true
	}
	return false
}

// Announcement is a funding announcement from the ingestion pipeline. The
// engine treats it as read-only except for the reclassification override.
// Nil MinTRL/MaxTRL/Deadline mean unconstrained.
type Announcement struct {
	ID                        uuid.UUID  `json:"id"`
	AgencyID                  string     `json:"agency_id"`
	Title                     string     `json:"title"`
	Category                  *string    `json:"category,omitempty"`
	MinTRL                    *int       `json:"min_trl,omitempty"`
	MaxTRL                    *int       `json:"max_trl,omitempty"`
	TargetTypes               []string   `json:"target_types"`
	AllowedBusinessStructures []string   `json:"allowed_business_structures"`
	Deadline                  *time.Time `json:"deadline,omitempty"`
	PublishedAt               time.Time  `json:"published_at"`
	Status                    string     `json:"status"`
	AnnouncementType          string     `json:"announcement_type"`
	RDBonus                   bool       `json:"rd_bonus"` // rewards declared R&D experience
	CreatedAt                 time.Time  `json:"created_at"`
	UpdatedAt                 time.Time  `json:"updated_at"`
}
