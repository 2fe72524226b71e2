package models

import (
	"time"

	"github.com/google/uuid"
)

// Breakdown holds the per-criterion points of a scored match. The bonus is
// tracked outside the 100-point base so displayed totals above 100 remain
// attributable.
type Breakdown struct {
	Industry     int `json:"industry"`
	TRL          int `json:"trl"`
	OrgType      int `json:"org_type"`
	RDExperience int `json:"rd_experience"`
	Deadline     int `json:"deadline"`
	Bonus        int `json:"bonus"`
}

// Explanation is the closed structure attached to a match. Consumers can
// handle every field exhaustively; there is no open map.
type Explanation struct {
	Summary   string    `json:"summary"`
	Breakdown Breakdown `json:"breakdown"`
	Reasons   []string  `json:"reasons"`
	Warnings  []string  `json:"warnings"`
}

// Match links an organization to an announcement with a score. At most one
// row exists per (organization, announcement) pair; regeneration updates the
// row in place and must preserve Saved/Viewed.
type Match struct {
	ID             uuid.UUID   `json:"id"`
	OrganizationID uuid.UUID   `json:"organization_id"`
	AnnouncementID uuid.UUID   `json:"announcement_id"`
	Score          int         `json:"score"` // base weighted sum, 0-100
	Bonus          int         `json:"bonus"` // exact-category bonus, outside the base
	Explanation    Explanation `json:"explanation"`
	Saved          bool        `json:"saved"`
	Viewed         bool        `json:"viewed"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// RankScore is the ordering key: base score plus bonus.
func (m *Match) RankScore() int {
	return m.Score + m.Bonus
}
