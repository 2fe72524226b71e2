package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OrganizationType classifies an applicant organization.
const (
	OrgTypeCompany           = "COMPANY"
	OrgTypeResearchInstitute = "RESEARCH_INSTITUTE"
	OrgTypeUniversity        = "UNIVERSITY"
)

// OrganizationProfile is the matching-relevant view of an organization.
// Mutated only through profile updates, each of which bumps UpdatedAt;
// the timestamp is compared against cache entries for staleness.
type OrganizationProfile struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	IndustrySector     string    `json:"industry_sector"`
	EmployeeCountBand  string    `json:"employee_count_band"`
	TRL                *int      `json:"technology_readiness_level,omitempty"`
	RDExperience       bool      `json:"rd_experience"`
	BusinessStructure  string    `json:"business_structure"`
	Certifications     []string  `json:"certifications"`
	ResearchFocusAreas []string  `json:"research_focus_areas"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Validate checks profile invariants. TRL, when present, must be in [0,9].
func (p *OrganizationProfile) Validate() error {
	switch p.Type {
	case OrgTypeCompany, OrgTypeResearchInstitute, OrgTypeUniversity:
	default:
		return fmt.Errorf("%w: unknown organization type %q", ErrValidation, p.Type)
	}
	if p.TRL != nil && (*p.TRL < 0 || *p.TRL > 9) {
		return fmt.Errorf("%w: TRL %d outside [0,9]", ErrValidation, *p.TRL)
	}
	return nil
}
