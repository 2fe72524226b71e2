package scoring

import (
	"github.com/fundmatch/backend/internal/models"
)

// Eligible reports whether the organization can apply to the announcement.
// All exclusion rules are advisory: unknown data never invents a requirement.
// SURVEY/EVENT/NOTICE/UNKNOWN announcements are never eligible.
func Eligible(p *models.OrganizationProfile, a *models.Announcement) bool {
	if a.Status != models.AnnouncementActive {
		return false
	}
	if a.AnnouncementType != models.TypeRDProject {
		return false
	}
	if len(a.TargetTypes) > 0 && !contains(a.TargetTypes, p.Type) {
		return false
	}
	if len(a.AllowedBusinessStructures) > 0 && p.BusinessStructure != "" &&
		!contains(a.AllowedBusinessStructures, p.BusinessStructure) {
		return false
	}
	if p.TRL != nil {
		if a.MinTRL != nil && *p.TRL < *a.MinTRL {
			return false
		}
		if a.MaxTRL != nil && *p.TRL > *a.MaxTRL {
			return false
		}
	}
	return true
}

// FilterEligible returns the announcements the profile may apply to,
// preserving input order. Pure function; safe to parallelize over profiles.
func FilterEligible(p *models.OrganizationProfile, anns []models.Announcement) []models.Announcement {
	out := make([]models.Announcement, 0, len(anns))
	for i := range anns {
		if Eligible(p, &anns[i]) {
			out = append(out, anns[i])
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
