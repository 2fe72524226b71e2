package scoring

import (
	"math"
	"strings"
	"time"

	"github.com/fundmatch/backend/internal/models"
)

// Reason codes recorded on a score result.
const (
	ReasonExactCategoryMatch = "EXACT_CATEGORY_MATCH"
	ReasonTRLInRange         = "TRL_IN_RANGE"
	ReasonTRLAdjacent        = "TRL_ADJACENT"
	ReasonTargetTypeMatch    = "TARGET_TYPE_MATCH"
	ReasonRDExperienceMatch  = "RD_EXPERIENCE_MATCH"
	ReasonDeadlineComfort    = "DEADLINE_COMFORTABLE"
	ReasonDeadlineUrgent     = "DEADLINE_URGENT"
	ReasonNoDeadline         = "NO_DEADLINE"
)

// Confidence levels derived from how many criteria had usable inputs.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

// Deadline proximity shape: full credit at or beyond the far threshold,
// linear decay to the floor at the urgency window, fixed default when null.
const (
	deadlineFarDays    = 30
	deadlineUrgentDays = 7
	deadlineFloorRatio = 0.10
	deadlineNullRatio  = 0.60
	trlAdjacencyLevels = 1
)

// Result is the outcome of scoring one (profile, announcement) pair.
// Deterministic given identical inputs, including now.
type Result struct {
	Score       int              // base weighted sum in [0,100]
	Bonus       int              // exact-category bonus, outside the base
	Breakdown   models.Breakdown
	ReasonCodes []string
	Confidence  string
}

// Score computes the weighted criterion sum for one candidate. No I/O.
func (c Config) Score(p *models.OrganizationProfile, a *models.Announcement, now time.Time) Result {
	var res Result
	usable := 0

	// Industry relevance: exact category equality only. No fuzzy matching;
	// partial credit here is a known future refinement, not an oversight.
	sector := strings.TrimSpace(p.IndustrySector)
	category := ""
	if a.Category != nil {
		category = strings.TrimSpace(*a.Category)
	}
	if sector != "" && category != "" {
		usable++
		if sector == category {
			res.Breakdown.Industry = c.Weights.Industry
			res.Breakdown.Bonus = c.ExactMatchBonus
			res.ReasonCodes = append(res.ReasonCodes, ReasonExactCategoryMatch)
		}
	}

	// TRL fit: full inside [min,max], linearly decaying credit one level
	// outside either bound, zero beyond or when either side is unknown.
	if p.TRL != nil && (a.MinTRL != nil || a.MaxTRL != nil) {
		usable++
		d := trlDistance(*p.TRL, a.MinTRL, a.MaxTRL)
		switch {
		case d == 0:
			res.Breakdown.TRL = c.Weights.TRL
			res.ReasonCodes = append(res.ReasonCodes, ReasonTRLInRange)
		case d <= trlAdjacencyLevels:
			ratio := 1.0 - float64(d)/float64(trlAdjacencyLevels+1)
			res.Breakdown.TRL = roundPoints(float64(c.Weights.TRL) * ratio)
			res.ReasonCodes = append(res.ReasonCodes, ReasonTRLAdjacent)
		}
	}

	// Organization-type fit: targetType pre-excludes mismatches upstream, so
	// anything landing here with a constraint either matches or scores zero
	// for audit transparency.
	if len(a.TargetTypes) > 0 {
		usable++
		if contains(a.TargetTypes, p.Type) {
			res.Breakdown.OrgType = c.Weights.OrgType
			res.ReasonCodes = append(res.ReasonCodes, ReasonTargetTypeMatch)
		}
	} else {
		res.Breakdown.OrgType = c.Weights.OrgType
	}

	// R&D experience: full when declared and rewarded, graceful partial
	// credit otherwise.
	usable++
	switch {
	case p.RDExperience && a.RDBonus:
		res.Breakdown.RDExperience = c.Weights.RDExperience
		res.ReasonCodes = append(res.ReasonCodes, ReasonRDExperienceMatch)
	case p.RDExperience:
		res.Breakdown.RDExperience = roundPoints(float64(c.Weights.RDExperience) * 0.7)
	default:
		res.Breakdown.RDExperience = roundPoints(float64(c.Weights.RDExperience) * 0.3)
	}

	// Deadline proximity measures applicability, not urgency-as-bonus.
	if a.Deadline != nil {
		usable++
		days := a.Deadline.Sub(now).Hours() / 24
		ratio := deadlineRatio(days)
		res.Breakdown.Deadline = roundPoints(float64(c.Weights.Deadline) * ratio)
		if days <= deadlineUrgentDays {
			res.ReasonCodes = append(res.ReasonCodes, ReasonDeadlineUrgent)
		} else {
			res.ReasonCodes = append(res.ReasonCodes, ReasonDeadlineComfort)
		}
	} else {
		res.Breakdown.Deadline = roundPoints(float64(c.Weights.Deadline) * deadlineNullRatio)
		res.ReasonCodes = append(res.ReasonCodes, ReasonNoDeadline)
	}

	res.Score = res.Breakdown.Industry + res.Breakdown.TRL + res.Breakdown.OrgType +
		res.Breakdown.RDExperience + res.Breakdown.Deadline
	res.Bonus = res.Breakdown.Bonus
	res.Confidence = confidence(usable)
	return res
}

// trlDistance returns 0 when trl lies inside the bounds, otherwise the number
// of levels outside the nearest present bound.
func trlDistance(trl int, min, max *int) int {
	if min != nil && trl < *min {
		return *min - trl
	}
	if max != nil && trl > *max {
		return trl - *max
	}
	return 0
}

func deadlineRatio(days float64) float64 {
	switch {
	case days <= 0:
		return 0
	case days >= deadlineFarDays:
		return 1
	case days <= deadlineUrgentDays:
		return deadlineFloorRatio
	default:
		span := float64(deadlineFarDays - deadlineUrgentDays)
		return deadlineFloorRatio + (1-deadlineFloorRatio)*(days-deadlineUrgentDays)/span
	}
}

func confidence(usable int) string {
	switch {
	case usable >= 4:
		return ConfidenceHigh
	case usable >= 2:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

func roundPoints(v float64) int {
	return int(math.Round(v))
}
