package explain

import (
	"fmt"
	"strings"

	"github.com/fundmatch/backend/internal/models"
	"github.com/fundmatch/backend/internal/scoring"
)

// FallbackWarning labels explanations built without the AI provider, so the
// UI can mark them and callers can tell them apart from generated text.
const FallbackWarning = "Generated from the score breakdown without AI assistance."

// BuildFallback assembles a templated explanation purely from the scoring
// result. Used on budget exhaustion, open breaker, and provider failures;
// never an error to the caller.
func BuildFallback(match *models.Match, ann *models.Announcement) models.Explanation {
	b := match.Explanation.Breakdown
	var parts []string
	if b.Industry > 0 {
		parts = append(parts, fmt.Sprintf("industry relevance (%d pts)", b.Industry))
	}
	if b.TRL > 0 {
		parts = append(parts, fmt.Sprintf("technology readiness fit (%d pts)", b.TRL))
	}
	if b.OrgType > 0 {
		parts = append(parts, fmt.Sprintf("organization type eligibility (%d pts)", b.OrgType))
	}
	if b.RDExperience > 0 {
		parts = append(parts, fmt.Sprintf("R&D track record (%d pts)", b.RDExperience))
	}
	if b.Deadline > 0 {
		parts = append(parts, fmt.Sprintf("application window (%d pts)", b.Deadline))
	}

	summary := fmt.Sprintf("This announcement scored %d", match.Score)
	if b.Bonus > 0 {
		summary += fmt.Sprintf(" (+%d exact category bonus)", b.Bonus)
	}
	if len(parts) > 0 {
		summary += " based on " + strings.Join(parts, ", ")
	}
	summary += "."

	warnings := []string{FallbackWarning}
	for _, code := range match.Explanation.Reasons {
		if code == scoring.ReasonDeadlineUrgent {
			warnings = append(warnings, "The application deadline is inside the urgency window.")
		}
	}
	if ann != nil && ann.Deadline == nil {
		warnings = append(warnings, "No deadline is published for this announcement.")
	}

	return models.Explanation{
		Summary:   summary,
		Breakdown: b,
		Reasons:   match.Explanation.Reasons,
		Warnings:  warnings,
	}
}
