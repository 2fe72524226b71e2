package scoring

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fundmatch/backend/internal/models"
)

var testConfig = Config{
	Version: "v1",
	Weights: Weights{
		Industry:     30,
		TRL:          20,
		OrgType:      20,
		RDExperience: 15,
		Deadline:     15,
	},
	ExactMatchBonus: 10,
	TopK:            20,
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func baseProfile() *models.OrganizationProfile {
	return &models.OrganizationProfile{
		ID:             uuid.New(),
		Type:           models.OrgTypeCompany,
		IndustrySector: "ICT",
		TRL:            intPtr(7),
		RDExperience:   true,
	}
}

func baseAnnouncement(now time.Time) *models.Announcement {
	deadline := now.Add(60 * 24 * time.Hour)
	return &models.Announcement{
		ID:               uuid.New(),
		Category:         strPtr("ICT"),
		MinTRL:           intPtr(5),
		MaxTRL:           intPtr(8),
		TargetTypes:      []string{models.OrgTypeCompany},
		Deadline:         &deadline,
		Status:           models.AnnouncementActive,
		AnnouncementType: models.TypeRDProject,
		RDBonus:          true,
	}
}

func TestScore_FullCreditScenario(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	res := testConfig.Score(baseProfile(), baseAnnouncement(now), now)

	if res.Breakdown.Industry != 30 {
		t.Errorf("industry = %d, want 30", res.Breakdown.Industry)
	}
	if res.Breakdown.TRL != 20 {
		t.Errorf("trl = %d, want 20", res.Breakdown.TRL)
	}
	if res.Breakdown.OrgType != 20 {
		t.Errorf("org type = %d, want 20", res.Breakdown.OrgType)
	}
	if res.Breakdown.RDExperience != 15 {
		t.Errorf("rd experience = %d, want 15", res.Breakdown.RDExperience)
	}
	if res.Breakdown.Deadline != 15 {
		t.Errorf("deadline = %d, want 15", res.Breakdown.Deadline)
	}
	if res.Score != 100 {
		t.Errorf("score = %d, want 100", res.Score)
	}
	if res.Bonus != 10 {
		t.Errorf("bonus = %d, want 10", res.Bonus)
	}
	if !hasReason(res.ReasonCodes, ReasonExactCategoryMatch) {
		t.Errorf("reason codes %v missing %s", res.ReasonCodes, ReasonExactCategoryMatch)
	}
	if res.Confidence != ConfidenceHigh {
		t.Errorf("confidence = %s, want HIGH", res.Confidence)
	}
}

func TestScore_Deterministic(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	p := baseProfile()
	a := baseAnnouncement(now)

	first := testConfig.Score(p, a, now)
	for i := 0; i < 5; i++ {
		again := testConfig.Score(p, a, now)
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differed: %+v vs %+v", i, first, again)
		}
	}
}

func TestScore_IndustryNoPartialCredit(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name     string
		sector   string
		category *string
		want     int
		bonus    int
	}{
		{"exact match", "ICT", strPtr("ICT"), 30, 10},
		{"close but different", "ICT", strPtr("ICT Services"), 0, 0},
		{"missing category", "ICT", nil, 0, 0},
		{"empty category", "ICT", strPtr("  "), 0, 0},
		{"missing sector", "", strPtr("ICT"), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseProfile()
			p.IndustrySector = tt.sector
			a := baseAnnouncement(now)
			a.Category = tt.category
			res := testConfig.Score(p, a, now)
			if res.Breakdown.Industry != tt.want {
				t.Errorf("industry = %d, want %d", res.Breakdown.Industry, tt.want)
			}
			if res.Bonus != tt.bonus {
				t.Errorf("bonus = %d, want %d", res.Bonus, tt.bonus)
			}
		})
	}
}

func TestScore_TRLFit(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name string
		trl  *int
		min  *int
		max  *int
		want int
	}{
		{"inside range", intPtr(7), intPtr(5), intPtr(8), 20},
		{"at lower bound", intPtr(5), intPtr(5), intPtr(8), 20},
		{"one below min", intPtr(4), intPtr(5), intPtr(8), 10},
		{"one above max", intPtr(9), intPtr(5), intPtr(8), 10},
		{"two below min", intPtr(3), intPtr(5), intPtr(8), 0},
		{"unknown profile trl", nil, intPtr(5), intPtr(8), 0},
		{"unconstrained announcement", intPtr(7), nil, nil, 0},
		{"only min present", intPtr(6), intPtr(5), nil, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseProfile()
			p.TRL = tt.trl
			a := baseAnnouncement(now)
			a.MinTRL = tt.min
			a.MaxTRL = tt.max
			res := testConfig.Score(p, a, now)
			if res.Breakdown.TRL != tt.want {
				t.Errorf("trl points = %d, want %d", res.Breakdown.TRL, tt.want)
			}
		})
	}
}

func TestScore_RDExperiencePartialCredit(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		hasExp  bool
		rdBonus bool
		want    int
	}{
		{"declared and rewarded", true, true, 15},
		{"declared only", true, false, 11}, // 70% of 15, rounded
		{"rewarded only", false, true, 5},  // 30% of 15, rounded
		{"neither", false, false, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseProfile()
			p.RDExperience = tt.hasExp
			a := baseAnnouncement(now)
			a.RDBonus = tt.rdBonus
			res := testConfig.Score(p, a, now)
			if res.Breakdown.RDExperience != tt.want {
				t.Errorf("rd points = %d, want %d", res.Breakdown.RDExperience, tt.want)
			}
		})
	}
}

func TestScore_DeadlineProximity(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		days int
		want int
	}{
		{"far deadline", 60, 15},
		{"at far threshold", 30, 15},
		{"inside urgency window", 3, 2}, // floor: 10% of 15
		{"past", -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := baseProfile()
			a := baseAnnouncement(now)
			d := now.Add(time.Duration(tt.days) * 24 * time.Hour)
			a.Deadline = &d
			res := testConfig.Score(p, a, now)
			if res.Breakdown.Deadline != tt.want {
				t.Errorf("deadline points = %d, want %d", res.Breakdown.Deadline, tt.want)
			}
		})
	}

	t.Run("null deadline scores moderate default", func(t *testing.T) {
		a := baseAnnouncement(now)
		a.Deadline = nil
		res := testConfig.Score(baseProfile(), a, now)
		if res.Breakdown.Deadline != 9 { // 60% of 15
			t.Errorf("deadline points = %d, want 9", res.Breakdown.Deadline)
		}
		if !hasReason(res.ReasonCodes, ReasonNoDeadline) {
			t.Errorf("missing %s in %v", ReasonNoDeadline, res.ReasonCodes)
		}
	})
}

func TestScore_ConfidenceFromUsableInputs(t *testing.T) {
	now := time.Now()

	// Sparse announcement: only the always-usable R&D criterion applies.
	sparse := &models.Announcement{
		ID:               uuid.New(),
		Status:           models.AnnouncementActive,
		AnnouncementType: models.TypeRDProject,
	}
	res := testConfig.Score(baseProfile(), sparse, now)
	if res.Confidence != ConfidenceLow {
		t.Errorf("confidence = %s, want LOW", res.Confidence)
	}

	// Category + deadline + R&D usable, TRL and target type unknown.
	deadline := now.Add(40 * 24 * time.Hour)
	medium := &models.Announcement{
		ID:               uuid.New(),
		Category:         strPtr("BIO"),
		Deadline:         &deadline,
		Status:           models.AnnouncementActive,
		AnnouncementType: models.TypeRDProject,
	}
	res = testConfig.Score(baseProfile(), medium, now)
	if res.Confidence != ConfidenceMedium {
		t.Errorf("confidence = %s, want MEDIUM", res.Confidence)
	}
}

func TestConfigName_StableHash(t *testing.T) {
	name := testConfig.Name()
	if len(name) != len("v1-")+8 {
		t.Fatalf("unexpected name format: %s", name)
	}
	if name != testConfig.Name() {
		t.Fatalf("name not stable: %s vs %s", name, testConfig.Name())
	}

	changed := testConfig
	changed.Weights.Industry = 35
	if changed.Name() == name {
		t.Fatal("weight change must produce a different config name")
	}

	sameWeights := Config{
		Version:         "v1",
		Weights:         testConfig.Weights,
		ExactMatchBonus: testConfig.ExactMatchBonus,
		TopK:            50, // not part of identity
	}
	if sameWeights.Name() != name {
		t.Fatal("top-k must not affect the config name")
	}
}

func hasReason(codes []string, want string) bool {
	for _, c := range codes {
		if c == want {
			return true
		}
	}
	return false
}
