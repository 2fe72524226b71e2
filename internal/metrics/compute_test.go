package metrics

import (
	"math"
	"testing"
)

const tolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func TestCompute_SingleSessionPrecision(t *testing.T) {
	// 20 items shown, saves at positions 1, 3 and 8. With K=5 only the saves
	// at 1 and 3 count: precision 2/5.
	sessions := []SessionStats{
		{ItemsGenerated: 20, SavedPositions: []int{1, 3, 8}, ConfigName: "v1-aabbccdd"},
	}
	report := Compute(sessions, 5, 30)

	if !almostEqual(report.PrecisionAtK.Value, 0.4) {
		t.Errorf("precision@5 = %v, want 0.4", report.PrecisionAtK.Value)
	}
	if !almostEqual(report.HitRateAtK.Value, 1.0) {
		t.Errorf("hit-rate@5 = %v, want 1.0", report.HitRateAtK.Value)
	}
	if report.PrecisionAtK.IsSufficient {
		t.Errorf("one session must not be flagged sufficient with minSample 30")
	}
	if report.DominantConfig != "v1-aabbccdd" {
		t.Errorf("dominant config = %q", report.DominantConfig)
	}
}

func TestCompute_ZeroItemSessionsExcludedEverywhere(t *testing.T) {
	// A session that generated nothing carries no ranking signal. It must
	// not dilute the precision or hit-rate denominators, count toward the
	// sample size, or vote for a dominant config.
	sessions := []SessionStats{
		{ItemsGenerated: 0, ConfigName: "v1-stale"},
		{ItemsGenerated: 20, SavedPositions: []int{1, 3, 8}, ConfigName: "v1-live"},
	}
	report := Compute(sessions, 5, 1)

	if !almostEqual(report.PrecisionAtK.Value, 0.4) {
		t.Errorf("precision@5 = %v, want 0.4 (zero-item session excluded)", report.PrecisionAtK.Value)
	}
	if report.PrecisionAtK.SampleSize != 1 {
		t.Errorf("precision sample = %d, want 1", report.PrecisionAtK.SampleSize)
	}
	if !almostEqual(report.HitRateAtK.Value, 1.0) {
		t.Errorf("hit-rate@5 = %v, want 1.0", report.HitRateAtK.Value)
	}
	if report.DominantConfig != "v1-live" {
		t.Errorf("dominant config = %q, want v1-live", report.DominantConfig)
	}
}

func TestCompute_OnlyZeroItemSessions(t *testing.T) {
	sessions := []SessionStats{
		{ItemsGenerated: 0},
		{ItemsGenerated: 0},
	}
	report := Compute(sessions, 5, 1)

	if report.PrecisionAtK.SampleSize != 0 || report.PrecisionAtK.IsSufficient {
		t.Errorf("window with no qualifying sessions must report zero insufficient metrics")
	}
}

func TestCompute_ShortSessionUsesEffectiveK(t *testing.T) {
	// Only 3 items were shown. Judging against K=5 would cap the score at
	// 3/5 even for a perfect list; effective K judges what was displayed.
	sessions := []SessionStats{
		{ItemsGenerated: 3, SavedPositions: []int{1, 2, 3}},
	}
	report := Compute(sessions, 5, 1)

	if !almostEqual(report.PrecisionAtK.Value, 1.0) {
		t.Errorf("precision = %v, want 1.0 for a fully saved short list", report.PrecisionAtK.Value)
	}
}

func TestCompute_NDCGPerfectRanking(t *testing.T) {
	// Saves exactly at the top positions: DCG equals IDCG.
	sessions := []SessionStats{
		{ItemsGenerated: 10, SavedPositions: []int{1, 2}},
	}
	report := Compute(sessions, 5, 1)

	if !almostEqual(report.NDCGAtK.Value, 1.0) {
		t.Errorf("nDCG = %v, want 1.0 for saves at the top", report.NDCGAtK.Value)
	}
}

func TestCompute_NDCGPenalizesLowPositions(t *testing.T) {
	// One save at position 4 versus the ideal position 1:
	// nDCG = (1/log2(5)) / (1/log2(2)) = 1/log2(5).
	sessions := []SessionStats{
		{ItemsGenerated: 10, SavedPositions: []int{4}},
	}
	report := Compute(sessions, 5, 1)

	want := 1 / math.Log2(5)
	if !almostEqual(report.NDCGAtK.Value, want) {
		t.Errorf("nDCG = %v, want %v", report.NDCGAtK.Value, want)
	}
	if report.NDCGAtK.Value <= 0 || report.NDCGAtK.Value >= 1 {
		t.Errorf("nDCG must stay in (0,1) for an imperfect ranking, got %v", report.NDCGAtK.Value)
	}
}

func TestCompute_ZeroSaveSessionsExcludedFromNDCG(t *testing.T) {
	sessions := []SessionStats{
		{ItemsGenerated: 10, SavedPositions: []int{1}},
		{ItemsGenerated: 10},
		{ItemsGenerated: 10},
	}
	report := Compute(sessions, 5, 1)

	if report.NDCGAtK.SampleSize != 1 {
		t.Errorf("nDCG sample = %d, want 1 (zero-save sessions excluded)", report.NDCGAtK.SampleSize)
	}
	if report.PrecisionAtK.SampleSize != 3 {
		t.Errorf("precision sample = %d, want 3 (zero-save sessions included)", report.PrecisionAtK.SampleSize)
	}
	if !almostEqual(report.HitRateAtK.Value, 1.0/3.0) {
		t.Errorf("hit-rate = %v, want 1/3", report.HitRateAtK.Value)
	}
}

func TestCompute_SufficiencyThreshold(t *testing.T) {
	var sessions []SessionStats
	for i := 0; i < 30; i++ {
		sessions = append(sessions, SessionStats{ItemsGenerated: 10, SavedPositions: []int{1}})
	}
	report := Compute(sessions, 5, 30)

	if !report.PrecisionAtK.IsSufficient {
		t.Errorf("30 sessions with minSample 30 must be sufficient")
	}
	if !report.NDCGAtK.IsSufficient {
		t.Errorf("nDCG sufficiency must use its own sample count")
	}
}

func TestCompute_SavesBeyondEffectiveKIgnored(t *testing.T) {
	// A save at position 8 is outside K=5: no precision credit, no hit.
	sessions := []SessionStats{
		{ItemsGenerated: 20, SavedPositions: []int{8}},
	}
	report := Compute(sessions, 5, 1)

	if !almostEqual(report.PrecisionAtK.Value, 0) {
		t.Errorf("precision = %v, want 0", report.PrecisionAtK.Value)
	}
	if !almostEqual(report.HitRateAtK.Value, 0) {
		t.Errorf("hit-rate = %v, want 0", report.HitRateAtK.Value)
	}
	// The session still has a save, so it participates in nDCG with zero DCG
	// inside the window.
	if report.NDCGAtK.SampleSize != 1 {
		t.Errorf("nDCG sample = %d, want 1", report.NDCGAtK.SampleSize)
	}
	if !almostEqual(report.NDCGAtK.Value, 0) {
		t.Errorf("nDCG = %v, want 0", report.NDCGAtK.Value)
	}
}

func TestCompute_DominantConfigByFrequency(t *testing.T) {
	sessions := []SessionStats{
		{ItemsGenerated: 5, ConfigName: "v1-old"},
		{ItemsGenerated: 5, ConfigName: "v1-new"},
		{ItemsGenerated: 5, ConfigName: "v1-new"},
	}
	report := Compute(sessions, 5, 1)

	if report.DominantConfig != "v1-new" {
		t.Errorf("dominant config = %q, want v1-new", report.DominantConfig)
	}
}

func TestCompute_EmptyWindow(t *testing.T) {
	report := Compute(nil, 5, 30)

	if report.PrecisionAtK.SampleSize != 0 || report.PrecisionAtK.IsSufficient {
		t.Errorf("empty window must report zero insufficient metrics")
	}
}
