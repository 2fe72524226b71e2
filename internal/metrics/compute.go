// Package metrics computes offline ranking quality over generation sessions:
// precision@K, nDCG@K, and hit-rate@K from session-attributed saves.
package metrics

import (
	"math"
	"time"
)

// SessionStats is one generation session with the 1-based positions of the
// items the user later saved.
type SessionStats struct {
	ItemsGenerated int
	SavedPositions []int
	ConfigName     string
}

// Metric is one aggregate value with its evidential weight. Consumers must
// check IsSufficient before acting on Value.
type Metric struct {
	Value        float64 `json:"value"`
	SampleSize   int     `json:"sample_size"`
	IsSufficient bool    `json:"is_sufficient"`
}

// Report is a ranking quality snapshot for one evaluation window.
type Report struct {
	K              int       `json:"k"`
	PrecisionAtK   Metric    `json:"precision_at_k"`
	NDCGAtK        Metric    `json:"ndcg_at_k"`
	HitRateAtK     Metric    `json:"hit_rate_at_k"`
	DominantConfig string    `json:"dominant_config"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	ComputedAt     time.Time `json:"computed_at"`
}

// Compute aggregates session-level ranking quality.
//
// Precision@K and hit-rate@K average over sessions that generated at least
// one item; a session with fewer than K items is judged against what it
// actually showed, so short result lists are not penalized for positions
// that never existed. Sessions that generated nothing carry no ranking
// signal and are left out of every aggregate, denominators included. nDCG@K
// uses binary relevance and additionally skips sessions with no saves,
// since an ideal ordering of zero relevant items is undefined.
func Compute(sessions []SessionStats, k, minSample int) Report {
	report := Report{K: k}
	if k <= 0 || len(sessions) == 0 {
		return report
	}

	var precisionSum, ndcgSum, hits float64
	qualifying := 0
	ndcgSessions := 0
	configCounts := make(map[string]int)

	for _, s := range sessions {
		if s.ItemsGenerated <= 0 {
			continue
		}
		qualifying++
		configCounts[s.ConfigName]++

		effectiveK := k
		if s.ItemsGenerated < effectiveK {
			effectiveK = s.ItemsGenerated
		}

		savedInTop := 0
		for _, p := range s.SavedPositions {
			if p >= 1 && p <= effectiveK {
				savedInTop++
			}
		}
		precisionSum += float64(savedInTop) / float64(effectiveK)
		if savedInTop > 0 {
			hits++
		}

		if len(s.SavedPositions) > 0 {
			ndcgSum += sessionNDCG(s.SavedPositions, effectiveK)
			ndcgSessions++
		}
	}

	if qualifying == 0 {
		return report
	}
	report.PrecisionAtK = Metric{
		Value:        precisionSum / float64(qualifying),
		SampleSize:   qualifying,
		IsSufficient: qualifying >= minSample,
	}
	report.HitRateAtK = Metric{
		Value:        hits / float64(qualifying),
		SampleSize:   qualifying,
		IsSufficient: qualifying >= minSample,
	}
	if ndcgSessions > 0 {
		report.NDCGAtK = Metric{
			Value:        ndcgSum / float64(ndcgSessions),
			SampleSize:   ndcgSessions,
			IsSufficient: ndcgSessions >= minSample,
		}
	}
	report.DominantConfig = dominantConfig(configCounts)
	return report
}

// sessionNDCG computes binary-relevance nDCG for one session. The ideal
// ordering places every saved item at the top, capped at k positions.
func sessionNDCG(savedPositions []int, k int) float64 {
	var dcg float64
	for _, p := range savedPositions {
		if p >= 1 && p <= k {
			dcg += 1 / math.Log2(float64(p)+1)
		}
	}

	ideal := len(savedPositions)
	if ideal > k {
		ideal = k
	}
	var idcg float64
	for i := 1; i <= ideal; i++ {
		idcg += 1 / math.Log2(float64(i)+1)
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

func dominantConfig(counts map[string]int) string {
	best, bestCount := "", -1
	for name, count := range counts {
		if count > bestCount || (count == bestCount && name < best) {
			best, bestCount = name, count
		}
	}
	return best
}
