// Package scoring holds the pure match scoring core: the versioned weight
// configuration, the eligibility filter, and the score calculator. Nothing in
// this package performs I/O.
package scoring

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/fundmatch/backend/config"
)

// Weights is an immutable set of criterion weights. The five base weights sum
// to the 100-point ceiling; the exact-category bonus sits outside it.
type Weights struct {
	Industry     int
	TRL          int
	OrgType      int
	RDExperience int
	Deadline     int
}

// Config is a named, immutable scoring configuration. A weight change
// produces a new Name, which keys explanation fingerprints and metrics so
// A/B comparisons stay valid.
type Config struct {
	Version         string
	Weights         Weights
	ExactMatchBonus int
	TopK            int
}

// FromApp builds a scoring Config from the application configuration.
func FromApp(c config.ScoringConfig) Config {
	return Config{
		Version: c.Version,
		Weights: Weights{
			Industry:     c.IndustryWeight,
			TRL:          c.TRLWeight,
			OrgType:      c.OrgTypeWeight,
			RDExperience: c.RDWeight,
			Deadline:     c.DeadlineWeight,
		},
		ExactMatchBonus: c.ExactMatchBonus,
		TopK:            c.TopK,
	}
}

// Name returns "{version}-{8 hex digits}" where the digits hash a canonical
// serialization of the sorted weights. Identical weights always produce the
// same name regardless of how the config was assembled.
func (c Config) Name() string {
	entries := []string{
		fmt.Sprintf("bonus=%d", c.ExactMatchBonus),
		fmt.Sprintf("deadline=%d", c.Weights.Deadline),
		fmt.Sprintf("industry=%d", c.Weights.Industry),
		fmt.Sprintf("org_type=%d", c.Weights.OrgType),
		fmt.Sprintf("rd_experience=%d", c.Weights.RDExperience),
		fmt.Sprintf("trl=%d", c.Weights.TRL),
	}
	sort.Strings(entries)
	sum := sha256.Sum256([]byte(strings.Join(entries, "\n")))
	return fmt.Sprintf("%s-%x", c.Version, sum[:4])
}
