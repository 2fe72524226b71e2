// Package explain produces human-readable match rationales behind a cache, a
// daily budget gate, and a circuit breaker around the AI provider.
package explain

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	_ "embed"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fundmatch/backend/internal/models"
)

//go:embed prompt.md
var promptTemplate string

// Generator produces text from a prompt. Satisfied by GeminiGenerator;
// stubbed in tests.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Result is the outcome of one explanation request.
type Result struct {
	Explanation models.Explanation `json:"explanation"`
	Cached      bool               `json:"cached"`
	Fallback    bool               `json:"fallback"`
}

// Service coordinates cache, budget, breaker, and provider. Explanations are
// an enhancement: every path returns a usable explanation, never a hard
// failure of the match itself.
type Service struct {
	store      Store
	budget     BudgetGate
	breaker    *Breaker
	generator  Generator
	timeout    time.Duration
	configName string
	logger     *zap.Logger
}

// NewService creates an explanation service. generator may be nil when no
// provider is configured; everything then serves templated fallbacks.
func NewService(store Store, budget BudgetGate, breaker *Breaker, generator Generator, timeout time.Duration, configName string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		budget:     budget,
		breaker:    breaker,
		generator:  generator,
		timeout:    timeout,
		configName: configName,
		logger:     logger,
	}
}

// Explain returns the explanation for a match: cached when possible,
// AI-generated when budget and breaker allow, templated fallback otherwise.
func (s *Service) Explain(ctx context.Context, match *models.Match, profile *models.OrganizationProfile, ann *models.Announcement) (Result, error) {
	fp := Fingerprint(match.OrganizationID, match.AnnouncementID, s.configName)

	cached, err := s.store.Get(ctx, fp)
	if err != nil {
		// A briefly unreachable cache degrades to a miss.
		s.logger.Warn("explanation cache read failed", zap.Error(err), zap.String("fingerprint", fp))
	}
	if cached != nil {
		return Result{Explanation: *cached, Cached: true}, nil
	}

	fallback := BuildFallback(match, ann)

	if s.generator == nil {
		return Result{Explanation: fallback, Fallback: true}, nil
	}

	// Breaker first: while the provider is known to be down, fast-fail
	// without consuming any of the daily spend.
	if !s.breaker.Allow() {
		return Result{Explanation: fallback, Fallback: true}, nil
	}

	allowed, err := s.budget.Allow(ctx)
	if err != nil {
		s.logger.Warn("budget check failed", zap.Error(err))
		return Result{Explanation: fallback, Fallback: true}, nil
	}
	if !allowed {
		s.logger.Info("daily AI budget exhausted, serving fallback", zap.String("fingerprint", fp))
		return Result{Explanation: fallback, Fallback: true}, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	text, err := s.generator.GenerateContent(callCtx, s.buildPrompt(match, profile, ann))
	if err != nil {
		s.breaker.RecordFailure()
		s.logger.Warn("explanation provider failed",
			zap.Error(err),
			zap.String("fingerprint", fp),
			zap.String("breaker_state", s.breaker.State().String()),
		)
		return Result{Explanation: fallback, Fallback: true}, nil
	}
	s.breaker.RecordSuccess()

	exp := models.Explanation{
		Summary:   strings.TrimSpace(text),
		Breakdown: match.Explanation.Breakdown,
		Reasons:   match.Explanation.Reasons,
		Warnings:  fallbackWarningsExcluded(fallback.Warnings),
	}

	if err := s.store.Set(ctx, fp, match.OrganizationID, match.AnnouncementID, &exp); err != nil {
		s.logger.Warn("explanation cache write failed", zap.Error(err), zap.String("fingerprint", fp))
	}
	return Result{Explanation: exp}, nil
}

// InvalidateOrganization removes every cached explanation for the
// organization.
func (s *Service) InvalidateOrganization(ctx context.Context, orgID uuid.UUID) (int, error) {
	return s.store.InvalidateOrganization(ctx, orgID)
}

// InvalidateAnnouncement removes every cached explanation referencing the
// announcement, platform-wide.
func (s *Service) InvalidateAnnouncement(ctx context.Context, annID uuid.UUID) (int, error) {
	return s.store.InvalidateAnnouncement(ctx, annID)
}

func (s *Service) buildPrompt(match *models.Match, profile *models.OrganizationProfile, ann *models.Announcement) string {
	profileJSON, _ := json.MarshalIndent(profile, "", "  ")
	annJSON, _ := json.MarshalIndent(ann, "", "  ")
	breakdownJSON, _ := json.Marshal(struct {
		Breakdown models.Breakdown `json:"breakdown"`
		Reasons   []string         `json:"reasons"`
		Score     int              `json:"score"`
		Bonus     int              `json:"bonus"`
	}{match.Explanation.Breakdown, match.Explanation.Reasons, match.Score, match.Bonus})

	prompt := strings.ReplaceAll(promptTemplate, "{{PROFILE_JSON}}", string(profileJSON))
	prompt = strings.ReplaceAll(prompt, "{{ANNOUNCEMENT_JSON}}", string(annJSON))
	prompt = strings.ReplaceAll(prompt, "{{BREAKDOWN_JSON}}", string(breakdownJSON))
	return prompt
}

// fallbackWarningsExcluded keeps advisory warnings (deadline urgency etc.)
// but drops the fallback label from an AI-generated explanation.
func fallbackWarningsExcluded(warnings []string) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		if w != FallbackWarning {
			out = append(out, w)
		}
	}
	return out
}
