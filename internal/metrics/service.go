package metrics

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Evaluation windows are aligned to local midnight in Korea, where the
// announcement portals operate.
var kst = time.FixedZone("KST", 9*60*60)

// WindowedReport is a Report plus the engagement-data watermark: saves
// recorded after the watermark are not yet reflected.
type WindowedReport struct {
	Report
	Watermark *time.Time `json:"watermark,omitempty"`
}

// Service computes ranking quality over a trailing day window.
type Service struct {
	repo       *Repository
	k          int
	minSample  int
	windowDays int
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(repo *Repository, k, minSample, windowDays int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:       repo,
		k:          k,
		minSample:  minSample,
		windowDays: windowDays,
		logger:     logger,
		now:        time.Now,
	}
}

// Window returns the evaluation window: windowDays full KST days ending at
// last midnight. The running day is excluded so repeated reads within a day
// see a stable window.
func (s *Service) Window(windowDays int) (time.Time, time.Time) {
	now := s.now().In(kst)
	end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, kst)
	return end.AddDate(0, 0, -windowDays), end
}

// Report computes ranking quality for the default window and sample floor.
func (s *Service) Report(ctx context.Context) (WindowedReport, error) {
	return s.ReportFor(ctx, s.windowDays, s.minSample)
}

// ReportFor computes ranking quality with an explicit window length and
// sufficiency floor, for ad-hoc operator queries.
func (s *Service) ReportFor(ctx context.Context, windowDays, minSample int) (WindowedReport, error) {
	if windowDays <= 0 {
		windowDays = s.windowDays
	}
	if minSample <= 0 {
		minSample = s.minSample
	}
	start, end := s.Window(windowDays)
	stats, watermark, err := s.repo.ListSessionStats(ctx, start, end)
	if err != nil {
		return WindowedReport{}, err
	}

	report := Compute(stats, s.k, minSample)
	report.WindowStart = start
	report.WindowEnd = end
	report.ComputedAt = s.now().UTC()

	out := WindowedReport{Report: report}
	if !watermark.IsZero() {
		out.Watermark = &watermark
	}
	return out, nil
}

// Snapshot computes the current report and persists it. Run daily from the
// worker so quality trends survive window rollover.
func (s *Service) Snapshot(ctx context.Context) error {
	report, err := s.Report(ctx)
	if err != nil {
		return fmt.Errorf("compute report: %w", err)
	}
	var watermark time.Time
	if report.Watermark != nil {
		watermark = *report.Watermark
	}
	if err := s.repo.InsertSnapshot(ctx, report.Report, watermark); err != nil {
		return err
	}
	s.logger.Info("metric snapshot written",
		zap.Time("window_start", report.WindowStart),
		zap.Time("window_end", report.WindowEnd),
		zap.Float64("precision_at_k", report.PrecisionAtK.Value),
		zap.Float64("ndcg_at_k", report.NDCGAtK.Value),
		zap.Int("sample_size", report.PrecisionAtK.SampleSize),
	)
	return nil
}
