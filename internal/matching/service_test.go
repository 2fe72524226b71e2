package matching

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fundmatch/backend/internal/models"
	"github.com/fundmatch/backend/internal/quota"
	"github.com/fundmatch/backend/internal/scoring"
)

func intPtr(v int) *int              { return &v }
func strPtr(v string) *string        { return &v }
func timePtr(v time.Time) *time.Time { return &v }

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

var testConfig = scoring.Config{
	Version: "v1",
	Weights: scoring.Weights{
		Industry:     30,
		TRL:          20,
		OrgType:      20,
		RDExperience: 15,
		Deadline:     15,
	},
	ExactMatchBonus: 10,
	TopK:            20,
}

type fakeProfiles struct {
	profile *models.OrganizationProfile
	err     error
}

func (f *fakeProfiles) GetProfile(ctx context.Context, id uuid.UUID) (*models.OrganizationProfile, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.profile, nil
}

type fakeCatalog struct {
	anns []models.Announcement
	err  error
}

func (f *fakeCatalog) ListAllMatchable(ctx context.Context) ([]models.Announcement, error) {
	return f.anns, f.err
}

type fakePlans struct {
	plan string
}

func (f *fakePlans) GetByOrganization(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error) {
	plan := f.plan
	if plan == "" {
		plan = models.PlanFree
	}
	return &models.Subscription{OrganizationID: orgID, Plan: plan}, nil
}

// fakeQuota enforces a limit with the same increment-compare semantics as the
// redis-backed counter.
type fakeQuota struct {
	mu       sync.Mutex
	limit    int
	used     int
	releases int
}

func (f *fakeQuota) Reserve(ctx context.Context, orgID uuid.UUID, plan string) (models.QuotaUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used >= f.limit {
		return models.QuotaUsage{Plan: plan, Used: f.used, Remaining: 0, ResetsAt: testNow.AddDate(0, 1, 0)},
			quota.ErrQuotaExceeded
	}
	f.used++
	return models.QuotaUsage{Plan: plan, Used: f.used, Remaining: f.limit - f.used}, nil
}

func (f *fakeQuota) Release(ctx context.Context, orgID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.used--
	f.releases++
	return nil
}

func (f *fakeQuota) Usage(ctx context.Context, orgID uuid.UUID, plan string) (models.QuotaUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.QuotaUsage{Plan: plan, Used: f.used, Remaining: f.limit - f.used}, nil
}

// fakeMatchStore keeps one row per pair and preserves saved/viewed across
// upserts, mirroring the SQL merge.
type fakeMatchStore struct {
	mu       sync.Mutex
	rows     map[string]*models.Match
	sessions []*models.GenerationSession
	err      error
}

func newFakeMatchStore() *fakeMatchStore {
	return &fakeMatchStore{rows: make(map[string]*models.Match)}
}

func pairKey(m *models.Match) string {
	return m.OrganizationID.String() + "/" + m.AnnouncementID.String()
}

func (f *fakeMatchStore) UpsertAll(ctx context.Context, matches []*models.Match, session *models.GenerationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	for _, m := range matches {
		key := pairKey(m)
		if prev, ok := f.rows[key]; ok {
			m.ID = prev.ID
			m.Saved = prev.Saved
			m.Viewed = prev.Viewed
		} else {
			m.ID = uuid.New()
		}
		copied := *m
		f.rows[key] = &copied
	}
	session.ID = uuid.New()
	session.CreatedAt = testNow
	f.sessions = append(f.sessions, session)
	return nil
}

func (f *fakeMatchStore) markSaved(orgID, annID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.rows {
		if m.OrganizationID == orgID && m.AnnouncementID == annID {
			m.Saved = true
		}
	}
}

func testProfile() *models.OrganizationProfile {
	return &models.OrganizationProfile{
		ID:             uuid.New(),
		Name:           "Hanbit Robotics",
		Type:           models.OrgTypeCompany,
		IndustrySector: "ICT",
		TRL:            intPtr(7),
		RDExperience:   true,
	}
}

func testAnnouncement(title string, publishedDaysAgo int) models.Announcement {
	return models.Announcement{
		ID:               uuid.New(),
		Title:            title,
		Category:         strPtr("ICT"),
		MinTRL:           intPtr(5),
		MaxTRL:           intPtr(8),
		TargetTypes:      []string{models.OrgTypeCompany},
		Deadline:         timePtr(testNow.AddDate(0, 0, 60)),
		PublishedAt:      testNow.AddDate(0, 0, -publishedDaysAgo),
		Status:           models.AnnouncementActive,
		AnnouncementType: models.TypeRDProject,
		RDBonus:          true,
	}
}

func newTestService(catalog *fakeCatalog, q *fakeQuota, store *fakeMatchStore, profile *models.OrganizationProfile) *Service {
	svc := NewService(
		&fakeProfiles{profile: profile},
		catalog,
		&fakePlans{},
		q,
		store,
		testConfig,
		zap.NewNop(),
	)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestGenerate_RanksEligibleCandidates(t *testing.T) {
	profile := testProfile()

	strong := testAnnouncement("strong fit", 1)
	weak := testAnnouncement("weak fit", 2)
	weak.Category = strPtr("BIO")
	weak.RDBonus = false
	notice := testAnnouncement("portal notice", 3)
	notice.AnnouncementType = models.TypeNotice

	catalog := &fakeCatalog{anns: []models.Announcement{weak, notice, strong}}
	q := &fakeQuota{limit: 3}
	store := newFakeMatchStore()
	svc := newTestService(catalog, q, store, profile)

	result, err := svc.Generate(context.Background(), profile.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Matches) != 2 {
		t.Fatalf("expected 2 matches (notice excluded), got %d", len(result.Matches))
	}
	if result.Matches[0].AnnouncementID != strong.ID {
		t.Errorf("expected strongest candidate first")
	}
	if result.Matches[0].RankScore() <= result.Matches[1].RankScore() {
		t.Errorf("expected descending rank order: %d then %d",
			result.Matches[0].RankScore(), result.Matches[1].RankScore())
	}
	if result.SessionID == uuid.Nil {
		t.Errorf("expected a session id")
	}
	if len(store.sessions) != 1 || store.sessions[0].ItemsGenerated != 2 {
		t.Errorf("expected one session with 2 items, got %+v", store.sessions)
	}
	if store.sessions[0].ScoringConfigName != testConfig.Name() {
		t.Errorf("session config name = %q, want %q", store.sessions[0].ScoringConfigName, testConfig.Name())
	}
}

func TestGenerate_TruncatesToTopK(t *testing.T) {
	profile := testProfile()
	var anns []models.Announcement
	for i := 0; i < 30; i++ {
		anns = append(anns, testAnnouncement(fmt.Sprintf("programme %d", i), i))
	}
	catalog := &fakeCatalog{anns: anns}
	store := newFakeMatchStore()
	svc := newTestService(catalog, &fakeQuota{limit: 3}, store, profile)

	result, err := svc.Generate(context.Background(), profile.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Matches) != testConfig.TopK {
		t.Fatalf("expected %d matches, got %d", testConfig.TopK, len(result.Matches))
	}
}

func TestGenerate_TiebreakByPublishedAtThenDeadline(t *testing.T) {
	profile := testProfile()

	older := testAnnouncement("older", 10)
	newer := testAnnouncement("newer", 2)
	sameDay := testAnnouncement("same day, sooner deadline", 2)
	sameDay.Deadline = timePtr(testNow.AddDate(0, 0, 45))
	noDeadline := testAnnouncement("same day, no deadline", 2)
	noDeadline.Deadline = nil

	// Equal-total inputs only: same category, TRL, targets, R&D flag. The
	// no-deadline variant scores lower, so it is excluded from the tie group.
	catalog := &fakeCatalog{anns: []models.Announcement{older, noDeadline, newer, sameDay}}
	store := newFakeMatchStore()
	svc := newTestService(catalog, &fakeQuota{limit: 3}, store, profile)

	result, err := svc.Generate(context.Background(), profile.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Matches) != 4 {
		t.Fatalf("expected 4 matches, got %d", len(result.Matches))
	}
	// Among equal scores: newer publication first, then sooner deadline.
	if result.Matches[0].AnnouncementID != sameDay.ID {
		t.Errorf("expected the same-day sooner-deadline item first")
	}
	if result.Matches[1].AnnouncementID != newer.ID {
		t.Errorf("expected the 60-day-deadline same-day item second")
	}
	if result.Matches[2].AnnouncementID != older.ID {
		t.Errorf("expected the older item third")
	}
	if result.Matches[3].AnnouncementID != noDeadline.ID {
		t.Errorf("expected the lower-scoring no-deadline item last")
	}
}

func TestGenerate_QuotaExceededIsNotCharged(t *testing.T) {
	profile := testProfile()
	catalog := &fakeCatalog{anns: []models.Announcement{testAnnouncement("a", 1)}}
	q := &fakeQuota{limit: 2}
	store := newFakeMatchStore()
	svc := newTestService(catalog, q, store, profile)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := svc.Generate(ctx, profile.ID); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}

	_, err := svc.Generate(ctx, profile.ID)
	var quotaErr *QuotaExceededError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("expected QuotaExceededError, got %v", err)
	}
	if quotaErr.Usage.Remaining != 0 {
		t.Errorf("usage remaining = %d, want 0", quotaErr.Usage.Remaining)
	}
	if quotaErr.Usage.ResetsAt.IsZero() {
		t.Errorf("expected a reset timestamp on the rejection")
	}
	if q.used != 2 {
		t.Errorf("rejected attempt must not consume quota: used = %d, want 2", q.used)
	}
	if len(store.sessions) != 2 {
		t.Errorf("rejected attempt must not create a session: got %d", len(store.sessions))
	}
}

func TestGenerate_RegenerationPreservesEngagement(t *testing.T) {
	profile := testProfile()
	ann := testAnnouncement("a", 1)
	catalog := &fakeCatalog{anns: []models.Announcement{ann}}
	store := newFakeMatchStore()
	svc := newTestService(catalog, &fakeQuota{limit: 10}, store, profile)

	ctx := context.Background()
	first, err := svc.Generate(ctx, profile.ID)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	store.markSaved(profile.ID, ann.ID)

	second, err := svc.Generate(ctx, profile.ID)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(second.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(second.Matches))
	}
	if second.Matches[0].ID != first.Matches[0].ID {
		t.Errorf("regeneration must update the existing row, not create a new one")
	}
	if !second.Matches[0].Saved {
		t.Errorf("regeneration must preserve the saved flag")
	}
}

func TestGenerate_NoEligibleCandidatesIsFreeOfCharge(t *testing.T) {
	profile := testProfile()
	notice := testAnnouncement("notice only", 1)
	notice.AnnouncementType = models.TypeNotice
	catalog := &fakeCatalog{anns: []models.Announcement{notice}}
	q := &fakeQuota{limit: 3}
	store := newFakeMatchStore()
	svc := newTestService(catalog, q, store, profile)

	result, err := svc.Generate(context.Background(), profile.ID)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(result.Matches) != 0 {
		t.Fatalf("expected no matches, got %d", len(result.Matches))
	}
	if q.used != 0 {
		t.Errorf("empty run must hand the quota slot back: used = %d", q.used)
	}
	if result.Quota.Used != 0 {
		t.Errorf("returned usage must reflect the release: used = %d", result.Quota.Used)
	}
	if len(store.sessions) != 0 {
		t.Errorf("empty run must not create a session")
	}
}

func TestGenerate_StorageFailureReleasesQuota(t *testing.T) {
	profile := testProfile()
	catalog := &fakeCatalog{anns: []models.Announcement{testAnnouncement("a", 1)}}
	q := &fakeQuota{limit: 3}
	store := newFakeMatchStore()
	store.err = errors.New("connection reset")
	svc := newTestService(catalog, q, store, profile)

	_, err := svc.Generate(context.Background(), profile.ID)
	if err == nil {
		t.Fatal("expected an error")
	}
	if q.used != 0 {
		t.Errorf("failed persistence must not consume quota: used = %d", q.used)
	}
	if q.releases != 1 {
		t.Errorf("expected exactly one release, got %d", q.releases)
	}
}

func TestGenerate_InvalidProfileRejected(t *testing.T) {
	profile := testProfile()
	profile.TRL = intPtr(12)
	q := &fakeQuota{limit: 3}
	svc := newTestService(&fakeCatalog{}, q, newFakeMatchStore(), profile)

	_, err := svc.Generate(context.Background(), profile.ID)
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if q.used != 0 {
		t.Errorf("validation failure must not touch quota")
	}
}

func TestScoreCandidate_RecoversPanic(t *testing.T) {
	svc := newTestService(&fakeCatalog{}, &fakeQuota{limit: 1}, newFakeMatchStore(), testProfile())
	ann := testAnnouncement("a", 1)

	_, err := svc.scoreCandidate(nil, &ann, testNow)
	if err == nil {
		t.Fatal("expected the panic to surface as an error")
	}
}
