package explain

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fundmatch/backend/internal/models"
)

type memStore struct {
	entries  map[string]*models.Explanation
	byOrg    map[uuid.UUID][]string
	byAnn    map[uuid.UUID][]string
	getErr   error
	setCalls int
}

func newMemStore() *memStore {
	return &memStore{
		entries: make(map[string]*models.Explanation),
		byOrg:   make(map[uuid.UUID][]string),
		byAnn:   make(map[uuid.UUID][]string),
	}
}

func (m *memStore) Get(_ context.Context, fp string) (*models.Explanation, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.entries[fp], nil
}

func (m *memStore) Set(_ context.Context, fp string, orgID, annID uuid.UUID, exp *models.Explanation) error {
	m.setCalls++
	m.entries[fp] = exp
	m.byOrg[orgID] = append(m.byOrg[orgID], fp)
	m.byAnn[annID] = append(m.byAnn[annID], fp)
	return nil
}

func (m *memStore) InvalidateOrganization(_ context.Context, orgID uuid.UUID) (int, error) {
	fps := m.byOrg[orgID]
	for _, fp := range fps {
		delete(m.entries, fp)
	}
	delete(m.byOrg, orgID)
	return len(fps), nil
}

func (m *memStore) InvalidateAnnouncement(_ context.Context, annID uuid.UUID) (int, error) {
	fps := m.byAnn[annID]
	for _, fp := range fps {
		delete(m.entries, fp)
	}
	delete(m.byAnn, annID)
	return len(fps), nil
}

type stubBudget struct {
	allowed bool
	calls   int
}

func (b *stubBudget) Allow(context.Context) (bool, error) {
	b.calls++
	return b.allowed, nil
}

type stubGenerator struct {
	response string
	err      error
	calls    int
}

func (g *stubGenerator) GenerateContent(_ context.Context, _ string) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func testMatch() *models.Match {
	return &models.Match{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		AnnouncementID: uuid.New(),
		Score:          85,
		Bonus:          10,
		Explanation: models.Explanation{
			Breakdown: models.Breakdown{Industry: 30, TRL: 20, OrgType: 20, RDExperience: 15, Bonus: 10},
			Reasons:   []string{"EXACT_CATEGORY_MATCH"},
		},
	}
}

func newTestService(store Store, budget BudgetGate, gen Generator) *Service {
	breaker := NewBreaker(5, 30*time.Second, 5*time.Minute)
	return NewService(store, budget, breaker, gen, time.Second, "v1-deadbeef", zap.NewNop())
}

func TestExplain_SuccessIsCachedForNextCall(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{response: "This fits your ICT profile well."}
	svc := newTestService(store, &stubBudget{allowed: true}, gen)
	match := testMatch()

	res, err := svc.Explain(context.Background(), match, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached || res.Fallback {
		t.Fatalf("first call: cached=%v fallback=%v, want fresh AI result", res.Cached, res.Fallback)
	}
	if res.Explanation.Summary != "This fits your ICT profile well." {
		t.Errorf("summary = %q", res.Explanation.Summary)
	}
	if store.setCalls != 1 {
		t.Fatalf("setCalls = %d, want 1", store.setCalls)
	}

	res, err = svc.Explain(context.Background(), match, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cached {
		t.Fatal("second call must hit the cache")
	}
	if gen.calls != 1 {
		t.Fatalf("generator called %d times, want 1", gen.calls)
	}
}

func TestExplain_BudgetExhaustedServesFallback(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{response: "should not be used"}
	svc := newTestService(store, &stubBudget{allowed: false}, gen)

	res, err := svc.Explain(context.Background(), testMatch(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback {
		t.Fatal("exhausted budget must serve the templated fallback")
	}
	if gen.calls != 0 {
		t.Fatalf("provider called %d times with exhausted budget", gen.calls)
	}
	if !containsWarning(res.Explanation.Warnings, FallbackWarning) {
		t.Errorf("fallback not labeled: %v", res.Explanation.Warnings)
	}
	if store.setCalls != 0 {
		t.Error("fallback explanations must not be cached")
	}
}

func TestExplain_ProviderFailureServesFallback(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{err: errors.New("deadline exceeded")}
	svc := newTestService(store, &stubBudget{allowed: true}, gen)

	res, err := svc.Explain(context.Background(), testMatch(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback {
		t.Fatal("provider failure must degrade to fallback, not error")
	}
	if !strings.Contains(res.Explanation.Summary, "scored 85") {
		t.Errorf("fallback summary = %q", res.Explanation.Summary)
	}
}

func TestExplain_OpenBreakerSkipsProvider(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{err: errors.New("timeout")}
	svc := newTestService(store, &stubBudget{allowed: true}, gen)
	match := testMatch()

	// Five consecutive provider timeouts trip the breaker.
	for i := 0; i < 5; i++ {
		if _, err := svc.Explain(context.Background(), match, nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	if svc.breaker.State() != StateOpen {
		t.Fatalf("breaker state = %s after 5 timeouts, want open", svc.breaker.State())
	}

	callsBefore := gen.calls
	start := time.Now()
	res, err := svc.Explain(context.Background(), match, nil, nil)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Fallback {
		t.Fatal("open breaker must serve fallback")
	}
	if gen.calls != callsBefore {
		t.Fatal("open breaker must not attempt the provider call")
	}
	if elapsed > 100*time.Millisecond {
		t.Fatalf("fast-fail took %v, want <100ms", elapsed)
	}
}

func TestExplain_OpenBreakerConsumesNoBudget(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{err: errors.New("timeout")}
	budget := &stubBudget{allowed: true}
	svc := newTestService(store, budget, gen)
	match := testMatch()

	for i := 0; i < 5; i++ {
		if _, err := svc.Explain(context.Background(), match, nil, nil); err != nil {
			t.Fatal(err)
		}
	}
	if svc.breaker.State() != StateOpen {
		t.Fatalf("breaker state = %s after 5 timeouts, want open", svc.breaker.State())
	}

	// While the breaker is open the fallback path must not spend against
	// the daily limit.
	checksBefore := budget.calls
	if _, err := svc.Explain(context.Background(), match, nil, nil); err != nil {
		t.Fatal(err)
	}
	if budget.calls != checksBefore {
		t.Fatalf("budget checked %d extra times behind an open breaker", budget.calls-checksBefore)
	}
}

func TestExplain_FingerprintIsolation(t *testing.T) {
	store := newMemStore()
	gen := &stubGenerator{response: "rationale"}
	svc := newTestService(store, &stubBudget{allowed: true}, gen)

	matchA := testMatch()
	matchB := testMatch()
	if _, err := svc.Explain(context.Background(), matchA, nil, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Explain(context.Background(), matchB, nil, nil); err != nil {
		t.Fatal(err)
	}

	evicted, err := svc.InvalidateOrganization(context.Background(), matchA.OrganizationID)
	if err != nil {
		t.Fatal(err)
	}
	if evicted != 1 {
		t.Fatalf("evicted %d entries for org A, want 1", evicted)
	}

	// Organization B's entry must survive.
	res, err := svc.Explain(context.Background(), matchB, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Cached {
		t.Fatal("org B's cached explanation was evicted by org A's invalidation")
	}
}

func TestFingerprint_VariesWithConfigName(t *testing.T) {
	orgID, annID := uuid.New(), uuid.New()
	a := Fingerprint(orgID, annID, "v1-aaaaaaaa")
	b := Fingerprint(orgID, annID, "v2-bbbbbbbb")
	if a == b {
		t.Fatal("scoring config change must produce a new fingerprint")
	}
	if a != Fingerprint(orgID, annID, "v1-aaaaaaaa") {
		t.Fatal("fingerprint must be stable")
	}
}

func containsWarning(warnings []string, want string) bool {
	for _, w := range warnings {
		if w == want {
			return true
		}
	}
	return false
}
