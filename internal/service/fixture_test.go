package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/crypto/bcrypt"

	"github.com/maninjwa/stock-count-backend/internal/dto"
	"github.com/maninjwa/stock-count-backend/internal/metrics"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/policy"
	"github.com/maninjwa/stock-count-backend/internal/repository/memstore"
)

func TestMain(m *testing.M) {
	BcryptCost = bcrypt.MinCost
	goleak.VerifyTestMain(m)
}

// ── Fixture ───────────────────────────────────────────────────────────────────

// tickingClock advances one second per reading so that AssignedAt values are ordered.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	ctx     context.Context
	store   *memstore.Store
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	deps    Deps

	users         UserService
	stockCounts   StockCountService
	areas         AreaService
	assignments   AssignmentService
	sessions      SessionService
	comparisons   ComparisonService
	discrepancies DiscrepancyService
	reports       ReportService

	admin      policy.Actor
	supervisor policy.Actor
	alice      policy.Actor
	bob        policy.Actor
	carol      policy.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	store := memstore.New()
	clock := &tickingClock{now: time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC)}
	deps := Deps{
		Store:   store,
		Policy:  policy.NewEngine(policy.DefaultTable(), nil, m),
		Metrics: m,
		Now:     clock.Now,
	}
	comparisons := NewComparisonService(deps, nil, nil)
	f := &fixture{
		ctx:           context.Background(),
		store:         store,
		reg:           reg,
		metrics:       m,
		deps:          deps,
		users:         NewUserService(deps),
		stockCounts:   NewStockCountService(deps),
		areas:         NewAreaService(deps, comparisons),
		assignments:   NewAssignmentService(deps, comparisons),
		sessions:      NewSessionService(deps, comparisons),
		comparisons:   comparisons,
		discrepancies: NewDiscrepancyService(deps),
		reports:       NewReportService(deps),
	}
	f.admin = f.seedUser(t, "admin@example.com", model.RoleSupervisor, true)
	f.supervisor = f.seedUser(t, "sam@example.com", model.RoleSupervisor, false)
	f.alice = f.seedUser(t, "alice@example.com", model.RoleCounter, false)
	f.bob = f.seedUser(t, "bob@example.com", model.RoleCounter, false)
	f.carol = f.seedUser(t, "carol@example.com", model.RoleCounter, false)
	return f
}

func (f *fixture) seedUser(t *testing.T, email string, role model.Role, admin bool) policy.Actor {
	t.Helper()
	hash, err := HashPassword("password123")
	require.NoError(t, err)
	u := model.User{ID: uuid.New(), Email: email, Name: email, Role: role, Admin: admin, PasswordHash: hash}
	require.NoError(t, f.store.Users().Create(f.ctx, &u))
	return policy.Actor{ID: u.ID, Groups: Groups(u)}
}

// withTrigger rebuilds the services that trigger reconciliation around t.
func (f *fixture) withTrigger(t ReconcileTrigger) {
	f.areas = NewAreaService(f.deps, t)
	f.assignments = NewAssignmentService(f.deps, t)
	f.sessions = NewSessionService(f.deps, t)
}

type counted struct {
	sku, itemNumber string
	qty             int
}

type areaSetup struct {
	stockCount  *model.StockCount
	area        *model.Area
	first       *model.Assignment
	second      *model.Assignment
	firstCount  *model.CountSession
	secondCount *model.CountSession
}

// prepareArea creates a stock count with one area assigned to alice then bob.
func (f *fixture) prepareArea(t *testing.T) *areaSetup {
	t.Helper()
	sc, err := f.stockCounts.Create(f.ctx, f.admin, dto.CreateStockCountRequest{
		Name: "Warehouse A Q1", Date: time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC), Type: "FULL",
	})
	require.NoError(t, err)
	area, err := f.areas.Create(f.ctx, f.supervisor, dto.CreateAreaRequest{
		StockCountID: sc.ID, Name: "Zone 1", Description: "Aisles 1-4",
	})
	require.NoError(t, err)
	first, err := f.assignments.Create(f.ctx, f.supervisor, dto.CreateAssignmentRequest{AreaID: area.ID, UserID: f.alice.ID})
	require.NoError(t, err)
	second, err := f.assignments.Create(f.ctx, f.supervisor, dto.CreateAssignmentRequest{AreaID: area.ID, UserID: f.bob.ID})
	require.NoError(t, err)
	return &areaSetup{stockCount: sc, area: area, first: first, second: second}
}

// count opens a session for actor, records the items and leaves the session open.
func (f *fixture) count(t *testing.T, actor policy.Actor, asg *model.Assignment, items ...counted) *model.CountSession {
	t.Helper()
	sess, err := f.sessions.Start(f.ctx, actor, dto.StartSessionRequest{AssignmentID: asg.ID})
	require.NoError(t, err)
	for _, it := range items {
		qty := it.qty
		_, err := f.sessions.AddItem(f.ctx, actor, sess.ID, dto.AddItemRequest{
			ItemNumber: it.itemNumber, SKU: it.sku, Description: "item " + it.sku, Quantity: &qty,
		})
		require.NoError(t, err)
	}
	return sess
}

// countAndSubmit runs a full count for both assignments of the area.
func (f *fixture) countAndSubmit(t *testing.T, s *areaSetup, first, second []counted) {
	t.Helper()
	s.firstCount = f.count(t, f.alice, s.first, first...)
	_, err := f.sessions.Complete(f.ctx, f.alice, s.firstCount.ID, dto.CompleteSessionRequest{Submit: true})
	require.NoError(t, err)
	s.secondCount = f.count(t, f.bob, s.second, second...)
	_, err = f.sessions.Complete(f.ctx, f.bob, s.secondCount.ID, dto.CompleteSessionRequest{Submit: true})
	require.NoError(t, err)
}

func (f *fixture) area(t *testing.T, id uuid.UUID) *model.Area {
	t.Helper()
	a, err := f.store.Areas().FindByID(f.ctx, id)
	require.NoError(t, err)
	return a
}

func (f *fixture) assignment(t *testing.T, id uuid.UUID) *model.Assignment {
	t.Helper()
	a, err := f.store.Assignments().FindByID(f.ctx, id)
	require.NoError(t, err)
	return a
}

// counter sums every series of the named counter.
func (f *fixture) counter(t *testing.T, name string) float64 {
	t.Helper()
	families, err := f.reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}
