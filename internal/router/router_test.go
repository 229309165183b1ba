package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/maninjwa/stock-count-backend/internal/app"
	"github.com/maninjwa/stock-count-backend/internal/config"
	"github.com/maninjwa/stock-count-backend/internal/infra"
	"github.com/maninjwa/stock-count-backend/internal/model"
	"github.com/maninjwa/stock-count-backend/internal/repository/memstore"
	"github.com/maninjwa/stock-count-backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
	service.BcryptCost = bcrypt.MinCost
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type server struct {
	t       *testing.T
	handler http.Handler
	store   *memstore.Store
}

func newServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{
		Env:                 "test",
		AllowedOrigins:      "*",
		JWTSecret:           "router-test-secret-router-test-secret",
		JWTExpirationHours:  1,
		JWTRefreshHours:     2,
		ReconcileMaxRetries: 3,
		RateLimitPerMinute:  10000,
	}
	store := memstore.New()
	c := &clock{now: time.Date(2026, 3, 31, 8, 0, 0, 0, time.UTC)}
	a, err := app.New(cfg, store, app.Options{Now: c.Now})
	require.NoError(t, err)

	s := &server{t: t, handler: New(a), store: store}
	s.seed("admin@example.com", model.RoleSupervisor, true)
	s.seed("sam@example.com", model.RoleSupervisor, false)
	s.seed("alice@example.com", model.RoleCounter, false)
	s.seed("bob@example.com", model.RoleCounter, false)
	return s
}

func (s *server) seed(email string, role model.Role, admin bool) {
	hash, err := service.HashPassword("password123")
	require.NoError(s.t, err)
	u := model.User{ID: uuid.New(), Email: email, Name: email, Role: role, Admin: admin, PasswordHash: hash}
	require.NoError(s.t, s.store.Users().Create(context.Background(), &u))
}

func (s *server) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

// call expects status and decodes the response into out.
func (s *server) call(method, path, token string, body interface{}, status int, out interface{}) {
	s.t.Helper()
	w := s.do(method, path, token, body)
	require.Equal(s.t, status, w.Code, "%s %s: %s", method, path, w.Body.String())
	if out != nil {
		require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), out))
	}
}

func (s *server) login(email string) string {
	s.t.Helper()
	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	s.call(http.MethodPost, "/v1/auth/login", "", gin.H{"email": email, "password": "password123"}, http.StatusOK, &resp)
	require.NotEmpty(s.t, resp.AccessToken)
	return resp.AccessToken
}

func (s *server) countAndSubmit(token string, assignmentID uuid.UUID, sku string, qty int) {
	s.t.Helper()
	var session model.CountSession
	s.call(http.MethodPost, "/v1/sessions", token, gin.H{"assignment_id": assignmentID}, http.StatusCreated, &session)
	s.call(http.MethodPost, "/v1/sessions/"+session.ID.String()+"/items", token,
		gin.H{"item_number": "1001", "sku": sku, "description": "Widget", "quantity": qty}, http.StatusCreated, nil)
	s.call(http.MethodPost, "/v1/sessions/"+session.ID.String()+"/complete", token, gin.H{"submit": true}, http.StatusOK, nil)
}

func TestStockCountWorkflowOverHTTP(t *testing.T) {
	s := newServer(t)
	admin := s.login("admin@example.com")
	sam := s.login("sam@example.com")
	alice := s.login("alice@example.com")
	bob := s.login("bob@example.com")

	var users []model.User
	s.call(http.MethodGet, "/v1/users", admin, nil, http.StatusOK, &users)
	ids := map[string]uuid.UUID{}
	for _, u := range users {
		ids[u.Email] = u.ID
	}

	var sc model.StockCount
	s.call(http.MethodPost, "/v1/stock-counts", admin,
		gin.H{"name": "Warehouse A Q1", "date": "2026-03-31T00:00:00Z", "type": "FULL"}, http.StatusCreated, &sc)

	var area model.Area
	s.call(http.MethodPost, "/v1/areas", sam,
		gin.H{"stock_count_id": sc.ID, "name": "Zone 1", "description": "Aisles 1-4"}, http.StatusCreated, &area)

	var first, second model.Assignment
	s.call(http.MethodPost, "/v1/assignments", sam, gin.H{"area_id": area.ID, "user_id": ids["alice@example.com"]}, http.StatusCreated, &first)
	s.call(http.MethodPost, "/v1/assignments", sam, gin.H{"area_id": area.ID, "user_id": ids["bob@example.com"]}, http.StatusCreated, &second)

	var mine []model.Assignment
	s.call(http.MethodGet, "/v1/me/assignments", alice, nil, http.StatusOK, &mine)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)

	s.countAndSubmit(alice, first.ID, "X1", 10)
	s.countAndSubmit(bob, second.ID, "X1", 8)

	s.call(http.MethodGet, "/v1/areas/"+area.ID.String(), sam, nil, http.StatusOK, &area)
	assert.Equal(t, model.AreaPendingApproval, area.Status)

	var comparisons []model.Comparison
	s.call(http.MethodGet, "/v1/areas/"+area.ID.String()+"/comparisons", sam, nil, http.StatusOK, &comparisons)
	require.Len(t, comparisons, 1)
	assert.Equal(t, model.ComparisonDiscrepancy, comparisons[0].Status)

	var discrepancies []model.Discrepancy
	s.call(http.MethodGet, "/v1/comparisons/"+comparisons[0].ID.String()+"/discrepancies", sam, nil, http.StatusOK, &discrepancies)
	require.Len(t, discrepancies, 1)
	d := discrepancies[0]
	assert.Equal(t, 10, d.FirstCount)
	assert.Equal(t, 8, d.SecondCount)
	assert.Equal(t, 2, d.Variance)
	assert.InDelta(t, 20.0, d.VariancePercentage, 1e-9)

	// a second reconcile of the same pair returns the same comparison
	var again model.Comparison
	s.call(http.MethodPost, "/v1/areas/"+area.ID.String()+"/reconcile", sam, nil, http.StatusOK, &again)
	assert.Equal(t, comparisons[0].ID, again.ID)

	s.call(http.MethodPost, "/v1/discrepancies/"+d.ID.String()+"/approve", sam, nil, http.StatusConflict, nil)
	s.call(http.MethodPost, "/v1/discrepancies/"+d.ID.String()+"/resolve", sam, gin.H{"notes": "recounted, 9"}, http.StatusOK, nil)
	s.call(http.MethodPost, "/v1/discrepancies/"+d.ID.String()+"/approve", sam, nil, http.StatusOK, &d)
	assert.Equal(t, model.DiscrepancyApproved, d.Status)

	s.call(http.MethodPost, "/v1/areas/"+area.ID.String()+"/transition", sam, gin.H{"status": "APPROVED"}, http.StatusOK, &area)
	assert.Equal(t, model.AreaApproved, area.Status)

	w := s.do(http.MethodGet, "/v1/stock-counts/"+sc.ID.String()+"/report", sam, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, infra.ContentTypeXLSX, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "stock-count-"+sc.ID.String()+".xlsx")

	w = s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stockcount_reconciliations_total")
}

func TestErrorsOverHTTP(t *testing.T) {
	s := newServer(t)
	admin := s.login("admin@example.com")
	alice := s.login("alice@example.com")

	var sc model.StockCount
	s.call(http.MethodPost, "/v1/stock-counts", admin,
		gin.H{"name": "Warehouse A Q1", "date": "2026-03-31T00:00:00Z", "type": "FULL"}, http.StatusCreated, &sc)

	var body struct {
		Detail string            `json:"detail"`
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}

	s.call(http.MethodGet, "/v1/stock-counts/"+sc.ID.String(), alice, nil, http.StatusForbidden, &body)
	assert.Equal(t, "permission_denied", body.Code)

	s.call(http.MethodGet, "/v1/stock-counts/"+uuid.NewString(), admin, nil, http.StatusNotFound, &body)
	assert.Equal(t, "not_found", body.Code)

	s.call(http.MethodGet, "/v1/stock-counts/not-a-uuid", admin, nil, http.StatusUnprocessableEntity, &body)
	assert.Equal(t, "uuid", body.Fields["id"])

	body.Fields = nil
	s.call(http.MethodPost, "/v1/stock-counts", admin, gin.H{"type": "FULL"}, http.StatusUnprocessableEntity, &body)
	assert.Equal(t, "required", body.Fields["name"])

	s.call(http.MethodPost, "/v1/stock-counts/"+sc.ID.String()+"/transition", admin, gin.H{"status": "APPROVED"}, http.StatusConflict, &body)
	assert.Equal(t, "invalid_transition", body.Code)

	s.call(http.MethodGet, "/v1/stock-counts", "", nil, http.StatusUnauthorized, &body)
	assert.Equal(t, "unauthenticated", body.Code)

	w := s.do(http.MethodPost, "/v1/stock-counts", admin, nil)
	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/stock-counts", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+admin)
	s.handler.ServeHTTP(w2, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, http.StatusUnprocessableEntity, w2.Code)
}

func TestRefreshTokenOverHTTP(t *testing.T) {
	s := newServer(t)
	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	s.call(http.MethodPost, "/v1/auth/login", "", gin.H{"email": "alice@example.com", "password": "password123"}, http.StatusOK, &resp)

	// a refresh token is not a bearer credential
	s.call(http.MethodGet, "/v1/me", resp.RefreshToken, nil, http.StatusUnauthorized, nil)

	var refreshed struct {
		AccessToken string `json:"access_token"`
	}
	s.call(http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": resp.RefreshToken}, http.StatusOK, &refreshed)

	var me model.User
	s.call(http.MethodGet, "/v1/me", refreshed.AccessToken, nil, http.StatusOK, &me)
	assert.Equal(t, "alice@example.com", me.Email)

	s.call(http.MethodPost, "/v1/auth/login", "", gin.H{"email": "alice@example.com", "password": "wrong-password"}, http.StatusUnauthorized, nil)
}

func TestHealth(t *testing.T) {
	s := newServer(t)
	var body map[string]interface{}
	s.call(http.MethodGet, "/health", "", nil, http.StatusOK, &body)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "disabled", body["redis"])
}
