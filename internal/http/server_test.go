package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

type testServer struct {
	srv *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "fintrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	users := services.NewUserService(repo, auth.BcryptHasher{Cost: 4})
	households := services.NewHouseholdService(repo, users, repo, nil, cache.NewLRU[uuid.UUID, uuid.UUID](16, time.Minute))
	srv := NewServer(":0", Deps{
		DB:         repo,
		Users:      users,
		Households: households,
		Setup:      services.NewSetupService(households, repo, repo),
		Ledger:     services.NewLedgerService(repo),
		Tokens:     auth.NewTokenManager("0123456789abcdef0123456789abcdef", "fintrack", time.Hour),
	}, Options{RateLimitPerMinute: 1000})
	srv.now = func() time.Time { return time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { srv.limiter.Stop() })

	return &testServer{srv: srv}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	return rec
}

// login registers email and returns its bearer token and user id.
func (ts *testServer) login(t *testing.T, email string) (string, uuid.UUID) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var u core.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &u))

	rec = ts.do(t, http.MethodPost, "/api/auth/token", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var tok tokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tok))
	require.Equal(t, "Bearer", tok.TokenType)
	return tok.AccessToken, u.ID
}

func (ts *testServer) createHousehold(t *testing.T, token string) core.Household {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/households", token, map[string]string{"name": "Home"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var h core.Household
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &h))
	return h
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = ts.do(t, http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

type downDB struct{}

func (downDB) Ping(context.Context) error { return errors.New("database is closed") }

func TestReadyReportsDatabaseDown(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.deps.DB = downDB{}

	rec := ts.do(t, http.MethodGet, "/ready", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)
	ts.login(t, "eva@example.com")

	tests := []struct {
		name  string
		token string
	}{
		{"missing token", ""},
		{"garbage token", "not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, "/api/households", tt.token, nil)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			require.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}

	rec := ts.do(t, http.MethodPost, "/api/auth/token", "", map[string]string{"email": "eva@example.com", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "eva@example.com", "password": "password123"})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestProfile(t *testing.T) {
	ts := newTestServer(t)
	token, id := ts.login(t, "eva@example.com")

	rec := ts.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	u := decode[core.User](t, rec)
	require.Equal(t, id, u.ID)
	require.Equal(t, "eva@example.com", u.Email)
	require.NotContains(t, rec.Body.String(), "password")

	rec = ts.do(t, http.MethodGet, "/api/auth/profile", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterValidationReportsFields(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{"email": "nope", "password": "x"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decode[errorBody](t, rec)
	require.NotEmpty(t, body.Fields)

	rec = ts.do(t, http.MethodPost, "/api/auth/register", "", map[string]any{"email": "a@example.com", "password": "password123", "admin": true})
	require.Equal(t, http.StatusBadRequest, rec.Code, "unknown fields are rejected")
}

func TestInviteFlow(t *testing.T) {
	ts := newTestServer(t)
	ownerToken, _ := ts.login(t, "owner@example.com")
	guestToken, guestID := ts.login(t, "guest@example.com")
	h := ts.createHousehold(t, ownerToken)
	base := "/api/households/" + h.ID.String()

	rec := ts.do(t, http.MethodPost, base+"/invites", guestToken, map[string]string{"email": "x@example.com"})
	require.Equal(t, http.StatusForbidden, rec.Code, "only the owner invites")

	rec = ts.do(t, http.MethodPost, base+"/invites", ownerToken, map[string]string{"email": "guest@example.com"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inv := decode[inviteResponse](t, rec)
	require.Equal(t, guestID, inv.UserID)
	require.False(t, inv.Placeholder)

	rec = ts.do(t, http.MethodPost, base+"/invites", ownerToken, map[string]string{"email": "guest@example.com"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/invites", guestToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]core.HouseholdMember](t, rec), 1)

	rec = ts.do(t, http.MethodGet, base+"/summary", guestToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code, "pending members cannot read the ledger")

	rec = ts.do(t, http.MethodPost, base+"/invites/accept", guestToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/invites/accept", guestToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, base+"/summary", guestToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, base+"/members", ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]core.HouseholdMember](t, rec), 2)

	rec = ts.do(t, http.MethodDelete, base+"/members/"+guestID.String(), ownerToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, base+"/members/"+guestID.String(), ownerToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodDelete, base+"/members/"+h.OwnerID.String(), ownerToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateHouseholdTwiceConflicts(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.login(t, "owner@example.com")
	ts.createHousehold(t, token)

	rec := ts.do(t, http.MethodPost, "/api/households", token, map[string]string{"name": "Second"})
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/households", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]core.Household](t, rec), 1)
}

func TestSetupHousehold(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.login(t, "owner@example.com")

	body := map[string]any{
		"household_name":    "Casa",
		"recurring_incomes": []map[string]any{{"amount": "2500.00", "start_date": "2025-01-27", "recurrence": "monthly"}},
		"one_time_incomes":  []map[string]any{},
		"expense_buckets":   []map[string]any{{"name": "Groceries", "monthly_amount": "600.00"}},
		"invites":           []string{"partner@example.com"},
	}
	rec := ts.do(t, http.MethodPost, "/api/households/setup", token, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[services.SetupResult](t, rec)
	require.Equal(t, 1, res.Invitations)

	rec = ts.do(t, http.MethodGet, "/api/households/"+res.Household.ID.String()+"/buckets", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]core.ExpenseBucket](t, rec), 1)
}

func TestLedgerRoutes(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.login(t, "owner@example.com")
	h := ts.createHousehold(t, token)
	base := "/api/households/" + h.ID.String()

	rec := ts.do(t, http.MethodPost, base+"/recurring-expenses", token, map[string]any{
		"amount": "10.00", "next_date": "2025-06-12", "recurrence": "weekly", "description": "Cleaning",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	re := decode[core.RecurringExpense](t, rec)
	require.Equal(t, h.ID, re.HouseholdID)

	rec = ts.do(t, http.MethodPost, base+"/recurring-expenses", token, map[string]any{
		"amount": "10.00", "next_date": "2025-06-12", "recurrence": "hourly",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, base+"/recurring-expenses/"+re.ID.String(), token, map[string]any{
		"amount": "12.50", "next_date": "2025-06-12", "recurrence": "weekly",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(t, http.MethodGet, base+"/recurring-expenses/"+re.ID.String(), token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, core.Cents(1250), decode[core.RecurringExpense](t, rec).Amount)

	rec = ts.do(t, http.MethodPost, base+"/expenses", token, map[string]any{"amount": "70.00", "date": "2025-06-02"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	expense := decode[core.Expense](t, rec)

	rec = ts.do(t, http.MethodGet, base+"/expenses?month=2025-06", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]core.Expense](t, rec), 1)

	rec = ts.do(t, http.MethodGet, base+"/expenses?month=June", token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, base+"/incomes/one-time", token, map[string]any{"amount": "3000.00", "date": "2025-06-15"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	income := decode[core.OneTimeIncome](t, rec)

	rec = ts.do(t, http.MethodGet, base+"/summary?month=2025-06", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[core.MonthSummary](t, rec)
	require.Equal(t, core.Cents(7000), summary.ExpensesTotal)
	require.Equal(t, core.Cents(3750), summary.RecurringUpcoming)
	require.Equal(t, core.Cents(300000), summary.IncomeTotal)

	rec = ts.do(t, http.MethodDelete, base+"/incomes/monthly/"+income.ID.String(), token, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, base+"/incomes/one-time/"+income.ID.String(), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, base+"/expenses/"+expense.ID.String(), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodDelete, base+"/recurring-expenses/"+re.ID.String(), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, base+"/recurring-expenses/"+re.ID.String(), token, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLedgerRoutesAreHouseholdScoped(t *testing.T) {
	ts := newTestServer(t)
	ownerToken, _ := ts.login(t, "owner@example.com")
	otherToken, _ := ts.login(t, "other@example.com")
	h := ts.createHousehold(t, ownerToken)

	rec := ts.do(t, http.MethodGet, "/api/households/"+h.ID.String()+"/expenses", otherToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/households/not-a-uuid/expenses", ownerToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSuspiciousRequestRefused(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/.env", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
