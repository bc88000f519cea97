package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avvvet/prizedraw-services/internal/drawsvc/models"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/selector"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/service"
	"github.com/avvvet/prizedraw-services/internal/drawsvc/store"
)

type testServer struct {
	store   *store.MemoryStore
	handler *Handler
	users   *service.UserService
	router  http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := store.NewMemoryStore()
	pool := service.NewPoolService(s)
	engine := service.NewEngine(s, pool, selector.New(1), nil, models.MinTicketsForAnnouncement)
	scheduler := service.NewScheduler(s, pool, engine, models.FinalRound, 2)
	draws := service.NewDrawService(s, pool)
	users := service.NewUserService(s, []string{"0911000000"})

	h := NewHandler(engine, scheduler, draws, users, "s3cret")
	h.InitAuth("test-signing-key")
	r := chi.NewRouter()
	h.SetRoutes(r)

	return &testServer{store: s, handler: h, users: users, router: r}
}

func (ts *testServer) do(t *testing.T, method, target, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	body := map[string]interface{}{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func (ts *testServer) dueDraw(t *testing.T, id string, tickets int) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, ts.store.CreateDraw(ctx, &models.Draw{
		ID:               id,
		StartDate:        now.Add(-48 * time.Hour),
		EndDate:          now.Add(-2 * time.Hour),
		AnnouncementDate: now.Add(-time.Hour),
		Status:           models.StatusAwaitingAnnouncement,
	}))
	for i := 0; i < tickets; i++ {
		require.NoError(t, ts.store.CreateTicket(ctx, &models.Ticket{
			ID: fmt.Sprintf("%s-t%d", id, i), DrawID: id, UserID: "u", Numbers: fmt.Sprintf("%06d", i),
		}))
	}
}

func (ts *testServer) token(t *testing.T, phone string) string {
	t.Helper()
	u, err := ts.users.GetOrCreateUser(context.Background(), "someone", phone)
	require.NoError(t, err)
	tok, err := ts.handler.IssueToken(u.ID, time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAnnounceRejectsBadSecret(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodGet, "/v1/cron/announce?secret=nope", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, false, body["success"])

	rec, _ = ts.do(t, http.MethodPost, "/v1/cron/announce", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAnnounceRunsSweep(t *testing.T) {
	ts := newTestServer(t)
	ts.dueDraw(t, "big", 20)
	ts.dueDraw(t, "small", 5)

	rec, body := ts.do(t, http.MethodPost, "/v1/cron/announce?secret=s3cret", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []interface{}{"big"}, body["processedDraws"])
	assert.Equal(t, float64(1), body["skipped"])

	d, err := ts.store.GetDraw(context.Background(), "big")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFinished, d.Status)
}

type brokenDueQuery struct {
	*store.MemoryStore
}

func (s *brokenDueQuery) FindDueDraws(ctx context.Context, now time.Time, statuses []models.DrawStatus) ([]*models.Draw, error) {
	return nil, errors.New("connection refused")
}

func TestAnnounceReportsSweepFailure(t *testing.T) {
	ts := newTestServer(t)
	broken := &brokenDueQuery{MemoryStore: ts.store}
	pool := service.NewPoolService(broken)
	engine := service.NewEngine(broken, pool, selector.New(1), nil, models.MinTicketsForAnnouncement)
	h := NewHandler(engine, service.NewScheduler(broken, pool, engine, models.FinalRound, 1),
		service.NewDrawService(broken, pool), ts.users, "s3cret")
	h.InitAuth("test-signing-key")
	r := chi.NewRouter()
	h.SetRoutes(r)
	ts.router = r

	rec, body := ts.do(t, http.MethodPost, "/v1/cron/announce?secret=s3cret", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "sweep failed", body["message"])
	assert.Equal(t, []interface{}{}, body["processedDraws"])
}

func TestAdvanceRequiresAdmin(t *testing.T) {
	ts := newTestServer(t)
	ts.dueDraw(t, "d1", 20)

	rec, _ := ts.do(t, http.MethodPost, "/v1/admin/draws/d1/advance", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, body := ts.do(t, http.MethodPost, "/v1/admin/draws/d1/advance", ts.token(t, "0922000000"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "forbidden", body["message"])
	assert.Equal(t, float64(http.StatusForbidden), body["code"])

	d, err := ts.store.GetDraw(context.Background(), "d1")
	require.NoError(t, err)
	assert.Empty(t, d.RoundWinners)
}

func TestAdvanceOneRound(t *testing.T) {
	ts := newTestServer(t)
	ts.dueDraw(t, "d1", 20)
	ts.dueDraw(t, "thin", 3)
	admin := ts.token(t, "0911000000")

	rec, body := ts.do(t, http.MethodPost, "/v1/admin/draws/d1/advance", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["round"])
	assert.Len(t, data["ticketIds"], 20)

	d, err := ts.store.GetDraw(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 1, d.RoundWinners.Latest())
	assert.Equal(t, models.StatusAnnouncing, d.Status)

	rec, _ = ts.do(t, http.MethodPost, "/v1/admin/draws/missing/advance", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = ts.do(t, http.MethodPost, "/v1/admin/draws/thin/advance", admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	require.NoError(t, ts.store.CreateDraw(context.Background(), &models.Draw{
		ID: "later", AnnouncementDate: time.Now().Add(time.Hour), Status: models.StatusActive,
	}))
	rec, _ = ts.do(t, http.MethodPost, "/v1/admin/draws/later/advance", admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDrawAndCeremonyViews(t *testing.T) {
	ts := newTestServer(t)
	ts.dueDraw(t, "d1", 20)
	admin := ts.token(t, "0911000000")

	rec, _ := ts.do(t, http.MethodGet, "/v1/draws/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	for i := 0; i < 2; i++ {
		rec, _ = ts.do(t, http.MethodPost, "/v1/admin/draws/d1/advance", admin)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, body := ts.do(t, http.MethodGet, "/v1/draws/d1/ceremony", "")
	require.Equal(t, http.StatusOK, rec.Code)
	projection := body["data"].(map[string]interface{})["projection"].(map[string]interface{})
	assert.Equal(t, float64(3), projection["stage"])
	assert.Equal(t, false, projection["stagePersisted"])
	assert.Equal(t, "intermission", projection["phase"])

	rec, body = ts.do(t, http.MethodGet, "/v1/draws/d1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	snap := body["data"].(map[string]interface{})
	assert.Len(t, snap["tickets"], 20)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = ts.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "prizedraw_")
}
