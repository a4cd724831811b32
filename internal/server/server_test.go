package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagen/epgvault/internal/cache"
	"github.com/voyagen/epgvault/internal/models"
	"github.com/voyagen/epgvault/internal/store"
	"github.com/voyagen/epgvault/internal/store/mocks"
)

type memQueue struct {
	jobs []cache.RefreshJob
	err  error
}

func (q *memQueue) Push(_ context.Context, job cache.RefreshJob) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *memQueue) Len(context.Context) (int64, error) { return int64(len(q.jobs)), nil }

func newTestServer(t *testing.T, queue RefreshQueue) (*Server, *mocks.MockStore) {
	t.Helper()
	st := mocks.NewMockStore(gomock.NewController(t))
	return New(st, queue, Options{Gatherer: prometheus.NewRegistry()}), st
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func expectCounts(st *mocks.MockStore, channels, dates int64) {
	st.EXPECT().Count(gomock.Any(), store.KindChannels).Return(channels, nil)
	st.EXPECT().Count(gomock.Any(), store.KindDates).Return(dates, nil)
}

type heldState bool

func (h heldState) Held(context.Context) bool { return bool(h) }

func TestHealth(t *testing.T) {
	srv, st := newTestServer(t, nil)
	expectCounts(st, 240, 13)

	rec := do(t, srv, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","channels":240,"dates":13}`, rec.Body.String())
}

func TestHealth_RunInProgress(t *testing.T) {
	st := mocks.NewMockStore(gomock.NewController(t))
	srv := New(st, nil, Options{RunState: heldState(true)})
	expectCounts(st, 0, 0)

	rec := do(t, srv, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"run_in_progress":true`)
}

func TestHealth_StoreDown(t *testing.T) {
	srv, st := newTestServer(t, nil)
	st.EXPECT().Count(gomock.Any(), store.KindChannels).Return(int64(0), errors.New("conn refused"))

	rec := do(t, srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListChannels_PassesFilter(t *testing.T) {
	srv, st := newTestServer(t, nil)
	st.EXPECT().ListChannels(gomock.Any(), store.ChannelFilter{
		Provider: "mts", Category: "Sport", Limit: 500, Offset: 10,
	}).Return([]models.Channel{{ID: "mts-1", Name: "Arena"}}, nil)

	rec := do(t, srv, http.MethodGet, "/api/channels?provider=mts&category=Sport&limit=9999&offset=10", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Channels []models.Channel `json:"channels"`
		Limit    int              `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Channels, 1)
	assert.Equal(t, "mts-1", resp.Channels[0].ID)
	assert.Equal(t, 500, resp.Limit)
}

func TestListChannels_EmptyIsArray(t *testing.T) {
	srv, st := newTestServer(t, nil)
	st.EXPECT().ListChannels(gomock.Any(), gomock.Any()).Return(nil, nil)

	rec := do(t, srv, http.MethodGet, "/api/channels", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"channels":[]`)
}

func TestListChannels_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := do(t, srv, http.MethodGet, "/api/channels?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetChannel(t *testing.T) {
	srv, st := newTestServer(t, nil)
	st.EXPECT().GetChannel(gomock.Any(), "sbb-7").Return(&models.Channel{ID: "sbb-7", Name: "N1"}, nil)
	st.EXPECT().GetChannel(gomock.Any(), "sbb-8").Return(nil, store.ErrNotFound)
	st.EXPECT().GetChannel(gomock.Any(), "sbb-9").Return(nil, errors.New("boom"))

	rec := do(t, srv, http.MethodGet, "/api/channels/sbb-7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"N1"`)

	rec = do(t, srv, http.MethodGet, "/api/channels/sbb-8", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/channels/sbb-9", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	assert.Equal(t, "boom", apiErr.Detail)
	assert.NotEmpty(t, apiErr.RequestID)
}

func TestListDates(t *testing.T) {
	srv, st := newTestServer(t, nil)
	st.EXPECT().ListDates(gomock.Any()).Return([]models.Date{{Day: 5, Weekday: "Friday"}}, nil)

	rec := do(t, srv, http.MethodGet, "/api/dates", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"weekday":"Friday"`)
}

func TestLatestRun(t *testing.T) {
	srv, st := newTestServer(t, nil)
	gomock.InOrder(
		st.EXPECT().LatestRun(gomock.Any()).Return(nil, store.ErrNotFound),
		st.EXPECT().LatestRun(gomock.Any()).Return(&models.Run{ID: "r1", Phase: models.RunPhaseChannels, Channels: 3}, nil),
	)

	rec := do(t, srv, http.MethodGet, "/api/runs/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, srv, http.MethodGet, "/api/runs/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"partial":true`)
}

func TestRequestRun(t *testing.T) {
	q := &memQueue{}
	srv, st := newTestServer(t, q)
	expectCounts(st, 0, 0)

	rec := do(t, srv, http.MethodPost, "/api/runs", `{"reason":"manual"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, "manual", q.jobs[0].Reason)
	assert.NotEmpty(t, q.jobs[0].ID)

	rec = do(t, srv, http.MethodPost, "/api/runs", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "api", q.jobs[1].Reason)

	rec = do(t, srv, http.MethodGet, "/api/health", "")
	assert.Contains(t, rec.Body.String(), `"pending_runs":2`)

	rec = do(t, srv, http.MethodPost, "/api/runs", `{bad`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestRun_NoQueue(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := do(t, srv, http.MethodPost, "/api/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestDocsAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, http.MethodGet, "/api/docs/openapi.yaml", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openapi: 3.0.3")

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/channels", nil)
	req.Header.Set("Origin", "https://guide.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
