package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theirongolddev/snapdash/internal/model"
	"github.com/theirongolddev/snapdash/internal/session"
	"github.com/theirongolddev/snapdash/internal/store"
)

const entityKey = "clientcount.current_month_estimate.type.entity"

const testPayload = `{"snapshots":[
	{"timestamp":"2024-01-15T00:00:00-08:00","metrics":{"` + entityKey + `":{"key":"` + entityKey + `","value":10,"mode":"write"}}},
	{"timestamp":"2024-01-20T00:00:00-08:00","metrics":{"` + entityKey + `":{"key":"` + entityKey + `","value":15,"mode":"write"}}},
	{"timestamp":"bad","metrics":{}},
	{"timestamp":"2024-02-10T00:00:00-08:00","metrics":{"` + entityKey + `":{"key":"` + entityKey + `","value":20,"mode":"write"}}}
]}`

type dashboardResponse struct {
	Records []model.MonthlyRecord   `json:"records"`
	Series  []model.ProjectedSeries `json:"series"`
	Params  model.TrendParams       `json:"params"`
	Total   int                     `json:"total"`
	Dropped int                     `json:"dropped"`
}

func newTestService(t *testing.T, cfg Config, history *store.Cache) *Service {
	t.Helper()
	sessions := session.NewMemoryStore(0, 0)
	t.Cleanup(func() { _ = sessions.Close() })
	return New(cfg, sessions, history)
}

func do(t *testing.T, s *Service, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, s *Service) string {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/v1/sessions", nil, "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		ID     string            `json:"id"`
		Params model.TrendParams `json:"params"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.ID)
	return resp.ID
}

func decodeDashboard(t *testing.T, rec *httptest.ResponseRecorder) dashboardResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var d dashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	return d
}

func TestHealthz(t *testing.T) {
	s := newTestService(t, Config{}, nil)
	rec := do(t, s, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestUploadAndDashboard(t *testing.T) {
	s := newTestService(t, Config{}, nil)
	id := createSession(t, s)

	rec := do(t, s, http.MethodGet, "/v1/sessions/"+id+"/dashboard", nil, "")
	empty := decodeDashboard(t, rec)
	assert.Empty(t, empty.Records)
	assert.Contains(t, rec.Body.String(), `"records":[]`)

	rec = do(t, s, http.MethodPut, "/v1/sessions/"+id+"/payload", []byte(testPayload), "application/json")
	d := decodeDashboard(t, rec)
	require.Len(t, d.Records, 2)
	assert.Equal(t, "2024-01", d.Records[0].YearMonth)
	assert.Equal(t, int64(15), d.Records[0].Value("current_month_estimate_entity"))
	assert.Equal(t, int64(20), d.Records[1].Value("current_month_estimate_entity"))
	assert.Equal(t, 1, d.Dropped)
	assert.Equal(t, 4, d.Total)
	assert.Len(t, d.Series, len(model.DefaultTrackedMetrics))

	d = decodeDashboard(t, do(t, s, http.MethodGet, "/v1/sessions/"+id+"/dashboard", nil, ""))
	assert.Len(t, d.Records, 2)

	rec = do(t, s, http.MethodGet, "/v1/sessions/"+id, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view sessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.True(t, view.HasPayload)
	assert.Equal(t, 2, view.Months)
	assert.NotNil(t, view.UploadedAt)
}

func TestUploadDataURLAndMultipart(t *testing.T) {
	s := newTestService(t, Config{}, nil)
	id := createSession(t, s)

	dataURL := "data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(testPayload))
	d := decodeDashboard(t, do(t, s, http.MethodPut, "/v1/sessions/"+id+"/payload", []byte(dataURL), "text/plain"))
	assert.Len(t, d.Records, 2)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "snapshots.json")
	require.NoError(t, err)
	_, err = fw.Write([]byte(testPayload))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	d = decodeDashboard(t, do(t, s, http.MethodPut, "/v1/sessions/"+id+"/payload", body.Bytes(), mw.FormDataContentType()))
	assert.Len(t, d.Records, 2)

	rec := do(t, s, http.MethodGet, "/v1/sessions/"+id, nil, "")
	assert.Contains(t, rec.Body.String(), `"source":"snapshots.json"`)
}

func TestUploadRejected(t *testing.T) {
	s := newTestService(t, Config{MaxUploadBytes: 64}, nil)
	id := createSession(t, s)

	rec := do(t, s, http.MethodPut, "/v1/sessions/"+id+"/payload", []byte("definitely not json"), "text/plain")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)

	rec = do(t, s, http.MethodPut, "/v1/sessions/"+id+"/payload", []byte(testPayload), "application/json")
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = do(t, s, http.MethodPut, "/v1/sessions/"+id+"/payload", []byte("   "), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	st := s.status()
	assert.Equal(t, int64(3), st.UploadErrors)
	assert.Equal(t, int64(0), st.Uploads)
}

func TestPutParams(t *testing.T) {
	s := newTestService(t, Config{}, nil)
	id := createSession(t, s)
	decodeDashboard(t, do(t, s, http.MethodPut, "/v1/sessions/"+id+"/payload", []byte(testPayload), "application/json"))

	d := decodeDashboard(t, do(t, s, http.MethodPut, "/v1/sessions/"+id+"/params",
		[]byte(`{"num_future_periods": 3, "trendline_degree": 9}`), "application/json"))
	assert.Equal(t, 3, d.Params.FuturePeriods)
	assert.Equal(t, 4, d.Params.Degree, "degree clamped to 4")
	assert.True(t, d.Params.Enabled, "unspecified fields keep their value")

	series := d.Series[0]
	assert.Len(t, series.Points, 5)
	assert.Equal(t, 1, series.Degree, "two months fit at most degree 1")

	d = decodeDashboard(t, do(t, s, http.MethodPut, "/v1/sessions/"+id+"/params",
		[]byte(`{"num_future_periods": -2, "show_trendline": false}`), "application/json"))
	assert.Equal(t, 0, d.Params.FuturePeriods)
	assert.Empty(t, d.Series)

	rec := do(t, s, http.MethodPut, "/v1/sessions/"+id+"/params", []byte(`{"trendline_degree": "two"}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionsAreIsolated(t *testing.T) {
	s := newTestService(t, Config{}, nil)
	a := createSession(t, s)
	b := createSession(t, s)

	decodeDashboard(t, do(t, s, http.MethodPut, "/v1/sessions/"+a+"/payload", []byte(testPayload), "application/json"))
	d := decodeDashboard(t, do(t, s, http.MethodGet, "/v1/sessions/"+b+"/dashboard", nil, ""))
	assert.Empty(t, d.Records)
}

func TestSessionErrors(t *testing.T) {
	s := newTestService(t, Config{}, nil)

	rec := do(t, s, http.MethodGet, "/v1/sessions/not-a-uuid/dashboard", nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/v1/sessions/6f1c2a4e-8d1b-4c39-9f0a-2b7e5d3c1a90/dashboard", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	id := createSession(t, s)
	rec = do(t, s, http.MethodDelete, "/v1/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(t, s, http.MethodDelete, "/v1/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChart(t *testing.T) {
	s := newTestService(t, Config{}, nil)
	id := createSession(t, s)

	rec := do(t, s, http.MethodGet, "/v1/sessions/"+id+"/chart/current_month_estimate_entity.png", nil, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	decodeDashboard(t, do(t, s, http.MethodPut, "/v1/sessions/"+id+"/payload", []byte(testPayload), "application/json"))

	rec = do(t, s, http.MethodGet, "/v1/sessions/"+id+"/chart/current_month_estimate_entity.png?width=320&height=240", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 320, img.Bounds().Dx())

	rec = do(t, s, http.MethodGet, "/v1/sessions/"+id+"/chart/unknown.png", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, s, http.MethodGet, "/v1/sessions/"+id+"/chart/current_month_estimate_entity.svg", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestService(t, Config{}, nil)
	id := createSession(t, s)
	decodeDashboard(t, do(t, s, http.MethodPut, "/v1/sessions/"+id+"/payload", []byte(testPayload), "application/json"))

	rec := do(t, s, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "snapdash_uploads_total 1")
	assert.Contains(t, body, "snapdash_sessions_created_total 1")
	assert.Contains(t, body, "snapdash_dropped_snapshots_total 1")
	assert.True(t, strings.Contains(body, "snapdash_recompute_seconds_bucket"))
}

func TestEventsAndHistory(t *testing.T) {
	history, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })

	s := newTestService(t, Config{EventsBuffer: 2}, history)
	id := createSession(t, s)
	decodeDashboard(t, do(t, s, http.MethodPut, "/v1/sessions/"+id+"/payload?name=jan.json", []byte(testPayload), "application/json"))
	decodeDashboard(t, do(t, s, http.MethodPut, "/v1/sessions/"+id+"/params", []byte(`{"num_future_periods": 1}`), "application/json"))
	decodeDashboard(t, do(t, s, http.MethodPut, "/v1/sessions/"+id+"/params", []byte(`{"num_future_periods": 2}`), "application/json"))

	events := s.recentEvents(id)
	require.Len(t, events, 2, "ring buffer keeps the newest events")
	assert.Equal(t, EventParams, events[1].Type)
	assert.Equal(t, 2, events[1].Months)
	assert.Greater(t, events[1].ID, events[0].ID)

	uploads, err := history.Uploads(0)
	require.NoError(t, err)
	require.Len(t, uploads, 1)
	assert.Equal(t, "jan.json", uploads[0].Source)
	assert.Equal(t, "2024-01", uploads[0].FirstMonth)
}

func TestStatus(t *testing.T) {
	s := newTestService(t, Config{Backend: "memory"}, nil)
	createSession(t, s)

	rec := do(t, s, http.MethodGet, "/v1/status", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "memory", st.Backend)
	assert.Equal(t, int64(1), st.SessionsCreated)
}

func TestConcurrentPayloadAndParams(t *testing.T) {
	s := newTestService(t, Config{}, nil)

	for range 50 {
		id := createSession(t, s)
		base := "/v1/sessions/" + id

		var wg sync.WaitGroup
		var payloadCode, paramsCode int
		wg.Add(2)
		go func() {
			defer wg.Done()
			payloadCode = do(t, s, http.MethodPut, base+"/payload", []byte(testPayload), "application/json").Code
		}()
		go func() {
			defer wg.Done()
			paramsCode = do(t, s, http.MethodPut, base+"/params", []byte(`{"num_future_periods":3}`), "application/json").Code
		}()
		wg.Wait()
		require.Equal(t, http.StatusOK, payloadCode)
		require.Equal(t, http.StatusOK, paramsCode)

		d := decodeDashboard(t, do(t, s, http.MethodGet, base+"/dashboard", nil, ""))
		require.Len(t, d.Records, 2, "payload lost to a concurrent params update")
		require.Equal(t, 3, d.Params.FuturePeriods, "params lost to a concurrent upload")
	}
}
