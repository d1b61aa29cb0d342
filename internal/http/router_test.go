package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/vibelist-backend/internal/domain/emotion"
	"github.com/yungbote/vibelist-backend/internal/domain/track"
	"github.com/yungbote/vibelist-backend/internal/domain/trend"
	httpH "github.com/yungbote/vibelist-backend/internal/http/handlers"
	"github.com/yungbote/vibelist-backend/internal/observability"
	"github.com/yungbote/vibelist-backend/internal/platform/apierr"
	"github.com/yungbote/vibelist-backend/internal/platform/logger"
	"github.com/yungbote/vibelist-backend/internal/services"
)

type fakeRecommendations struct {
	err  error
	last string
}

func (f *fakeRecommendations) result(detected emotion.Label, mode emotion.Mode) (*services.Recommendation, error) {
	out := &services.Recommendation{
		Detected: detected,
		Target:   emotion.Transition(detected, mode),
		Mode:     mode,
		Tracks:   []track.Candidate{},
	}
	if f.err != nil {
		return out, f.err
	}
	out.Tracks = []track.Candidate{{SpotifyID: "t1"}, {SpotifyID: "t2"}}
	return out, nil
}

func (f *fakeRecommendations) RecommendByEmotion(_ context.Context, label emotion.Label, mode emotion.Mode, _ int) (*services.Recommendation, error) {
	f.last = "emotion"
	return f.result(label, mode)
}

func (f *fakeRecommendations) RecommendByCoordinate(_ context.Context, v, e float64, mode emotion.Mode, _ int) (*services.Recommendation, error) {
	f.last = "coordinate"
	return f.result(emotion.Classify(v, e), mode)
}

func (f *fakeRecommendations) RecommendByText(_ context.Context, _ string, mode emotion.Mode, _ int) (*services.Recommendation, error) {
	f.last = "text"
	return f.result(emotion.Neutral, mode)
}

type fakeTrends struct {
	ranking    []trend.Response
	rebuildErr error
	lastLimit  int
}

func (f *fakeTrends) Current(context.Context) ([]trend.Response, error) { return f.ranking, nil }

func (f *fakeTrends) Top(_ context.Context, limit int) ([]trend.Response, error) {
	f.lastLimit = limit
	if limit <= 0 {
		limit = services.DefaultTrendLimit
	}
	if len(f.ranking) > limit {
		return f.ranking[:limit], nil
	}
	return f.ranking, nil
}

func (f *fakeTrends) Rebuild(context.Context) (*trend.Snapshot, error) {
	if f.rebuildErr != nil {
		return &trend.Snapshot{Status: trend.SnapshotFailed}, f.rebuildErr
	}
	return &trend.Snapshot{Status: trend.SnapshotCompleted, Entries: make([]trend.Entry, 3)}, nil
}

func newTestRouter(rec *fakeRecommendations, tr *fakeTrends, checks map[string]httpH.Check) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.Nop()
	return NewRouter(RouterConfig{
		Log:              log,
		Metrics:          observability.NewMetrics(),
		RecommendHandler: httpH.NewRecommendHandler(log, rec),
		TrendHandler:     httpH.NewTrendHandler(log, tr),
		HealthHandler:    httpH.NewHealthHandler(checks),
	})
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecommendRoutesByInputKind(t *testing.T) {
	rec := &fakeRecommendations{}
	r := newTestRouter(rec, &fakeTrends{}, nil)

	cases := []struct {
		body string
		kind string
	}{
		{`{"emotion":"sad","mode":"reverse","size":2}`, "emotion"},
		{`{"valence":0.9,"energy":0.9}`, "coordinate"},
		{`{"text":"a quiet rainy morning"}`, "text"},
	}
	for _, tc := range cases {
		w := do(r, http.MethodPost, "/api/recommend", tc.body)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status want=200 got=%d body=%s", tc.kind, w.Code, w.Body.String())
		}
		if rec.last != tc.kind {
			t.Fatalf("%s: routed to %s", tc.kind, rec.last)
		}
	}

	w := do(r, http.MethodPost, "/api/recommend", `{"emotion":"SAD","mode":"REVERSE"}`)
	var out services.Recommendation
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Target != emotion.Joy || len(out.Tracks) != 2 {
		t.Fatalf("body: %+v", out)
	}
}

func TestRecommendRejectsBadRequests(t *testing.T) {
	r := newTestRouter(&fakeRecommendations{}, &fakeTrends{}, nil)
	bodies := []string{
		`{}`,
		`{"emotion":"JOY","text":"hi"}`,
		`{"valence":0.3}`,
		`{"emotion":"BORED"}`,
		`{"emotion":"JOY","mode":"SIDEWAYS"}`,
		`not json`,
	}
	for _, b := range bodies {
		w := do(r, http.MethodPost, "/api/recommend", b)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status want=400 got=%d", b, w.Code)
		}
	}
}

func TestRecommendRetrievalFailureBody(t *testing.T) {
	rec := &fakeRecommendations{err: apierr.ErrRetrievalFailure}
	r := newTestRouter(rec, &fakeTrends{}, nil)

	w := do(r, http.MethodPost, "/api/recommend", `{"emotion":"CALM"}`)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: want=503 got=%d", w.Code)
	}
	var body struct {
		Tracks []track.Candidate `json:"tracks"`
		Error  struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Tracks == nil || len(body.Tracks) != 0 || body.Error.Code != "retrieval_failed" {
		t.Fatalf("body: %s", w.Body.String())
	}
}

func TestRecommendFailuresLogErrorCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.FromZap(zap.New(core), logger.Options{})
	rec := &fakeRecommendations{err: apierr.ErrRetrievalFailure}
	r := NewRouter(RouterConfig{
		Log:              log,
		Metrics:          observability.NewMetrics(),
		RecommendHandler: httpH.NewRecommendHandler(log, rec),
	})

	cases := map[string]string{
		`{"emotion":"CALM"}`:  "retrieval_failed",
		`{"emotion":"BORED"}`: "invalid_input",
	}
	for body, wantCode := range cases {
		logs.TakeAll()
		do(r, http.MethodPost, "/api/recommend", body)
		var got any
		for _, e := range logs.FilterMessage("HTTP request").All() {
			got = e.ContextMap()["error_code"]
		}
		if got != wantCode {
			t.Fatalf("%s: error_code want=%s got=%v", body, wantCode, got)
		}
	}
}

func TestRecommendUpstreamFailure(t *testing.T) {
	rec := &fakeRecommendations{err: errors.Join(apierr.ErrUpstream, errors.New("llm down"))}
	r := newTestRouter(rec, &fakeTrends{}, nil)
	w := do(r, http.MethodPost, "/api/recommend", `{"text":"tired"}`)
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status: want=502 got=%d", w.Code)
	}
}

func TestTrendRoutes(t *testing.T) {
	ranking := make([]trend.Response, 12)
	for i := range ranking {
		ranking[i] = trend.Response{PostID: int64(i + 1), Rank: i + 1, TrendStatus: trend.StatusNew}
	}
	tr := &fakeTrends{ranking: ranking}
	r := newTestRouter(&fakeRecommendations{}, tr, nil)

	w := do(r, http.MethodGet, "/api/trends", "")
	var body struct {
		Trends []trend.Response `json:"trends"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || len(body.Trends) != 12 {
		t.Fatalf("GET /api/trends: code=%d len=%d err=%v", w.Code, len(body.Trends), err)
	}

	w = do(r, http.MethodGet, "/api/trends/top?limit=2", "")
	body.Trends = nil
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusOK || len(body.Trends) != 2 || tr.lastLimit != 2 {
		t.Fatalf("GET top?limit=2: code=%d len=%d", w.Code, len(body.Trends))
	}

	w = do(r, http.MethodGet, "/api/trends/top", "")
	body.Trends = nil
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if len(body.Trends) != services.DefaultTrendLimit {
		t.Fatalf("GET top default: len=%d", len(body.Trends))
	}

	if w := do(r, http.MethodGet, "/api/trends/top?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("GET top?limit=abc: want=400 got=%d", w.Code)
	}
}

func TestTrendRebuild(t *testing.T) {
	tr := &fakeTrends{}
	r := newTestRouter(&fakeRecommendations{}, tr, nil)

	w := do(r, http.MethodPost, "/api/trends/rebuild", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"status":"COMPLETED"`) {
		t.Fatalf("rebuild: code=%d body=%s", w.Code, w.Body.String())
	}

	tr.rebuildErr = errors.Join(apierr.ErrSnapshotFailure, errors.New("rank: timeout"))
	w = do(r, http.MethodPost, "/api/trends/rebuild", "")
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), "trend_capture_failed") {
		t.Fatalf("rebuild failure: code=%d body=%s", w.Code, w.Body.String())
	}
}

func TestHealthAndMetrics(t *testing.T) {
	checks := map[string]httpH.Check{
		"cache":  func(context.Context) error { return nil },
		"search": func(context.Context) error { return errors.New("no route to host") },
	}
	r := newTestRouter(&fakeRecommendations{}, &fakeTrends{}, checks)

	w := do(r, http.MethodGet, "/healthcheck", "")
	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("healthcheck: code=%d body=%q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("missing X-Request-Id header")
	}

	w = do(r, http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), "no route to host") {
		t.Fatalf("readyz: code=%d body=%s", w.Code, w.Body.String())
	}

	do(r, http.MethodGet, "/api/trends", "")
	do(r, http.MethodGet, "/api/nope", "")

	w = do(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: code=%d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`http_requests_total{method="GET",route="/api/trends",status="200"} 1`,
		`http_requests_total{method="GET",route="unmatched",status="404"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics: missing %s", want)
		}
	}
	if strings.Contains(body, `route="/healthcheck"`) {
		t.Fatalf("metrics: probe routes should not be recorded")
	}
}
