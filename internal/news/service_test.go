package news

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/news/adapter"
	"github.com/hitoshi/portal/internal/news/cache"
	"github.com/hitoshi/portal/internal/news/normalize"
	"github.com/hitoshi/portal/internal/news/source"
	"github.com/hitoshi/portal/internal/security"
)

const okItems = `{"status":"ok","items":[
	{"title":"Headline one","link":"https://example.com/1","author":"Agency"},
	{"title":"Headline two","link":"https://example.com/2","author":""}
]}`

// mockRecorder はRecorderのテスト用実装。
type mockRecorder struct {
	hits     int
	misses   int
	outcomes []string
}

func (m *mockRecorder) RecordCacheResult(_ string, hit bool) {
	if hit {
		m.hits++
	} else {
		m.misses++
	}
}

func (m *mockRecorder) RecordNewsRequest(_ string, outcome string) {
	m.outcomes = append(m.outcomes, outcome)
}

type testEnv struct {
	service  *Service
	hits     *atomic.Int32
	recorder *mockRecorder
	logs     *bytes.Buffer
}

// newTestEnv は上流をhttptestで立て、実際のadapter・normalizer・メモリキャッシュで組み立てる。
func newTestEnv(t *testing.T, handler http.HandlerFunc, src source.Source, credentials map[string]string) *testEnv {
	t.Helper()

	hits := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)

	src.URL = server.URL
	reg, err := source.NewRegistry(map[model.Category]source.Source{model.CategoryTW: src}, model.CategoryTW)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	rec := &mockRecorder{}

	a := adapter.New(reg, server.Client(), credentials, 1<<20, logger)
	svc := NewService(a, normalize.New(security.NewTitleCleaner()), cache.NewMemory(30*time.Minute), logger, WithRecorder(rec))

	return &testEnv{service: svc, hits: hits, recorder: rec, logs: &logs}
}

func rss2jsonSource() source.Source {
	return source.Source{
		Upstream:          "rss2json",
		Kind:              model.PayloadJSONItems,
		DefaultSourceName: "Google 新聞",
	}
}

func TestService_GetNews_SecondCallServedFromCache(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(okItems))
	}, rss2jsonSource(), nil)
	ctx := context.Background()

	first, err := env.service.GetNews(ctx, model.CategoryTW)
	if err != nil {
		t.Fatalf("first GetNews: %v", err)
	}
	if first.CacheHit {
		t.Error("first call should be a miss")
	}
	if first.Envelope.TotalResults != 2 {
		t.Errorf("TotalResults = %d, want 2", first.Envelope.TotalResults)
	}
	if first.Envelope.Articles[1].Source.Name != "Google 新聞" {
		t.Errorf("default source name = %q", first.Envelope.Articles[1].Source.Name)
	}

	second, err := env.service.GetNews(ctx, model.CategoryTW)
	if err != nil {
		t.Fatalf("second GetNews: %v", err)
	}
	if !second.CacheHit {
		t.Error("second call should be served from cache")
	}
	if got := env.hits.Load(); got != 1 {
		t.Errorf("upstream hits = %d, want 1", got)
	}
	if env.recorder.hits != 1 || env.recorder.misses != 1 {
		t.Errorf("recorder hits=%d misses=%d, want 1/1", env.recorder.hits, env.recorder.misses)
	}
}

func TestService_GetNews_UnknownCategorySharesFallbackCache(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(okItems))
	}, rss2jsonSource(), nil)
	ctx := context.Background()

	res, err := env.service.GetNews(ctx, model.Category("sports"))
	if err != nil {
		t.Fatalf("GetNews: %v", err)
	}
	if res.Category != model.CategoryTW {
		t.Errorf("Category = %q, want tw", res.Category)
	}

	res, err = env.service.GetNews(ctx, model.CategoryTW)
	if err != nil {
		t.Fatalf("GetNews: %v", err)
	}
	if !res.CacheHit {
		t.Error("tw should hit the entry created by the fallback request")
	}
	if got := env.hits.Load(); got != 1 {
		t.Errorf("upstream hits = %d, want 1", got)
	}
}

func TestService_GetNews_UpstreamErrorNotCached(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(okItems))
	}, rss2jsonSource(), nil)
	ctx := context.Background()

	_, err := env.service.GetNews(ctx, model.CategoryTW)
	ne, ok := model.AsNewsError(err)
	if !ok || ne.Kind != model.ErrKindUpstreamHTTP {
		t.Fatalf("err = %v, want UpstreamHTTPError", err)
	}
	if ne.UpstreamStatus != http.StatusInternalServerError {
		t.Errorf("UpstreamStatus = %d, want 500", ne.UpstreamStatus)
	}

	fail.Store(false)
	res, err := env.service.GetNews(ctx, model.CategoryTW)
	if err != nil {
		t.Fatalf("retry GetNews: %v", err)
	}
	if res.CacheHit {
		t.Error("retry should not be served from cache")
	}
	if got := env.hits.Load(); got != 2 {
		t.Errorf("upstream hits = %d, want 2", got)
	}
	if len(env.recorder.outcomes) != 2 || env.recorder.outcomes[0] != "http_error" || env.recorder.outcomes[1] != "miss" {
		t.Errorf("outcomes = %v", env.recorder.outcomes)
	}
}

func TestService_GetNews_ShapeErrorNotCached(t *testing.T) {
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"error","message":"Unprocessable"}`))
	}, rss2jsonSource(), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.service.GetNews(ctx, model.CategoryTW)
		ne, ok := model.AsNewsError(err)
		if !ok || ne.Kind != model.ErrKindUpstreamShape {
			t.Fatalf("call %d: err = %v, want UpstreamShapeError", i, err)
		}
	}
	if got := env.hits.Load(); got != 2 {
		t.Errorf("upstream hits = %d, want 2", got)
	}
}

func TestService_GetNews_MissingCredential_NoUpstreamCall(t *testing.T) {
	src := source.Source{
		Upstream:          "newsapi",
		Kind:              model.PayloadJSONArticles,
		DefaultSourceName: "NewsAPI",
		CredentialEnv:     "NEWSAPI_KEY",
		CredentialParam:   "apiKey",
	}
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","articles":[]}`))
	}, src, map[string]string{"NEWSAPI_KEY": ""})

	_, err := env.service.GetNews(context.Background(), model.CategoryTW)
	ne, ok := model.AsNewsError(err)
	if !ok || ne.Kind != model.ErrKindConfig {
		t.Fatalf("err = %v, want ConfigError", err)
	}
	if got := env.hits.Load(); got != 0 {
		t.Errorf("upstream hits = %d, want 0", got)
	}
	if env.recorder.outcomes[0] != "config_error" {
		t.Errorf("outcome = %q, want config_error", env.recorder.outcomes[0])
	}
}

func TestService_GetNews_EmptyListIsCachedSuccess(t *testing.T) {
	src := source.Source{
		Upstream:          "rss",
		Kind:              model.PayloadXMLFeed,
		DefaultSourceName: "Google News",
	}
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<rss><channel></channel></rss>`))
	}, src, nil)
	ctx := context.Background()

	res, err := env.service.GetNews(ctx, model.CategoryTW)
	if err != nil {
		t.Fatalf("GetNews: %v", err)
	}
	if res.Envelope.Status != model.StatusOK || res.Envelope.TotalResults != 0 {
		t.Errorf("envelope = %+v", res.Envelope)
	}

	res, err = env.service.GetNews(ctx, model.CategoryTW)
	if err != nil {
		t.Fatalf("GetNews: %v", err)
	}
	if !res.CacheHit {
		t.Error("empty success should be cached")
	}
}

func TestService_GetNews_UsesClockForFetchedAt(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(okItems))
	}, rss2jsonSource(), nil)
	env.service.now = func() time.Time { return fixed }

	res, err := env.service.GetNews(context.Background(), model.CategoryTW)
	if err != nil {
		t.Fatalf("GetNews: %v", err)
	}
	if !res.FetchedAt.Equal(fixed) {
		t.Errorf("FetchedAt = %v, want %v", res.FetchedAt, fixed)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{model.NewMissingCredentialError("X"), "config_error"},
		{model.NewUpstreamTimeoutError("u"), "timeout"},
		{model.NewUpstreamStatusError("u", 503), "http_error"},
		{model.NewUpstreamShapeError("u", "r"), "shape_error"},
		{model.NewUpstreamReportedError("u", "m"), "reported_error"},
		{context.Canceled, "error"},
	}
	for _, tt := range tests {
		if got := outcome(tt.err); got != tt.want {
			t.Errorf("outcome(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
