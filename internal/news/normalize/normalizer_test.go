package normalize

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/news/source"
	"github.com/hitoshi/portal/internal/security"
)

func testSource(kind model.PayloadKind) source.Source {
	return source.Source{
		Upstream:          "test-upstream",
		URL:               "https://example.com/feed",
		Kind:              kind,
		DefaultSourceName: "Google News",
	}
}

func newTestNormalizer() *Normalizer {
	return New(security.NewTitleCleaner())
}

// --- json-items ---

func TestNormalize_JSONItems_MapsFields(t *testing.T) {
	body := `{"status":"ok","items":[
		{"title":"First &amp; Best","link":"https://example.com/1","author":"Reuters"},
		{"title":"Second","link":"https://example.com/2","author":""}
	]}`

	got, err := newTestNormalizer().Normalize(model.PayloadJSONItems, []byte(body), testSource(model.PayloadJSONItems))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Title != "First & Best" || got[0].URL != "https://example.com/1" || got[0].Source.Name != "Reuters" {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Source.Name != "Google News" {
		t.Errorf("missing author should fall back to default label, got %q", got[1].Source.Name)
	}
}

func TestNormalize_JSONItems_StatusNotOK(t *testing.T) {
	body := `{"status":"error","message":"rss_url is invalid"}`

	_, err := newTestNormalizer().Normalize(model.PayloadJSONItems, []byte(body), testSource(model.PayloadJSONItems))
	ne, ok := model.AsNewsError(err)
	if !ok || ne.Kind != model.ErrKindUpstreamShape {
		t.Fatalf("err = %v, want UpstreamShapeError", err)
	}
	if !strings.Contains(ne.Message, "rss_url is invalid") {
		t.Errorf("message %q should carry upstream detail", ne.Message)
	}
}

func TestNormalize_JSONItems_MissingItemsKey(t *testing.T) {
	_, err := newTestNormalizer().Normalize(model.PayloadJSONItems, []byte(`{"status":"ok"}`), testSource(model.PayloadJSONItems))
	ne, ok := model.AsNewsError(err)
	if !ok || ne.Kind != model.ErrKindUpstreamShape {
		t.Fatalf("err = %v, want UpstreamShapeError", err)
	}
}

func TestNormalize_JSONItems_InvalidJSON(t *testing.T) {
	_, err := newTestNormalizer().Normalize(model.PayloadJSONItems, []byte(`<html>`), testSource(model.PayloadJSONItems))
	ne, ok := model.AsNewsError(err)
	if !ok || ne.Kind != model.ErrKindUpstreamShape {
		t.Fatalf("err = %v, want UpstreamShapeError", err)
	}
}

func TestNormalize_JSONItems_EmptyItemsIsOK(t *testing.T) {
	got, err := newTestNormalizer().Normalize(model.PayloadJSONItems, []byte(`{"status":"ok","items":[]}`), testSource(model.PayloadJSONItems))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

// --- json-articles ---

func articlesPayload(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf(`{"title":"Article %d","url":"https://example.com/%d","source":{"name":"Source %d"}}`, i+1, i+1, i+1)
	}
	return `{"status":"ok","totalResults":` + fmt.Sprint(n) + `,"articles":[` + strings.Join(parts, ",") + `]}`
}

func TestNormalize_JSONArticles_EightArticles_KeepsFirstFiveInOrder(t *testing.T) {
	got, err := newTestNormalizer().Normalize(model.PayloadJSONArticles, []byte(articlesPayload(8)), testSource(model.PayloadJSONArticles))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	for i, a := range got {
		want := fmt.Sprintf("Article %d", i+1)
		if a.Title != want {
			t.Errorf("got[%d].Title = %q, want %q", i, a.Title, want)
		}
		if a.Source.Name != fmt.Sprintf("Source %d", i+1) {
			t.Errorf("got[%d].Source.Name = %q", i, a.Source.Name)
		}
	}
}

func TestNormalize_JSONArticles_NewsAPIError(t *testing.T) {
	body := `{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid."}`

	_, err := newTestNormalizer().Normalize(model.PayloadJSONArticles, []byte(body), testSource(model.PayloadJSONArticles))
	ne, ok := model.AsNewsError(err)
	if !ok || ne.Kind != model.ErrKindUpstreamReported {
		t.Fatalf("err = %v, want UpstreamReportedError", err)
	}
	if !strings.Contains(ne.Message, "Your API key is invalid.") {
		t.Errorf("message %q should pass through upstream message", ne.Message)
	}
}

func TestNormalize_JSONArticles_GNewsErrorsArray(t *testing.T) {
	body := `{"errors":["You did not provide an API key."]}`

	_, err := newTestNormalizer().Normalize(model.PayloadJSONArticles, []byte(body), testSource(model.PayloadJSONArticles))
	ne, ok := model.AsNewsError(err)
	if !ok || ne.Kind != model.ErrKindUpstreamReported {
		t.Fatalf("err = %v, want UpstreamReportedError", err)
	}
	if !strings.Contains(ne.Message, "You did not provide an API key.") {
		t.Errorf("message = %q", ne.Message)
	}
}

func TestNormalize_JSONArticles_GNewsErrorsObject(t *testing.T) {
	body := `{"errors":{"lang":"The selected lang is invalid.","country":"The selected country is invalid."}}`

	_, err := newTestNormalizer().Normalize(model.PayloadJSONArticles, []byte(body), testSource(model.PayloadJSONArticles))
	ne, ok := model.AsNewsError(err)
	if !ok || ne.Kind != model.ErrKindUpstreamReported {
		t.Fatalf("err = %v, want UpstreamReportedError", err)
	}
	if !strings.Contains(ne.Message, "The selected country is invalid.; The selected lang is invalid.") {
		t.Errorf("message = %q", ne.Message)
	}
}

func TestNormalize_JSONArticles_GNewsWithoutStatus(t *testing.T) {
	body := `{"totalArticles":1,"articles":[{"title":"GNews headline","url":"https://example.com/g","source":{"name":""}}]}`

	got, err := newTestNormalizer().Normalize(model.PayloadJSONArticles, []byte(body), testSource(model.PayloadJSONArticles))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if len(got) != 1 || got[0].Source.Name != "Google News" {
		t.Errorf("got = %+v", got)
	}
}

func TestNormalize_JSONArticles_MissingArticles(t *testing.T) {
	_, err := newTestNormalizer().Normalize(model.PayloadJSONArticles, []byte(`{"status":"ok"}`), testSource(model.PayloadJSONArticles))
	ne, ok := model.AsNewsError(err)
	if !ok || ne.Kind != model.ErrKindUpstreamShape {
		t.Fatalf("err = %v, want UpstreamShapeError", err)
	}
}

func TestNormalize_JSONArticles_DuplicatesPassThrough(t *testing.T) {
	body := `{"status":"ok","articles":[
		{"title":"Same","url":"https://example.com/x","source":{"name":"A"}},
		{"title":"Same","url":"https://example.com/x","source":{"name":"A"}}
	]}`
	got, err := newTestNormalizer().Normalize(model.PayloadJSONArticles, []byte(body), testSource(model.PayloadJSONArticles))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("len = %d, want duplicates kept", len(got))
	}
}

func TestNormalize_MissingOrRelativeURL_BecomesSentinel(t *testing.T) {
	body := `{"status":"ok","articles":[
		{"title":"No URL","source":{"name":"A"}},
		{"title":"Relative","url":"/news/1","source":{"name":"A"}},
		{"title":"Script","url":"javascript:alert(1)","source":{"name":"A"}}
	]}`
	got, err := newTestNormalizer().Normalize(model.PayloadJSONArticles, []byte(body), testSource(model.PayloadJSONArticles))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	for _, a := range got {
		if a.URL != "#" {
			t.Errorf("%q URL = %q, want #", a.Title, a.URL)
		}
	}
}

func TestNormalize_EmptyTitleSkipped(t *testing.T) {
	body := `{"status":"ok","items":[
		{"title":"","link":"https://example.com/0"},
		{"title":"1","link":"https://example.com/1"},
		{"title":"2","link":"https://example.com/2"},
		{"title":"   ","link":"https://example.com/blank"},
		{"title":"3","link":"https://example.com/3"},
		{"title":"4","link":"https://example.com/4"},
		{"title":"5","link":"https://example.com/5"},
		{"title":"6","link":"https://example.com/6"}
	]}`
	got, err := newTestNormalizer().Normalize(model.PayloadJSONItems, []byte(body), testSource(model.PayloadJSONItems))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("len = %d, want 5", len(got))
	}
	if got[0].Title != "1" || got[4].Title != "5" {
		t.Errorf("titles = %q..%q, want 1..5", got[0].Title, got[4].Title)
	}
}

func TestNormalize_UnknownKind(t *testing.T) {
	_, err := newTestNormalizer().Normalize(model.PayloadKind("csv"), []byte(""), testSource("csv"))
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

// --- エンコードされた山括弧 ---

func TestNormalize_JSON_EncodedBracketsKeptAsText(t *testing.T) {
	tests := []struct {
		name string
		kind model.PayloadKind
		body string
	}{
		{
			name: "json-items",
			kind: model.PayloadJSONItems,
			body: `{"status":"ok","items":[
				{"title":"a &lt;b&gt; c","link":"https://example.com/1","author":"A"},
				{"title":"if a&lt;b then","link":"https://example.com/2","author":"A"},
				{"title":"<i>Tagged</i> title","link":"https://example.com/3","author":"A"}
			]}`,
		},
		{
			name: "json-articles",
			kind: model.PayloadJSONArticles,
			body: `{"status":"ok","articles":[
				{"title":"a &lt;b&gt; c","url":"https://example.com/1","source":{"name":"A"}},
				{"title":"if a&lt;b then","url":"https://example.com/2","source":{"name":"A"}},
				{"title":"<i>Tagged</i> title","url":"https://example.com/3","source":{"name":"A"}}
			]}`,
		},
	}

	want := []string{"a <b> c", "if a<b then", "Tagged title"}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newTestNormalizer().Normalize(tt.kind, []byte(tt.body), testSource(tt.kind))
			if err != nil {
				t.Fatalf("Normalize error: %v", err)
			}
			if len(got) != len(want) {
				t.Fatalf("len = %d, want %d (%+v)", len(got), len(want), got)
			}
			for i, w := range want {
				if got[i].Title != w {
					t.Errorf("got[%d].Title = %q, want %q", i, got[i].Title, w)
				}
			}
		})
	}
}

func TestNormalize_JSONArticles_DoubleEncodedDecodedOnce(t *testing.T) {
	body := `{"articles":[{"title":"R&amp;amp;D","url":"https://example.com/1","source":{"name":"S"}}]}`

	got, err := newTestNormalizer().Normalize(model.PayloadJSONArticles, []byte(body), testSource(model.PayloadJSONArticles))
	if err != nil {
		t.Fatalf("Normalize error: %v", err)
	}
	if got[0].Title != "R&amp;D" {
		t.Errorf("Title = %q, want entities decoded exactly once", got[0].Title)
	}
}
