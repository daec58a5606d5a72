package handler

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/portal/internal/middleware"
)

// searchEngineURL は検索リダイレクト先。
const searchEngineURL = "https://www.google.com/search"

// Search は検索語をGoogleウェブ検索へ302でリダイレクトする。
// GET /search?q=...
func Search(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		middleware.WriteErrorEnvelope(w, http.StatusBadRequest, "search query is required")
		return
	}

	target := searchEngineURL + "?" + url.Values{"q": {q}}.Encode()
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, target, http.StatusFound)
}
