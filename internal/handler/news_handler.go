// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/portal/internal/middleware"
	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/news"
)

// NewsServiceInterface はニュースハンドラーが必要とするサービスインターフェース。
type NewsServiceInterface interface {
	GetNews(ctx context.Context, category model.Category) (*news.Result, error)
}

// NewsHandler はニュースプロキシのHTTPハンドラー。
type NewsHandler struct {
	service NewsServiceInterface
	maxAge  int
	logger  *slog.Logger
}

// NewNewsHandler はNewsHandlerを生成する。
// cacheTTLは成功レスポンスのCache-Control max-ageに使う。
func NewNewsHandler(service NewsServiceInterface, cacheTTL time.Duration, logger *slog.Logger) *NewsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NewsHandler{
		service: service,
		maxAge:  int(cacheTTL.Seconds()),
		logger:  logger,
	}
}

// GetNews はカテゴリのニュースをエンベロープで返す。
// GET /api/get-news?category={tw|jp|world}
func (h *NewsHandler) GetNews(w http.ResponseWriter, r *http.Request) {
	category := model.ParseCategory(r.URL.Query().Get("category"))

	result, err := h.service.GetNews(r.Context(), category)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	cacheStatus := "MISS"
	if result.CacheHit {
		cacheStatus = "HIT"
	}
	w.Header().Set("X-Cache", cacheStatus)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", h.maxAge))
	middleware.WriteEnvelope(w, http.StatusOK, result.Envelope)
}

// handleServiceError はサービス層から返されたエラーをエラーエンベロープに変換する。
func (h *NewsHandler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if ne, ok := model.AsNewsError(err); ok {
		middleware.WriteErrorEnvelope(w, mapNewsErrorToHTTPStatus(ne), ne.Message)
		return
	}

	// NewsError以外のエラーは内部サーバーエラーとして扱う
	h.logger.Error("internal server error",
		slog.String("error", err.Error()),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
	)
	middleware.WriteInternalServerError(w)
}

// mapNewsErrorToHTTPStatus はNewsErrorの種別からHTTPステータスコードにマッピングする。
func mapNewsErrorToHTTPStatus(ne *model.NewsError) int {
	switch ne.Kind {
	case model.ErrKindConfig:
		return http.StatusInternalServerError
	case model.ErrKindUpstreamHTTP:
		if ne.Timeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	case model.ErrKindUpstreamShape, model.ErrKindUpstreamReported:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
