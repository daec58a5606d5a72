// Package news はニュースプロキシのリクエスト処理を統括する。
// キャッシュ参照 → 上流フェッチ → 正規化 → エンベロープ生成の流れを持つ。
package news

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/news/adapter"
	"github.com/hitoshi/portal/internal/news/cache"
	"github.com/hitoshi/portal/internal/news/source"
)

// Fetcher は上流ペイロードを取得するインターフェース。
// テスタビリティのためadapter.Adapterを抽象化する。
type Fetcher interface {
	Resolve(c model.Category) (source.Source, model.Category)
	Fetch(ctx context.Context, c model.Category) (*adapter.Payload, error)
}

// Normalizer はペイロードを記事リストに変換するインターフェース。
type Normalizer interface {
	Normalize(kind model.PayloadKind, body []byte, src source.Source) ([]model.Article, error)
}

// Recorder はリクエスト結果のメトリクスを記録するインターフェース。
type Recorder interface {
	RecordCacheResult(category string, hit bool)
	RecordNewsRequest(category string, outcome string)
}

// Result はGetNewsの成功結果。
type Result struct {
	Envelope  *model.Envelope
	Category  model.Category // フォールバック適用後のカテゴリ
	CacheHit  bool
	FetchedAt time.Time
}

// Service はニュース取得のサービス層。
type Service struct {
	fetcher    Fetcher
	normalizer Normalizer
	cache      cache.Cache
	logger     *slog.Logger
	recorder   Recorder
	now        func() time.Time
}

// Option はServiceの任意設定。
type Option func(*Service)

// WithRecorder はメトリクスの記録先を設定する。
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// NewService はServiceを生成する。
func NewService(fetcher Fetcher, normalizer Normalizer, c cache.Cache, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		fetcher:    fetcher,
		normalizer: normalizer,
		cache:      c,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetNews はカテゴリのニュースを返す。
// キャッシュはフォールバック適用後のカテゴリをキーにし、成功時のみ保存する。
// 失敗時は*model.NewsErrorを返す。
func (s *Service) GetNews(ctx context.Context, category model.Category) (*Result, error) {
	_, resolved := s.fetcher.Resolve(category)
	key := string(resolved)

	if cached, ok := s.cache.Get(ctx, key); ok {
		s.recordCache(key, true)
		s.recordRequest(key, "hit")
		return &Result{
			Envelope:  cached.Envelope,
			Category:  resolved,
			CacheHit:  true,
			FetchedAt: cached.FetchedAt,
		}, nil
	}
	s.recordCache(key, false)

	payload, err := s.fetcher.Fetch(ctx, resolved)
	if err != nil {
		s.recordRequest(key, outcome(err))
		return nil, err
	}

	articles, err := s.normalizer.Normalize(payload.Kind, payload.Body, payload.Source)
	if err != nil {
		s.logger.Warn("normalize failed",
			slog.String("category", key),
			slog.String("upstream", payload.Source.Upstream),
			slog.String("error", err.Error()),
		)
		s.recordRequest(key, outcome(err))
		return nil, err
	}

	resp := &model.CachedResponse{
		Envelope:  model.NewOKEnvelope(articles),
		FetchedAt: s.now(),
	}
	s.cache.Set(ctx, key, resp)
	s.recordRequest(key, "miss")

	s.logger.Info("news fetched",
		slog.String("category", key),
		slog.String("upstream", payload.Source.Upstream),
		slog.Int("articles", len(articles)),
	)

	return &Result{
		Envelope:  resp.Envelope,
		Category:  resolved,
		FetchedAt: resp.FetchedAt,
	}, nil
}

func (s *Service) recordCache(category string, hit bool) {
	if s.recorder != nil {
		s.recorder.RecordCacheResult(category, hit)
	}
}

func (s *Service) recordRequest(category, result string) {
	if s.recorder != nil {
		s.recorder.RecordNewsRequest(category, result)
	}
}

// outcome はエラーをメトリクスのラベル値に変換する。
func outcome(err error) string {
	ne, ok := model.AsNewsError(err)
	if !ok {
		return "error"
	}
	switch ne.Kind {
	case model.ErrKindConfig:
		return "config_error"
	case model.ErrKindUpstreamShape:
		return "shape_error"
	case model.ErrKindUpstreamReported:
		return "reported_error"
	default:
		if ne.Timeout {
			return "timeout"
		}
		return "http_error"
	}
}
