// Package adapter はカテゴリに対応する上流ソースへ1回だけリクエストを送り、
// ペイロードを未加工のまま種別タグ付きで返す。
package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/news/source"
)

// Resolver はカテゴリからSourceを解決するインターフェース。
type Resolver interface {
	Resolve(c model.Category) (source.Source, model.Category)
}

// Payload は上流から取得した未加工のペイロード。
type Payload struct {
	Kind     model.PayloadKind
	Body     []byte
	Source   source.Source
	Category model.Category // フォールバック適用後のカテゴリ
	Status   int
}

// FetchRecorder はフェッチ結果のメトリクスを記録するインターフェース。
type FetchRecorder interface {
	RecordUpstreamStatus(upstream string, statusCode int)
	RecordUpstreamLatency(upstream string, duration time.Duration)
}

// Adapter はFeed Adapterの実装。状態を持たず、並行呼び出しに安全。
type Adapter struct {
	resolver    Resolver
	client      *http.Client
	credentials map[string]string
	maxBodySize int64
	logger      *slog.Logger
	recorder    FetchRecorder
}

// Option はAdapterの任意設定。
type Option func(*Adapter)

// WithRecorder はメトリクスの記録先を設定する。
func WithRecorder(r FetchRecorder) Option {
	return func(a *Adapter) { a.recorder = r }
}

// New はAdapterを生成する。
// clientのTimeoutが全ソース共通のアウトバウンドタイムアウトになる。
// credentialsは環境変数名から値へのマップ。
func New(resolver Resolver, client *http.Client, credentials map[string]string, maxBodySize int64, logger *slog.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		resolver:    resolver,
		client:      client,
		credentials: credentials,
		maxBodySize: maxBodySize,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Resolve はカテゴリをフォールバック適用後のカテゴリとSourceに解決する。
func (a *Adapter) Resolve(c model.Category) (source.Source, model.Category) {
	return a.resolver.Resolve(c)
}

// Fetch はカテゴリに対応する上流へGETを1回送り、ペイロードを返す。
// 認証情報が必要で未設定の場合は通信せずにConfigErrorを返す。
// リトライは行わない。返すエラーは*model.NewsErrorで、URL（認証情報を含みうる）は含まない。
func (a *Adapter) Fetch(ctx context.Context, category model.Category) (*Payload, error) {
	src, resolved := a.resolver.Resolve(category)

	reqURL, err := a.buildURL(src)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, model.NewConfigError(fmt.Sprintf("invalid request for %s", src.Upstream))
	}
	for k, v := range src.Headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", acceptHeader(src.Kind))
	}

	start := time.Now()
	resp, err := a.client.Do(req)
	duration := time.Since(start)
	if a.recorder != nil {
		a.recorder.RecordUpstreamLatency(src.Upstream, duration)
	}
	if err != nil {
		newsErr := classifyTransportError(src.Upstream, err)
		a.logger.Warn("upstream request failed",
			slog.String("category", string(resolved)),
			slog.String("upstream", src.Upstream),
			slog.Bool("timeout", newsErr.Timeout),
			slog.String("error", newsErr.Message),
		)
		if a.recorder != nil {
			a.recorder.RecordUpstreamStatus(src.Upstream, 0)
		}
		return nil, newsErr
	}
	defer resp.Body.Close()

	if a.recorder != nil {
		a.recorder.RecordUpstreamStatus(src.Upstream, resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// コネクション再利用のため読み捨てる
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		a.logger.Warn("upstream returned error status",
			slog.String("category", string(resolved)),
			slog.String("upstream", src.Upstream),
			slog.Int("http_status", resp.StatusCode),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		return nil, model.NewUpstreamStatusError(src.Upstream, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBodySize))
	if err != nil {
		newsErr := classifyTransportError(src.Upstream, err)
		a.logger.Warn("failed to read upstream body",
			slog.String("category", string(resolved)),
			slog.String("upstream", src.Upstream),
			slog.String("error", newsErr.Message),
		)
		return nil, newsErr
	}

	a.logger.Debug("upstream fetched",
		slog.String("category", string(resolved)),
		slog.String("upstream", src.Upstream),
		slog.String("kind", string(src.Kind)),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("bytes", len(body)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return &Payload{
		Kind:     src.Kind,
		Body:     body,
		Source:   src,
		Category: resolved,
		Status:   resp.StatusCode,
	}, nil
}

// buildURL はソースURLに認証情報のクエリパラメータを付与する。
func (a *Adapter) buildURL(src source.Source) (string, error) {
	if !src.RequiresCredential() {
		return src.URL, nil
	}

	key := a.credentials[src.CredentialEnv]
	if key == "" {
		return "", model.NewMissingCredentialError(src.CredentialEnv)
	}

	u, err := url.Parse(src.URL)
	if err != nil {
		return "", model.NewConfigError(fmt.Sprintf("invalid source URL for %s", src.Upstream))
	}
	q := u.Query()
	q.Set(src.CredentialParam, key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// classifyTransportError は通信エラーをNewsErrorに変換する。
// *url.ErrorはリクエストURLを含むため、内側のエラーのみをメッセージに使う。
func classifyTransportError(upstream string, err error) *model.NewsError {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewUpstreamTimeoutError(upstream)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.NewUpstreamTimeoutError(upstream)
	}

	cause := err
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		cause = urlErr.Err
	}
	return model.NewUpstreamTransportError(upstream, cause)
}

func acceptHeader(kind model.PayloadKind) string {
	switch kind {
	case model.PayloadXMLFeed, model.PayloadParsedFeed:
		return "application/rss+xml, application/atom+xml, application/xml, text/xml, */*"
	default:
		return "application/json"
	}
}
