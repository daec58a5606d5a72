package quote

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Fetcher は1銘柄のクォート取得のインターフェース。
// テスト時にモックに差し替え可能。
type Fetcher interface {
	GetQuote(ctx context.Context, symbol string) (*Quote, error)
}

// Result は1銘柄ぶんの取得結果。QuoteとErrのどちらか一方が入る。
type Result struct {
	Symbol string
	Quote  *Quote
	Err    error
}

// Poller はウォッチリストの銘柄を1件ずつ順に取得する。
// 呼び出しの間隔はrate.Limiterで一定に保ち、上流のレート制限を超えないようにする。
type Poller struct {
	fetcher Fetcher
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewPoller はPollerを生成する。intervalごとに1回だけ取得を許可する。
func NewPoller(fetcher Fetcher, interval time.Duration, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		fetcher: fetcher,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}
}

// Poll はsymbolsを順番に取得する。初回は待たず、以降はintervalの間隔を空ける。
// 個々の失敗は結果に記録して次の銘柄へ進む。onResultがnilでなければ取得ごとに呼ぶ。
// コンテキストがキャンセルされた場合は、それまでの結果とコンテキストのエラーを返す。
func (p *Poller) Poll(ctx context.Context, symbols []string, onResult func(Result)) ([]Result, error) {
	results := make([]Result, 0, len(symbols))

	for _, symbol := range symbols {
		if err := p.limiter.Wait(ctx); err != nil {
			return results, err
		}

		q, err := p.fetcher.GetQuote(ctx, symbol)
		r := Result{Symbol: symbol, Quote: q, Err: err}
		if err != nil {
			r.Quote = nil
			p.logger.Warn("quote fetch failed",
				slog.String("symbol", symbol),
				slog.String("error", err.Error()),
			)
		}

		results = append(results, r)
		if onResult != nil {
			onResult(r)
		}
	}

	return results, nil
}
