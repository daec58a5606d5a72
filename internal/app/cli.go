package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/portal/internal/config"
	"github.com/hitoshi/portal/internal/quote"
	"github.com/hitoshi/portal/internal/security"
	"github.com/hitoshi/portal/internal/watchlist"
	"github.com/hitoshi/portal/internal/widget"
)

// runNews はプロキシからニュースを取得して表示する。
// 通信失敗やエラーエンベロープもメッセージとして表示し、エラーは返さない。
func runNews(ctx context.Context, cfg *config.Config, w io.Writer, args []string) error {
	var category string
	if len(args) > 0 {
		category = args[0]
	}

	client := widget.NewNewsClient(&http.Client{Timeout: cfg.FetchTimeout + 5*time.Second}, cfg.PortalURL)
	env, err := client.FetchNews(ctx, category)
	if err != nil {
		slog.Warn("news request failed",
			slog.String("portal_url", cfg.PortalURL),
			slog.String("error", err.Error()),
		)
	}

	widget.NewRenderer(w).News(category, env, err)
	return nil
}

// runWatchlist はウォッチリストのadd/remove/listを実行する。サブコマンド省略時はlist。
func runWatchlist(ctx context.Context, cfg *config.Config, w io.Writer, args []string) error {
	store, err := watchlist.OpenStore(cfg.WatchlistDB)
	if err != nil {
		return err
	}
	defer store.Close()

	wl := watchlist.New(store)
	renderer := widget.NewRenderer(w)

	action := "list"
	if len(args) > 0 {
		action = args[0]
	}

	var symbols []string
	switch action {
	case "list":
		symbols, err = wl.List(ctx)
	case "add", "remove":
		if len(args) < 2 {
			return fmt.Errorf("usage: portal watchlist %s SYMBOL", action)
		}
		if action == "add" {
			symbols, err = wl.Add(ctx, args[1])
		} else {
			symbols, err = wl.Remove(ctx, args[1])
		}
	default:
		return fmt.Errorf("unknown watchlist action %q (want add, remove or list)", action)
	}
	if err != nil {
		renderer.Error(err)
		return err
	}

	renderer.Watchlist(symbols)
	return nil
}

// runQuotes はウォッチリストの全銘柄のクォートを順に取得して表示する。
// 上流のレート制限に合わせて、銘柄ごとにQUOTE_INTERVALの間隔を空ける。
func runQuotes(ctx context.Context, cfg *config.Config, w io.Writer) error {
	renderer := widget.NewRenderer(w)

	if cfg.AlphaVantageAPIKey == "" {
		renderer.Error(quote.ErrMissingAPIKey)
		return quote.ErrMissingAPIKey
	}

	store, err := watchlist.OpenStore(cfg.WatchlistDB)
	if err != nil {
		return err
	}
	defer store.Close()

	symbols, err := watchlist.New(store).List(ctx)
	if err != nil {
		return err
	}
	if len(symbols) == 0 {
		renderer.Watchlist(symbols)
		return nil
	}

	client := quote.NewClient(security.NewOutboundGuard().NewClient(cfg.FetchTimeout), cfg.AlphaVantageAPIKey, slog.Default())
	poller := quote.NewPoller(client, cfg.QuoteInterval, slog.Default())

	results, err := poller.Poll(ctx, symbols, renderer.Quote)
	if err != nil {
		return fmt.Errorf("quote polling interrupted after %d of %d symbols: %w", len(results), len(symbols), err)
	}
	return nil
}
