package widget

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/quote"
)

// 表示メッセージ。
const (
	msgNoNews        = "No news available right now."
	msgNewsError     = "Failed to load news: %s"
	msgNetworkError  = "Cannot reach the news server: %s"
	msgWatchlistNone = "Watchlist is empty. Add a symbol with: portal watchlist add SYMBOL"
)

// Renderer はlipglossで端末向けに整形して書き出す。
// 出力先が端末でない場合、lipglossは装飾を付けずにプレーンテキストを出す。
type Renderer struct {
	w io.Writer

	header lipgloss.Style
	source lipgloss.Style
	link   lipgloss.Style
	errMsg lipgloss.Style
	muted  lipgloss.Style
	up     lipgloss.Style
	down   lipgloss.Style
}

// NewRenderer はwに書き出すRendererを生成する。色の可否はwから判定する。
func NewRenderer(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		w:      w,
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("205")),
		source: r.NewStyle().Foreground(lipgloss.Color("86")),
		link:   r.NewStyle().Foreground(lipgloss.Color("241")),
		errMsg: r.NewStyle().Foreground(lipgloss.Color("196")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("241")),
		up:     r.NewStyle().Foreground(lipgloss.Color("42")),
		down:   r.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

// News はニュースの取得結果を表示する。
// errは通信失敗、envはプロキシが返したエンベロープ。どの場合も何らかの行を必ず出力する。
func (r *Renderer) News(category string, env *model.Envelope, err error) {
	if category == "" {
		category = string(model.DefaultCategory)
	}
	r.println(r.header.Render("News (" + category + ")"))

	switch {
	case err != nil:
		r.println(r.errMsg.Render(fmt.Sprintf(msgNetworkError, err)))
	case env == nil:
		r.println(r.errMsg.Render(fmt.Sprintf(msgNetworkError, "empty response")))
	case env.Status == model.StatusError:
		r.println(r.errMsg.Render(fmt.Sprintf(msgNewsError, env.Message)))
	case len(env.Articles) == 0:
		r.println(r.muted.Render(msgNoNews))
	default:
		for _, a := range env.Articles {
			r.println(r.source.Render("["+a.Source.Name+"]") + " " + a.Title)
			if a.URL != "#" {
				r.println("  " + r.link.Render(a.URL))
			}
		}
	}
}

// Watchlist はウォッチリストの銘柄を表示する。
func (r *Renderer) Watchlist(symbols []string) {
	r.println(r.header.Render("Watchlist"))
	if len(symbols) == 0 {
		r.println(r.muted.Render(msgWatchlistNone))
		return
	}
	r.println(strings.Join(symbols, "  "))
}

// Quote は1銘柄のクォートを1行で表示する。quote.Poller.Pollのコールバックとして使う。
func (r *Renderer) Quote(res quote.Result) {
	symbol := fmt.Sprintf("%-10s", res.Symbol)
	if res.Err != nil || res.Quote == nil {
		msg := "no data"
		if res.Err != nil {
			msg = res.Err.Error()
		}
		r.println(symbol + r.errMsg.Render("unavailable: "+msg))
		return
	}

	q := res.Quote
	change := fmt.Sprintf("%+.2f (%+.2f%%)", q.Change, q.ChangePercent)
	style := r.up
	if q.Change < 0 {
		style = r.down
	}
	r.println(fmt.Sprintf("%s%12.2f  %s", symbol, q.Price, style.Render(change)))
}

// Error はコマンド全体の失敗を表示する。
func (r *Renderer) Error(err error) {
	r.println(r.errMsg.Render("Error: " + err.Error()))
}

func (r *Renderer) println(s string) {
	fmt.Fprintln(r.w, s)
}
