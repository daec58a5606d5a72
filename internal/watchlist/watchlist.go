// Package watchlist は株価ウォッチリストの管理を提供する。
// ウォッチリストはクライアントローカルのキー・バリューストアに1キーで保存する。
package watchlist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// MaxSymbols はウォッチリストに登録できる銘柄数の上限。
// クォート取得の無料枠に合わせた値。
const MaxSymbols = 5

// storeKey はウォッチリストを保存するキー。
const storeKey = "watchlist"

var (
	// ErrFull はウォッチリストが上限に達している場合のエラー。
	ErrFull = fmt.Errorf("watchlist is full (max %d symbols)", MaxSymbols)
	// ErrInvalidSymbol は銘柄コードとして不正な文字列の場合のエラー。
	ErrInvalidSymbol = errors.New("invalid symbol")
	// ErrNotFound は削除対象の銘柄が登録されていない場合のエラー。
	ErrNotFound = errors.New("symbol not in watchlist")
)

// symbolRe は受け入れる銘柄コード（例: AAPL, BRK.B, 2330.TW, ^GSPC）。
var symbolRe = regexp.MustCompile(`^[A-Z0-9^][A-Z0-9.\-=]{0,14}$`)

// KVStore はウォッチリストの永続化先。
type KVStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

// Watchlist は順序付きの銘柄リストを管理する。
type Watchlist struct {
	store KVStore
}

// New はWatchlistを生成する。
func New(store KVStore) *Watchlist {
	return &Watchlist{store: store}
}

// NormalizeSymbol は銘柄コードを大文字化して検証する。
func NormalizeSymbol(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolRe.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	return s, nil
}

// List は登録順の銘柄リストを返す。未保存の場合は空リストを返す。
func (w *Watchlist) List(ctx context.Context) ([]string, error) {
	raw, ok, err := w.store.Get(ctx, storeKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []string{}, nil
	}

	var symbols []string
	if err := json.Unmarshal([]byte(raw), &symbols); err != nil {
		return nil, fmt.Errorf("decoding watchlist: %w", err)
	}
	if symbols == nil {
		symbols = []string{}
	}
	return symbols, nil
}

// Add は銘柄を末尾に追加し、更新後のリストを返す。
// 登録済みの銘柄は何もせずに現在のリストを返す。
func (w *Watchlist) Add(ctx context.Context, raw string) ([]string, error) {
	symbol, err := NormalizeSymbol(raw)
	if err != nil {
		return nil, err
	}

	symbols, err := w.List(ctx)
	if err != nil {
		return nil, err
	}
	if slices.Contains(symbols, symbol) {
		return symbols, nil
	}
	if len(symbols) >= MaxSymbols {
		return nil, ErrFull
	}

	symbols = append(symbols, symbol)
	if err := w.save(ctx, symbols); err != nil {
		return nil, err
	}
	return symbols, nil
}

// Remove は銘柄を削除し、更新後のリストを返す。
func (w *Watchlist) Remove(ctx context.Context, raw string) ([]string, error) {
	symbol, err := NormalizeSymbol(raw)
	if err != nil {
		return nil, err
	}

	symbols, err := w.List(ctx)
	if err != nil {
		return nil, err
	}
	i := slices.Index(symbols, symbol)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}

	symbols = slices.Delete(symbols, i, i+1)
	if err := w.save(ctx, symbols); err != nil {
		return nil, err
	}
	return symbols, nil
}

func (w *Watchlist) save(ctx context.Context, symbols []string) error {
	b, err := json.Marshal(symbols)
	if err != nil {
		return fmt.Errorf("encoding watchlist: %w", err)
	}
	return w.store.Put(ctx, storeKey, string(b))
}
