// Package quote は株価クォートの取得を提供する。
// Alpha VantageのGLOBAL_QUOTE APIの呼び出しと、レート制限に合わせた逐次取得ループを含む。
package quote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// defaultEndpoint はAlpha Vantage APIのエンドポイント。
const defaultEndpoint = "https://www.alphavantage.co/query"

// maxResponseSize はクォート応答の読み取り上限。
const maxResponseSize = 64 * 1024

// ErrMissingAPIKey はAPIキーが未設定の場合のエラー。
var ErrMissingAPIKey = errors.New("API key not configured: ALPHAVANTAGE_API_KEY")

// Quote は1銘柄のクォート。
type Quote struct {
	Symbol        string
	Price         float64
	Change        float64
	ChangePercent float64
}

// globalQuoteResponse はGLOBAL_QUOTEの応答。
// 失敗時はGlobal Quoteが空になり、Note・Information・Error Messageのいずれかが入る。
type globalQuoteResponse struct {
	GlobalQuote map[string]string `json:"Global Quote"`
	Note        string            `json:"Note"`
	Information string            `json:"Information"`
	Error       string            `json:"Error Message"`
}

// Client はAlpha Vantage APIのクライアント。
type Client struct {
	httpClient *http.Client
	apiKey     string
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, apiKey string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		logger:     logger,
		endpoint:   defaultEndpoint,
	}
}

// GetQuote は銘柄のクォートを取得する。
// エラーメッセージにはAPIキーを含むURLを載せない。
func (c *Client) GetQuote(ctx context.Context, symbol string) (*Quote, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid quote endpoint: %w", err)
	}
	q := reqURL.Query()
	q.Set("function", "GLOBAL_QUOTE")
	q.Set("symbol", symbol)
	q.Set("apikey", c.apiKey)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating quote request: %w", err)
	}
	req.Header.Set("User-Agent", "portal/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		c.logger.Warn("quote request failed",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("quote request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("quote API returned error status",
			slog.String("symbol", symbol),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("quote API returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading quote response: %w", err)
	}

	var parsed globalQuoteResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decoding quote response: %w", err)
	}

	switch {
	case parsed.Error != "":
		return nil, fmt.Errorf("quote API error: %s", parsed.Error)
	case parsed.Note != "":
		return nil, fmt.Errorf("quote API rate limited: %s", parsed.Note)
	case parsed.Information != "":
		return nil, fmt.Errorf("quote API: %s", parsed.Information)
	case len(parsed.GlobalQuote) == 0:
		return nil, fmt.Errorf("no quote for symbol %s", symbol)
	}

	return parseGlobalQuote(symbol, parsed.GlobalQuote)
}

// parseGlobalQuote は"05. price"形式の番号付きキーから数値を取り出す。
func parseGlobalQuote(symbol string, fields map[string]string) (*Quote, error) {
	price, err := parseNumber(fields["05. price"])
	if err != nil {
		return nil, fmt.Errorf("invalid price for %s: %w", symbol, err)
	}
	change, err := parseNumber(fields["09. change"])
	if err != nil {
		return nil, fmt.Errorf("invalid change for %s: %w", symbol, err)
	}
	percent, err := parseNumber(strings.TrimSuffix(fields["10. change percent"], "%"))
	if err != nil {
		return nil, fmt.Errorf("invalid change percent for %s: %w", symbol, err)
	}

	if s := fields["01. symbol"]; s != "" {
		symbol = s
	}
	return &Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: percent,
	}, nil
}

func parseNumber(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
