// Package widget はプロキシの契約をそのまま消費する端末向けクライアントを提供する。
// ページのニュースウィジェットと同じ規則で、記事一覧かエラーメッセージのどちらかを必ず表示する。
package widget

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/portal/internal/model"
)

// maxEnvelopeSize はエンベロープの読み取り上限。記事は最大5件なので十分に小さい。
const maxEnvelopeSize = 1 << 20

// NewsClient はプロキシの/api/get-newsを呼び出すクライアント。
type NewsClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewNewsClient はNewsClientを生成する。baseURLは末尾のスラッシュを除いて扱う。
func NewNewsClient(httpClient *http.Client, baseURL string) *NewsClient {
	return &NewsClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// FetchNews はカテゴリのエンベロープを取得する。
// エラーエンベロープはHTTPステータスに関わらずそのまま返す。
// 通信失敗や、エンベロープとして読めない応答の場合のみエラーを返す。
func (c *NewsClient) FetchNews(ctx context.Context, category string) (*model.Envelope, error) {
	q := url.Values{}
	if category != "" {
		q.Set("category", category)
	}
	reqURL := c.baseURL + "/api/get-news"
	if len(q) > 0 {
		reqURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating news request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEnvelopeSize))
	if err != nil {
		return nil, fmt.Errorf("reading news response: %w", err)
	}

	var env model.Envelope
	if err := json.Unmarshal(body, &env); err != nil || (env.Status != model.StatusOK && env.Status != model.StatusError) {
		return nil, fmt.Errorf("unexpected response from news server (HTTP %d)", resp.StatusCode)
	}
	return &env, nil
}
