package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Category はニュースフィードの地域・トピック選択子。
type Category string

const (
	// CategoryTW は国内（台湾）フィード。未知のカテゴリはここにフォールバックする。
	CategoryTW Category = "tw"
	// CategoryJP は日本のフィード。
	CategoryJP Category = "jp"
	// CategoryWorld は国際ニュースのフィード。
	CategoryWorld Category = "world"

	// DefaultCategory は未指定・未知のカテゴリのフォールバック先。
	DefaultCategory = CategoryTW
)

// MaxArticles は1レスポンスあたりの最大記事数。
const MaxArticles = 5

// ParseCategory はクエリ文字列をCategoryに正規化する。
// 前後の空白を除去し小文字化する。空文字列はDefaultCategoryになる。
func ParseCategory(raw string) Category {
	c := strings.ToLower(strings.TrimSpace(raw))
	if c == "" {
		return DefaultCategory
	}
	return Category(c)
}

// PayloadKind は上流が返すペイロードの形式を表す。
type PayloadKind string

const (
	// PayloadJSONItems はRSS-to-JSONゲートウェイ形式（{status, items:[...]}）。
	PayloadJSONItems PayloadKind = "json-items"
	// PayloadJSONArticles は見出しアグリゲータ形式（{articles:[{title,url,source:{name}}]}）。
	PayloadJSONArticles PayloadKind = "json-articles"
	// PayloadXMLFeed は生のRSS/Atom XML。正規表現による軽量抽出を行う。
	PayloadXMLFeed PayloadKind = "xml-feed"
	// PayloadParsedFeed は生のRSS/Atom/JSON Feed。gofeedで完全にパースする。
	PayloadParsedFeed PayloadKind = "parsed-feed"
)

// Valid は既知のPayloadKindかどうかを返す。
func (k PayloadKind) Valid() bool {
	switch k {
	case PayloadJSONItems, PayloadJSONArticles, PayloadXMLFeed, PayloadParsedFeed:
		return true
	default:
		return false
	}
}

// ArticleSource は記事の配信元。
type ArticleSource struct {
	Name string `json:"name"`
}

// Article は正規化済みの記事。ウィジェットが依存してよい唯一の記事表現。
type Article struct {
	Title  string        `json:"title"`
	URL    string        `json:"url"`
	Source ArticleSource `json:"source"`
}

// EnvelopeStatus はエンベロープのステータスタグ。
type EnvelopeStatus string

const (
	StatusOK    EnvelopeStatus = "ok"
	StatusError EnvelopeStatus = "error"
)

// Envelope はプロキシが返す統一JSONラッパー。
// ステータスに応じて成功形（totalResults, articles）とエラー形（message）のどちらかで出力する。
type Envelope struct {
	Status       EnvelopeStatus `json:"status"`
	TotalResults int            `json:"totalResults"`
	Articles     []Article      `json:"articles"`
	Message      string         `json:"message"`
}

type okEnvelopeJSON struct {
	Status       EnvelopeStatus `json:"status"`
	TotalResults int            `json:"totalResults"`
	Articles     []Article      `json:"articles"`
}

type errorEnvelopeJSON struct {
	Status  EnvelopeStatus `json:"status"`
	Message string         `json:"message"`
}

// MarshalJSON はステータスに応じた形でエンベロープをシリアライズする。
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Status == StatusOK {
		articles := e.Articles
		if articles == nil {
			articles = []Article{}
		}
		return json.Marshal(okEnvelopeJSON{
			Status:       e.Status,
			TotalResults: len(articles),
			Articles:     articles,
		})
	}
	return json.Marshal(errorEnvelopeJSON{
		Status:  e.Status,
		Message: e.Message,
	})
}

// NewOKEnvelope は成功エンベロープを生成する。
// 空リストでもarticlesは[]としてシリアライズされる。
func NewOKEnvelope(articles []Article) *Envelope {
	if articles == nil {
		articles = []Article{}
	}
	return &Envelope{
		Status:       StatusOK,
		TotalResults: len(articles),
		Articles:     articles,
	}
}

// NewErrorEnvelope はエラーエンベロープを生成する。
func NewErrorEnvelope(message string) *Envelope {
	return &Envelope{
		Status:  StatusError,
		Message: message,
	}
}

// CachedResponse はカテゴリ単位でキャッシュされる成功エンベロープ。
// 生成後に変更してはならない。
type CachedResponse struct {
	Envelope  *Envelope `json:"envelope"`
	FetchedAt time.Time `json:"fetched_at"`
}
