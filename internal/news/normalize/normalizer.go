// Package normalize は上流ペイロードを正規化済み記事リストに変換する。
//
// ペイロード種別ごとに抽出戦略が異なるが、出力の契約は共通である:
// 上流の順序を保ち、最大5件、タイトルは空でなくエンティティデコード済み、
// URLは絶対URLまたは"#"、配信元名は空にならない。重複除去は行わない。
package normalize

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/hitoshi/portal/internal/model"
	"github.com/hitoshi/portal/internal/news/source"
)

// missingURL はリンクが欠けている・不正な記事に使うURL。
const missingURL = "#"

// TextCleaner は見出しテキストからタグを取り除くインターフェース。
type TextCleaner interface {
	Clean(s string) string
}

// Normalizer はペイロード種別に応じた抽出戦略を選択して記事リストを生成する。
// 状態を持たず、並行呼び出しに安全。
type Normalizer struct {
	cleaner TextCleaner
}

// New はNormalizerを生成する。
func New(cleaner TextCleaner) *Normalizer {
	return &Normalizer{cleaner: cleaner}
}

// Normalize はペイロードを正規化済み記事リスト（0〜5件）に変換する。
// 失敗時は*model.NewsError（UpstreamShapeErrorまたはUpstreamReportedError）を返す。
func (n *Normalizer) Normalize(kind model.PayloadKind, body []byte, src source.Source) ([]model.Article, error) {
	c := n.newCollector(src)

	var err error
	switch kind {
	case model.PayloadJSONItems:
		err = c.fromJSONItems(body)
	case model.PayloadJSONArticles:
		err = c.fromJSONArticles(body)
	case model.PayloadXMLFeed:
		c.fromXMLFeed(body)
	case model.PayloadParsedFeed:
		err = c.fromParsedFeed(body)
	default:
		err = model.NewConfigError(fmt.Sprintf("unsupported payload kind: %q", kind))
	}
	if err != nil {
		return nil, err
	}
	return c.articles, nil
}

// collector は記事を上限まで順に集める。
type collector struct {
	cleaner  TextCleaner
	src      source.Source
	articles []model.Article
}

func (n *Normalizer) newCollector(src source.Source) *collector {
	return &collector{
		cleaner:  n.cleaner,
		src:      src,
		articles: make([]model.Article, 0, model.MaxArticles),
	}
}

// full は上限に達しているかを返す。
func (c *collector) full() bool {
	return len(c.articles) >= model.MaxArticles
}

// add はエンティティ未デコードのマークアップから記事を追加する。
// タイトルと配信元名はクリーナーがタグ除去とデコードを行い、URLはここで1回だけデコードする。
func (c *collector) add(titleMarkup, rawURL, sourceMarkup string) bool {
	if c.full() {
		return false
	}
	return c.appendArticle(c.clean(titleMarkup), html.UnescapeString(rawURL), c.clean(sourceMarkup))
}

// addText はパーサーがデコード済みのテキストから記事を追加する。
// 残っているタグは除去するが、エンティティを再デコードしない。
func (c *collector) addText(title, link, sourceName string) bool {
	if c.full() {
		return false
	}
	return c.appendArticle(c.clean(textMarkup(title)), link, c.clean(textMarkup(sourceName)))
}

// appendArticle はクリーン済みの値を追加する。タイトルが空の記事は捨てる。
// 戻り値は追加されたかどうか。
func (c *collector) appendArticle(title, link, name string) bool {
	if title == "" {
		return false
	}
	if name == "" {
		name = c.src.DefaultSourceName
	}

	c.articles = append(c.articles, model.Article{
		Title:  title,
		URL:    normalizeURL(link),
		Source: model.ArticleSource{Name: name},
	})
	return true
}

func (c *collector) clean(markup string) string {
	if c.cleaner != nil {
		return c.cleaner.Clean(markup)
	}
	return strings.Join(strings.Fields(html.UnescapeString(markup)), " ")
}

// textMarkup はデコード済みテキストをマークアップとして扱えるよう&だけをエスケープする。
// <と>はタグとして除去させるためにそのまま残す。
func textMarkup(s string) string {
	return strings.ReplaceAll(s, "&", "&amp;")
}

// normalizeURL はhttp/httpsの絶対URLのみを通し、それ以外は"#"にする。
func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return missingURL
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return missingURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return missingURL
	}
	return raw
}
