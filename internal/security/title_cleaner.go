package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TitleCleaner は上流の見出しマークアップからHTMLタグを取り除き、プレーンテキストにする。
// 入力はエンティティ未デコードのマークアップ。タグ除去はデコード前に行うため、
// &lt;や&gt;で表現された文字はタグとして扱われず、テキストとして残る。
type TitleCleaner struct {
	policy *bluemonday.Policy
}

// NewTitleCleaner はTitleCleanerを生成する。bluemonday.Policyはスレッドセーフ。
func NewTitleCleaner() *TitleCleaner {
	return &TitleCleaner{policy: bluemonday.StrictPolicy()}
}

// Clean はタグを除去してエンティティをデコードし、空白を1つに畳んで返す。
// Sanitizeはテキストをデコードしたうえで再エスケープして出力する。
// UnescapeStringはその再エスケープを戻すだけなので、入力のデコードは1回になる。
func (c *TitleCleaner) Clean(markup string) string {
	if markup == "" {
		return ""
	}
	text := html.UnescapeString(c.policy.Sanitize(markup))
	return strings.Join(strings.Fields(text), " ")
}
