package normalize

import (
	"regexp"
	"strings"
)

// XMLフィードは完全なXMLツリーとしては扱わず、item区切りと4つのフィールドだけを
// 正規表現で抜き出す。実運用のフィードは整形式であり、必要なフィールドも少ないため、
// これで十分とする。完全なパースが必要なフィードにはparsed-feedを使う。
var (
	// itemPlainRe と itemAttrRe はこの順で試す。フィード方言によってどちらかが使われる。
	itemPlainRe = regexp.MustCompile(`(?s)<item>(.*?)</item>`)
	itemAttrRe  = regexp.MustCompile(`(?s)<item\s[^>]*>(.*?)</item>`)

	titleRe   = regexp.MustCompile(`(?s)<title(?:\s[^>]*)?>(.*?)</title>`)
	linkRe    = regexp.MustCompile(`(?s)<link(?:\s[^>]*)?>(.*?)</link>`)
	guidRe    = regexp.MustCompile(`(?s)<guid(?:\s[^>]*)?>(.*?)</guid>`)
	sourceRe  = regexp.MustCompile(`(?s)<source(?:\s[^>]*)?>(.*?)</source>`)
	authorRe  = regexp.MustCompile(`(?s)<author(?:\s[^>]*)?>(.*?)</author>`)
	creatorRe = regexp.MustCompile(`(?s)<dc:creator(?:\s[^>]*)?>(.*?)</dc:creator>`)

	cdataRe = regexp.MustCompile(`(?s)<!\[CDATA\[(.*?)\]\]>`)
)

// fromXMLFeed はitemブロックを最大5件抽出する。
// itemが1つも見つからない場合は空リストとし、エラーにはしない。
func (c *collector) fromXMLFeed(body []byte) {
	text := string(body)

	blocks := itemPlainRe.FindAllStringSubmatch(text, -1)
	if len(blocks) == 0 {
		blocks = itemAttrRe.FindAllStringSubmatch(text, -1)
	}

	for _, m := range blocks {
		if c.full() {
			return
		}
		block := m[1]

		link := extractField(block, linkRe)
		if link == "" {
			if guid := extractField(block, guidRe); strings.HasPrefix(guid, "http://") || strings.HasPrefix(guid, "https://") {
				link = guid
			}
		}

		c.add(
			extractField(block, titleRe),
			link,
			extractField(block, sourceRe, authorRe, creatorRe),
		)
	}
}

// extractField は最初にマッチしたパターンの中身をマークアップとして返す。
// どのパターンにもマッチしない、または中身が空の場合は空文字列を返す。
func extractField(block string, patterns ...*regexp.Regexp) string {
	for _, re := range patterns {
		m := re.FindStringSubmatch(block)
		if m == nil {
			continue
		}
		if v := strings.TrimSpace(xmlMarkup(m[1])); v != "" {
			return v
		}
	}
	return ""
}

// xmlMarkup はCDATAセクションを展開し、エンティティ未デコードのマークアップにそろえる。
// CDATAの中身は文字通りのテキストなので&だけをエスケープし、後段のデコードで元に戻るようにする。
// CDATA内のタグはそのまま残し、クリーナーに除去させる。
func xmlMarkup(s string) string {
	locs := cdataRe.FindAllStringSubmatchIndex(s, -1)
	if locs == nil {
		return s
	}

	var b strings.Builder
	prev := 0
	for _, loc := range locs {
		b.WriteString(s[prev:loc[0]])
		b.WriteString(textMarkup(s[loc[2]:loc[3]]))
		prev = loc[1]
	}
	b.WriteString(s[prev:])
	return b.String()
}
