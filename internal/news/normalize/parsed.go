package normalize

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/rss"

	"github.com/hitoshi/portal/internal/model"
)

// fromParsedFeed はgofeedでRSS/Atom/JSON Feedを完全にパースする。
// RSSの場合は<source>要素を配信元名に使うため、RSS専用パーサーを使う。
func (c *collector) fromParsedFeed(body []byte) error {
	switch gofeed.DetectFeedType(bytes.NewReader(body)) {
	case gofeed.FeedTypeRSS:
		return c.fromRSS(body)
	case gofeed.FeedTypeUnknown:
		return model.NewUpstreamShapeError(c.src.Upstream, "unrecognized feed format")
	default:
		return c.fromUniversal(body)
	}
}

func (c *collector) fromRSS(body []byte) error {
	feed, err := (&rss.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return model.NewUpstreamShapeError(c.src.Upstream, fmt.Sprintf("feed parse failed: %v", err))
	}

	for _, item := range feed.Items {
		if c.full() {
			break
		}
		if item == nil {
			continue
		}

		link := item.Link
		if link == "" && item.GUID != nil && isHTTPURL(item.GUID.Value) {
			link = item.GUID.Value
		}

		var name string
		switch {
		case item.Source != nil && item.Source.Title != "":
			name = item.Source.Title
		case item.Author != "":
			name = item.Author
		case item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0:
			name = item.DublinCoreExt.Creator[0]
		}

		// rss.Parserはエンティティとcdataを展開済み
		c.addText(item.Title, link, name)
	}
	return nil
}

func (c *collector) fromUniversal(body []byte) error {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return model.NewUpstreamShapeError(c.src.Upstream, fmt.Sprintf("feed parse failed: %v", err))
	}

	for _, item := range feed.Items {
		if c.full() {
			break
		}
		if item == nil {
			continue
		}

		link := item.Link
		if link == "" && isHTTPURL(item.GUID) {
			link = item.GUID
		}

		var name string
		if item.Author != nil {
			name = item.Author.Name
		}
		if name == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
			name = item.Authors[0].Name
		}

		c.addText(item.Title, link, name)
	}
	return nil
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
