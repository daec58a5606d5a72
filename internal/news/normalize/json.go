package normalize

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hitoshi/portal/internal/model"
)

// jsonItemsPayload はRSS-to-JSONゲートウェイ（rss2json）の応答。
// Itemsはキー欠落とnullを区別するためポインタにする。
type jsonItemsPayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Items   *[]struct {
		Title  string `json:"title"`
		Link   string `json:"link"`
		Author string `json:"author"`
	} `json:"items"`
}

func (c *collector) fromJSONItems(body []byte) error {
	var p jsonItemsPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return model.NewUpstreamShapeError(c.src.Upstream, fmt.Sprintf("invalid JSON: %v", err))
	}

	if p.Status != "ok" {
		reason := fmt.Sprintf("status %q", p.Status)
		if p.Message != "" {
			reason += ": " + p.Message
		}
		return model.NewUpstreamShapeError(c.src.Upstream, reason)
	}
	if p.Items == nil {
		return model.NewUpstreamShapeError(c.src.Upstream, "missing items")
	}

	for _, item := range *p.Items {
		if c.full() {
			break
		}
		c.add(item.Title, item.Link, item.Author)
	}
	return nil
}

// jsonArticlesPayload はNewsAPI・GNews形式の応答。
// NewsAPIはstatus/messageで、GNewsはerrorsで失敗を通知する。
type jsonArticlesPayload struct {
	Status   string          `json:"status"`
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Errors   json.RawMessage `json:"errors"`
	Articles *[]struct {
		Title  string `json:"title"`
		URL    string `json:"url"`
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

func (c *collector) fromJSONArticles(body []byte) error {
	var p jsonArticlesPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return model.NewUpstreamShapeError(c.src.Upstream, fmt.Sprintf("invalid JSON: %v", err))
	}

	if strings.EqualFold(p.Status, "error") {
		msg := p.Message
		if msg == "" {
			msg = p.Code
		}
		return model.NewUpstreamReportedError(c.src.Upstream, msg)
	}
	if msgs := reportedErrors(p.Errors); len(msgs) > 0 {
		return model.NewUpstreamReportedError(c.src.Upstream, msgs...)
	}
	if p.Articles == nil {
		return model.NewUpstreamShapeError(c.src.Upstream, "missing articles")
	}

	for _, a := range *p.Articles {
		if c.full() {
			break
		}
		c.add(a.Title, a.URL, a.Source.Name)
	}
	return nil
}

// reportedErrors はGNewsのerrorsフィールドを読み取る。
// 配列（["msg"]）とオブジェクト（{"field":"msg"}）の両方の形がある。
func reportedErrors(raw json.RawMessage) []string {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}

	var obj map[string]string
	if err := json.Unmarshal(raw, &obj); err == nil {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		msgs := make([]string, 0, len(obj))
		for _, k := range keys {
			msgs = append(msgs, obj[k])
		}
		return msgs
	}

	return []string{strings.TrimSpace(string(raw))}
}
