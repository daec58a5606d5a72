package source

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/hitoshi/portal/internal/model"
)

// 対応するプロバイダ名。
const (
	ProviderRSS2JSON = "rss2json"
	ProviderGNews    = "gnews"
	ProviderNewsAPI  = "newsapi"
	ProviderRSS      = "rss"
	ProviderGofeed   = "gofeed"
)

// BrowserUserAgent はGoogle News RSSにボットとして拒否されないためのUser-Agent。
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// googleNewsFeeds はカテゴリごとのGoogle News RSSトピックURL。
// worldは英語版WORLDトピック（国際ニュース）であり、米国国内ニュースでは代用しない。
var googleNewsFeeds = map[model.Category]string{
	model.CategoryTW:    "https://news.google.com/rss/topics/CAAqJggKIiBDQkFTRXdvSkwyMHZNRGczTWpVMU5TRUtGZ0poWjJVb0FBUAE?hl=zh-TW&gl=TW&ceid=TW:zh-Hant",
	model.CategoryJP:    "https://news.google.com/rss/topics/CAAqJggKIiBDQkFTRXdvSkwyMHZNRGczTWpZc05TRUtGZ0poWjJVb0FBUAE?hl=ja&gl=JP&ceid=JP:ja",
	model.CategoryWorld: "https://news.google.com/rss/topics/CAAqJggKIiBDQkFTRXdvSkwyMHZNRGcyZWhjU05TRUtGZ0poWjJVb0FBUAE?hl=en-US&gl=US&ceid=US:en",
}

// googleNewsLabels はGoogle News由来ソースのカテゴリ別デフォルトラベル。
var googleNewsLabels = map[model.Category]string{
	model.CategoryTW:    "Google 新聞",
	model.CategoryJP:    "Google ニュース",
	model.CategoryWorld: "Google News",
}

// Providers は対応するプロバイダ名をソートして返す。
func Providers() []string {
	p := []string{ProviderRSS2JSON, ProviderGNews, ProviderNewsAPI, ProviderRSS, ProviderGofeed}
	slices.Sort(p)
	return p
}

// BuiltinSources はプロバイダ名に対応する組み込みのカテゴリ対応表を返す。
func BuiltinSources(provider string) (map[model.Category]Source, error) {
	switch strings.ToLower(provider) {
	case ProviderRSS2JSON:
		return googleNewsSources(func(feed string) Source {
			return Source{
				Upstream: "rss2json",
				URL:      "https://api.rss2json.com/v1/api.json?rss_url=" + url.QueryEscape(feed),
				Kind:     model.PayloadJSONItems,
			}
		}), nil
	case ProviderRSS:
		return googleNewsSources(func(feed string) Source {
			return Source{
				Upstream: "google-news-rss",
				URL:      feed,
				Kind:     model.PayloadXMLFeed,
				Headers:  map[string]string{"User-Agent": BrowserUserAgent},
			}
		}), nil
	case ProviderGofeed:
		return googleNewsSources(func(feed string) Source {
			return Source{
				Upstream: "google-news-rss",
				URL:      feed,
				Kind:     model.PayloadParsedFeed,
				Headers:  map[string]string{"User-Agent": BrowserUserAgent},
			}
		}), nil
	case ProviderGNews:
		gnews := func(query string) Source {
			return Source{
				Upstream:          "gnews",
				URL:               "https://gnews.io/api/v4/top-headlines?" + query,
				Kind:              model.PayloadJSONArticles,
				DefaultSourceName: "GNews",
				CredentialEnv:     "GNEWS_API_KEY",
				CredentialParam:   "apikey",
			}
		}
		return map[model.Category]Source{
			model.CategoryTW:    gnews("country=tw&lang=zh&max=10"),
			model.CategoryJP:    gnews("country=jp&lang=ja&max=10"),
			model.CategoryWorld: gnews("category=world&lang=en&max=10"),
		}, nil
	case ProviderNewsAPI:
		newsapi := func(query string) Source {
			return Source{
				Upstream:          "newsapi",
				URL:               "https://newsapi.org/v2/top-headlines?" + query,
				Kind:              model.PayloadJSONArticles,
				Headers:           map[string]string{"User-Agent": "portal/1.0"},
				DefaultSourceName: "NewsAPI",
				CredentialEnv:     "NEWSAPI_KEY",
				CredentialParam:   "apiKey",
			}
		}
		return map[model.Category]Source{
			model.CategoryTW:    newsapi("country=tw&pageSize=10"),
			model.CategoryJP:    newsapi("country=jp&pageSize=10"),
			model.CategoryWorld: newsapi("sources=bbc-news,reuters,al-jazeera-english,associated-press&pageSize=10"),
		}, nil
	default:
		return nil, fmt.Errorf("unknown news provider: %q (supported: %v)", provider, Providers())
	}
}

func googleNewsSources(build func(feed string) Source) map[model.Category]Source {
	sources := make(map[model.Category]Source, len(googleNewsFeeds))
	for c, feed := range googleNewsFeeds {
		s := build(feed)
		s.DefaultSourceName = googleNewsLabels[c]
		sources[c] = s
	}
	return sources
}
