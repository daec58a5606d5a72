package source

import (
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/portal/internal/model"
)

// fileConfig はNEWS_SOURCES_FILEのYAML構造。
//
//	fallback: tw
//	sources:
//	  sports:
//	    upstream: espn
//	    url: https://www.espn.com/espn/rss/news
//	    kind: xml-feed
//	    default_source_name: ESPN
type fileConfig struct {
	Fallback model.Category            `yaml:"fallback"`
	Sources  map[model.Category]Source `yaml:"sources"`
}

// Load は組み込みプロバイダの対応表にYAMLファイルの定義を上書き・追加してRegistryを構築する。
// pathが空の場合は組み込みの対応表のみを使う。
func Load(provider, path string) (*Registry, error) {
	sources, err := BuiltinSources(provider)
	if err != nil {
		return nil, err
	}
	fallback := model.DefaultCategory

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading sources file: %w", err)
		}

		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing sources file: %w", err)
		}

		overrides := make(map[model.Category]Source, len(fc.Sources))
		for c, s := range fc.Sources {
			overrides[model.ParseCategory(string(c))] = s
		}
		maps.Copy(sources, overrides)

		if fc.Fallback != "" {
			fallback = model.ParseCategory(string(fc.Fallback))
		}
	}

	return NewRegistry(sources, fallback)
}
