// Package source はカテゴリから上流ソースへの静的な対応表を提供する。
package source

import (
	"fmt"
	"maps"
	"slices"

	"github.com/hitoshi/portal/internal/model"
)

// Source はカテゴリ1つ分の上流設定。起動時に1回構築され、以後変更しない。
type Source struct {
	// Upstream はエラーメッセージやメトリクスに使う上流の名前（例: rss2json）。
	Upstream string `yaml:"upstream"`
	// URL はフェッチ対象。認証情報はここに含めず、CredentialParamで付与する。
	URL  string            `yaml:"url"`
	Kind model.PayloadKind `yaml:"kind"`
	// Headers は上流に拒否されないための固定リクエストヘッダー。
	Headers map[string]string `yaml:"headers"`
	// DefaultSourceName は配信元が欠けている記事に使うラベル。
	DefaultSourceName string `yaml:"default_source_name"`
	// CredentialEnv は必要な認証情報の環境変数名。空なら認証不要。
	CredentialEnv string `yaml:"credential_env"`
	// CredentialParam は認証情報を載せるクエリパラメータ名。
	CredentialParam string `yaml:"credential_param"`
}

// RequiresCredential は認証情報が必要なソースかどうかを返す。
func (s Source) RequiresCredential() bool {
	return s.CredentialEnv != ""
}

// Validate はソース定義の必須項目を検証する。URLの安全性検証は呼び出し側で行う。
func (s Source) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("url is required")
	}
	if !s.Kind.Valid() {
		return fmt.Errorf("unknown kind: %q", s.Kind)
	}
	if s.DefaultSourceName == "" {
		return fmt.Errorf("default_source_name is required")
	}
	if (s.CredentialEnv == "") != (s.CredentialParam == "") {
		return fmt.Errorf("credential_env and credential_param must be set together")
	}
	return nil
}

// URLValidator はソースURLの静的検証を行うインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// Registry はカテゴリとSourceの対応表。イミュータブルで並行アクセスに安全。
type Registry struct {
	sources  map[model.Category]Source
	fallback model.Category
}

// NewRegistry はsourcesからRegistryを生成する。
// fallbackカテゴリがsourcesに含まれない場合はエラーを返す。
func NewRegistry(sources map[model.Category]Source, fallback model.Category) (*Registry, error) {
	if _, ok := sources[fallback]; !ok {
		return nil, fmt.Errorf("fallback category %q has no source", fallback)
	}
	for c, s := range sources {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("source %q: %w", c, err)
		}
	}
	return &Registry{
		sources:  maps.Clone(sources),
		fallback: fallback,
	}, nil
}

// Resolve はカテゴリに対応するSourceと、実際に使われたカテゴリを返す。
// 未知のカテゴリはエラーにせずフォールバックカテゴリのソースを返す。
func (r *Registry) Resolve(c model.Category) (Source, model.Category) {
	if s, ok := r.sources[c]; ok {
		return s, c
	}
	return r.sources[r.fallback], r.fallback
}

// Categories は登録済みカテゴリをソートして返す。
func (r *Registry) Categories() []model.Category {
	return slices.Sorted(maps.Keys(r.sources))
}

// Fallback はフォールバックカテゴリを返す。
func (r *Registry) Fallback() model.Category {
	return r.fallback
}

// CredentialEnvs は全ソースが必要とする認証情報の環境変数名を重複なしでソートして返す。
func (r *Registry) CredentialEnvs() []string {
	var names []string
	for _, s := range r.sources {
		if s.RequiresCredential() && !slices.Contains(names, s.CredentialEnv) {
			names = append(names, s.CredentialEnv)
		}
	}
	slices.Sort(names)
	return names
}

// ValidateURLs は全ソースのURLをvalidatorで検証する。
func (r *Registry) ValidateURLs(v URLValidator) error {
	for _, c := range r.Categories() {
		if err := v.ValidateURL(r.sources[c].URL); err != nil {
			return fmt.Errorf("source %q: %w", c, err)
		}
	}
	return nil
}
