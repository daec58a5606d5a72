// Package cache はカテゴリ単位の成功エンベロープキャッシュを提供する。
//
// 成功レスポンスのみを保存する。TTL経過後のエントリは存在しないものとして扱う。
package cache

import (
	"context"

	"github.com/hitoshi/portal/internal/model"
)

// Cache はキャッシュバックエンドのインターフェース。
// バックエンドの障害はミスとして扱い、呼び出し元にエラーを返さない。
type Cache interface {
	Get(ctx context.Context, key string) (*model.CachedResponse, bool)
	Set(ctx context.Context, key string, resp *model.CachedResponse)
}
