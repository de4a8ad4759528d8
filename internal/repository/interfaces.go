// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/naradmuni/internal/model"
)

// ExchangeRepository はチャット履歴の永続化インターフェース。
// レコードは追記のみで、更新・削除は提供しない。
type ExchangeRepository interface {
	// Append は1件の発言を追記する。
	Append(ctx context.Context, exchange *model.Exchange) error

	// ListByPrincipal は指定ユーザーの直近limit件を作成日時の昇順で返す。
	ListByPrincipal(ctx context.Context, principalEmail string, limit int) ([]model.Exchange, error)
}
