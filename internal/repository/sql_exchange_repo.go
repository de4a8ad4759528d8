package repository

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/hitoshi/naradmuni/internal/model"
)

// SQLExchangeRepo はdatabase/sqlを使用したチャット履歴リポジトリ。
// プレースホルダは$N形式のため、lib/pqとgo-sqlite3の両方で動作する。
type SQLExchangeRepo struct {
	db *sql.DB
}

// NewSQLExchangeRepo はSQLExchangeRepoを生成する。
func NewSQLExchangeRepo(db *sql.DB) *SQLExchangeRepo {
	return &SQLExchangeRepo{db: db}
}

// Append は1件の発言を追記する。
func (r *SQLExchangeRepo) Append(ctx context.Context, exchange *model.Exchange) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_exchanges (id, principal_email, role, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		exchange.ID, exchange.PrincipalEmail, string(exchange.Role), exchange.Content, exchange.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append exchange: %w", err)
	}
	return nil
}

// ListByPrincipal は指定ユーザーの直近limit件を作成日時の昇順で返す。
// 新しい順にlimit件取得してから並べ替える。同時刻の発言は追記順（seq）で並ぶ。
func (r *SQLExchangeRepo) ListByPrincipal(ctx context.Context, principalEmail string, limit int) ([]model.Exchange, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, principal_email, role, content, created_at
		 FROM chat_exchanges
		 WHERE principal_email = $1
		 ORDER BY created_at DESC, seq DESC
		 LIMIT $2`,
		principalEmail, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list exchanges: %w", err)
	}
	defer rows.Close()

	exchanges := make([]model.Exchange, 0)
	for rows.Next() {
		var e model.Exchange
		var role string
		if err := rows.Scan(&e.ID, &e.PrincipalEmail, &role, &e.Content, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exchange: %w", err)
		}
		e.Role = model.Role(role)
		exchanges = append(exchanges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate exchanges: %w", err)
	}

	slices.Reverse(exchanges)
	return exchanges, nil
}

// compile-time interface check
var _ ExchangeRepository = (*SQLExchangeRepo)(nil)
