// Package history はチャット履歴のベストエフォートな記録と参照を提供する。
// 履歴ストレージの障害は呼び出し元のリクエストを失敗させない。
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/naradmuni/internal/model"
	"github.com/hitoshi/naradmuni/internal/repository"
)

// MaxListLimit は履歴取得件数の上限かつデフォルト値。
const MaxListLimit = 100

// DefaultTimeout はストレージ操作1回あたりのデフォルトタイムアウト。
const DefaultTimeout = 5 * time.Second

// Status は履歴ストレージの状態。
type Status string

const (
	// StatusDisabled はDATABASE_URL未設定で履歴を記録しない状態。
	StatusDisabled Status = "disabled"
	// StatusDegraded は起動時の接続またはスキーマ作成に失敗し、以後no-opとなった状態。
	StatusDegraded Status = "degraded"
	// StatusConnected は履歴ストレージが利用可能な状態。
	StatusConnected Status = "connected"
)

var (
	// ErrLedgerUnavailable は履歴ストレージが無効または縮退中であることを示す。
	ErrLedgerUnavailable = errors.New("history ledger unavailable")
	// ErrInvalidRole は未定義のRoleで追記しようとした場合のエラー。
	ErrInvalidRole = errors.New("invalid exchange role")
)

// AppendResult はAppendの結果。
// 呼び出し元はログ・メトリクスの判断にのみ使い、レスポンスの成否には使わない。
type AppendResult struct {
	// Stored は実際に永続化されたかどうか。
	Stored bool
	// Err は永続化しなかった理由。Stored=trueの場合はnil。
	Err error
}

// FailureRecorder は履歴操作の失敗を記録するインターフェース。
type FailureRecorder interface {
	RecordLedgerFailure(operation string)
}

// Ledger はチャット履歴のベストエフォートなストア。
type Ledger struct {
	repo     repository.ExchangeRepository
	status   Status
	timeout  time.Duration
	recorder FailureRecorder
	now      func() time.Time
}

// NewLedger は利用可能なリポジトリを持つLedgerを生成する。
// timeoutが0以下の場合はDefaultTimeoutを使用する。
func NewLedger(repo repository.ExchangeRepository, timeout time.Duration, recorder FailureRecorder) *Ledger {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Ledger{
		repo:     repo,
		status:   StatusConnected,
		timeout:  timeout,
		recorder: recorder,
		now:      time.Now,
	}
}

// NewDisabledLedger は履歴を記録しないLedgerを生成する。
func NewDisabledLedger() *Ledger {
	return &Ledger{status: StatusDisabled, now: time.Now}
}

// NewDegradedLedger は起動時の初期化失敗により縮退したLedgerを生成する。
// プロセスの生存期間中、再接続は試みない。
func NewDegradedLedger(cause error) *Ledger {
	attrs := []any{}
	if cause != nil {
		attrs = append(attrs, slog.String("error", cause.Error()))
	}
	slog.Warn("history ledger degraded, exchanges will not be persisted", attrs...)
	return &Ledger{status: StatusDegraded, now: time.Now}
}

// Status は履歴ストレージの状態を返す。
func (l *Ledger) Status() Status {
	return l.status
}

// Append は発言を1件記録する。失敗してもエラーは返さず、AppendResultに理由を載せる。
func (l *Ledger) Append(ctx context.Context, principal model.Principal, role model.Role, content string) AppendResult {
	if l.status != StatusConnected {
		return AppendResult{Err: ErrLedgerUnavailable}
	}
	if !role.Valid() {
		return AppendResult{Err: fmt.Errorf("%w: %q", ErrInvalidRole, role)}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	exchange := &model.Exchange{
		ID:             uuid.NewString(),
		PrincipalEmail: principal.Email,
		Role:           role,
		Content:        content,
		CreatedAt:      l.now().UTC(),
	}
	if err := l.repo.Append(ctx, exchange); err != nil {
		l.recordFailure("append")
		slog.Warn("failed to append chat exchange",
			slog.String("principal", principal.Email),
			slog.String("role", string(role)),
			slog.String("error", err.Error()),
		)
		return AppendResult{Err: err}
	}

	return AppendResult{Stored: true}
}

// List は指定ユーザーの直近の履歴を昇順で返す。
// limitが1未満または上限超過の場合はMaxListLimitに丸める。
// ストレージが利用できない場合やクエリ失敗時は空のスライスを返す。
func (l *Ledger) List(ctx context.Context, principal model.Principal, limit int) []model.Exchange {
	if l.status != StatusConnected {
		return []model.Exchange{}
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	exchanges, err := l.repo.ListByPrincipal(ctx, principal.Email, NormalizeLimit(limit))
	if err != nil {
		l.recordFailure("list")
		slog.Warn("failed to list chat exchanges",
			slog.String("principal", principal.Email),
			slog.String("error", err.Error()),
		)
		return []model.Exchange{}
	}
	if exchanges == nil {
		return []model.Exchange{}
	}
	return exchanges
}

// NormalizeLimit は取得件数を1..MaxListLimitの範囲に収める。
func NormalizeLimit(limit int) int {
	if limit <= 0 || limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func (l *Ledger) recordFailure(operation string) {
	if l.recorder != nil {
		l.recorder.RecordLedgerFailure(operation)
	}
}
