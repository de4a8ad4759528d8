// Package chat はチャット1往復の処理（検証、補完、履歴記録）をまとめる。
package chat

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/naradmuni/internal/completion"
	"github.com/hitoshi/naradmuni/internal/history"
	"github.com/hitoshi/naradmuni/internal/model"
)

// Completer は補完APIへの中継インターフェース。
type Completer interface {
	Complete(ctx context.Context, principal model.Principal, message string) (string, error)
}

// Ledger は履歴ストアのインターフェース。
type Ledger interface {
	Append(ctx context.Context, principal model.Principal, role model.Role, content string) history.AppendResult
	List(ctx context.Context, principal model.Principal, limit int) []model.Exchange
}

// RequestRecorder はチャットリクエストの結果を記録するインターフェース。
type RequestRecorder interface {
	RecordChatRequest(outcome string)
}

// Service はチャットのユースケースを実装する。
type Service struct {
	completer Completer
	ledger    Ledger
	recorder  RequestRecorder
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(completer Completer, ledger Ledger, recorder RequestRecorder) *Service {
	return &Service{
		completer: completer,
		ledger:    ledger,
		recorder:  recorder,
	}
}

// Send はメッセージを補完APIに送り、返答を返す。
// 履歴への追記はベストエフォートで、失敗しても返答は返す。
func (s *Service) Send(ctx context.Context, principal model.Principal, message string) (string, error) {
	trimmed, err := completion.ValidateMessage(message)
	if err != nil {
		s.record(outcomeOf(err))
		return "", err
	}

	reply, err := s.completer.Complete(ctx, principal, trimmed)
	if err != nil {
		s.record(outcomeOf(err))
		return "", err
	}

	// 返答取得後のクライアント切断で履歴が欠けないよう、キャンセルは引き継がない。
	// 2件の追記は独立しており、片方だけ保存されることがある。
	appendCtx := context.WithoutCancel(ctx)
	s.logAppend(principal, s.ledger.Append(appendCtx, principal, model.RoleUser, trimmed))
	s.logAppend(principal, s.ledger.Append(appendCtx, principal, model.RoleAssistant, reply))

	s.record("success")
	return reply, nil
}

// History は指定ユーザーの履歴を昇順で返す。
func (s *Service) History(ctx context.Context, principal model.Principal, limit int) []model.Exchange {
	return s.ledger.List(ctx, principal, limit)
}

func (s *Service) logAppend(principal model.Principal, res history.AppendResult) {
	if res.Stored || errors.Is(res.Err, history.ErrLedgerUnavailable) {
		return
	}
	slog.Debug("chat exchange not persisted",
		slog.String("principal", principal.Email),
		slog.Any("error", res.Err),
	)
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordChatRequest(outcome)
	}
}

// outcomeOf はエラーをメトリクス用の結果ラベルに変換する。
func outcomeOf(err error) string {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return "internal_error"
	}
	switch apiErr.Code {
	case model.ErrCodeInvalidInput:
		return "invalid_input"
	case model.ErrCodeNotConfigured:
		return "not_configured"
	case model.ErrCodeRateLimited:
		return "rate_limited"
	case model.ErrCodeUpstreamUnavailable:
		return "upstream_unavailable"
	default:
		return "internal_error"
	}
}
