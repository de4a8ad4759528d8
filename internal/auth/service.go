// Package auth はIDトークン検証、セッショントークンの発行・検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/naradmuni/internal/model"
)

// IdentityVerifier は外部IdPが発行したIDトークンの検証インターフェース。
type IdentityVerifier interface {
	// Verify はIDトークンを検証しPrincipalを返す。
	// 失敗時は ErrInvalidAssertion または ErrIdentityNotConfigured を返す。
	Verify(ctx context.Context, assertion string) (*model.Principal, error)
	// Configured は検証に必要な設定が揃っているかを返す。
	Configured() bool
}

// AuthRecorder は認証結果のメトリクス記録インターフェース。
type AuthRecorder interface {
	RecordAuthAttempt(outcome string)
}

// Service は認証に関するビジネスロジックを提供する。
// サーバー側にセッション状態は持たず、セッションは署名付きトークンのみで表現する。
type Service struct {
	verifier IdentityVerifier
	codec    *SessionCodec
	recorder AuthRecorder
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(verifier IdentityVerifier, codec *SessionCodec, recorder AuthRecorder) *Service {
	return &Service{
		verifier: verifier,
		codec:    codec,
		recorder: recorder,
	}
}

// HandleCallback はIDトークンを検証し、セッショントークンを発行する。
// 返すエラーは *model.APIError（UNAUTHORIZED / NOT_CONFIGURED）またはそれ以外の内部エラー。
func (s *Service) HandleCallback(ctx context.Context, assertion string) (*model.Principal, string, error) {
	principal, err := s.verifier.Verify(ctx, assertion)
	if err != nil {
		switch {
		case errors.Is(err, ErrIdentityNotConfigured):
			slog.Error("GOOGLE_CLIENT_ID not configured")
			s.record("not_configured")
			return nil, "", model.NewNotConfiguredError("Google authentication")
		case errors.Is(err, ErrInvalidAssertion):
			s.record("invalid")
			return nil, "", model.NewUnauthorizedError()
		default:
			s.record("error")
			return nil, "", fmt.Errorf("failed to verify identity assertion: %w", err)
		}
	}

	token, err := s.codec.Issue(*principal)
	if err != nil {
		if errors.Is(err, ErrNoSigningKey) {
			slog.Error("SESSION_SECRET not configured")
			s.record("not_configured")
			return nil, "", model.NewNotConfiguredError("Session signing")
		}
		s.record("error")
		return nil, "", fmt.Errorf("failed to issue session token: %w", err)
	}

	slog.Info("user authenticated", slog.String("email", principal.Email))
	s.record("success")
	return principal, token, nil
}

// CurrentPrincipal はセッショントークンからPrincipalを復元する。
// いかなる失敗も例外にせず、未認証（false）として返す。
func (s *Service) CurrentPrincipal(token string) (*model.Principal, bool) {
	principal, err := s.codec.Validate(token)
	if err != nil {
		switch {
		case errors.Is(err, ErrTokenMissing):
			// Cookie無しは通常の匿名アクセス
		case errors.Is(err, ErrTokenExpired):
			slog.Info("session token expired")
		default:
			slog.Warn("session token rejected", slog.String("reason", err.Error()))
		}
		return nil, false
	}
	return principal, true
}

// SessionTTL はセッションCookieの有効期間を返す。
func (s *Service) SessionTTL() time.Duration {
	return s.codec.TTL()
}

// IdentityConfigured はIDトークン検証とセッション署名の両方が設定済みかを返す。
func (s *Service) IdentityConfigured() bool {
	return s.verifier.Configured() && s.codec.Configured()
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordAuthAttempt(outcome)
	}
}
