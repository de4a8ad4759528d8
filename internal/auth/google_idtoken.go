package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/naradmuni/internal/model"
	"google.golang.org/api/idtoken"
	"google.golang.org/api/option"
)

// IDトークン検証の失敗理由。
var (
	// ErrIdentityNotConfigured はGoogleクライアントIDが未設定であることを示す。
	ErrIdentityNotConfigured = errors.New("google client id is not configured")
	// ErrInvalidAssertion はIDトークンの検証失敗を示す。
	// 形式不正・期限切れ・署名不正・audience/iss不一致・email欠落をすべてこの1つにまとめる。
	ErrInvalidAssertion = errors.New("invalid identity assertion")
)

// googleIssuers はGoogleが発行するIDトークンのissとして受け付ける値。
var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// IDTokenValidator はGoogleのIDトークン検証ルーチンのインターフェース。
// *idtoken.Validator が満たす。
type IDTokenValidator interface {
	Validate(ctx context.Context, idToken string, audience string) (*idtoken.Payload, error)
}

// GoogleIDTokenVerifier はGoogle Sign-InのIDトークンを検証し、Principalを取り出す。
// プロバイダ固有のエラー形状はこの境界の外に漏らさない。
type GoogleIDTokenVerifier struct {
	validator IDTokenValidator
	clientID  string
	timeout   time.Duration
}

// NewGoogleIDTokenVerifier はGoogleの公開鍵を取得するHTTPクライアント付きの検証器を生成する。
// 公開鍵の取得にはtimeoutで上限を設ける。
func NewGoogleIDTokenVerifier(ctx context.Context, clientID string, timeout time.Duration) (*GoogleIDTokenVerifier, error) {
	validator, err := idtoken.NewValidator(ctx, option.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return nil, fmt.Errorf("failed to create id token validator: %w", err)
	}
	return NewGoogleIDTokenVerifierWithValidator(validator, clientID, timeout), nil
}

// NewGoogleIDTokenVerifierWithValidator は任意の検証ルーチンで検証器を生成する。
func NewGoogleIDTokenVerifierWithValidator(validator IDTokenValidator, clientID string, timeout time.Duration) *GoogleIDTokenVerifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleIDTokenVerifier{
		validator: validator,
		clientID:  strings.TrimSpace(clientID),
		timeout:   timeout,
	}
}

// Configured はクライアントIDが設定されているかを返す。
func (v *GoogleIDTokenVerifier) Configured() bool {
	return v.clientID != ""
}

// Verify はIDトークンを検証し、email・name・pictureを持つPrincipalを返す。
func (v *GoogleIDTokenVerifier) Verify(ctx context.Context, assertion string) (*model.Principal, error) {
	if !v.Configured() {
		return nil, ErrIdentityNotConfigured
	}

	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return nil, ErrInvalidAssertion
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	payload, err := v.validator.Validate(ctx, assertion, v.clientID)
	if err != nil {
		slog.Warn("google id token verification failed", slog.String("error", err.Error()))
		return nil, ErrInvalidAssertion
	}
	if payload == nil {
		return nil, ErrInvalidAssertion
	}

	// 別アプリケーション向けに発行されたトークンの流用を防ぐ
	if payload.Audience != v.clientID {
		slog.Warn("google id token audience mismatch")
		return nil, ErrInvalidAssertion
	}
	if !googleIssuers[payload.Issuer] {
		slog.Warn("google id token issuer mismatch", slog.String("issuer", payload.Issuer))
		return nil, ErrInvalidAssertion
	}

	email := claimString(payload.Claims, "email")
	if email == "" {
		slog.Warn("google id token has no email claim")
		return nil, ErrInvalidAssertion
	}

	return &model.Principal{
		Email:   email,
		Name:    claimString(payload.Claims, "name"),
		Picture: claimString(payload.Claims, "picture"),
	}, nil
}

// claimString は文字列型のクレームを取り出す。型が異なる場合は空文字を返す。
func claimString(claims map[string]any, key string) string {
	v, ok := claims[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// compile-time interface check
var _ IdentityVerifier = (*GoogleIDTokenVerifier)(nil)
