// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/naradmuni/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookie名。
const SessionCookieName = "session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var principalContextKey = contextKey("principal")

// SessionAuthenticator はセッショントークンの検証に必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionAuthenticator interface {
	CurrentPrincipal(token string) (*model.Principal, bool)
}

// Authenticate はリクエストのセッションCookieを検証し、認証済みユーザーを返す。
// Cookieが無い、署名不一致、期限切れなどはすべて (nil, false) にまとめる。
func Authenticate(r *http.Request, authenticator SessionAuthenticator) (*model.Principal, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	return authenticator.CurrentPrincipal(cookie.Value)
}

// NewSessionMiddleware はセッションCookieを読み取り、有効であれば
// 認証済みユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証でもリクエストは拒否しない。拒否はRequireAuthenticationで行う。
func NewSessionMiddleware(authenticator SessionAuthenticator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := Authenticate(r, authenticator)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), *principal)))
		})
	}
}

// RequireAuthentication は認証済みユーザーがコンテキストに無いリクエストに
// 401 Unauthorizedを返すミドルウェアを返す。
// 後続のハンドラー（ボディ解析、補完API呼び出し、履歴参照）は一切実行しない。
func RequireAuthentication() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := PrincipalFromContext(r.Context()); err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// セッションミドルウェアで認証されたリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (model.Principal, error) {
	principal, ok := ctx.Value(principalContextKey).(model.Principal)
	if !ok || principal.Email == "" {
		return model.Principal{}, fmt.Errorf("principal not found in context")
	}
	return principal, nil
}

// ContextWithPrincipal はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, principal model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}
