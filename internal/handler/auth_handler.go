// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/naradmuni/internal/middleware"
	"github.com/hitoshi/naradmuni/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	HandleCallback(ctx context.Context, assertion string) (*model.Principal, string, error)
	SessionTTL() time.Duration
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	// CookieSecure がtrueなら常にSecure属性を付ける。
	// falseでもTLS接続またはX-Forwarded-Proto: httpsなら付ける。
	CookieSecure bool
}

// AuthHandler はIDトークンによるログインとセッション関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

type callbackRequest struct {
	Credential string `json:"credential"`
}

type userResponse struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type callbackResponse struct {
	Success bool         `json:"success"`
	User    userResponse `json:"user"`
}

type sessionResponse struct {
	User userResponse `json:"user"`
}

// Callback はGoogleのIDトークンを検証し、セッションCookieを発行する。
// POST /auth/callback
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	principal, token, err := h.service.HandleCallback(r.Context(), req.Credential)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.service.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.secure(r),
		SameSite: http.SameSiteLaxMode,
	})

	slog.Info("user logged in", slog.String("principal", principal.Email))

	writeJSON(w, http.StatusOK, callbackResponse{
		Success: true,
		User:    toUserResponse(*principal),
	})
}

// Session は現在のログインユーザー情報を返す。
// GET /session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{User: toUserResponse(principal)})
}

// Logout はセッションCookieを削除する。
// トークン自体はサーバー側で失効させないため、期限までは再利用できる。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure(r),
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *AuthHandler) secure(r *http.Request) bool {
	return h.config.CookieSecure || r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
}

func toUserResponse(p model.Principal) userResponse {
	return userResponse{
		Email:   p.Email,
		Name:    p.Name,
		Picture: p.Picture,
	}
}
