// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeNotConfigured       = "NOT_CONFIGURED"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
)

// NewUnauthorizedError は未認証エラーを生成する。
// セッション欠落・署名不一致・期限切れ・IDトークン検証失敗をすべてこの1種類にまとめる。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized - please login.",
		Category: "auth",
		Action:   "Sign in with Google and try again.",
	}
}

// NewInvalidInputError は入力値エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  reason,
		Category: "validation",
		Action:   "Check the request and try again.",
	}
}

// NewNotConfiguredError は必須の設定値が未設定の場合のエラーを生成する。
// serviceには利用者に見せてよいサービス名のみを渡すこと（秘密値は含めない）。
func NewNotConfiguredError(service string) *APIError {
	return &APIError{
		Code:     ErrCodeNotConfigured,
		Message:  fmt.Sprintf("%s is not configured.", service),
		Category: "system",
		Action:   "Contact the administrator.",
	}
}

// NewRateLimitedError は上流サービスのレート制限エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "AI service rate limit exceeded. Please try again later.",
		Category: "upstream",
		Action:   "Wait a moment before sending another message.",
	}
}

// NewUpstreamUnavailableError は上流サービスの障害エラーを生成する。
func NewUpstreamUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamUnavailable,
		Message:  "AI service temporarily unavailable.",
		Category: "upstream",
		Action:   "Please try again later.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error.",
		Category: "system",
		Action:   "Please try again later.",
	}
}
