package handler

import (
	"net/http"

	"github.com/hitoshi/naradmuni/internal/history"
)

// IdentityStatus はログイン機能の設定状態を返す。
type IdentityStatus interface {
	IdentityConfigured() bool
}

// CompletionStatus は補完APIの設定状態を返す。
type CompletionStatus interface {
	Configured() bool
}

// StorageStatus は履歴ストアの状態を返す。
type StorageStatus interface {
	Status() history.Status
}

// HealthHandler はヘルスチェックのHTTPハンドラー。
// 設定不足や履歴ストアの劣化があってもプロセスは応答可能なので常に200を返す。
type HealthHandler struct {
	identity   IdentityStatus
	completion CompletionStatus
	storage    StorageStatus
}

// NewHealthHandler はHealthHandlerを生成する。いずれもnilなら未設定として扱う。
func NewHealthHandler(identity IdentityStatus, completion CompletionStatus, storage StorageStatus) *HealthHandler {
	return &HealthHandler{
		identity:   identity,
		completion: completion,
		storage:    storage,
	}
}

type healthResponse struct {
	Status               string `json:"status"`
	IdentityConfigured   bool   `json:"identityConfigured"`
	CompletionConfigured bool   `json:"completionConfigured"`
	StorageStatus        string `json:"storageStatus"`
}

// Health はプロセスの稼働状況と各機能の設定状態を返す。秘密値は含めない。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "healthy",
		StorageStatus: string(history.StatusDisabled),
	}
	if h.identity != nil {
		resp.IdentityConfigured = h.identity.IdentityConfigured()
	}
	if h.completion != nil {
		resp.CompletionConfigured = h.completion.Configured()
	}
	if h.storage != nil {
		resp.StorageStatus = string(h.storage.Status())
	}

	writeJSON(w, http.StatusOK, resp)
}
