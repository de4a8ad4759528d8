package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/naradmuni/internal/history"
	"github.com/hitoshi/naradmuni/internal/middleware"
	"github.com/hitoshi/naradmuni/internal/model"
)

// ChatServiceInterface はチャットハンドラーが必要とするサービスインターフェース。
type ChatServiceInterface interface {
	Send(ctx context.Context, principal model.Principal, message string) (string, error)
	History(ctx context.Context, principal model.Principal, limit int) []model.Exchange
}

// ChatHandler はチャット送信と履歴取得のHTTPハンドラー。
type ChatHandler struct {
	service ChatServiceInterface
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(service ChatServiceInterface) *ChatHandler {
	return &ChatHandler{service: service}
}

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Reply  string `json:"reply"`
	Status string `json:"status"`
}

type exchangeResponse struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type historyResponse struct {
	Exchanges []exchangeResponse `json:"exchanges"`
}

// Chat はメッセージを補完APIに中継し、返答を返す。
// POST /chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError())
		return
	}

	var req chatRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	reply, err := h.service.Send(r.Context(), principal, req.Message)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply, Status: "success"})
}

// History は認証済みユーザー自身の履歴を古い順に返す。
// GET /history?limit=N
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	principal, err := middleware.PrincipalFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError())
		return
	}

	limit := history.MaxListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > history.MaxListLimit {
			handleServiceError(w, model.NewInvalidInputError("limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	exchanges := h.service.History(r.Context(), principal, limit)

	resp := historyResponse{Exchanges: make([]exchangeResponse, len(exchanges))}
	for i, ex := range exchanges {
		resp.Exchanges[i] = exchangeResponse{
			Role:      string(ex.Role),
			Content:   ex.Content,
			Timestamp: ex.CreatedAt.UTC().Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
