// Package completion はLLM補完APIへのチャット中継を提供する。
// OpenAI互換のchat completionsエンドポイント（デフォルトはGroq）を呼び出す。
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/hitoshi/naradmuni/internal/model"
)

const (
	// DefaultURL はGroqのchat completionsエンドポイント。
	DefaultURL = "https://api.groq.com/openai/v1/chat/completions"
	// DefaultModel は補完に使うモデルID。
	DefaultModel = "llama-3.1-8b-instant"
	// DefaultTimeout は補完API呼び出しのタイムアウト。
	DefaultTimeout = 30 * time.Second

	// MaxMessageLength はユーザーメッセージの最大文字数（rune数）。
	MaxMessageLength = 100

	temperature = 0.7
	maxTokens   = 200

	// logPreviewLength はログに残すメッセージ先頭の文字数。
	logPreviewLength = 60
)

// Config は補完APIの接続設定。
type Config struct {
	APIKey  string
	URL     string
	Model   string
	Timeout time.Duration
}

// UpstreamRecorder は補完API呼び出しの結果を記録するインターフェース。
type UpstreamRecorder interface {
	RecordUpstreamStatus(statusCode int)
	RecordUpstreamLatency(duration time.Duration)
}

// Relay は補完APIへのリクエストを中継する。
type Relay struct {
	client   *resty.Client
	apiKey   string
	url      string
	model    string
	recorder UpstreamRecorder
}

// NewRelay はRelayを生成する。空の項目にはデフォルト値を使う。
// recorderはnilでもよい。
func NewRelay(cfg Config, recorder UpstreamRecorder) *Relay {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Content-Type", "application/json")
	client.SetHeader("User-Agent", "Naradmuni/1.0")

	return &Relay{
		client:   client,
		apiKey:   cfg.APIKey,
		url:      cfg.URL,
		model:    cfg.Model,
		recorder: recorder,
	}
}

// Configured はAPIキーが設定されているかを返す。
func (r *Relay) Configured() bool {
	return r.apiKey != ""
}

// ValidateMessage は前後の空白を除いたメッセージを検証して返す。
// 空または上限超過の場合はINVALID_INPUTを返す。
func ValidateMessage(message string) (string, error) {
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return "", model.NewInvalidInputError("Message is required")
	}
	if utf8.RuneCountInString(trimmed) > MaxMessageLength {
		return "", model.NewInvalidInputError(fmt.Sprintf("Message too long (max %d characters)", MaxMessageLength))
	}
	return trimmed, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// errMalformedResponse は2xx応答に返答本文が含まれない場合のエラー。
var errMalformedResponse = errors.New("completion response has no choices[0].message.content")

// Complete はメッセージを補完APIに送り、返答を返す。
// 失敗は*model.APIErrorに分類される（RATE_LIMITED / UPSTREAM_UNAVAILABLE など）。
// 自動リトライは行わない。
func (r *Relay) Complete(ctx context.Context, principal model.Principal, message string) (string, error) {
	message, err := ValidateMessage(message)
	if err != nil {
		return "", err
	}
	if !r.Configured() {
		slog.Error("GROQ_API_KEY is not configured")
		return "", model.NewNotConfiguredError("AI service")
	}

	body := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: personaPrompt},
			{Role: "user", Content: message},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}

	slog.Info("sending completion request",
		slog.String("principal", principal.Email),
		slog.String("model", r.model),
		slog.String("message_preview", preview(message)),
	)

	start := time.Now()
	resp, err := r.client.R().
		SetContext(ctx).
		SetAuthToken(r.apiKey).
		SetBody(body).
		Post(r.url)
	r.recordLatency(time.Since(start))

	if err != nil {
		r.recordStatus(0)
		slog.Error("completion request failed",
			slog.String("principal", principal.Email),
			slog.String("error", err.Error()),
		)
		return "", model.NewUpstreamUnavailableError()
	}

	status := resp.StatusCode()
	r.recordStatus(status)

	switch {
	case status == http.StatusTooManyRequests:
		slog.Warn("completion service rate limited",
			slog.String("principal", principal.Email),
		)
		return "", model.NewRateLimitedError()
	case status < 200 || status >= 300:
		slog.Error("completion service returned error status",
			slog.String("principal", principal.Email),
			slog.Int("status", status),
		)
		return "", model.NewUpstreamUnavailableError()
	}

	reply, err := parseReply(resp.Body())
	if err != nil {
		slog.Error("failed to parse completion response",
			slog.String("principal", principal.Email),
			slog.String("error", err.Error()),
		)
		return "", model.NewUpstreamUnavailableError()
	}

	slog.Info("completion request succeeded",
		slog.String("principal", principal.Email),
	)
	return reply, nil
}

// parseReply はchoices[0].message.contentを取り出す。
func parseReply(raw []byte) (string, error) {
	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode completion response: %w", err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil || parsed.Choices[0].Message.Content == nil {
		return "", errMalformedResponse
	}
	return *parsed.Choices[0].Message.Content, nil
}

func preview(message string) string {
	if utf8.RuneCountInString(message) <= logPreviewLength {
		return message
	}
	return string([]rune(message)[:logPreviewLength]) + "..."
}

func (r *Relay) recordStatus(code int) {
	if r.recorder != nil {
		r.recorder.RecordUpstreamStatus(code)
	}
}

func (r *Relay) recordLatency(d time.Duration) {
	if r.recorder != nil {
		r.recorder.RecordUpstreamLatency(d)
	}
}
