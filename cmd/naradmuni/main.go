// Command naradmuni はGoogleログイン付きのAIチャット中継サーバー。
//
// サブコマンド:
//
//	serve        APIサーバーを起動する（デフォルト）
//	migrate      履歴ストレージのマイグレーションを実行する
//	healthcheck  起動中サーバーの /health を確認する
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/naradmuni/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
