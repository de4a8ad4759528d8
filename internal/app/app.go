package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/naradmuni/internal/auth"
	"github.com/hitoshi/naradmuni/internal/chat"
	"github.com/hitoshi/naradmuni/internal/completion"
	"github.com/hitoshi/naradmuni/internal/config"
	"github.com/hitoshi/naradmuni/internal/database"
	"github.com/hitoshi/naradmuni/internal/handler"
	"github.com/hitoshi/naradmuni/internal/history"
	"github.com/hitoshi/naradmuni/internal/logger"
	"github.com/hitoshi/naradmuni/internal/metrics"
	"github.com/hitoshi/naradmuni/internal/middleware"
	"github.com/hitoshi/naradmuni/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// googleAccountsOrigin はGoogle Sign-Inのポップアップが送るOrigin。
const googleAccountsOrigin = "https://accounts.google.com"

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
// 必須の設定が欠けていてもエラーにはせず、欠けている変数名をエラーログに出す。
func Init(w io.Writer) *config.Config {
	cfg := config.Load()
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	for _, name := range cfg.MissingRequired() {
		slog.Error("required environment variable is not set",
			slog.String("variable", name),
		)
	}

	return cfg
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		return runHealthcheck(healthcheckPort())
	}

	cfg := Init(w)

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("frontend_url", cfg.FrontendURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// application はワイヤリング済みのHTTPハンドラーと終了処理をまとめたもの。
type application struct {
	handler http.Handler
	ledger  *history.Ledger
	closeFn func()
}

// Close は保持しているリソースを解放する。
func (a *application) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// newApplication は設定から全依存関係をワイヤリングする。
// 履歴ストレージの初期化失敗は起動を妨げず、縮退モードで続行する。
func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	// 1. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 2. 認証
	verifier, err := auth.NewGoogleIDTokenVerifier(ctx, cfg.GoogleClientID, cfg.IdentityTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create identity verifier: %w", err)
	}
	codec := auth.NewSessionCodec(cfg.SessionSecret, auth.SessionTTL)
	authService := auth.NewService(verifier, codec, collector)

	// 3. 補完API
	relay := completion.NewRelay(completion.Config{
		APIKey:  cfg.GroqAPIKey,
		URL:     cfg.GroqURL,
		Model:   cfg.GroqModel,
		Timeout: cfg.CompletionTimeout,
	}, collector)

	// 4. 履歴ストレージ
	ledger, db := openLedger(ctx, cfg, collector)

	// 5. チャット
	chatService := chat.NewService(relay, ledger, collector)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitChat),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:      authService,
		CORSAllowedOrigins: []string{cfg.FrontendURL, googleAccountsOrigin},
		RateLimiter:        rateLimiter,
		Logger:             slog.Default(),

		AuthService: authService,
		AuthConfig:  handler.AuthHandlerConfig{CookieSecure: cfg.CookieSecure},

		ChatService: chatService,

		Identity:   authService,
		Completion: relay,
		Storage:    ledger,

		MetricsHandler: metrics.Handler(reg),
	})

	return &application{
		handler: router,
		ledger:  ledger,
		closeFn: func() {
			rateLimiter.Stop()
			if db != nil {
				if err := db.Close(); err != nil {
					slog.Error("failed to close database", slog.String("error", err.Error()))
				}
			}
		},
	}, nil
}

// openLedger はDATABASE_URLに応じて履歴ストアを開く。
// 未設定なら無効、マイグレーションや接続に失敗したら縮退状態のLedgerを返す。
// 接続できた場合のみ*sql.DBを返す。
func openLedger(ctx context.Context, cfg *config.Config, recorder history.FailureRecorder) (*history.Ledger, *sql.DB) {
	if !cfg.StorageEnabled() {
		slog.Info("DATABASE_URL not set, chat history disabled")
		return history.NewDisabledLedger(), nil
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return history.NewDegradedLedger(err), nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return history.NewDegradedLedger(err), nil
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.StorageTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return history.NewDegradedLedger(err), nil
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return history.NewLedger(repository.NewSQLExchangeRepo(db), cfg.StorageTimeout, recorder), db
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	app, err := newApplication(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	// 補完APIの待ち時間より長くしないと応答を書き込めない
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.CompletionTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("storage_status", string(app.ledger.Status())),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if !cfg.StorageEnabled() {
		return errors.New("DATABASE_URL is not set")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// healthcheckPort はConfigを読まずにポート番号を決める。
func healthcheckPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return "8000"
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
