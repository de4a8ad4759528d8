//go:build integration

package repository

import (
	"context"
	"log"
	"testing"
	"time"

	"github.com/hitoshi/naradmuni/internal/database"
	"github.com/hitoshi/naradmuni/internal/model"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestSQLExchangeRepo_Postgres は実PostgreSQL上でマイグレーションと追記・取得を検証する。
// 実行: go test -tags=integration -timeout 120s ./internal/repository/...
func TestSQLExchangeRepo_Postgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("naradmuni"),
		postgres.WithUsername("naradmuni"),
		postgres.WithPassword("naradmuni"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			log.Printf("failed to terminate postgres container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	if err := database.RunMigrations(connStr); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	// 2回目はErrNoChangeとして吸収される
	if err := database.RunMigrations(connStr); err != nil {
		t.Fatalf("2回目のマイグレーション実行に失敗: %v", err)
	}

	db, err := database.Open(connStr)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	defer db.Close()

	repo := NewSQLExchangeRepo(db)
	base := time.Now().UTC().Truncate(time.Microsecond)

	if err := repo.Append(ctx, newExchange("alice@example.com", model.RoleUser, "hello", base)); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	if err := repo.Append(ctx, newExchange("alice@example.com", model.RoleAssistant, "hi there", base.Add(time.Millisecond))); err != nil {
		t.Fatalf("Append returned error: %v", err)
	}

	got, err := repo.ListByPrincipal(ctx, "alice@example.com", 100)
	if err != nil {
		t.Fatalf("ListByPrincipal returned error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Content != "hello" || got[1].Content != "hi there" {
		t.Errorf("order = [%q, %q], want [hello, hi there]", got[0].Content, got[1].Content)
	}
	if !got[0].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, base)
	}
}
