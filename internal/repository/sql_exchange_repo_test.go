package repository

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/naradmuni/internal/database"
	"github.com/hitoshi/naradmuni/internal/model"
)

// setupSQLiteRepo はマイグレーション済みのSQLiteファイルを用意してリポジトリを返す。
func setupSQLiteRepo(t *testing.T) (*SQLExchangeRepo, *sql.DB) {
	t.Helper()

	dbURL := "sqlite3://" + filepath.Join(t.TempDir(), "exchanges.db")
	if err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}
	db, err := database.Open(dbURL)
	if err != nil {
		t.Fatalf("データベースへの接続に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewSQLExchangeRepo(db), db
}

func newExchange(email string, role model.Role, content string, at time.Time) *model.Exchange {
	return &model.Exchange{
		ID:             uuid.NewString(),
		PrincipalEmail: email,
		Role:           role,
		Content:        content,
		CreatedAt:      at,
	}
}

func TestNewSQLExchangeRepo_Initializes(t *testing.T) {
	if repo := NewSQLExchangeRepo(nil); repo == nil {
		t.Fatal("expected non-nil repo")
	}
}

func TestSQLExchangeRepo_AppendAndList_Ascending(t *testing.T) {
	repo, _ := setupSQLiteRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

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
	if got[0].Role != model.RoleUser || got[0].Content != "hello" {
		t.Errorf("got[0] = %+v, want user/hello", got[0])
	}
	if got[1].Role != model.RoleAssistant || got[1].Content != "hi there" {
		t.Errorf("got[1] = %+v, want assistant/hi there", got[1])
	}
	if !got[0].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, base)
	}
}

func TestSQLExchangeRepo_List_SameTimestampKeepsAppendOrder(t *testing.T) {
	repo, _ := setupSQLiteRepo(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := repo.Append(ctx, newExchange("alice@example.com", model.RoleUser, fmt.Sprintf("q%d", i), at)); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
		if err := repo.Append(ctx, newExchange("alice@example.com", model.RoleAssistant, fmt.Sprintf("a%d", i), at)); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	got, err := repo.ListByPrincipal(ctx, "alice@example.com", 4)
	if err != nil {
		t.Fatalf("ListByPrincipal returned error: %v", err)
	}
	want := []string{"q3", "a3", "q4", "a4"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("got[%d] = %q, want %q", i, got[i].Content, w)
		}
	}
}

func TestSQLExchangeRepo_List_IsolatedByPrincipal(t *testing.T) {
	repo, _ := setupSQLiteRepo(t)
	ctx := context.Background()
	now := time.Now()

	_ = repo.Append(ctx, newExchange("alice@example.com", model.RoleUser, "alice says", now))
	_ = repo.Append(ctx, newExchange("bob@example.com", model.RoleUser, "bob says", now))

	got, err := repo.ListByPrincipal(ctx, "bob@example.com", 100)
	if err != nil {
		t.Fatalf("ListByPrincipal returned error: %v", err)
	}
	if len(got) != 1 || got[0].Content != "bob says" {
		t.Errorf("got = %+v, want only bob's exchange", got)
	}
}

func TestSQLExchangeRepo_List_ReturnsMostRecentWithinLimit(t *testing.T) {
	repo, _ := setupSQLiteRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		e := newExchange("alice@example.com", model.RoleUser, fmt.Sprintf("msg-%d", i), base.Add(time.Duration(i)*time.Second))
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append returned error: %v", err)
		}
	}

	got, err := repo.ListByPrincipal(ctx, "alice@example.com", 3)
	if err != nil {
		t.Fatalf("ListByPrincipal returned error: %v", err)
	}
	want := []string{"msg-2", "msg-3", "msg-4"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("got[%d].Content = %q, want %q", i, got[i].Content, w)
		}
	}
}

func TestSQLExchangeRepo_List_EmptyReturnsEmptySlice(t *testing.T) {
	repo, _ := setupSQLiteRepo(t)

	got, err := repo.ListByPrincipal(context.Background(), "nobody@example.com", 100)
	if err != nil {
		t.Fatalf("ListByPrincipal returned error: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("got = %#v, want empty non-nil slice", got)
	}
}

func TestSQLExchangeRepo_Append_ClosedDBReturnsError(t *testing.T) {
	repo, db := setupSQLiteRepo(t)
	db.Close()

	err := repo.Append(context.Background(), newExchange("alice@example.com", model.RoleUser, "hello", time.Now()))
	if err == nil {
		t.Fatal("expected error on closed database")
	}
}

func TestSQLExchangeRepo_Append_RejectsUnknownRole(t *testing.T) {
	repo, _ := setupSQLiteRepo(t)

	err := repo.Append(context.Background(), newExchange("alice@example.com", model.Role("system"), "x", time.Now()))
	if err == nil {
		t.Fatal("expected CHECK constraint violation for unknown role")
	}
}
