package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Driver はdatabase/sqlのドライバ名。
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite3"
)

const sqliteScheme = "sqlite3://"

// ErrUnsupportedURL はDATABASE_URLのスキームが対応外の場合のエラー。
var ErrUnsupportedURL = errors.New("unsupported database url scheme")

// ParseURL はDATABASE_URLからドライバ名とsql.Openに渡すDSNを決定する。
//   - postgres:// / postgresql:// はlib/pqにURLをそのまま渡す
//   - sqlite3://<path> はgo-sqlite3にファイルパスを渡す（ローカル開発用）
func ParseURL(databaseURL string) (Driver, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return DriverPostgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, sqliteScheme):
		path := strings.TrimPrefix(databaseURL, sqliteScheme)
		if path == "" {
			return "", "", fmt.Errorf("%w: sqlite3 url has no file path", ErrUnsupportedURL)
		}
		return DriverSQLite, path, nil
	default:
		return "", "", ErrUnsupportedURL
	}
}

// Open はDATABASE_URLに応じたドライバでデータベース接続を開く。
// sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
func Open(databaseURL string) (*sql.DB, error) {
	driver, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(driver), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLiteは書き込みが直列化されるため接続を1本に絞る
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	return db, nil
}
