// Package dbtest はPostgreSQLを使う結合テスト向けのヘルパーを提供する。
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/hitoshi/sundial/internal/database"
)

const (
	postgresImage    = "postgres:16-alpine"
	postgresUser     = "sundial"
	postgresPassword = "sundial"
	postgresDB       = "sundial_test"
)

// NewPostgres はスキーマ適用済みのテスト用データベースを返す。
//
// TEST_DATABASE_URL が設定されていればそのDBを使う（テーブルは作り直す）。
// 未設定の場合はtestcontainersでPostgreSQLコンテナを起動する。
// -short指定時やDockerが利用できない場合はテストをスキップする。
func NewPostgres(t *testing.T) (*sql.DB, string) {
	t.Helper()

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		if testing.Short() {
			t.Skip("skipping PostgreSQL integration test in short mode")
		}
		dbURL = startContainer(t)
	}

	db, err := database.Open(dbURL, database.PoolOptions{MaxOpenConns: 10})
	if err != nil {
		t.Fatalf("データベースのオープンに失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("テスト用データベースに接続できません（スキップ）: %v", err)
	}

	if _, err := db.Exec(`
		DROP TABLE IF EXISTS items CASCADE;
		DROP TABLE IF EXISTS users CASCADE;
		DROP TABLE IF EXISTS schema_migrations CASCADE;
	`); err != nil {
		t.Fatalf("クリーンアップに失敗: %v", err)
	}

	if err := database.ApplySchema(dbURL); err != nil {
		t.Fatalf("スキーマ適用に失敗: %v", err)
	}

	return db, dbURL
}

// startContainer はPostgreSQLコンテナを起動し接続URLを返す。
// コンテナはテスト終了時に破棄する。
func startContainer(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDB,
		},
		// 初期化時に一度再起動するため2回目のログを待つ
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("PostgreSQLコンテナを起動できません（スキップ）: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("コンテナの破棄に失敗: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("コンテナのホスト取得に失敗: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("コンテナのポート取得に失敗: %v", err)
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		postgresUser, postgresPassword, host, port.Port(), postgresDB)
}
