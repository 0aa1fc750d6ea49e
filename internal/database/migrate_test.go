package database_test

import (
	"testing"

	"github.com/hitoshi/sundial/internal/database"
	"github.com/hitoshi/sundial/internal/database/dbtest"
)

func TestApplySchema_CreatesTables(t *testing.T) {
	db, _ := dbtest.NewPostgres(t)

	for _, table := range []string{"users", "items"} {
		t.Run("テーブル存在確認_"+table, func(t *testing.T) {
			var exists bool
			err := db.QueryRow(
				`SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_schema = 'public' AND table_name = $1
				)`, table,
			).Scan(&exists)
			if err != nil {
				t.Fatalf("テーブル存在確認クエリに失敗: %v", err)
			}
			if !exists {
				t.Errorf("テーブル %s が存在しません", table)
			}
		})
	}
}

// 2回目の適用はErrNoChangeとして扱われエラーにならないこと
func TestApplySchema_Idempotent(t *testing.T) {
	_, dbURL := dbtest.NewPostgres(t)

	if err := database.ApplySchema(dbURL); err != nil {
		t.Fatalf("2回目のスキーマ適用でエラー: %v", err)
	}
}

// google_idの一意制約が効いていること
func TestApplySchema_GoogleIDIsUnique(t *testing.T) {
	db, _ := dbtest.NewPostgres(t)

	if _, err := db.Exec(`INSERT INTO users (google_id) VALUES ('sub-1')`); err != nil {
		t.Fatalf("1件目のINSERTに失敗: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO users (google_id) VALUES ('sub-1')`); err == nil {
		t.Error("同じgoogle_idの2件目のINSERTは失敗するべき")
	}
}

// metadataのデフォルトが空オブジェクトであること
func TestApplySchema_MetadataDefaultsToEmptyObject(t *testing.T) {
	db, _ := dbtest.NewPostgres(t)

	var metadata string
	err := db.QueryRow(`INSERT INTO users (google_id) VALUES ('sub-2') RETURNING metadata::text`).Scan(&metadata)
	if err != nil {
		t.Fatalf("INSERTに失敗: %v", err)
	}
	if metadata != "{}" {
		t.Errorf("metadata = %q, want %q", metadata, "{}")
	}
}
