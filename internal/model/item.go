// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// Item はユーザーが所有する記録を表す。
// IDとUserIDは作成後に変更されない。
type Item struct {
	ID       int64           `json:"id"`
	UserID   int64           `json:"user_id"`
	Name     string          `json:"name"`
	Date     time.Time       `json:"date"`
	Metadata json.RawMessage `json:"metadata"`
}

// ItemInput は記録の作成・更新時に呼び出し元から受け取る値。
// Dateは未解析の文字列のまま保持し、サービス層で解析する。
type ItemInput struct {
	Name     string
	Date     string
	Metadata json.RawMessage
}

// EmptyMetadata はメタデータ未指定時に保存される空オブジェクト。
var EmptyMetadata = json.RawMessage(`{}`)

// MetadataOrEmpty はmが空の場合にEmptyMetadataを返す。
// JSONのnullも未指定として扱う。
func MetadataOrEmpty(m json.RawMessage) json.RawMessage {
	if len(m) == 0 || string(m) == "null" {
		return EmptyMetadata
	}
	return m
}
