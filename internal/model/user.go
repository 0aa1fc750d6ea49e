// Package model はドメインモデルを定義する。
package model

import (
	"encoding/json"
	"time"
)

// User はサービス利用ユーザーを表す。
// GoogleIDは外部IdPが発行したsubject識別子で、一度設定したら変更しない。
type User struct {
	ID        int64           `json:"id"`
	GoogleID  string          `json:"google_id"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
}
