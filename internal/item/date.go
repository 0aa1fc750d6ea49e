package item

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"

	"github.com/hitoshi/sundial/internal/model"
)

// ParseDate は記録の日付文字列を解析する。
// RFC 3339形式の日時と YYYY-MM-DD 形式の日付を受け付ける。
// 日付のみの場合はUTCの0時として扱う。
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required: %w", model.ErrInvalidParameters)
	}

	if dt, err := strfmt.ParseDateTime(s); err == nil {
		return time.Time(dt), nil
	}
	if d, err := time.Parse(strfmt.RFC3339FullDate, s); err == nil {
		return d, nil
	}

	return time.Time{}, fmt.Errorf("invalid date %q: %w", s, model.ErrInvalidParameters)
}
