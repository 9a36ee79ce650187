// Package reservation は会議室予約の検証、重複判定、所有者ポリシーを提供する。
package reservation

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/roombook/internal/model"
)

// 営業時間と最低予約時間の定義。
const (
	OpeningHour     = 8
	ClosingHour     = 19
	MinimumDuration = time.Hour
)

// Clock は現在時刻を提供する。テストで固定時刻を注入するために使用する。
type Clock interface {
	Now() time.Time
}

// RealClock はシステム時刻を返すClock実装。
type RealClock struct{}

// Now は現在時刻を返す。
func (RealClock) Now() time.Time { return time.Now() }

// 受け付ける日時フォーマット。タイムゾーンなしの形式は設定されたロケーションで解釈する。
var naiveLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseTimestamp は日時文字列をロケーションlocの時刻として解析する。
// RFC 3339形式（オフセット付き）の場合はlocに変換して返す。
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.In(loc), nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", value)
}

// Validator は予約の時間枠を業務ルールに照らして検証する。
// 営業時間と曜日の判定はすべて固定ロケーションで行う。
type Validator struct {
	loc *time.Location
}

// NewValidator はValidatorを生成する。locがnilの場合はUTCを使用する。
func NewValidator(loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	return &Validator{loc: loc}
}

// Location は判定に使用するロケーションを返す。
func (v *Validator) Location() *time.Location {
	return v.loc
}

// ValidateTitle はタイトルが空でなく、最大文字数以内であることを検証する。
func (v *Validator) ValidateTitle(title string) *model.APIError {
	if strings.TrimSpace(title) == "" {
		return model.NewInvalidInputError("タイトルは必須です")
	}
	if utf8.RuneCountInString(title) > model.MaxTitleLength {
		return model.NewInvalidInputError(fmt.Sprintf("タイトルは%d文字以内で入力してください", model.MaxTitleLength))
	}
	return nil
}

// Parse は開始・終了日時の文字列を解析する。
// どちらかが解析できない場合はInvalidInputを返す。
func (v *Validator) Parse(start, end string) (time.Time, time.Time, *model.APIError) {
	s, err := ParseTimestamp(start, v.loc)
	if err != nil {
		return time.Time{}, time.Time{}, model.NewInvalidInputError("開始日時の形式が不正です")
	}
	e, err := ParseTimestamp(end, v.loc)
	if err != nil {
		return time.Time{}, time.Time{}, model.NewInvalidInputError("終了日時の形式が不正です")
	}
	return s, e, nil
}

// ValidateWindow は [start, end) をnowに対して検証する。
// 判定順序は固定: 過去日時 → 最低1時間 → 営業時間 → 平日。最初に失敗したルールを返す。
func (v *Validator) ValidateWindow(start, end, now time.Time) *model.APIError {
	if start.IsZero() || end.IsZero() {
		return model.NewInvalidInputError("開始日時と終了日時は必須です")
	}

	if start.Before(now) {
		return model.NewPastDateError()
	}

	if end.Sub(start) < MinimumDuration {
		return model.NewTooShortError()
	}

	s := start.In(v.loc)
	if s.Hour() < OpeningHour {
		return model.NewOutsideBusinessHoursError()
	}
	// 終了は開始日の19:00ちょうどまで。19:01や翌日への跨ぎは不可。
	closing := time.Date(s.Year(), s.Month(), s.Day(), ClosingHour, 0, 0, 0, v.loc)
	if end.After(closing) {
		return model.NewOutsideBusinessHoursError()
	}

	if wd := s.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return model.NewWeekendError()
	}

	return nil
}

// Validate は文字列入力の解析から時間枠の検証までを一括で行い、解析済みの区間を返す。
func (v *Validator) Validate(title, start, end string, now time.Time) (time.Time, time.Time, *model.APIError) {
	if apiErr := v.ValidateTitle(title); apiErr != nil {
		return time.Time{}, time.Time{}, apiErr
	}
	s, e, apiErr := v.Parse(start, end)
	if apiErr != nil {
		return time.Time{}, time.Time{}, apiErr
	}
	if apiErr := v.ValidateWindow(s, e, now); apiErr != nil {
		return time.Time{}, time.Time{}, apiErr
	}
	return s, e, nil
}
