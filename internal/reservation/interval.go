package reservation

import (
	"fmt"
	"time"
)

// Overlaps は半開区間 [aStart, aEnd) と [bStart, bEnd) が重なるかを判定する。
// 端点が接するだけ（一方の終了 == 他方の開始）の場合は重複としない。
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// WeekMonday はtを含む週の月曜日0:00（loc基準）を返す。
func WeekMonday(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	// time.Weekdayは日曜始まりのため、月曜始まりのオフセットに変換する
	offset := (int(t.Weekday()) + 6) % 7
	d := t.AddDate(0, 0, -offset)
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
}

// ParseDate は "2006-01-02" 形式の日付をloc基準の0:00として解析する。
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}
