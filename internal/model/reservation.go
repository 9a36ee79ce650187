package model

import (
	"strings"
	"time"
)

// MaxTitleLength は予約タイトルの最大文字数。
const MaxTitleLength = 22

// Reservation は会議室の予約を表す。
// 区間は半開区間 [StartTime, EndTime) として扱う。
type Reservation struct {
	ID        string
	Title     string
	StartTime time.Time
	EndTime   time.Time
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReservationWithOwner は予約と所有者の表示情報を結合した構造体。
// 所有者の匿名化判定と表示名の決定を追加クエリなしで行うために使用する。
type ReservationWithOwner struct {
	Reservation
	OwnerName     string
	OwnerLastName string
	OwnerEmail    string
	OwnerStatus   AccountStatus
}

// OwnerAnonymized は所有者が匿名化済みかどうかを返す。
func (r *ReservationWithOwner) OwnerAnonymized() bool {
	return r.OwnerStatus == AccountStatusAnonymized
}

// OwnerDisplayName はカレンダー表示用の所有者名を返す。
func (r *ReservationWithOwner) OwnerDisplayName() string {
	if r.OwnerAnonymized() {
		return "Anonyme"
	}
	return strings.TrimSpace(r.OwnerName + " " + r.OwnerLastName)
}
