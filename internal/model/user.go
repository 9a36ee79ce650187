// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
	"time"
)

// AccountStatus はユーザーアカウントの状態を表す。
type AccountStatus string

const (
	// AccountStatusActive は通常のアカウント。
	AccountStatusActive AccountStatus = "active"
	// AccountStatusAnonymized は個人情報が匿名化されたアカウント。
	AccountStatusAnonymized AccountStatus = "anonymized"
)

const (
	// AnonymizedEmailPrefix は匿名化済みメールアドレスの接頭辞。
	AnonymizedEmailPrefix = "anonyme-"
	// AnonymizedEmailDomain は匿名化済みメールアドレスのドメイン。
	AnonymizedEmailDomain = "anonymized.local"
)

// User はサービス利用ユーザーを表す。
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	LastName     string
	Status       AccountStatus
	AnonymizedAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAnonymized はアカウントが匿名化済みかどうかを返す。
func (u *User) IsAnonymized() bool {
	return u.Status == AccountStatusAnonymized
}

// Requester は認証済みのリクエスト送信者を表す。
// 認証ミドルウェアが解決し、ハンドラーからサービスへ明示的に渡される。
type Requester struct {
	ID         string
	Email      string
	Anonymized bool
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// AnonymizedEmail は匿名化後のメールアドレスを生成する。
func AnonymizedEmail(userID string) string {
	return fmt.Sprintf("%s%s@%s", AnonymizedEmailPrefix, userID, AnonymizedEmailDomain)
}

// AnonymizedName は匿名化後の表示名を生成する。
func AnonymizedName(userID string) string {
	return "Anonyme-" + userID
}

// IsAnonymizedEmail はメールアドレスが匿名化パターンに一致するかを判定する。
// 登録時にこの名前空間のアドレスは拒否されるため、実アカウントと衝突しない。
func IsAnonymizedEmail(email string) bool {
	e := strings.ToLower(email)
	return strings.HasPrefix(e, AnonymizedEmailPrefix) || strings.HasSuffix(e, "@"+AnonymizedEmailDomain)
}
