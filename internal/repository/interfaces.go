// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/hitoshi/roombook/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレス（小文字正規化済み）でユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレス重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// Anonymize はユーザーの個人情報フィールドを上書きし、状態をanonymizedにする。
	// 予約はそのまま残る。
	Anonymize(ctx context.Context, user *model.User) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// ReservationRepository は予約データの永続化インターフェース。
// 読み取り系はすべて所有者の表示情報（名前、姓、メール、状態）を結合して返す。
// 実装は予約集合をメモリにキャッシュしてはならない。
type ReservationRepository interface {
	// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.ReservationWithOwner, error)

	// FindByUserID はユーザーの予約を開始日時の昇順で返す。
	FindByUserID(ctx context.Context, userID string) ([]model.ReservationWithOwner, error)

	// FindByWeek は monday から金曜日までに開始する予約を開始日時の昇順で返す。
	// 営業時間による絞り込みは行わない。
	FindByWeek(ctx context.Context, monday time.Time) ([]model.ReservationWithOwner, error)

	// HasConflict は [start, end) と重なる予約が存在するかを返す。
	// excludeIDが空でない場合、そのIDの予約は判定から除外する。
	HasConflict(ctx context.Context, start, end time.Time, excludeID string) (bool, error)

	// Create は重複判定と挿入を単一トランザクションで行う。
	// 重複時はErrConflictを返す。
	Create(ctx context.Context, reservation *model.Reservation) error

	// Update は自身を除外した重複判定と更新を単一トランザクションで行う。
	// 重複時はErrConflict、対象が存在しない場合はErrNotFoundを返す。
	Update(ctx context.Context, reservation *model.Reservation) error

	// Delete は指定IDの予約を削除する。存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error

	// IsOwner は予約の所有者がuserIDかどうかを返す。予約が存在しない場合はfalse。
	IsOwner(ctx context.Context, reservationID, userID string) (bool, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
