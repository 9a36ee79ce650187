package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/roombook/internal/model"
)

// reservationSelect は予約と所有者の表示情報を結合して取得するSELECT句。
const reservationSelect = `SELECT
	r.id, r.title, r.start_time, r.end_time, r.user_id, r.created_at, r.updated_at,
	u.name, u.lastname, u.email, u.account_status
 FROM reservations r
 JOIN users u ON r.user_id = u.id`

// conflictQuery は半開区間の重複判定クエリ。
// 既存区間 [start_time, end_time) と候補 [$1, $2) が start_time < $2 AND end_time > $1 のとき重なる。
const conflictQuery = `SELECT EXISTS (
	SELECT 1 FROM reservations
	 WHERE start_time < $2 AND end_time > $1
	   AND ($3 = '' OR id::text <> $3)
)`

// rowQuerier は *sql.DB と *sql.Tx の共通部分。
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// rowScanner は *sql.Row と *sql.Rows の共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresReservationRepo はPostgreSQLを使用した予約リポジトリ。
// 重複禁止は reservations テーブルの排他制約（tstzrange && の EXCLUDE）で
// 最終的に保証され、トランザクション内の重複判定は明確なエラーを返すために行う。
type PostgresReservationRepo struct {
	db *sql.DB
}

// NewPostgresReservationRepo はPostgresReservationRepoを生成する。
func NewPostgresReservationRepo(db *sql.DB) *PostgresReservationRepo {
	return &PostgresReservationRepo{db: db}
}

// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
func (r *PostgresReservationRepo) FindByID(ctx context.Context, id string) (*model.ReservationWithOwner, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		reservationSelect+` WHERE r.id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("予約の取得に失敗しました: %w", err)
	}
	return res, nil
}

// FindByUserID はユーザーの予約を開始日時の昇順で返す。
func (r *PostgresReservationRepo) FindByUserID(ctx context.Context, userID string) ([]model.ReservationWithOwner, error) {
	return r.list(ctx, "ユーザーの予約一覧",
		reservationSelect+` WHERE r.user_id = $1 ORDER BY r.start_time ASC`,
		userID,
	)
}

// FindByWeek は monday 0:00 から5日間（月〜金）に開始する予約を返す。
// mondayのロケーションで日付境界を決めるため、呼び出し側で固定ロケーションの時刻を渡すこと。
func (r *PostgresReservationRepo) FindByWeek(ctx context.Context, monday time.Time) ([]model.ReservationWithOwner, error) {
	from := time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, monday.Location())
	to := from.AddDate(0, 0, 5)
	return r.list(ctx, "週の予約一覧",
		reservationSelect+` WHERE r.start_time >= $1 AND r.start_time < $2 ORDER BY r.start_time ASC`,
		from, to,
	)
}

// HasConflict は [start, end) と重なる予約が存在するかを返す。
func (r *PostgresReservationRepo) HasConflict(ctx context.Context, start, end time.Time, excludeID string) (bool, error) {
	return hasConflict(ctx, r.db, start, end, excludeID)
}

// Create は重複判定と挿入を単一トランザクションで行う。
// 同時に重なる区間を挿入しようとした場合、後続のトランザクションは排他制約で待たされ、
// 先行のコミット後に23P01で失敗するため ErrConflict に変換する。
func (r *PostgresReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		conflict, err := hasConflict(ctx, tx, res.StartTime, res.EndTime, "")
		if err != nil {
			return err
		}
		if conflict {
			return ErrConflict
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO reservations (id, title, start_time, end_time, user_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			res.ID, res.Title, res.StartTime, res.EndTime, res.UserID, res.CreatedAt, res.UpdatedAt,
		)
		if isExclusionViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("予約の作成に失敗しました: %w", err)
		}
		return nil
	})
}

// Update は自身を除外した重複判定と更新を単一トランザクションで行う。
func (r *PostgresReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		conflict, err := hasConflict(ctx, tx, res.StartTime, res.EndTime, res.ID)
		if err != nil {
			return err
		}
		if conflict {
			return ErrConflict
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE reservations
			    SET title = $2, start_time = $3, end_time = $4, updated_at = $5
			  WHERE id = $1`,
			res.ID, res.Title, res.StartTime, res.EndTime, res.UpdatedAt,
		)
		if isExclusionViolation(err) {
			return ErrConflict
		}
		if err != nil {
			return fmt.Errorf("予約の更新に失敗しました: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
		}
		if rowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// Delete は指定IDの予約を削除する。存在しない場合はErrNotFoundを返す。
func (r *PostgresReservationRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM reservations WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("予約の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsOwner は予約の所有者がuserIDかどうかを返す。
func (r *PostgresReservationRepo) IsOwner(ctx context.Context, reservationID, userID string) (bool, error) {
	var ownerID string
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id::text FROM reservations WHERE id = $1`,
		reservationID,
	).Scan(&ownerID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("予約所有者の取得に失敗しました: %w", err)
	}
	return ownerID == userID, nil
}

// inTx はREAD COMMITTEDのトランザクション内でfnを実行する。
// fnがエラーを返した場合はロールバックする。
func (r *PostgresReservationRepo) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		if isExclusionViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// list は予約一覧クエリを実行して結果を返す。
func (r *PostgresReservationRepo) list(ctx context.Context, label, query string, args ...any) ([]model.ReservationWithOwner, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%sの取得に失敗しました: %w", label, err)
	}
	defer rows.Close()

	results := []model.ReservationWithOwner{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("%sの読み取りに失敗しました: %w", label, err)
		}
		results = append(results, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%sの走査に失敗しました: %w", label, err)
	}
	return results, nil
}

// hasConflict はqを使って重複判定を実行する。トランザクション内外で共用する。
func hasConflict(ctx context.Context, q rowQuerier, start, end time.Time, excludeID string) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, conflictQuery, start, end, excludeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("予約の重複判定に失敗しました: %w", err)
	}
	return exists, nil
}

// scanReservation は reservationSelect の1行を読み取る。
func scanReservation(s rowScanner) (*model.ReservationWithOwner, error) {
	res := &model.ReservationWithOwner{}
	var status string
	err := s.Scan(
		&res.ID, &res.Title, &res.StartTime, &res.EndTime, &res.UserID, &res.CreatedAt, &res.UpdatedAt,
		&res.OwnerName, &res.OwnerLastName, &res.OwnerEmail, &status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	res.OwnerStatus = model.AccountStatus(status)
	return res, nil
}

// compile-time interface check
var _ ReservationRepository = (*PostgresReservationRepo)(nil)
