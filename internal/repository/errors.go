package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
)

// リポジトリ層のセンチネルエラー。サービス層はerrors.Isで判定する。
var (
	// ErrConflict は予約区間が既存の予約と重なる場合に返る。
	ErrConflict = errors.New("reservation interval overlaps an existing reservation")
	// ErrNotFound は更新・削除対象のレコードが存在しない場合に返る。
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEmail はメールアドレスの一意制約違反で返る。
	ErrDuplicateEmail = errors.New("email already registered")
)

// PostgreSQLのSQLSTATE。
const (
	pqUniqueViolation       = pq.ErrorCode("23505")
	pqExclusionViolation    = pq.ErrorCode("23P01")
	pqSerializationFailure  = pq.ErrorCode("40001")
	pqDeadlockDetected      = pq.ErrorCode("40P01")
	pqQueryCanceled         = pq.ErrorCode("57014")
	pqAdminShutdown         = pq.ErrorCode("57P01")
	pqTooManyConnections    = pq.ErrorCode("53300")
	pqConnectionExceptClass = pq.ErrorClass("08")
)

// IsRetriable はストレージ層のエラーが一時的な障害（タイムアウト、接続断、
// 直列化失敗）によるものかを判定する。該当する場合、呼び出し側は再試行してよい。
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected, pqQueryCanceled,
			pqAdminShutdown, pqTooManyConnections:
			return true
		}
		return pqErr.Code.Class() == pqConnectionExceptClass
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// isExclusionViolation は排他制約（予約区間の重複禁止）違反かどうかを判定する。
func isExclusionViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqExclusionViolation
}

// isUniqueViolation は一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
