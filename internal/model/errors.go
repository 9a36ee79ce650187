// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, reservation, system
	Action   string // ユーザー向け対処方法
	Err      error  // 原因エラー（ログ用。レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeInvalidInput         = "INVALID_INPUT"
	ErrCodePastDate             = "PAST_DATE"
	ErrCodeTooShort             = "TOO_SHORT"
	ErrCodeOutsideBusinessHours = "OUTSIDE_BUSINESS_HOURS"
	ErrCodeWeekend              = "WEEKEND"
	ErrCodeConflict             = "CONFLICT"
	ErrCodeForbidden            = "FORBIDDEN"
	ErrCodeReservationNotFound  = "RESERVATION_NOT_FOUND"
	ErrCodeStorage              = "STORAGE_UNAVAILABLE"
	ErrCodeUserNotFound         = "USER_NOT_FOUND"
	ErrCodeEmailAlreadyUsed     = "EMAIL_ALREADY_USED"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeAccountDeleted       = "ACCOUNT_DELETED"
	ErrCodeRateLimited          = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRF                 = "CSRF_TOKEN_INVALID"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// IsValidationCode は予約検証エラー（ValidationError群）のコードかどうかを判定する。
func IsValidationCode(code string) bool {
	switch code {
	case ErrCodeInvalidInput, ErrCodePastDate, ErrCodeTooShort,
		ErrCodeOutsideBusinessHours, ErrCodeWeekend:
		return true
	default:
		return false
	}
}

// NewInvalidInputError は入力不正エラーを生成する。
func NewInvalidInputError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "タイトル（22文字以内）、開始日時、終了日時を正しい形式で入力してください。",
	}
}

// NewPastDateError は過去日時の予約エラーを生成する。
func NewPastDateError() *APIError {
	return &APIError{
		Code:     ErrCodePastDate,
		Message:  "過去の日時は予約できません。",
		Category: "validation",
		Action:   "現在以降の日時を選択してください。",
	}
}

// NewTooShortError は最低予約時間未満のエラーを生成する。
func NewTooShortError() *APIError {
	return &APIError{
		Code:     ErrCodeTooShort,
		Message:  "予約時間は最低1時間必要です。",
		Category: "validation",
		Action:   "終了日時を開始日時の1時間以上後に設定してください。",
	}
}

// NewOutsideBusinessHoursError は営業時間外の予約エラーを生成する。
func NewOutsideBusinessHoursError() *APIError {
	return &APIError{
		Code:     ErrCodeOutsideBusinessHours,
		Message:  "予約は8時から19時の間のみ可能です。",
		Category: "validation",
		Action:   "開始を8:00以降、終了を同日の19:00以前に設定してください。",
	}
}

// NewWeekendError は週末の予約エラーを生成する。
func NewWeekendError() *APIError {
	return &APIError{
		Code:     ErrCodeWeekend,
		Message:  "予約は月曜日から金曜日のみ可能です。",
		Category: "validation",
		Action:   "平日の日付を選択してください。",
	}
}

// NewConflictError は時間帯の重複エラーを生成する。
func NewConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  "この時間帯はすでに予約されています。",
		Category: "reservation",
		Action:   "カレンダーで空いている時間帯を確認して選択し直してください。",
	}
}

// NewForbiddenError は所有者以外による変更エラーを生成する。
// operationには "update" または "delete" を指定する。
func NewForbiddenError(operation string) *APIError {
	msg := "自分の予約のみ変更できます。"
	if operation == "delete" {
		msg = "自分の予約のみ削除できます。"
	}
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  msg,
		Category: "reservation",
		Action:   "予約の所有者に依頼してください。",
	}
}

// NewReservationNotFoundError は予約未検出エラーを生成する。
func NewReservationNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeReservationNotFound,
		Message:  fmt.Sprintf("指定された予約が見つかりません: %s", id),
		Category: "reservation",
		Action:   "予約IDを確認してください。すでに削除されている可能性があります。",
	}
}

// NewStorageError はストレージ障害（タイムアウト、接続断）エラーを生成する。
// 呼び出し側はリトライ可能なエラーとして扱う。
func NewStorageError(err error) *APIError {
	return &APIError{
		Code:     ErrCodeStorage,
		Message:  "データベースが一時的に利用できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
		Err:      err,
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewEmailAlreadyUsedError はメールアドレス重複エラーを生成する。
func NewEmailAlreadyUsedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyUsed,
		Message:  "このメールアドレスはすでに使用されています。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewInvalidCredentialsError は認証情報不一致エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewAccountDeletedError は匿名化済みアカウントによるアクセスエラーを生成する。
func NewAccountDeletedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountDeleted,
		Message:  "このアカウントは削除されています。",
		Category: "auth",
		Action:   "新しいアカウントを登録してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewCSRFError はCSRFトークン検証エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はレスポンスに含めない。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
