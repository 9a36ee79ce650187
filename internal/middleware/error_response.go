package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/roombook/internal/model"
)

// StorageRetryAfterSeconds はストレージ障害時にRetry-Afterヘッダーで返す秒数。
const StorageRetryAfterSeconds = 5

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// WriteError はサービス層のエラーをHTTPレスポンスに変換して書き込む。
// APIError以外のエラーは500として扱い、詳細はログにのみ出力する。
func WriteError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		slog.Error("internal server error", slog.String("error", err.Error()))
		WriteInternalServerError(w)
		return
	}

	status := StatusForCode(apiErr.Code)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(StorageRetryAfterSeconds))
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", slog.String("error", apiErr.Error()))
	}
	WriteErrorResponse(w, status, apiErr)
}

// StatusForCode はAPIErrorコードからHTTPステータスコードにマッピングする。
func StatusForCode(code string) int {
	if model.IsValidationCode(code) {
		return http.StatusBadRequest
	}
	switch code {
	case model.ErrCodeInvalidCredentials, model.ErrCodeUnauthorized, model.ErrCodeAccountDeleted:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden, model.ErrCodeCSRF:
		return http.StatusForbidden
	case model.ErrCodeReservationNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeConflict, model.ErrCodeEmailAlreadyUsed:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeStorage:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
