// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/roombook/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	requesterContextKey = contextKey("requester")
	sessionIDContextKey = contextKey("session_id")
)

// UserResolver はセッションIDから現在のユーザーを解決するインターフェース。
// 期限切れ・存在しないセッションはUNAUTHORIZED、匿名化済みアカウントは
// ACCOUNT_DELETEDのAPIErrorを返す。
type UserResolver interface {
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// NewSessionMiddleware は署名付きCookieからセッションを読み取り、
// 要求者をリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストには401を返す。
func NewSessionMiddleware(codec *CookieCodec, resolver UserResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID, err := codec.SessionID(r)
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			user, err := resolver.GetCurrentUser(r.Context(), sessionID)
			if err != nil {
				WriteError(w, err)
				return
			}

			requester := model.Requester{
				ID:         user.ID,
				Email:      user.Email,
				Anonymized: user.IsAnonymized(),
			}
			annotateUser(r.Context(), requester.ID)

			ctx := ContextWithRequester(r.Context(), requester)
			ctx = context.WithValue(ctx, sessionIDContextKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequesterFromContext はリクエストコンテキストから要求者を取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func RequesterFromContext(ctx context.Context) (model.Requester, error) {
	requester, ok := ctx.Value(requesterContextKey).(model.Requester)
	if !ok || requester.ID == "" {
		return model.Requester{}, fmt.Errorf("requester not found in context")
	}
	return requester, nil
}

// ContextWithRequester はコンテキストに要求者を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithRequester(ctx context.Context, requester model.Requester) context.Context {
	return context.WithValue(ctx, requesterContextKey, requester)
}

// SessionIDFromContext はセッションミドルウェアが検証したセッションIDを返す。
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDContextKey).(string)
	return id
}
