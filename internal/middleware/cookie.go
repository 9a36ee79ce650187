package middleware

import (
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
)

// SessionCookieName はセッションIDを保持するCookieの名前。
const SessionCookieName = "session_id"

// CookieConfig はセッションCookieの属性。
type CookieConfig struct {
	Domain string
	Secure bool
	MaxAge int // 秒
}

// CookieCodec はセッションIDをHMAC署名付きのCookie値に変換する。
// 署名が一致しない値は改ざんとして拒否する。
type CookieCodec struct {
	sc     *securecookie.SecureCookie
	config CookieConfig
}

// NewCookieCodec はsecretを署名鍵とするCookieCodecを生成する。
func NewCookieCodec(secret []byte, config CookieConfig) *CookieCodec {
	sc := securecookie.New(secret, nil)
	sc.MaxAge(config.MaxAge)
	return &CookieCodec{sc: sc, config: config}
}

// SetSession は署名したセッションIDをCookieとして設定する。
func (c *CookieCodec) SetSession(w http.ResponseWriter, sessionID string) error {
	value, err := c.sc.Encode(SessionCookieName, sessionID)
	if err != nil {
		return fmt.Errorf("failed to encode session cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   c.config.Domain,
		MaxAge:   c.config.MaxAge,
		HttpOnly: true,
		Secure:   c.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearSession はセッションCookieを削除する。
func (c *CookieCodec) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   c.config.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionID はリクエストのCookieから署名を検証したセッションIDを取り出す。
func (c *CookieCodec) SessionID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return "", err
	}
	var sessionID string
	if err := c.sc.Decode(SessionCookieName, cookie.Value, &sessionID); err != nil {
		return "", fmt.Errorf("invalid session cookie: %w", err)
	}
	if sessionID == "" {
		return "", fmt.Errorf("empty session id")
	}
	return sessionID, nil
}
