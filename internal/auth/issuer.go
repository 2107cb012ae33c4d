package auth

import (
	"net/http"
	"time"

	"github.com/yourusername/dvorak-admin/internal/cipher"
)

const (
	// CookieName はセッショントークンを運ぶクッキー名です。
	CookieName = "LOGIN"

	sessionPath = "/"
)

var maxSessionLifetime = 7 * 24 * time.Hour

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(maxSessionLifetime.Seconds())
}

// Issuer はログイン・ログアウト時のクッキーを組み立てます。
// 属性（Secure, HttpOnly, SameSite=Strict など）は固定で、呼び出しごとに変更できません。
type Issuer struct {
	cipher cipher.Cipher
}

// NewIssuer は Issuer を作成します。c はゲートと同じインスタンスを渡してください。
func NewIssuer(c cipher.Cipher) *Issuer {
	return &Issuer{cipher: c}
}

// Issue はユーザー情報をトークン化したセッションクッキーを返します。
func (i *Issuer) Issue(identity UserIdentity) (*http.Cookie, error) {
	token, err := EncodeToken(identity, i.cipher)
	if err != nil {
		return nil, err
	}
	return &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     sessionPath,
		MaxAge:   SessionMaxAgeSeconds(),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}, nil
}

// Revoke はセッションクッキーを即時に失効させるクッキーを返します。
func (i *Issuer) Revoke() *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     sessionPath,
		MaxAge:   -1, // Max-Age=0 として出力される
		Expires:  time.Unix(0, 0),
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
