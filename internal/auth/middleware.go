// Package auth は認証・認可機能を提供します。
package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/dvorak-admin/internal/cipher"
	"github.com/yourusername/dvorak-admin/internal/logger"
)

const defaultLoginPath = "/login"

// Gate はページ遷移のリクエストを検証し、未ログインならログイン画面へリダイレクトします。
type Gate struct {
	cipher    cipher.Cipher
	loginPath string
	logger    *slog.Logger
}

// GateOption は Gate の設定を変更します。
type GateOption func(*Gate)

// WithLoginPath はリダイレクト先（かつ検証対象外）のパスを指定します。
func WithLoginPath(path string) GateOption {
	return func(g *Gate) {
		if path != "" {
			g.loginPath = path
		}
	}
}

// WithGateLogger はゲートのロガーを指定します。
func WithGateLogger(log *slog.Logger) GateOption {
	return func(g *Gate) {
		if log != nil {
			g.logger = log
		}
	}
}

// NewGate は Gate を作成します。c は Issuer と同じインスタンスを渡してください。
func NewGate(c cipher.Cipher, opts ...GateOption) *Gate {
	g := &Gate{
		cipher:    c,
		loginPath: defaultLoginPath,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// IsExempt はリダイレクトによる保護の対象外かを返します。
// HTML を受け付けないリクエスト（API 呼び出しなど）とログイン画面自体が対象外です。
func (g *Gate) IsExempt(r *http.Request) bool {
	if r.URL.Path == g.loginPath {
		return true
	}
	return !strings.Contains(r.Header.Get("Accept"), "text/html")
}

// Handler はゲートのミドルウェアを返します。
func (g *Gate) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, reason := g.identify(c)
		if reason == "" {
			c.Request = attachIdentity(c.Request, identity)
			c.Next()
			return
		}

		if g.IsExempt(c.Request) {
			c.Next()
			return
		}

		// 失敗理由の種類だけを残し、クッキーの値は出力しない
		g.logger.LogAttrs(c.Request.Context(), slog.LevelDebug, "request rejected by gate",
			logger.Component("auth"),
			logger.Path(c.Request.URL.Path),
			logger.Reason(reason),
		)
		c.Redirect(http.StatusFound, g.loginPath)
		c.Abort()
	}
}

// identify はクッキーからユーザー情報を復元します。失敗時は理由の種類を返します。
func (g *Gate) identify(c *gin.Context) (UserIdentity, string) {
	// gin の c.Cookie は値を URL デコードし '+' を空白に変えるため使わない
	cookie, err := c.Request.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return UserIdentity{}, "missing_cookie"
	}

	identity, err := DecodeToken(cookie.Value, g.cipher)
	switch {
	case err == nil:
		return identity, ""
	case errors.Is(err, ErrTokenMalformed):
		return UserIdentity{}, "malformed_token"
	case errors.Is(err, ErrTokenCipher):
		return UserIdentity{}, "cipher_failure"
	default:
		return UserIdentity{}, "invalid_identity"
	}
}
