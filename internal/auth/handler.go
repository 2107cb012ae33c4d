package auth

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/dvorak-admin/internal/audit"
	"github.com/yourusername/dvorak-admin/internal/logger"
)

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// Login は POST /login のハンドラーです。
// フォームまたは JSON の username と password を受け取り、成功時はクッキーを発行して管理画面へリダイレクトします。
func (m *Manager) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "username と password を送ってください",
		})
		return
	}

	ctx := c.Request.Context()
	ip := c.ClientIP()

	retryAfter, err := m.limiter.Check(ctx, ip)
	if err != nil {
		// 保存先の障害でログインできなくなるのは避ける
		m.logger.Warn("attempt limiter check failed", logger.Component("auth"), logger.Error(err))
	}
	if retryAfter > 0 {
		m.record(c, audit.EventLoginLocked, req.Username, "")
		// Retry-After は秒数またはHTTP-Date形式が推奨されているため秒数で返す
		c.Header("Retry-After", strconv.FormatInt(int64(math.Ceil(retryAfter.Seconds())), 10))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"code":    "TOO_MANY_ATTEMPTS",
			"message": "一定時間後に再度お試しください",
		})
		return
	}

	identity, err := m.validator.ValidateCredentials(ctx, req.Username, req.Password)
	if err != nil {
		if !errors.Is(err, ErrIdentityNotFound) {
			m.logger.Error("credential validation failed", logger.Component("auth"), logger.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "SERVER_MISCONFIGURATION",
				"message": "認証処理でエラーが発生しました",
			})
			return
		}

		remaining, lerr := m.limiter.RecordFailure(ctx, ip)
		if lerr != nil {
			m.logger.Warn("attempt limiter record failed", logger.Component("auth"), logger.Error(lerr))
		}
		m.record(c, audit.EventLoginFailed, req.Username, "")
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":              "INVALID_CREDENTIALS",
			"message":           "ユーザー名またはパスワードが正しくありません",
			"remainingAttempts": remaining,
		})
		return
	}

	if err := m.limiter.Reset(ctx, ip); err != nil {
		m.logger.Warn("attempt limiter reset failed", logger.Component("auth"), logger.Error(err))
	}

	cookie, err := m.issuer.Issue(identity)
	if err != nil {
		m.logger.Error("session token generation failed", logger.Component("auth"), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "TOKEN_GENERATION_FAILED",
			"message": "セッションの発行に失敗しました",
		})
		return
	}

	http.SetCookie(c.Writer, cookie)
	m.record(c, audit.EventLoginSucceeded, identity.Username(), identity.ID())
	c.Redirect(http.StatusFound, m.adminPath)
}

// Logout は POST /logout のハンドラーです。クッキーを失効させてログイン画面へリダイレクトします。
func (m *Manager) Logout(c *gin.Context) {
	http.SetCookie(c.Writer, m.issuer.Revoke())
	if identity, err := Authenticated(c); err == nil {
		m.record(c, audit.EventLogout, identity.Username(), identity.ID())
	}
	c.Redirect(http.StatusFound, m.loginPath)
}

func (m *Manager) record(c *gin.Context, eventType audit.EventType, username, userID string) {
	event := audit.NewEvent(eventType)
	event.Username = username
	event.UserID = userID
	event.ClientIP = c.ClientIP()
	event.RequestID = logger.RequestIDFromContext(c.Request.Context())
	m.recorder.Record(c.Request.Context(), event)
}
