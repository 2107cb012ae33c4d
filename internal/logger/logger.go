// Package logger は log/slog を使った構造化ログの初期化と属性ヘルパーを提供します。
package logger

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// New は gin のモードに応じたロガーを作成します。
// release モードでは JSON、それ以外ではテキスト形式で出力します。
func New(w io.Writer, mode string, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if mode == gin.ReleaseMode {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel はログレベル文字列を slog.Level に変換します。不明な値は Info として扱います。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// 以下の属性ヘルパーは nil や空文字を受け取ると空の Attr を返すため、
// 呼び出し側でチェックせずにそのまま渡せます。

// Error はエラー属性を作成します。
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Component はコンポーネント名の属性を作成します。
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Method は HTTP メソッドの属性を作成します。
func Method(method string) slog.Attr {
	return slog.String("method", method)
}

// Path は URL パスの属性を作成します。
func Path(path string) slog.Attr {
	return slog.String("path", path)
}

// StatusCode は HTTP ステータスコードの属性を作成します。
func StatusCode(code int) slog.Attr {
	return slog.Int("status_code", code)
}

// Latency は処理時間の属性を作成します。
func Latency(d time.Duration) slog.Attr {
	return slog.Duration("latency", d)
}

// ClientIP はクライアントIPの属性を作成します。
func ClientIP(ip string) slog.Attr {
	if ip == "" {
		return slog.Attr{}
	}
	return slog.String("client_ip", ip)
}

// RequestID はリクエストIDの属性を作成します。
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// UserID はユーザーIDの属性を作成します。
func UserID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("user_id", id)
}

// Reason は失敗理由の属性を作成します。
func Reason(reason string) slog.Attr {
	if reason == "" {
		return slog.Attr{}
	}
	return slog.String("reason", reason)
}
