package audit

import (
	"context"
	"log/slog"

	"github.com/yourusername/dvorak-admin/internal/logger"
)

// Recorder は監査イベントを記録します。記録の失敗は呼び出し元に返しません。
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// LogRecorder はイベントを構造化ログとして出力するだけの Recorder です。
type LogRecorder struct {
	Logger *slog.Logger
}

// Record はイベントをログに出力します。
func (r LogRecorder) Record(ctx context.Context, event Event) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	log.LogAttrs(ctx, slog.LevelInfo, "audit event",
		logger.Component("audit"),
		slog.String("event_id", event.ID),
		slog.String("event_type", string(event.Type)),
		logger.UserID(event.UserID),
		logger.ClientIP(event.ClientIP),
		logger.RequestID(event.RequestID),
	)
}
