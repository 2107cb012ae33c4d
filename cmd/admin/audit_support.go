package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"

	"github.com/yourusername/dvorak-admin/internal/audit"
	"github.com/yourusername/dvorak-admin/internal/auth"
	"github.com/yourusername/dvorak-admin/internal/config"
	"github.com/yourusername/dvorak-admin/internal/logger"
)

const defaultAuditLimit = 50

// auditLister は保存済みの監査イベントを返します。
type auditLister interface {
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

// backend は Redis の有無で切り替わる試行回数制限と監査記録をまとめたものです。
type backend struct {
	limiter  auth.AttemptLimiter
	recorder audit.Recorder
	events   auditLister
	close    func()
}

// setupBackend は REDIS_URL が設定されていれば Redis と Asynq を使い、
// 未設定ならメモリ上のリミッターとログ出力のみの監査にします。
func setupBackend(cfg *config.Config, log *slog.Logger) (*backend, error) {
	if cfg.RedisURL == "" {
		log.Warn("REDIS_URL is not set; using in-memory attempt limiter and log-only audit")
		return &backend{
			limiter:  auth.NewMemoryLimiter(auth.DefaultLimiterConfig()),
			recorder: audit.LogRecorder{Logger: log},
			close:    func() {},
		}, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	redisClient := redis.NewClient(opt)

	store := audit.NewStore(redisClient, cfg.AuditRetention)
	manager, err := audit.NewManager(cfg, store, log)
	if err != nil {
		_ = redisClient.Close()
		return nil, err
	}
	manager.StartWorkers()

	return &backend{
		limiter:  auth.NewRedisLimiter(redisClient, auth.DefaultLimiterConfig()),
		recorder: manager,
		events:   manager,
		close: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := manager.Shutdown(ctx); err != nil {
				log.Warn("failed to stop audit workers", logger.Component("audit"), logger.Error(err))
			}
			_ = redisClient.Close()
		},
	}, nil
}

// auditListHandler は GET /api/audit のハンドラーです。
func auditListHandler(events auditLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		if events == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"code":    "AUDIT_UNAVAILABLE",
				"message": "監査ログの保存先が設定されていません。",
			})
			return
		}

		limit := defaultAuditLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > audit.DefaultMaxEntries {
				c.JSON(http.StatusBadRequest, gin.H{
					"code":    "INVALID_INPUT",
					"message": fmt.Sprintf("limit は 1 から %d の整数で指定してください。", audit.DefaultMaxEntries),
				})
				return
			}
			limit = n
		}

		list, err := events.Recent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "INTERNAL_ERROR",
				"message": "監査ログの取得に失敗しました。",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"events": list})
	}
}
