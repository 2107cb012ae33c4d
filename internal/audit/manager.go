package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/yourusername/dvorak-admin/internal/config"
	"github.com/yourusername/dvorak-admin/internal/logger"
)

const (
	taskTypeRecord = "audit:record"
	queueName      = "audit"
)

var _ Recorder = (*Manager)(nil)

// Manager は監査イベントを Asynq のキューに投入し、ワーカーで Store に保存します。
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	store  *Store
	logger *slog.Logger
}

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, store *Store, log *slog.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if log == nil {
		log = slog.Default()
	}
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: cfg.AuditConcurrency,
			Queues: map[string]int{
				queueName: 1,
			},
			LogLevel: asynq.WarnLevel,
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client: client,
		server: server,
		mux:    mux,
		store:  store,
		logger: log,
	}
	mux.HandleFunc(taskTypeRecord, manager.handleRecordTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			m.logger.Error("asynq server stopped with error", logger.Component("audit"), logger.Error(err))
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	return m.client.Close()
}

// Record はイベントをキューに投入します。
// 投入に失敗した場合はイベントをログに残して処理を続けます。
func (m *Manager) Record(ctx context.Context, event Event) {
	if err := m.enqueue(context.WithoutCancel(ctx), event); err != nil {
		m.logger.Warn("failed to enqueue audit event", logger.Component("audit"), logger.Error(err))
		LogRecorder{Logger: m.logger}.Record(ctx, event)
	}
}

// Recent は保存済みのイベントを新しい順に返します。
func (m *Manager) Recent(ctx context.Context, limit int) ([]Event, error) {
	return m.store.Recent(ctx, limit)
}

func (m *Manager) enqueue(ctx context.Context, event Event) error {
	if event.ID == "" {
		return fmt.Errorf("event.ID is required")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskTypeRecord, body, asynq.Queue(queueName))
	_, err = m.client.EnqueueContext(ctx, task, asynq.MaxRetry(3))
	return err
}
