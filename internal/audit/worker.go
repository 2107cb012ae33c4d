package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

func (m *Manager) handleRecordTask(ctx context.Context, task *asynq.Task) error {
	var event Event
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		// 壊れたペイロードは再試行しても直らない
		return fmt.Errorf("invalid audit payload: %v: %w", err, asynq.SkipRetry)
	}
	if event.ID == "" || event.Type == "" {
		return fmt.Errorf("audit payload missing id or type: %w", asynq.SkipRetry)
	}
	return m.store.Append(ctx, &event)
}
