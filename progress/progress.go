// Package progress publishes fire-and-forget execution notifications
// for the UI.
package progress

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"codesession/model"
)

// SubjectPrefix is the NATS subject tree for task progress events.
const SubjectPrefix = "task.progress."

// NatsPublisher publishes progress messages on task.progress.<task_id>.
type NatsPublisher struct {
	nc     *nats.Conn
	logger *zap.Logger
}

func NewNatsPublisher(nc *nats.Conn, logger *zap.Logger) *NatsPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NatsPublisher{nc: nc, logger: logger}
}

func (p *NatsPublisher) Publish(taskID string, msg model.ProgressMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := p.nc.Publish(SubjectPrefix+taskID, data); err != nil {
		p.logger.Warn("failed to publish progress",
			zap.String("task_id", taskID),
			zap.Error(err))
		return err
	}
	return nil
}

// NopPublisher drops progress messages. Used by the CLI and in tests.
type NopPublisher struct{}

func (NopPublisher) Publish(string, model.ProgressMessage) error { return nil }
