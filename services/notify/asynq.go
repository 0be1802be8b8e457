package notify

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/hibiken/asynq"
	"github.com/koolaai/support_api/model"
)

const (
	TaskDeliverNotification = "notification:deliver"
	NotificationQueue       = "notifications"
)

// TaskEnqueuer is satisfied by *asynq.Client.
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type AsynqOutbox struct {
	client   TaskEnqueuer
	maxRetry int
}

var _ Outbox = (*AsynqOutbox)(nil)

func NewAsynqOutbox(client TaskEnqueuer) *AsynqOutbox {
	return &AsynqOutbox{client: client, maxRetry: 10}
}

// NewAsynqClient parses a redis:// URI the way asynq expects it.
func NewAsynqClient(redisURL string) (*asynq.Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("asynq: parse REDIS_URL: %w", err)
	}
	return asynq.NewClient(opt), nil
}

func (o *AsynqOutbox) Enqueue(ctx context.Context, n *model.Notification) (err error) {
	defer func() { observeEnqueue("asynq", err) }()

	payload, err := sonic.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: encode notification: %w", err)
	}

	task := asynq.NewTask(TaskDeliverNotification, payload)
	_, err = o.client.EnqueueContext(ctx, task,
		asynq.Queue(NotificationQueue),
		asynq.MaxRetry(o.maxRetry),
		asynq.TaskID(n.ID),
	)
	if err != nil {
		return fmt.Errorf("notify: enqueue %s: %w", n.ID, err)
	}
	return nil
}
