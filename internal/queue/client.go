package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
)

type Client struct {
	client *asynq.Client
	queue  string
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
	}
}

// EnqueueProcessJob submits a job for background processing. Failure is
// terminal until a caller re-submits, so retries are disabled; the task
// timeout is the only latency bound applied to a processing attempt.
func (c *Client) EnqueueProcessJob(ctx context.Context, payload ProcessJobPayload) (*asynq.TaskInfo, error) {
	task, err := NewProcessJobTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(
		ctx,
		task,
		asynq.Queue(c.queue),
		asynq.MaxRetry(0),
		asynq.Timeout(5*time.Minute),
	)
}

func (c *Client) Close() error {
	return c.client.Close()
}
