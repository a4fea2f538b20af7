package nats

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/wheel-rag/internal/infrastructure/resilience"
)

// Queue carries ingestion task ids over a NATS subject. Workers share the
// "workers" queue group so each task is delivered to one of them.
type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

// Options tunes the connection. Zero values take the defaults below;
// RetryOnFailedConnect defaults to true so the API can start before NATS.
type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func (o Options) connectOptions() []nats.Option {
	connectTimeout := cmp.Or(o.ConnectTimeout, 2*time.Second)
	reconnectWait := cmp.Or(o.ReconnectWait, 2*time.Second)
	maxReconnects := cmp.Or(o.MaxReconnects, 60)
	retry := o.RetryOnFailedConnect == nil || *o.RetryOnFailedConnect

	return []nats.Option{
		nats.Name("wheel-rag"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retry),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	}
}

type taskMessage struct {
	TaskID string `json:"task_id"`
}

func New(url, subject string, options Options) (*Queue, error) {
	conn, err := nats.Connect(url, options.connectOptions()...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{conn: conn, subject: subject, executor: options.ResilienceExecutor}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishTask sends the task id as a JSON envelope.
func (q *Queue) PublishTask(ctx context.Context, taskID string) error {
	payload, err := encodeTask(taskID)
	if err != nil {
		return err
	}
	_, err = resilience.Call(ctx, q.executor, "nats.publish", func(context.Context) (struct{}, error) {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return struct{}{}, fmt.Errorf("nats publish: %w", err)
		}
		return struct{}{}, nil
	}, classifyNATSError)
	return wrapTemporaryIfNeeded(err)
}

const workerGroup = "workers"

// SubscribeTasks blocks until ctx is done, passing every delivered task id
// to handler. The subscription is drained before returning.
func (q *Queue) SubscribeTasks(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerGroup, func(msg *nats.Msg) {
		q.deliver(ctx, msg.Data, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) deliver(ctx context.Context, data []byte, handler func(context.Context, string) error) {
	if ctx.Err() != nil {
		return
	}
	taskID, err := decodeTask(data)
	if err != nil {
		slog.Error("task_message_invalid", "subject", q.subject, "error", err)
		return
	}
	if err := handler(ctx, taskID); err != nil {
		slog.Error("task_handler_failed", "subject", q.subject, "task_id", taskID, "error", err)
	}
}

func encodeTask(taskID string) ([]byte, error) {
	if taskID == "" {
		return nil, errors.New("nats publish: empty task id")
	}
	return json.Marshal(taskMessage{TaskID: taskID})
}

// decodeTask accepts the JSON envelope or a bare id.
func decodeTask(data []byte) (string, error) {
	var msg taskMessage
	if err := json.Unmarshal(data, &msg); err == nil && msg.TaskID != "" {
		return msg.TaskID, nil
	}
	if len(data) == 0 || data[0] == '{' {
		return "", fmt.Errorf("decode task message %q", data)
	}
	return string(data), nil
}
