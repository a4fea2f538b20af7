package bootstrap

import (
	"context"
	"time"

	"github.com/kirillkom/wheel-rag/internal/observability/metrics"
)

const taskTimeout = 5 * time.Minute

// TaskHandler runs one ingest task with a deadline and, when wm is set,
// records queue lag, duration and the terminal status.
func (a *App) TaskHandler(service string, wm *metrics.WorkerMetrics) func(context.Context, string) error {
	return func(ctx context.Context, taskID string) error {
		runCtx, cancel := context.WithTimeout(ctx, taskTimeout)
		defer cancel()
		if wm == nil {
			return a.Tasks.Run(runCtx, taskID)
		}

		mode := ""
		if task, err := a.Tasks.Get(runCtx, taskID); err == nil {
			mode = string(task.Mode)
			wm.ObserveQueueLag(service, time.Since(task.CreatedAt))
		}

		wm.StartTask()
		started := time.Now()
		runErr := a.Tasks.Run(runCtx, taskID)

		status := "error"
		if task, err := a.Tasks.Get(ctx, taskID); err == nil {
			status = string(task.Status)
			mode = string(task.Mode)
		}
		wm.FinishTask(service, mode, status, time.Since(started))
		return runErr
	}
}
