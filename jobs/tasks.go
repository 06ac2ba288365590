package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerReconcile sweeps stock rows against the adjustment log.
	TaskLedgerReconcile = "ledger:reconcile"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "ledger:idempotency_cleanup"
)

// ReconcilePayload carries scheduling metadata for the drift sweep.
type ReconcilePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Limit        int       `json:"limit,omitempty"`
}

// NewReconcileTask constructs an Asynq task for the reconciliation sweep.
func NewReconcileTask(at time.Time, limit int) (*asynq.Task, error) {
	body, err := json.Marshal(ReconcilePayload{ScheduledFor: at, Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, body, asynq.Queue(QueueDefault)), nil
}

// IdempotencyCleanupPayload sets the retention window for key pruning.
type IdempotencyCleanupPayload struct {
	OlderThan time.Duration `json:"older_than"`
}

// NewIdempotencyCleanupTask constructs the cleanup task.
func NewIdempotencyCleanupTask(olderThan time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{OlderThan: olderThan})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault)), nil
}
