// Package jobs wires the background work: cron-scheduled integrity scans over
// the ledger and inventory projections and audit retention cleanup.
package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity recomputes per-account entry sums and reports
	// drift against the cached balances.
	TaskLedgerIntegrity = "ledger:integrity"
	// TaskInventoryIntegrity compares lot remainders against stock rows.
	TaskInventoryIntegrity = "inventory:integrity"
	// TaskAuditCleanup removes audit rows past the retention window.
	TaskAuditCleanup = "audit:cleanup"
)

// ScanPayload carries scheduling metadata for the integrity scans.
type ScanPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewLedgerIntegrityTask constructs an Asynq task for the ledger scan.
func NewLedgerIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// NewInventoryIntegrityTask constructs an Asynq task for the inventory scan.
func NewInventoryIntegrityTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(ScanPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryIntegrity, body, asynq.Queue(QueueDefault)), nil
}

// CleanupPayload carries the retention window for audit cleanup.
type CleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAuditCleanupTask constructs an Asynq task for audit retention cleanup.
func NewAuditCleanupTask(retention time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditCleanup, body, asynq.Queue(QueueDefault)), nil
}
