package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/bsm/redislock"
	"github.com/hibiken/asynq"
	"github.com/shopspring/decimal"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// LedgerDrift reports one account whose cached balance disagrees with the
// signed sum of its non-cancelled entries.
type LedgerDrift struct {
	AccountID int64
	Cached    decimal.Decimal
	Computed  decimal.Decimal
}

// InventoryDrift reports one variant/warehouse pair whose stock quantity
// disagrees with the sum of lot remainders.
type InventoryDrift struct {
	VariantID   int64
	WarehouseID int64
	Stock       decimal.Decimal
	LotSum      decimal.Decimal
}

// IntegrityStore provides the projection comparisons the scans run on.
type IntegrityStore interface {
	LedgerDrift(ctx context.Context) ([]LedgerDrift, error)
	InventoryDrift(ctx context.Context) ([]InventoryDrift, error)
}

// AuditCleaner removes audit rows past retention.
type AuditCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IntegrityRunner executes the scans under a distributed lock so two workers
// never run the same scan at once. Drift never heals automatically; it is
// reported for operators to investigate.
type IntegrityRunner struct {
	store   IntegrityStore
	cleaner AuditCleaner
	locker  *redislock.Client
	logger  *slog.Logger
	metrics *observability.Metrics
	lockTTL time.Duration
}

// NewIntegrityRunner constructs IntegrityRunner.
func NewIntegrityRunner(store IntegrityStore, cleaner AuditCleaner, locker *redislock.Client, logger *slog.Logger, metrics *observability.Metrics) *IntegrityRunner {
	return &IntegrityRunner{
		store:   store,
		cleaner: cleaner,
		locker:  locker,
		logger:  logger,
		metrics: metrics,
		lockTTL: 5 * time.Minute,
	}
}

func (r *IntegrityRunner) withLock(ctx context.Context, scan string, fn func(context.Context) error) error {
	if r.locker == nil {
		return fn(ctx)
	}
	lock, err := r.locker.Obtain(ctx, shared.IntegrityLockKey(scan), r.lockTTL, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			r.logger.Info("scan already running elsewhere", slog.String("scan", scan))
			return nil
		}
		return err
	}
	defer func() { _ = lock.Release(ctx) }()
	return fn(ctx)
}

// HandleLedgerIntegrity processes TaskLedgerIntegrity tasks.
func (r *IntegrityRunner) HandleLedgerIntegrity(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return r.withLock(ctx, "ledger", func(ctx context.Context) error {
		drifts, err := r.store.LedgerDrift(ctx)
		if err != nil {
			return err
		}
		if r.metrics != nil {
			r.metrics.LedgerDrift.Set(float64(len(drifts)))
		}
		for _, d := range drifts {
			r.logger.Error("ledger balance drift",
				slog.Int64("account_id", d.AccountID),
				slog.String("cached", d.Cached.String()),
				slog.String("computed", d.Computed.String()))
		}
		r.logger.Info("ledger integrity scan complete", slog.Int("drift_accounts", len(drifts)))
		return nil
	})
}

// HandleInventoryIntegrity processes TaskInventoryIntegrity tasks.
func (r *IntegrityRunner) HandleInventoryIntegrity(ctx context.Context, t *asynq.Task) error {
	var payload ScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	return r.withLock(ctx, "inventory", func(ctx context.Context) error {
		drifts, err := r.store.InventoryDrift(ctx)
		if err != nil {
			return err
		}
		if r.metrics != nil {
			r.metrics.InventoryDrift.Set(float64(len(drifts)))
		}
		for _, d := range drifts {
			r.logger.Error("stock drift",
				slog.Int64("variant_id", d.VariantID),
				slog.Int64("warehouse_id", d.WarehouseID),
				slog.String("stock", d.Stock.String()),
				slog.String("lot_sum", d.LotSum.String()))
		}
		r.logger.Info("inventory integrity scan complete", slog.Int("drift_pairs", len(drifts)))
		return nil
	})
}

// HandleAuditCleanup processes TaskAuditCleanup tasks.
func (r *IntegrityRunner) HandleAuditCleanup(ctx context.Context, t *asynq.Task) error {
	var payload CleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Retention <= 0 {
		return asynq.SkipRetry
	}
	return r.withLock(ctx, "audit-cleanup", func(ctx context.Context) error {
		purged, err := r.cleaner.Cleanup(ctx, payload.Retention)
		if err != nil {
			return err
		}
		if r.metrics != nil {
			r.metrics.AuditPurged.Add(float64(purged))
		}
		r.logger.Info("audit cleanup complete", slog.Int64("purged", purged))
		return nil
	})
}
