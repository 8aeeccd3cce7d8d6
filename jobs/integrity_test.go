package jobs

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type fakeStore struct {
	ledgerDrifts    []LedgerDrift
	inventoryDrifts []InventoryDrift
	ledgerCalls     int
	inventoryCalls  int
}

func (s *fakeStore) LedgerDrift(ctx context.Context) ([]LedgerDrift, error) {
	s.ledgerCalls++
	return s.ledgerDrifts, nil
}

func (s *fakeStore) InventoryDrift(ctx context.Context) ([]InventoryDrift, error) {
	s.inventoryCalls++
	return s.inventoryDrifts, nil
}

type fakeCleaner struct {
	purged    int64
	retention time.Duration
}

func (c *fakeCleaner) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	c.retention = olderThan
	return c.purged, nil
}

func newTestRunner(t *testing.T, store *fakeStore, cleaner *fakeCleaner) (*IntegrityRunner, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := redislock.New(client)
	logger := slog.New(slog.DiscardHandler)
	return NewIntegrityRunner(store, cleaner, locker, logger, observability.NewMetrics()), client
}

func TestLedgerIntegrityScanReportsDrift(t *testing.T) {
	store := &fakeStore{
		ledgerDrifts: []LedgerDrift{
			{AccountID: 7, Cached: decimal.RequireFromString("10"), Computed: decimal.RequireFromString("12")},
		},
	}
	runner, _ := newTestRunner(t, store, &fakeCleaner{})

	task, err := NewLedgerIntegrityTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, runner.HandleLedgerIntegrity(context.Background(), task))
	require.Equal(t, 1, store.ledgerCalls)
}

func TestInventoryIntegrityScanRuns(t *testing.T) {
	store := &fakeStore{
		inventoryDrifts: []InventoryDrift{
			{VariantID: 1, WarehouseID: 2, Stock: decimal.RequireFromString("5"), LotSum: decimal.RequireFromString("4")},
		},
	}
	runner, _ := newTestRunner(t, store, &fakeCleaner{})

	task, err := NewInventoryIntegrityTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, runner.HandleInventoryIntegrity(context.Background(), task))
	require.Equal(t, 1, store.inventoryCalls)
}

func TestScanSkipsWhenLockHeld(t *testing.T) {
	store := &fakeStore{}
	runner, client := newTestRunner(t, store, &fakeCleaner{})

	// Simulate another worker holding the lock.
	locker := redislock.New(client)
	lock, err := locker.Obtain(context.Background(), shared.IntegrityLockKey("ledger"), time.Minute, nil)
	require.NoError(t, err)
	defer func() { _ = lock.Release(context.Background()) }()

	task, err := NewLedgerIntegrityTask(time.Now())
	require.NoError(t, err)
	require.NoError(t, runner.HandleLedgerIntegrity(context.Background(), task))
	require.Zero(t, store.ledgerCalls, "held lock must skip the scan, not fail it")
}

func TestAuditCleanupPassesRetention(t *testing.T) {
	cleaner := &fakeCleaner{purged: 42}
	runner, _ := newTestRunner(t, &fakeStore{}, cleaner)

	task, err := NewAuditCleanupTask(90 * 24 * time.Hour)
	require.NoError(t, err)
	require.NoError(t, runner.HandleAuditCleanup(context.Background(), task))
	require.Equal(t, 90*24*time.Hour, cleaner.retention)
}
