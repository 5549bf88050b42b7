package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coinpilot/coinpilot/internal/domain"
)

type fakeArchiver struct {
	tradeCount int64
	auditCount int64
	tradeErr   error
}

func (f *fakeArchiver) ArchiveTrades(context.Context, time.Time) (int64, error) {
	return f.tradeCount, f.tradeErr
}

func (f *fakeArchiver) ArchiveAudit(context.Context, time.Time) (int64, error) {
	return f.auditCount, nil
}

type fakeTradeStore struct {
	deleted int
}

func (f *fakeTradeStore) List(context.Context, string, domain.ListOpts) ([]domain.Trade, error) {
	return nil, nil
}
func (f *fakeTradeStore) ListBySide(context.Context, string, domain.OrderSide, domain.ListOpts) ([]domain.Trade, error) {
	return nil, nil
}
func (f *fakeTradeStore) ListBefore(context.Context, time.Time, int) ([]domain.Trade, error) {
	return nil, nil
}
func (f *fakeTradeStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	f.deleted++
	return 3, nil
}
func (f *fakeTradeStore) SumRealizedPnL(context.Context, time.Time) (float64, error) {
	return 0, nil
}

type fakeAuditStore struct {
	deleted int
}

func (f *fakeAuditStore) Log(context.Context, domain.RiskAudit) error { return nil }
func (f *fakeAuditStore) List(context.Context, domain.ListOpts) ([]domain.RiskAudit, error) {
	return nil, nil
}
func (f *fakeAuditStore) ListBefore(context.Context, time.Time, int) ([]domain.RiskAudit, error) {
	return nil, nil
}
func (f *fakeAuditStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	f.deleted++
	return 2, nil
}

type fakeCandleStore struct {
	deleted int
}

func (f *fakeCandleStore) UpsertBatch(context.Context, []domain.Candle) error { return nil }
func (f *fakeCandleStore) ListRecent(context.Context, string, domain.Interval, int) ([]domain.Candle, error) {
	return nil, nil
}
func (f *fakeCandleStore) LatestClose(context.Context, string, domain.Interval) (float64, time.Time, error) {
	return 0, time.Time{}, domain.ErrNotFound
}
func (f *fakeCandleStore) DeleteBefore(context.Context, time.Time) (int64, error) {
	f.deleted++
	return 100, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestRetentionPrunesAfterArchive(t *testing.T) {
	trades := &fakeTradeStore{}
	audit := &fakeAuditStore{}
	candles := &fakeCandleStore{}
	r := NewRetention(&fakeArchiver{tradeCount: 10, auditCount: 5},
		trades, audit, candles, 30*24*time.Hour, 14*24*time.Hour, discardLogger())

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 1, trades.deleted)
	assert.Equal(t, 1, audit.deleted)
	assert.Equal(t, 1, candles.deleted)
}

// Rows must never be pruned when the export did not happen.
func TestRetentionSkipsPruneWhenNothingArchived(t *testing.T) {
	trades := &fakeTradeStore{}
	audit := &fakeAuditStore{}
	r := NewRetention(&fakeArchiver{tradeCount: 0, auditCount: 0},
		trades, audit, &fakeCandleStore{}, 30*24*time.Hour, 0, discardLogger())

	require.NoError(t, r.Run(context.Background()))
	assert.Zero(t, trades.deleted)
	assert.Zero(t, audit.deleted)
}

func TestRetentionStopsOnArchiveError(t *testing.T) {
	trades := &fakeTradeStore{}
	r := NewRetention(&fakeArchiver{tradeErr: errors.New("bucket unreachable")},
		trades, &fakeAuditStore{}, &fakeCandleStore{}, 30*24*time.Hour, 0, discardLogger())

	require.Error(t, r.Run(context.Background()))
	assert.Zero(t, trades.deleted)
}

func TestRetentionDisabledByZeroDurations(t *testing.T) {
	trades := &fakeTradeStore{}
	candles := &fakeCandleStore{}
	r := NewRetention(&fakeArchiver{tradeCount: 10}, trades, &fakeAuditStore{}, candles,
		0, 0, discardLogger())

	require.NoError(t, r.Run(context.Background()))
	assert.Zero(t, trades.deleted)
	assert.Zero(t, candles.deleted)
}
