package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// archiveBatchSize bounds one database page during export.
const archiveBatchSize = 5000

// ArchiveImpl implements domain.Archiver by exporting aged rows as JSONL to
// object storage. Deletion from the primary store is a separate, explicit
// step executed by the retention job only after the upload succeeded.
type ArchiveImpl struct {
	writer domain.BlobWriter
	trades domain.TradeStore
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	trades domain.TradeStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		trades: trades,
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// tradeRecord is the exported JSONL shape for one fill. The indicator
// snapshot stays in the database row; the export carries the ledger facts.
type tradeRecord struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Price         float64   `json:"price"`
	Quantity      float64   `json:"quantity"`
	Amount        float64   `json:"amount"`
	Strategy      string    `json:"strategy"`
	Regime        string    `json:"regime"`
	ExitReason    string    `json:"exit_reason,omitempty"`
	EntryAvgPrice float64   `json:"entry_avg_price,omitempty"`
	RealizedPnL   float64   `json:"realized_pnl,omitempty"`
	ExecutedAt    time.Time `json:"executed_at"`
}

type auditRecord struct {
	ID        int64     `json:"id"`
	Symbol    string    `json:"symbol"`
	Check     string    `json:"check"`
	Reason    string    `json:"reason"`
	Amount    float64   `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// ArchiveTrades exports every trade executed before the cutoff to
// archive/trades/YYYY-MM.jsonl and returns the exported count.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	// One batch per run; anything beyond it is picked up by the next
	// retention pass after the exported rows have been pruned.
	page, err := a.trades.ListBefore(ctx, before, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	records := make([]tradeRecord, 0, len(page))
	for _, t := range page {
		records = append(records, tradeRecord{
			ID:            t.ID,
			Symbol:        t.Symbol,
			Side:          string(t.Side),
			Price:         t.Price,
			Quantity:      t.Quantity,
			Amount:        t.Amount,
			Strategy:      t.Strategy,
			Regime:        string(t.Regime),
			ExitReason:    string(t.ExitReason),
			EntryAvgPrice: t.EntryAvgPrice,
			RealizedPnL:   t.RealizedPnL,
			ExecutedAt:    t.ExecutedAt,
		})
	}

	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades marshal: %w", err)
	}

	path := archivePath("trades", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades upload: %w", err)
	}

	count := int64(len(records))
	a.logger.Info("trades archived",
		slog.String("path", path), slog.Int64("count", count))
	return count, nil
}

// ArchiveAudit exports risk-audit rows created before the cutoff to
// archive/audit/YYYY-MM.jsonl and returns the exported count.
func (a *ArchiveImpl) ArchiveAudit(ctx context.Context, before time.Time) (int64, error) {
	entries, err := a.audit.ListBefore(ctx, before, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit query: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	records := make([]auditRecord, len(entries))
	for i, e := range entries {
		records[i] = auditRecord{
			ID:        e.ID,
			Symbol:    e.Symbol,
			Check:     e.Check,
			Reason:    e.Reason,
			Amount:    e.Amount,
			CreatedAt: e.CreatedAt,
		}
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive audit marshal: %w", err)
	}

	path := archivePath("audit", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive audit upload: %w", err)
	}

	count := int64(len(records))
	a.logger.Info("audit entries archived",
		slog.String("path", path), slog.Int64("count", count))
	return count, nil
}

// archivePath builds the object key, partitioned by the cutoff's year-month:
//
//	archive/trades/2026-08.jsonl
//	archive/audit/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
