package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// AuditStore implements domain.AuditStore using PostgreSQL.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates an AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

const auditSelectCols = `id, symbol, check_name, reason, amount, created_at`

func scanAudits(rows pgx.Rows) ([]domain.RiskAudit, error) {
	var entries []domain.RiskAudit
	for rows.Next() {
		var a domain.RiskAudit
		if err := rows.Scan(&a.ID, &a.Symbol, &a.Check, &a.Reason,
			&a.Amount, &a.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, a)
	}
	return entries, rows.Err()
}

// Log appends one violation row.
func (s *AuditStore) Log(ctx context.Context, entry domain.RiskAudit) error {
	created := entry.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO risk_audit (symbol, check_name, reason, amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.Symbol, entry.Check, entry.Reason, entry.Amount, created)
	if err != nil {
		return fmt.Errorf("postgres: log audit: %w", err)
	}
	return nil
}

// List returns violations, newest first.
func (s *AuditStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.RiskAudit, error) {
	query := `SELECT ` + auditSelectCols + ` FROM risk_audit WHERE TRUE`
	var args []any
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit: %w", err)
	}
	defer rows.Close()

	entries, err := scanAudits(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan audit: %w", err)
	}
	return entries, nil
}

// ListBefore returns up to limit entries created before the cutoff, oldest
// first, for archival.
func (s *AuditStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.RiskAudit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+auditSelectCols+` FROM risk_audit
		WHERE created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit before: %w", err)
	}
	defer rows.Close()

	entries, err := scanAudits(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan audit before: %w", err)
	}
	return entries, nil
}

// DeleteBefore prunes archived entries and reports how many went.
func (s *AuditStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM risk_audit WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete audit: %w", err)
	}
	return tag.RowsAffected(), nil
}
