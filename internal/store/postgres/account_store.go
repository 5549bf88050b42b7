package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinpilot/coinpilot/internal/domain"
)

// AccountStore implements domain.AccountStore using PostgreSQL. Balance
// mutations happen exclusively inside ledger transactions.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates an AccountStore backed by the given connection pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Get returns the shared cash account.
func (s *AccountStore) Get(ctx context.Context) (domain.Account, error) {
	var a domain.Account
	err := s.pool.QueryRow(ctx,
		`SELECT id, balance, updated_at FROM account WHERE id = $1`, accountID,
	).Scan(&a.ID, &a.Balance, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, fmt.Errorf("postgres: get account: %w", err)
	}
	return a, nil
}

// SetBalance overwrites the balance outside a ledger transaction. Intended
// for operator seeding only.
func (s *AccountStore) SetBalance(ctx context.Context, balance float64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO account (id, balance, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET balance = EXCLUDED.balance, updated_at = NOW()`,
		accountID, balance)
	if err != nil {
		return fmt.Errorf("postgres: set balance: %w", err)
	}
	return nil
}
