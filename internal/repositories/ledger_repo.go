package repositories

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ads-marketplace/campaign-backend/internal/marketplace"
	"github.com/ads-marketplace/campaign-backend/internal/models"
	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LedgerRepo keeps internal token balances. It implements marketplace.TokenLedger.
type LedgerRepo struct {
	pool *pgxpool.Pool
}

func NewLedgerRepo(pool *pgxpool.Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

func (r *LedgerRepo) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	var s string
	err := r.pool.QueryRow(ctx, `
		SELECT balance::text FROM ledger_balances WHERE address = $1
	`, account.Hex()).Scan(&s)
	if errors.Is(err, pgx.ErrNoRows) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return parseNumeric(s)
}

func (r *LedgerRepo) Transfer(ctx context.Context, from, to common.Address, amount *big.Int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := transfer(ctx, tx, from, to, amount); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// transfer moves amount inside tx. The sender's row stays locked until tx ends.
func transfer(ctx context.Context, tx pgx.Tx, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative amount %s: %w", amount, marketplace.ErrInvalidParameter)
	}
	var bal string
	err := tx.QueryRow(ctx, `
		SELECT balance::text FROM ledger_balances WHERE address = $1 FOR UPDATE
	`, from.Hex()).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		bal = "0"
	} else if err != nil {
		return err
	}
	have, err := parseNumeric(bal)
	if err != nil {
		return err
	}
	if have.Cmp(amount) < 0 {
		return fmt.Errorf("%s holds %s, needs %s: %w", from.Hex(), have, amount, marketplace.ErrInsufficientBalance)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE ledger_balances SET balance = balance - $1::numeric, updated_at = now() WHERE address = $2
	`, amount.String(), from.Hex()); err != nil {
		return err
	}
	if err := credit(ctx, tx, to, amount); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_transfers (from_address, to_address, amount) VALUES ($1, $2, $3::numeric)
	`, from.Hex(), to.Hex(), amount.String())
	return err
}

// CreditDeposit records an on-chain deposit and credits its sender. It
// reports false when the deposit was already recorded.
func (r *LedgerRepo) CreditDeposit(ctx context.Context, d *models.Deposit) (bool, error) {
	amount, err := parseNumeric(d.Amount)
	if err != nil {
		return false, err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	err = tx.QueryRow(ctx, `
		INSERT INTO deposits (tx_hash, log_index, block_number, from_address, amount, status)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
		RETURNING id, created_at
	`, d.TxHash, int32(d.LogIndex), int64(d.BlockNumber), d.FromAddress, d.Amount, d.Status).Scan(&d.ID, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if d.Status == models.DepositStatusCredited {
		if err := credit(ctx, tx, common.HexToAddress(d.FromAddress), amount); err != nil {
			return false, err
		}
	}
	return true, tx.Commit(ctx)
}

func (r *LedgerRepo) ListDeposits(ctx context.Context, from common.Address, limit int) ([]models.Deposit, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, tx_hash, log_index, block_number, from_address, amount::text, status, created_at
		FROM deposits WHERE from_address = $1
		ORDER BY block_number DESC LIMIT $2
	`, from.Hex(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Deposit
	for rows.Next() {
		var (
			d        models.Deposit
			logIndex int32
			block    int64
		)
		if err := rows.Scan(&d.ID, &d.TxHash, &logIndex, &block, &d.FromAddress, &d.Amount, &d.Status, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.LogIndex = uint(logIndex)
		d.BlockNumber = uint64(block)
		out = append(out, d)
	}
	return out, rows.Err()
}

func credit(ctx context.Context, tx pgx.Tx, to common.Address, amount *big.Int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_balances (address, balance) VALUES ($1, $2::numeric)
		ON CONFLICT (address) DO UPDATE SET
			balance = ledger_balances.balance + EXCLUDED.balance,
			updated_at = now()
	`, to.Hex(), amount.String())
	return err
}
