package repositories

import (
	"context"
	"encoding/json"

	"github.com/ads-marketplace/campaign-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TxReceiptRepo struct {
	pool *pgxpool.Pool
}

func NewTxReceiptRepo(pool *pgxpool.Pool) *TxReceiptRepo {
	return &TxReceiptRepo{pool: pool}
}

func (r *TxReceiptRepo) Create(ctx context.Context, rc *models.TxReceipt) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO tx_receipts (id, op, caller, status)
		VALUES ($1, $2, $3, $4)
		RETURNING submitted_at
	`, rc.ID, rc.Op, rc.Caller, rc.Status).Scan(&rc.SubmittedAt)
}

// Finalize moves a pending receipt to its terminal status. A receipt that
// is already final is left untouched.
func (r *TxReceiptRepo) Finalize(ctx context.Context, rc *models.TxReceipt) error {
	var result []byte
	if rc.Result != nil {
		b, err := json.Marshal(rc.Result)
		if err != nil {
			return err
		}
		result = b
	}
	_, err := r.pool.Exec(ctx, `
		UPDATE tx_receipts SET status = $1, error_code = $2, error = $3, result = $4, finalized_at = $5
		WHERE id = $6 AND status = 'pending'
	`, rc.Status, rc.ErrorCode, rc.Error, result, rc.FinalizedAt, rc.ID)
	return err
}

func (r *TxReceiptRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.TxReceipt, error) {
	var (
		rc     models.TxReceipt
		result []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, op, caller, status, error_code, error, result, submitted_at, finalized_at
		FROM tx_receipts WHERE id = $1
	`, id).Scan(&rc.ID, &rc.Op, &rc.Caller, &rc.Status, &rc.ErrorCode, &rc.Error, &result, &rc.SubmittedAt, &rc.FinalizedAt)
	if err != nil {
		return nil, err
	}
	if len(result) > 0 {
		rc.Result = json.RawMessage(result)
	}
	return &rc, nil
}

// FailPending marks receipts left pending by a previous process as failed.
// Their writes never ran: the executor queue lives in memory.
func (r *TxReceiptRepo) FailPending(ctx context.Context, reason string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tx_receipts SET status = 'failed', error_code = 'interrupted', error = $1, finalized_at = now()
		WHERE status = 'pending'
	`, reason)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
