package repositories

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NonceRepo struct {
	pool *pgxpool.Pool
}

func NewNonceRepo(pool *pgxpool.Pool) *NonceRepo {
	return &NonceRepo{pool: pool}
}

func (r *NonceRepo) Create(ctx context.Context, address string, ttl time.Duration) (*models.LoginNonce, error) {
	n := &models.LoginNonce{
		Nonce:   generateNonce(16),
		Address: address,
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO login_nonces (nonce, address, expires_at)
		VALUES ($1, $2, now() + $3::interval)
		RETURNING id, created_at, expires_at
	`, n.Nonce, address, ttl.String()).Scan(&n.ID, &n.CreatedAt, &n.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// Consume marks the nonce used. It fails with pgx.ErrNoRows when the nonce is
// unknown, expired, already used or issued to another address.
func (r *NonceRepo) Consume(ctx context.Context, nonce, address string) (*models.LoginNonce, error) {
	var n models.LoginNonce
	err := r.pool.QueryRow(ctx, `
		UPDATE login_nonces
		SET used = true
		WHERE nonce = $1 AND address = $2 AND used = false AND expires_at > now()
		RETURNING id, nonce, address, created_at, expires_at, used
	`, nonce, address).Scan(&n.ID, &n.Nonce, &n.Address, &n.CreatedAt, &n.ExpiresAt, &n.Used)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *NonceRepo) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM login_nonces WHERE expires_at < now() OR used = true`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func generateNonce(bytes int) string {
	b := make([]byte, bytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
