package repositories

import (
	"context"
	"time"

	"github.com/ads-marketplace/campaign-backend/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

func (r *UserRepo) UpsertByAddress(ctx context.Context, address string) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (address)
		VALUES ($1)
		ON CONFLICT (address) DO UPDATE SET last_active_at = now()
		RETURNING id, address, created_at, last_active_at
	`, address).Scan(&u.ID, &u.Address, &u.CreatedAt, &u.LastActiveAt)
	return &u, err
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, address, created_at, last_active_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Address, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UpdateLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_active_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}

// GetActiveAddresses lists wallets seen since the given time, used to pick
// whose follower counts to refresh.
func (r *UserRepo) GetActiveAddresses(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT address FROM users WHERE last_active_at > $1`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var a string
		if err := rows.Scan(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
