package notification

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Insert(ctx context.Context, n Notification) error
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Insert(ctx context.Context, n Notification) error {
	id := n.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, type, title, message, read, created_at)
		VALUES ($1, $2, $3, $4, $5, false, now())
	`, id, n.RecipientID, n.Type, n.Title, n.Message)
	return err
}
