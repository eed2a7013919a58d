package addresses

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
)

// ErrLimitReached is returned when a client already has MaxPerClient addresses.
var ErrLimitReached = fmt.Errorf("maximum of %d addresses: %w", MaxPerClient, apperr.ErrInvalidInput)

// Repository persists client addresses. Every call is scoped to one client.
type Repository interface {
	List(ctx context.Context, clientID int64) ([]Address, error)
	// Create stores addr unless the client already reached MaxPerClient.
	Create(ctx context.Context, addr Address) (Address, error)
	Update(ctx context.Context, clientID int64, upd Update) error
	Delete(ctx context.Context, clientID, id int64) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed address repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List returns the client's addresses, newest first.
func (r *PostgresRepository) List(ctx context.Context, clientID int64) ([]Address, error) {
	rows, err := r.db.Query(ctx, `SELECT id, client_id, alias, address, lat, lon, is_default, created_at, updated_at
		FROM addresses WHERE client_id = $1 ORDER BY created_at DESC, id DESC`, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []Address{}
	for rows.Next() {
		var a Address
		if err := rows.Scan(&a.ID, &a.ClientID, &a.Alias, &a.Address, &a.Lat, &a.Lon, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// Create locks the client row so concurrent inserts cannot exceed the cap.
func (r *PostgresRepository) Create(ctx context.Context, addr Address) (Address, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Address{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var locked int64
	err = tx.QueryRow(ctx, `SELECT id FROM clients WHERE id = $1 FOR UPDATE`, addr.ClientID).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return Address{}, fmt.Errorf("client %d: %w", addr.ClientID, apperr.ErrNotFound)
	}
	if err != nil {
		return Address{}, err
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM addresses WHERE client_id = $1`, addr.ClientID).Scan(&count); err != nil {
		return Address{}, err
	}
	if count >= MaxPerClient {
		return Address{}, ErrLimitReached
	}

	if err := tx.QueryRow(ctx, `INSERT INTO addresses (client_id, alias, address, lat, lon)
		VALUES ($1, $2, $3, $4, $5) RETURNING id, is_default, created_at, updated_at`,
		addr.ClientID, addr.Alias, addr.Address, addr.Lat, addr.Lon).
		Scan(&addr.ID, &addr.IsDefault, &addr.CreatedAt, &addr.UpdatedAt); err != nil {
		return Address{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Address{}, err
	}
	return addr, nil
}

// Update applies a partial edit to one of the client's addresses.
func (r *PostgresRepository) Update(ctx context.Context, clientID int64, upd Update) error {
	var address *string
	if upd.Address != "" {
		address = &upd.Address
	}
	cmd, err := r.db.Exec(ctx, `UPDATE addresses SET alias = $3, address = COALESCE($4, address),
		lat = COALESCE($5, lat), lon = COALESCE($6, lon), updated_at = NOW()
		WHERE id = $1 AND client_id = $2`, upd.ID, clientID, upd.Alias, address, upd.Lat, upd.Lon)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("address %d: %w", upd.ID, apperr.ErrNotFound)
	}
	return nil
}

// Delete removes one of the client's addresses.
func (r *PostgresRepository) Delete(ctx context.Context, clientID, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM addresses WHERE id = $1 AND client_id = $2`, id, clientID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("address %d: %w", id, apperr.ErrNotFound)
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
