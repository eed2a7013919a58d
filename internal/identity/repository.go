package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
)

// Repository persists clients and their PIN credentials.
type Repository interface {
	// UpsertCredential creates the client for phone when missing and replaces
	// its credential, atomically.
	UpsertCredential(ctx context.Context, phone, pinHash string) (Client, error)
	FindByPhone(ctx context.Context, phone string) (Client, error)
	FindByID(ctx context.Context, id int64) (Client, error)
	FindCredential(ctx context.Context, clientID int64) (Credential, error)
	SetBlocked(ctx context.Context, clientID int64, blocked bool) error
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const clientColumns = `id, phone, display_name, default_address, last_lat, last_lon,
	created_at, last_order_at, order_count, lifetime_value, blocked`

// UpsertCredential inserts or refreshes the client row and its credential in one transaction.
func (r *PostgresRepository) UpsertCredential(ctx context.Context, phone, pinHash string) (Client, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Client{}, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `INSERT INTO clients (phone) VALUES ($1)
		ON CONFLICT (phone) DO UPDATE SET phone = EXCLUDED.phone
		RETURNING `+clientColumns, phone)
	client, err := scanClient(row)
	if err != nil {
		return Client{}, fmt.Errorf("upsert client: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO auth_pins (client_id, pin_hash) VALUES ($1, $2)
		ON CONFLICT (client_id) DO UPDATE SET pin_hash = EXCLUDED.pin_hash, created_at = NOW()`,
		client.ID, pinHash); err != nil {
		return Client{}, fmt.Errorf("upsert credential: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Client{}, err
	}
	return client, nil
}

// FindByPhone fetches a client by normalized phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Client, error) {
	row := r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE phone = $1`, phone)
	client, err := scanClient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, fmt.Errorf("client %s: %w", phone, apperr.ErrNotFound)
	}
	return client, err
}

// FindByID fetches a client by id.
func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (Client, error) {
	row := r.db.QueryRow(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, id)
	client, err := scanClient(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Client{}, fmt.Errorf("client %d: %w", id, apperr.ErrNotFound)
	}
	return client, err
}

// FindCredential returns the stored PIN digest for a client.
func (r *PostgresRepository) FindCredential(ctx context.Context, clientID int64) (Credential, error) {
	var cred Credential
	err := r.db.QueryRow(ctx, `SELECT client_id, pin_hash, created_at FROM auth_pins WHERE client_id = $1`, clientID).
		Scan(&cred.ClientID, &cred.PINHash, &cred.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Credential{}, fmt.Errorf("credential for client %d: %w", clientID, apperr.ErrNotFound)
	}
	if err != nil {
		return Credential{}, err
	}
	cred.CreatedAt = cred.CreatedAt.UTC()
	return cred, nil
}

// SetBlocked toggles the blocked flag of a client.
func (r *PostgresRepository) SetBlocked(ctx context.Context, clientID int64, blocked bool) error {
	cmd, err := r.db.Exec(ctx, `UPDATE clients SET blocked = $1 WHERE id = $2`, blocked, clientID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("client %d: %w", clientID, apperr.ErrNotFound)
	}
	return nil
}

func scanClient(row pgx.Row) (Client, error) {
	var (
		c              Client
		displayName    *string
		defaultAddress *string
	)
	if err := row.Scan(&c.ID, &c.Phone, &displayName, &defaultAddress, &c.LastLat, &c.LastLon,
		&c.CreatedAt, &c.LastOrderAt, &c.OrderCount, &c.LifetimeValue, &c.Blocked); err != nil {
		return Client{}, err
	}
	if displayName != nil {
		c.DisplayName = *displayName
	}
	if defaultAddress != nil {
		c.DefaultAddress = *defaultAddress
	}
	c.CreatedAt = c.CreatedAt.UTC()
	if c.LastOrderAt != nil {
		t := c.LastOrderAt.UTC()
		c.LastOrderAt = &t
	}
	return c, nil
}

var _ Repository = (*PostgresRepository)(nil)
