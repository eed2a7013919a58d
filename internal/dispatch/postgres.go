package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed dispatch repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	orderColumns  = `id, client_id, address, lat, lon, total, status, assigned_driver, eta_min, created_at`
	driverColumns = `phone, lat, lon, status, active_orders, updated_at`
)

// CreateOrder inserts the order, its items and the client aggregates in one transaction.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order Order) (Order, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if order.ClientID != nil {
		var lifetime float64
		err := tx.QueryRow(ctx, `SELECT lifetime_value FROM clients WHERE id = $1 FOR UPDATE`, *order.ClientID).Scan(&lifetime)
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, fmt.Errorf("client %d: %w", *order.ClientID, apperr.ErrNotFound)
		}
		if err != nil {
			return Order{}, err
		}
		if _, err := tx.Exec(ctx, `UPDATE clients SET order_count = order_count + 1, lifetime_value = $2,
			last_order_at = NOW(), default_address = $3, last_lat = $4, last_lon = $5 WHERE id = $1`,
			*order.ClientID, RoundCents(lifetime+order.Total), order.Address, order.Lat, order.Lon); err != nil {
			return Order{}, fmt.Errorf("update client aggregates: %w", err)
		}
	}

	if err := tx.QueryRow(ctx, `INSERT INTO orders (client_id, address, lat, lon, total, status)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id, created_at`,
		order.ClientID, order.Address, order.Lat, order.Lon, order.Total, StatusNew).
		Scan(&order.ID, &order.CreatedAt); err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}

	rows := make([][]any, 0, len(order.Items))
	for _, item := range order.Items {
		rows = append(rows, []any{order.ID, item.Name, item.Qty, item.Price})
	}
	if len(rows) > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"order_items"}, []string{"order_id", "name", "qty", "price"}, pgx.CopyFromRows(rows)); err != nil {
			return Order{}, fmt.Errorf("insert order items: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	order.Status = StatusNew
	order.CreatedAt = order.CreatedAt.UTC()
	return order, nil
}

// GetOrder loads one order with its items.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (Order, error) {
	order, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("order %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return Order{}, err
	}

	rows, err := r.db.Query(ctx, `SELECT name, qty, price FROM order_items WHERE order_id = $1 ORDER BY id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item OrderItem
		if err := rows.Scan(&item.Name, &item.Qty, &item.Price); err != nil {
			return Order{}, err
		}
		order.Items = append(order.Items, item)
	}
	return order, rows.Err()
}

// ListOrders returns orders newest first, optionally filtered by status.
func (r *PostgresRepository) ListOrders(ctx context.Context, status string) ([]Order, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		rows, err = r.db.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC, id DESC`)
	} else {
		rows, err = r.db.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE status = $1 ORDER BY created_at DESC, id DESC`, status)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// Assign locks the order and driver rows and applies the assignment with a
// conditional update, so only one concurrent caller can win.
func (r *PostgresRepository) Assign(ctx context.Context, orderID int64, driverPhone string, eta ETAFunc) (Assignment, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Assignment{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	order, err := scanOrder(tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	if err != nil {
		return Assignment{}, err
	}
	if order.Status != StatusNew {
		return Assignment{}, fmt.Errorf("order %d is %s: %w", orderID, order.Status, apperr.ErrConflict)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO drivers (phone, status, active_orders) VALUES ($1, $2, 0)
		ON CONFLICT (phone) DO NOTHING`, driverPhone, DriverAvailable); err != nil {
		return Assignment{}, fmt.Errorf("ensure driver: %w", err)
	}
	driver, err := scanDriver(tx.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE phone = $1 FOR UPDATE`, driverPhone))
	if err != nil {
		return Assignment{}, fmt.Errorf("lock driver: %w", err)
	}

	minutes := eta(driver, order)
	cmd, err := tx.Exec(ctx, `UPDATE orders SET status = $2, assigned_driver = $3, eta_min = $4
		WHERE id = $1 AND status = $5`, orderID, StatusAssigned, driverPhone, minutes, StatusNew)
	if err != nil {
		return Assignment{}, err
	}
	if cmd.RowsAffected() == 0 {
		return Assignment{}, fmt.Errorf("order %d already taken: %w", orderID, apperr.ErrConflict)
	}

	if _, err := tx.Exec(ctx, `UPDATE drivers SET active_orders = active_orders + 1, status = $2, updated_at = NOW()
		WHERE phone = $1`, driverPhone, DriverBusy); err != nil {
		return Assignment{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Assignment{}, err
	}
	return Assignment{OrderID: orderID, DriverPhone: driverPhone, ETAMinutes: minutes}, nil
}

// Deliver marks the order delivered and releases its driver when it was assigned.
func (r *PostgresRepository) Deliver(ctx context.Context, orderID int64) (Delivery, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Delivery{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var (
		status string
		driver *string
	)
	err = tx.QueryRow(ctx, `SELECT status, assigned_driver FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status, &driver)
	if errors.Is(err, pgx.ErrNoRows) {
		return Delivery{}, fmt.Errorf("order %d: %w", orderID, apperr.ErrNotFound)
	}
	if err != nil {
		return Delivery{}, err
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, orderID, StatusDelivered); err != nil {
		return Delivery{}, err
	}

	out := Delivery{OrderID: orderID, PreviousStatus: status}
	if driver != nil {
		out.DriverPhone = *driver
	}
	if status == StatusAssigned && driver != nil {
		if _, err := tx.Exec(ctx, `UPDATE drivers SET
			active_orders = GREATEST(active_orders - 1, 0),
			status = CASE WHEN GREATEST(active_orders - 1, 0) = 0 THEN $2 ELSE $3 END,
			updated_at = NOW()
			WHERE phone = $1`, *driver, DriverAvailable, DriverBusy); err != nil {
			return Delivery{}, fmt.Errorf("release driver: %w", err)
		}
		out.Released = true
	}

	if err := tx.Commit(ctx); err != nil {
		return Delivery{}, err
	}
	return out, nil
}

// UpsertDriverLocation creates the driver on first report; later reports only
// overwrite the coordinates they carry.
func (r *PostgresRepository) UpsertDriverLocation(ctx context.Context, phone string, lat, lon *float64) (Driver, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO drivers (phone, lat, lon, status, active_orders, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW())
		ON CONFLICT (phone) DO UPDATE SET
			lat = COALESCE(EXCLUDED.lat, drivers.lat),
			lon = COALESCE(EXCLUDED.lon, drivers.lon),
			updated_at = NOW()
		RETURNING `+driverColumns, phone, lat, lon, DriverAvailable)
	return scanDriver(row)
}

// GetDriver loads a driver by phone.
func (r *PostgresRepository) GetDriver(ctx context.Context, phone string) (Driver, error) {
	driver, err := scanDriver(r.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE phone = $1`, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return Driver{}, fmt.Errorf("driver %s: %w", phone, apperr.ErrNotFound)
	}
	return driver, err
}

// ListDrivers returns drivers with the most recent updates first.
func (r *PostgresRepository) ListDrivers(ctx context.Context) ([]Driver, error) {
	rows, err := r.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY updated_at DESC, phone`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	drivers := []Driver{}
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	if err := row.Scan(&o.ID, &o.ClientID, &o.Address, &o.Lat, &o.Lon, &o.Total, &o.Status,
		&o.AssignedDriver, &o.ETAMinutes, &o.CreatedAt); err != nil {
		return Order{}, err
	}
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}

func scanDriver(row pgx.Row) (Driver, error) {
	var d Driver
	if err := row.Scan(&d.Phone, &d.Lat, &d.Lon, &d.Status, &d.ActiveOrders, &d.UpdatedAt); err != nil {
		return Driver{}, err
	}
	d.UpdatedAt = d.UpdatedAt.UTC()
	return d, nil
}

var _ Repository = (*PostgresRepository)(nil)
