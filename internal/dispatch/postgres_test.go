package dispatch

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
	"github.com/yeraldo2021/app-delivery-2025/internal/infra"
	"github.com/yeraldo2021/app-delivery-2025/internal/logging"
)

func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := infra.NewPostgresPool(ctx, infra.PostgresOptions{URL: url, MaxConns: 8})
	if err != nil {
		t.Skipf("postgres unavailable: %v", err)
	}
	t.Cleanup(pool.Close)

	require.NoError(t, infra.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE order_items, orders, drivers, auth_pins, addresses, clients RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func TestPostgresOrderLifecycle(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	svc := NewService(NewPostgresRepository(pool), nil, logging.Discard())

	var clientID int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO clients (phone) VALUES ('+51999888777') RETURNING id`).Scan(&clientID))

	order, err := svc.CreateOrder(ctx, NewOrder{
		ClientID: clientID,
		Address:  "Av. Arequipa 1200",
		Lat:      ptr(-12.06),
		Lon:      ptr(-77.03),
		Items: []OrderItem{
			{Name: "Chaufa", Qty: 2, Price: 18},
			{Name: "Inka Kola 500ml", Qty: 1, Price: 5},
			{Name: "Wantán frito (10u)", Qty: 0, Price: 12},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 41.0, order.Total)

	stored, err := svc.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	require.Equal(t, StatusNew, stored.Status)

	var (
		count    int
		lifetime float64
	)
	require.NoError(t, pool.QueryRow(ctx, `SELECT order_count, lifetime_value FROM clients WHERE id = $1`, clientID).Scan(&count, &lifetime))
	require.Equal(t, 1, count)
	require.Equal(t, 41.0, lifetime)

	_, err = svc.ReportLocation(ctx, "911222333", ptr(-12.05), ptr(-77.04))
	require.NoError(t, err)

	assignment, err := svc.Assign(ctx, order.ID, "911222333")
	require.NoError(t, err)
	require.NotNil(t, assignment.ETAMinutes)
	require.Equal(t, 4, *assignment.ETAMinutes)

	_, err = svc.Assign(ctx, order.ID, "922333444")
	require.ErrorIs(t, err, apperr.ErrConflict)

	repo := NewPostgresRepository(pool)
	_, err = repo.GetDriver(ctx, "+51922333444")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, svc.Deliver(ctx, order.ID))
	require.NoError(t, svc.Deliver(ctx, order.ID))

	driver, err := repo.GetDriver(ctx, "+51911222333")
	require.NoError(t, err)
	require.Equal(t, 0, driver.ActiveOrders)
	require.Equal(t, DriverAvailable, driver.Status)
}

func TestPostgresConcurrentAssign(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	svc := NewService(NewPostgresRepository(pool), nil, logging.Discard())

	order, err := svc.CreateOrder(ctx, NewOrder{
		Address: "Jr. de la Unión 500",
		Lat:     ptr(-12.05),
		Lon:     ptr(-77.03),
		Items:   []OrderItem{{Name: "Chaufa", Qty: 1, Price: 18}},
	})
	require.NoError(t, err)

	phones := []string{"911000001", "911000002", "911000003", "911000004", "911000005"}
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for _, p := range phones {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_, err := svc.Assign(ctx, order.ID, p)
			if err != nil && !errors.Is(err, apperr.ErrConflict) {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()
	require.Equal(t, 1, winners)

	drivers, err := svc.ListDrivers(ctx)
	require.NoError(t, err)
	require.Len(t, drivers, 1)
	require.Equal(t, 1, drivers[0].ActiveOrders)
}

func TestPostgresCreateOrderRollsBackOnItemFailure(t *testing.T) {
	pool := setupPostgres(t)
	ctx := context.Background()
	repo := NewPostgresRepository(pool)

	var clientID int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO clients (phone) VALUES ('+51999888777') RETURNING id`).Scan(&clientID))

	// The client row is updated before the item copy, which fails on the
	// name column limit.
	_, err := repo.CreateOrder(ctx, Order{
		ClientID: &clientID,
		Address:  "Av. Arequipa 1200",
		Lat:      -12.06,
		Lon:      -77.03,
		Total:    18,
		Items:    []OrderItem{{Name: strings.Repeat("a", MaxItemNameLen+1), Qty: 1, Price: 18}},
	})
	require.Error(t, err)

	var (
		count    int
		lifetime float64
		orders   int
	)
	require.NoError(t, pool.QueryRow(ctx, `SELECT order_count, lifetime_value FROM clients WHERE id = $1`, clientID).Scan(&count, &lifetime))
	require.Equal(t, 0, count)
	require.Equal(t, 0.0, lifetime)
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&orders))
	require.Equal(t, 0, orders)

	svc := NewService(repo, nil, logging.Discard())
	_, err = svc.CreateOrder(ctx, NewOrder{
		ClientID: clientID,
		Address:  "Av. Arequipa 1200",
		Lat:      ptr(-12.06),
		Lon:      ptr(-77.03),
		Items:    []OrderItem{{Name: strings.Repeat("a", MaxItemNameLen+1), Qty: 1, Price: 18}},
	})
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}
