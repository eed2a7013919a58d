package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/yeraldo2021/app-delivery-2025/internal/apperr"
	"github.com/yeraldo2021/app-delivery-2025/internal/events"
	"github.com/yeraldo2021/app-delivery-2025/internal/identity"
	"github.com/yeraldo2021/app-delivery-2025/internal/logging"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Kind)
	}
	return out
}

func ptr(v float64) *float64 { return &v }

func newTestService(t *testing.T) (*Service, *MemoryRepository, *recordingPublisher) {
	t.Helper()
	repo := NewMemoryRepository(nil)
	pub := &recordingPublisher{}
	return NewService(repo, pub, logging.Discard()), repo, pub
}

func placeOrder(t *testing.T, svc *Service, lat, lon float64) Order {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), NewOrder{
		Address: "Av. Larco 345",
		Lat:     ptr(lat),
		Lon:     ptr(lon),
		Items:   []OrderItem{{Name: "Chaufa", Qty: 1, Price: 18}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

func TestCreateOrderTotalsAndDropsZeroQuantity(t *testing.T) {
	svc, repo, pub := newTestService(t)
	ctx := context.Background()

	order, err := svc.CreateOrder(ctx, NewOrder{
		Address: "  Av. Arequipa 1200 ",
		Lat:     ptr(-12.06),
		Lon:     ptr(-77.03),
		Items: []OrderItem{
			{Name: "Chaufa", Qty: 2, Price: 18.0},
			{Name: "Inka Kola 500ml", Qty: 1, Price: 5.0},
			{Name: "Wantán frito (10u)", Qty: 0, Price: 12.0},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Total != 41.00 {
		t.Fatalf("expected total 41.00, got %v", order.Total)
	}
	if order.Status != StatusNew {
		t.Fatalf("expected status new, got %s", order.Status)
	}
	if order.Address != "Av. Arequipa 1200" {
		t.Fatalf("expected trimmed address, got %q", order.Address)
	}

	stored, err := repo.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(stored.Items) != 2 {
		t.Fatalf("expected zero-quantity item to be dropped, got %d items", len(stored.Items))
	}
	if kinds := pub.kinds(); len(kinds) != 1 || kinds[0] != events.KindOrderCreated {
		t.Fatalf("expected order.created event, got %v", kinds)
	}
}

func TestCreateOrderRoundsToCents(t *testing.T) {
	svc, _, _ := newTestService(t)
	order, err := svc.CreateOrder(context.Background(), NewOrder{
		Address: "Jr. Ucayali 300",
		Lat:     ptr(-12.04),
		Lon:     ptr(-77.03),
		Items:   []OrderItem{{Name: "a", Qty: 3, Price: 0.1}, {Name: "b", Qty: 1, Price: 0.2}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if order.Total != 0.5 {
		t.Fatalf("expected 0.5, got %v", order.Total)
	}
}

func TestCreateOrderRejectsInvalidInput(t *testing.T) {
	svc, repo, pub := newTestService(t)
	items := []OrderItem{{Name: "Chaufa", Qty: 1, Price: 18}}

	cases := []struct {
		name string
		in   NewOrder
	}{
		{"blank address", NewOrder{Address: "   ", Lat: ptr(1), Lon: ptr(1), Items: items}},
		{"missing lat", NewOrder{Address: "x", Lon: ptr(1), Items: items}},
		{"missing lon", NewOrder{Address: "x", Lat: ptr(1), Items: items}},
		{"no items", NewOrder{Address: "x", Lat: ptr(1), Lon: ptr(1)}},
		{"negative qty", NewOrder{Address: "x", Lat: ptr(1), Lon: ptr(1), Items: []OrderItem{{Name: "a", Qty: -1, Price: 1}}}},
		{"negative price", NewOrder{Address: "x", Lat: ptr(1), Lon: ptr(1), Items: []OrderItem{{Name: "a", Qty: 1, Price: -1}}}},
		{"long address", NewOrder{Address: strings.Repeat("á", MaxAddressLen+1), Lat: ptr(1), Lon: ptr(1), Items: items}},
		{"long item name", NewOrder{Address: "x", Lat: ptr(1), Lon: ptr(1), Items: []OrderItem{{Name: strings.Repeat("a", MaxItemNameLen+1), Qty: 1, Price: 1}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.CreateOrder(context.Background(), tc.in); !errors.Is(err, apperr.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}

	all, _ := repo.ListOrders(context.Background(), "")
	if len(all) != 0 {
		t.Fatalf("rejected orders must not be stored, found %d", len(all))
	}
	if len(pub.kinds()) != 0 {
		t.Fatalf("rejected orders must not publish events")
	}
}

func TestCreateOrderUpdatesClientAggregates(t *testing.T) {
	clients := identity.NewMemoryRepository()
	client, err := clients.UpsertCredential(context.Background(), "+51999888777", "digest")
	if err != nil {
		t.Fatalf("seed client: %v", err)
	}
	svc := NewService(NewMemoryRepository(clients), nil, logging.Discard())

	_, err = svc.CreateOrder(context.Background(), NewOrder{
		ClientID: client.ID,
		Address:  "Av. Brasil 500",
		Lat:      ptr(-12.07),
		Lon:      ptr(-77.05),
		Items:    []OrderItem{{Name: "Pollo a la brasa (1/4)", Qty: 1, Price: 19}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	got, err := clients.FindByID(context.Background(), client.ID)
	if err != nil {
		t.Fatalf("find client: %v", err)
	}
	if got.OrderCount != 1 || got.LifetimeValue != 19 || got.DefaultAddress != "Av. Brasil 500" {
		t.Fatalf("unexpected client aggregates %+v", got)
	}

	_, err = svc.CreateOrder(context.Background(), NewOrder{
		ClientID: 404,
		Address:  "x",
		Lat:      ptr(0),
		Lon:      ptr(0),
		Items:    []OrderItem{{Name: "a", Qty: 1, Price: 1}},
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for unknown client, got %v", err)
	}
}

func TestAssignComputesETA(t *testing.T) {
	svc, _, pub := newTestService(t)
	ctx := context.Background()

	if _, err := svc.ReportLocation(ctx, "911222333", ptr(-12.05), ptr(-77.04)); err != nil {
		t.Fatalf("report location: %v", err)
	}
	order := placeOrder(t, svc, -12.06, -77.03)

	assignment, err := svc.Assign(ctx, order.ID, "911 222 333")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assignment.ETAMinutes == nil || *assignment.ETAMinutes != 4 {
		t.Fatalf("expected eta 4 minutes, got %v", assignment.ETAMinutes)
	}
	if assignment.DriverPhone != "+51911222333" {
		t.Fatalf("expected normalized driver phone, got %s", assignment.DriverPhone)
	}

	kinds := pub.kinds()
	if kinds[len(kinds)-1] != events.KindOrderAssigned {
		t.Fatalf("expected order.assigned event last, got %v", kinds)
	}
}

func TestAssignWithoutDriverPositionHasNoETA(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	order := placeOrder(t, svc, -12.06, -77.03)

	assignment, err := svc.Assign(ctx, order.ID, "911222333")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if assignment.ETAMinutes != nil {
		t.Fatalf("expected no eta, got %d", *assignment.ETAMinutes)
	}

	driver, err := repo.GetDriver(ctx, "+51911222333")
	if err != nil {
		t.Fatalf("driver should be created lazily: %v", err)
	}
	if driver.Status != DriverBusy || driver.ActiveOrders != 1 {
		t.Fatalf("unexpected driver %+v", driver)
	}
}

func TestAssignConflictLeavesStateUntouched(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	order := placeOrder(t, svc, -12.06, -77.03)

	if _, err := svc.Assign(ctx, order.ID, "911111111"); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	if _, err := svc.Assign(ctx, order.ID, "922222222"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	stored, err := repo.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if stored.AssignedDriver == nil || *stored.AssignedDriver != "+51911111111" {
		t.Fatalf("order must keep the first driver, got %v", stored.AssignedDriver)
	}
	if _, err := repo.GetDriver(ctx, "+51922222222"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("losing driver must not be created, got %v", err)
	}
	first, _ := repo.GetDriver(ctx, "+51911111111")
	if first.ActiveOrders != 1 {
		t.Fatalf("winning driver must have exactly one order, got %d", first.ActiveOrders)
	}
}

func TestAssignErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	order := placeOrder(t, svc, 0, 0)

	if _, err := svc.Assign(ctx, order.ID, "  "); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank phone, got %v", err)
	}
	if _, err := svc.Assign(ctx, 9999, "911222333"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConcurrentAssignHasOneWinner(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	order := placeOrder(t, svc, -12.06, -77.03)

	phones := []string{"911000001", "911000002", "911000003", "911000004", "911000005", "911000006", "911000007", "911000008"}
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		winners   int
		conflicts int
	)
	for _, p := range phones {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			_, err := svc.Assign(ctx, order.ID, p)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case errors.Is(err, apperr.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(p)
	}
	wg.Wait()

	if winners != 1 || conflicts != len(phones)-1 {
		t.Fatalf("expected one winner and %d conflicts, got %d and %d", len(phones)-1, winners, conflicts)
	}
	drivers, _ := repo.ListDrivers(ctx)
	if len(drivers) != 1 {
		t.Fatalf("only the winning driver may exist, got %d", len(drivers))
	}
}

func TestAssignThenDeliverRestoresDriver(t *testing.T) {
	svc, repo, pub := newTestService(t)
	ctx := context.Background()
	first := placeOrder(t, svc, -12.06, -77.03)
	second := placeOrder(t, svc, -12.07, -77.02)

	for _, id := range []int64{first.ID, second.ID} {
		if _, err := svc.Assign(ctx, id, "911222333"); err != nil {
			t.Fatalf("assign %d: %v", id, err)
		}
	}
	driver, _ := repo.GetDriver(ctx, "+51911222333")
	if driver.ActiveOrders != 2 || driver.Status != DriverBusy {
		t.Fatalf("expected busy driver with 2 orders, got %+v", driver)
	}

	if err := svc.Deliver(ctx, first.ID); err != nil {
		t.Fatalf("deliver first: %v", err)
	}
	driver, _ = repo.GetDriver(ctx, "+51911222333")
	if driver.ActiveOrders != 1 || driver.Status != DriverBusy {
		t.Fatalf("expected busy driver with 1 order, got %+v", driver)
	}

	if err := svc.Deliver(ctx, second.ID); err != nil {
		t.Fatalf("deliver second: %v", err)
	}
	driver, _ = repo.GetDriver(ctx, "+51911222333")
	if driver.ActiveOrders != 0 || driver.Status != DriverAvailable {
		t.Fatalf("expected available driver, got %+v", driver)
	}

	// Delivering again is a no-op.
	before := len(pub.kinds())
	if err := svc.Deliver(ctx, second.ID); err != nil {
		t.Fatalf("repeat deliver: %v", err)
	}
	driver, _ = repo.GetDriver(ctx, "+51911222333")
	if driver.ActiveOrders != 0 {
		t.Fatalf("repeat deliver must not decrement again, got %d", driver.ActiveOrders)
	}
	if len(pub.kinds()) != before {
		t.Fatalf("repeat deliver must not publish")
	}

	stored, _ := repo.GetOrder(ctx, second.ID)
	if stored.Status != StatusDelivered {
		t.Fatalf("expected delivered, got %s", stored.Status)
	}
}

func TestDeliverUnassignedOrder(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()
	order := placeOrder(t, svc, 0, 0)

	if err := svc.Deliver(ctx, order.ID); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	stored, _ := repo.GetOrder(ctx, order.ID)
	if stored.Status != StatusDelivered {
		t.Fatalf("expected delivered, got %s", stored.Status)
	}
	if err := svc.Deliver(ctx, 777); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReportLocation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	driver, err := svc.ReportLocation(ctx, "933444555", ptr(-12.1), ptr(-77.0))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if driver.Status != DriverAvailable || driver.ActiveOrders != 0 {
		t.Fatalf("new driver must be available with no orders, got %+v", driver)
	}

	driver, err = svc.ReportLocation(ctx, "933444555", ptr(-12.2), nil)
	if err != nil {
		t.Fatalf("partial report: %v", err)
	}
	if *driver.Lat != -12.2 || *driver.Lon != -77.0 {
		t.Fatalf("only lat should change, got %v,%v", *driver.Lat, *driver.Lon)
	}

	if _, err := svc.ReportLocation(ctx, "", ptr(1), ptr(1)); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestReportLocationKeepsBusyStatus(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	order := placeOrder(t, svc, 0, 0)
	if _, err := svc.Assign(ctx, order.ID, "933444555"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	driver, err := svc.ReportLocation(ctx, "933444555", ptr(1), ptr(1))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if driver.Status != DriverBusy || driver.ActiveOrders != 1 {
		t.Fatalf("location update must not touch status, got %+v", driver)
	}
}

func TestListOrders(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	a := placeOrder(t, svc, 0, 0)
	b := placeOrder(t, svc, 0, 0)
	c := placeOrder(t, svc, 0, 0)
	if _, err := svc.Assign(ctx, b.ID, "911222333"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	open, err := svc.ListOpenOrders(ctx)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 2 || open[0].ID != c.ID || open[1].ID != a.ID {
		t.Fatalf("expected open orders [%d %d] newest first, got %+v", c.ID, a.ID, open)
	}

	all, err := svc.ListAllOrders(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 || all[0].ID != c.ID || all[2].ID != a.ID {
		t.Fatalf("expected all orders newest first, got %+v", all)
	}
}

func TestEstimateETA(t *testing.T) {
	if EstimateETA(Driver{}, Order{}) != nil {
		t.Fatalf("driver without position must have no eta")
	}
	eta := EstimateETA(Driver{Lat: ptr(0), Lon: ptr(0)}, Order{Lat: 0, Lon: 0})
	if eta == nil || *eta != 0 {
		t.Fatalf("same point must be 0 minutes, got %v", eta)
	}
	// One degree of longitude on the equator is ~111.19 km, ~266.9 minutes at 25 km/h.
	eta = EstimateETA(Driver{Lat: ptr(0), Lon: ptr(0)}, Order{Lat: 0, Lon: 1})
	if eta == nil || *eta != 267 {
		t.Fatalf("expected 267 minutes, got %v", eta)
	}
}
