package orders

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/postgres/pgtest"
	"github.com/ariefcatur/go-shop-orders/internal/principal"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc      *Service
	pool     *pgxpool.Pool
	mr       *miniredis.Miniredis
	carts    *recordingInvalidator
	customer principal.Principal
	address  string
}

type recordingInvalidator struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, ids ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, ids...)
}

type cartInvalidator struct{ *recordingInvalidator }

func (c cartInvalidator) Invalidate(ctx context.Context, owner string) {
	c.recordingInvalidator.Invalidate(ctx, owner)
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	pool := pgtest.New(t)
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	carts := &recordingInvalidator{}
	f := &fixture{
		svc: &Service{
			DB:          pool,
			Ledger:      &inventory.Ledger{DB: pool},
			Pricing:     DefaultPricing(),
			Redis:       rdb,
			Carts:       cartInvalidator{carts},
			Products:    &recordingInvalidator{},
			ServiceName: "orders-test",
		},
		pool:     pool,
		mr:       mr,
		carts:    carts,
		customer: principal.Principal{ID: "cust-1", Role: principal.RoleCustomer},
	}
	f.address = pgtest.SeedAddress(t, pool, f.customer.ID)
	return f
}

func (f *fixture) addToCart(t *testing.T, productID string, qty int) {
	t.Helper()
	_, err := f.pool.Exec(context.Background(),
		`INSERT INTO cart_items(owner_id, product_id, quantity) VALUES ($1, $2, $3)`,
		f.customer.ID, productID, qty)
	require.NoError(t, err)
}

func (f *fixture) checkout(t *testing.T) *Order {
	t.Helper()
	o, err := f.svc.Checkout(context.Background(), CheckoutInput{
		CustomerID:        f.customer.ID,
		ShippingAddressID: f.address,
		ShippingMethod:    ShippingStandard,
	})
	require.NoError(t, err)
	return o
}

func count(t *testing.T, pool *pgxpool.Pool, sql string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), sql, args...).Scan(&n))
	return n
}

func TestCheckout_HappyPath(t *testing.T) {
	f := setupService(t)
	id := pgtest.SeedProduct(t, f.pool, pgtest.Product{Stock: 5, Price: "10.00"})
	f.addToCart(t, id, 3)

	o := f.checkout(t)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.True(t, o.Subtotal.Equal(d("30.00")))
	assert.True(t, o.Tax.Equal(d("3.00")))
	assert.True(t, o.Shipping.Equal(d("5.99")))
	assert.True(t, o.Total.Equal(d("38.99")))
	assert.Regexp(t, `^ORD-\d{8}-[0-9A-F]{8}$`, o.OrderNumber)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 3, o.Items[0].Quantity)
	require.Len(t, o.History, 1)
	assert.Equal(t, StatusPending, o.History[0].Status)

	assert.Equal(t, 2, pgtest.Stock(t, f.pool, id))
	assert.Equal(t, 0, count(t, f.pool, `SELECT COUNT(*) FROM cart_items WHERE owner_id=$1`, f.customer.ID))
	assert.Equal(t, 1, count(t, f.pool, `SELECT COUNT(*) FROM outbox_events WHERE aggregate_id=$1 AND event_type=$2`, o.ID, EventOrderPlaced))
	assert.Contains(t, f.carts.ids, f.customer.ID)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := setupService(t)
	_, err := f.svc.Checkout(context.Background(), CheckoutInput{CustomerID: f.customer.ID, ShippingAddressID: f.address})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckout_ForeignAddress(t *testing.T) {
	f := setupService(t)
	id := pgtest.SeedProduct(t, f.pool, pgtest.Product{Stock: 5})
	f.addToCart(t, id, 1)
	other := pgtest.SeedAddress(t, f.pool, "cust-2")

	_, err := f.svc.Checkout(context.Background(), CheckoutInput{CustomerID: f.customer.ID, ShippingAddressID: other})
	assert.ErrorIs(t, err, ErrInvalidAddress)
	assert.Equal(t, 5, pgtest.Stock(t, f.pool, id))
}

func TestCheckout_PartialFailureRollsBackEverything(t *testing.T) {
	f := setupService(t)
	plenty := pgtest.SeedProduct(t, f.pool, pgtest.Product{Stock: 10})
	scarce := pgtest.SeedProduct(t, f.pool, pgtest.Product{Stock: 1})
	f.addToCart(t, plenty, 4)
	f.addToCart(t, scarce, 2)

	_, err := f.svc.Checkout(context.Background(), CheckoutInput{CustomerID: f.customer.ID, ShippingAddressID: f.address})
	var ise *inventory.InsufficientStockError
	require.True(t, errors.As(err, &ise), "got %v", err)
	assert.Equal(t, scarce, ise.ProductID)
	assert.Equal(t, 2, ise.Requested)
	assert.Equal(t, 1, ise.Available)

	assert.Equal(t, 10, pgtest.Stock(t, f.pool, plenty))
	assert.Equal(t, 1, pgtest.Stock(t, f.pool, scarce))
	assert.Equal(t, 0, count(t, f.pool, `SELECT COUNT(*) FROM orders`))
	assert.Equal(t, 0, count(t, f.pool, `SELECT COUNT(*) FROM stock_movements`))
	assert.Equal(t, 2, count(t, f.pool, `SELECT COUNT(*) FROM cart_items WHERE owner_id=$1`, f.customer.ID))
}

func TestCheckout_InactiveProduct(t *testing.T) {
	f := setupService(t)
	id := pgtest.SeedProduct(t, f.pool, pgtest.Product{Stock: 5, Status: "inactive"})
	f.addToCart(t, id, 1)

	_, err := f.svc.Checkout(context.Background(), CheckoutInput{CustomerID: f.customer.ID, ShippingAddressID: f.address})
	assert.ErrorIs(t, err, inventory.ErrProductUnavailable)
	assert.Equal(t, 5, pgtest.Stock(t, f.pool, id))
}

func TestCheckout_PriceIsFrozen(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	id := pgtest.SeedProduct(t, f.pool, pgtest.Product{Stock: 5, Price: "10.00"})
	f.addToCart(t, id, 1)
	o := f.checkout(t)

	_, err := f.pool.Exec(ctx, `UPDATE products SET price=99.00, name='Renamed' WHERE id=$1`, id)
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, f.customer, o.ID)
	require.NoError(t, err)
	assert.True(t, got.Items[0].PriceAtPurchase.Equal(d("10.00")))
	assert.NotEqual(t, "Renamed", got.Items[0].ProductName)
	assert.True(t, got.Total.Equal(o.Total))
}

func TestCheckout_IdempotencyKey(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	id := pgtest.SeedProduct(t, f.pool, pgtest.Product{Stock: 5})
	f.addToCart(t, id, 2)

	in := CheckoutInput{CustomerID: f.customer.ID, ShippingAddressID: f.address, IdempotencyKey: "k-1"}
	first, err := f.svc.Checkout(ctx, in)
	require.NoError(t, err)

	second, err := f.svc.Checkout(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 3, pgtest.Stock(t, f.pool, id))
	assert.Equal(t, 1, count(t, f.pool, `SELECT COUNT(*) FROM orders`))

	// same answer from the database when the shortcut is gone
	f.mr.FlushAll()
	third, err := f.svc.Checkout(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, third.ID)
}

func TestPlaceOrder_AdHocLeavesCartAlone(t *testing.T) {
	f := setupService(t)
	a := pgtest.SeedProduct(t, f.pool, pgtest.Product{Stock: 5, Price: "2.50"})
	b := pgtest.SeedProduct(t, f.pool, pgtest.Product{Stock: 5, Price: "1.00"})
	f.addToCart(t, a, 1)

	o, err := f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CheckoutInput: CheckoutInput{CustomerID: f.customer.ID, ShippingAddressID: f.address, ShippingMethod: ShippingExpress},
		Items:         []LineInput{{ProductID: a, Quantity: 2}, {ProductID: b, Quantity: 1}, {ProductID: a, Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Len(t, o.Items, 2)
	assert.True(t, o.Subtotal.Equal(d("8.50")))
	assert.True(t, o.Shipping.Equal(d("12.99")))
	assert.Equal(t, 2, pgtest.Stock(t, f.pool, a))
	assert.Equal(t, 1, count(t, f.pool, `SELECT COUNT(*) FROM cart_items WHERE owner_id=$1`, f.customer.ID))
}

func TestCheckout_ConcurrentCustomersNeverOversell(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	id := pgtest.SeedProduct(t, f.pool, pgtest.Product{Stock: 3})

	var wg sync.WaitGroup
	var placed atomic.Int32
	for i := 0; i < 8; i++ {
		cust := "buyer-" + string(rune('a'+i))
		addr := pgtest.SeedAddress(t, f.pool, cust)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PlaceOrder(ctx, PlaceOrderInput{
				CheckoutInput: CheckoutInput{CustomerID: cust, ShippingAddressID: addr},
				Items:         []LineInput{{ProductID: id, Quantity: 1}},
			})
			if err == nil {
				placed.Add(1)
				return
			}
			assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), placed.Load())
	assert.Equal(t, 0, pgtest.Stock(t, f.pool, id))
}

func TestTransition_FullLifecycle(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	id := pgtest.SeedProduct(t, f.pool, pgtest.Product{MerchantID: "m-1", Stock: 5})
	f.addToCart(t, id, 1)
	o := f.checkout(t)

	merchant := principal.Principal{ID: "m-1", Role: principal.RoleMerchant}
	admin := principal.Principal{ID: "a-1", Role: principal.RoleAdmin}

	o, err := f.svc.Confirm(ctx, f.customer, o.ID, "card")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)

	o, err = f.svc.StartProcessing(ctx, merchant, o.ID, "")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, o.Status)

	_, err = f.svc.Ship(ctx, merchant, o.ID, TransitionInput{Carrier: "UPS"})
	assert.ErrorIs(t, err, ErrMissingTracking)

	eta := time.Now().Add(72 * time.Hour)
	o, err = f.svc.Ship(ctx, merchant, o.ID, TransitionInput{TrackingNumber: "1Z999", Carrier: "UPS", EstimatedDelivery: &eta})
	require.NoError(t, err)
	assert.Equal(t, "1Z999", o.TrackingNumber)
	assert.NotNil(t, o.ShippedAt)

	o, err = f.svc.Deliver(ctx, f.customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)
	assert.NotNil(t, o.DeliveredAt)

	_, err = f.svc.Cancel(ctx, f.customer, o.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.Refund(ctx, f.customer, o.ID, "")
	assert.ErrorIs(t, err, principal.ErrForbidden)

	o, err = f.svc.Refund(ctx, admin, o.ID, "damaged")
	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, o.Status)
	assert.Equal(t, PaymentRefunded, o.PaymentStatus)

	statuses := make([]Status, 0, len(o.History))
	for _, h := range o.History {
		statuses = append(statuses, h.Status)
	}
	assert.Equal(t, []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusRefunded}, statuses)
	assert.Equal(t, 6, count(t, f.pool, `SELECT COUNT(*) FROM outbox_events WHERE aggregate_id=$1`, o.ID))
	// refunds do not restock
	assert.Equal(t, 4, pgtest.Stock(t, f.pool, id))
}

func TestTransition_CancelReleasesStock(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	id := pgtest.SeedProduct(t, f.pool, pgtest.Product{Stock: 5})
	f.addToCart(t, id, 3)
	o := f.checkout(t)
	require.Equal(t, 2, pgtest.Stock(t, f.pool, id))

	o, err := f.svc.Confirm(ctx, f.customer, o.ID, "")
	require.NoError(t, err)
	o, err = f.svc.Cancel(ctx, f.customer, o.ID, "changed my mind")
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, PaymentRefunded, o.PaymentStatus)
	assert.Equal(t, 5, pgtest.Stock(t, f.pool, id))

	_, err = f.svc.Cancel(ctx, f.customer, o.ID, "")
	var ite *InvalidTransitionError
	require.True(t, errors.As(err, &ite))
	assert.Equal(t, StatusCancelled, ite.From)
	assert.Equal(t, 5, pgtest.Stock(t, f.pool, id), "second cancel must not release again")
}

func TestTransition_Visibility(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	id := pgtest.SeedProduct(t, f.pool, pgtest.Product{MerchantID: "m-1", Stock: 5})
	f.addToCart(t, id, 1)
	o := f.checkout(t)

	stranger := principal.Principal{ID: "cust-2", Role: principal.RoleCustomer}
	otherMerchant := principal.Principal{ID: "m-2", Role: principal.RoleMerchant}

	_, err := f.svc.Cancel(ctx, stranger, o.ID, "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = f.svc.StartProcessing(ctx, otherMerchant, o.ID, "")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = f.svc.Get(ctx, stranger, o.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = f.svc.Transition(ctx, f.customer, o.ID, "completed", TransitionInput{})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStatus_CachedAndInvalidated(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	id := pgtest.SeedProduct(t, f.pool, pgtest.Product{Stock: 5})
	f.addToCart(t, id, 1)
	o := f.checkout(t)

	v, err := f.svc.Status(ctx, f.customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, v.Status)
	assert.True(t, f.mr.Exists("order_status:"+o.ID))

	_, err = f.svc.Confirm(ctx, f.customer, o.ID, "")
	require.NoError(t, err)
	assert.False(t, f.mr.Exists("order_status:"+o.ID))

	v, err = f.svc.Status(ctx, f.customer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, v.Status)

	_, err = f.svc.Status(ctx, principal.Principal{ID: "cust-9", Role: principal.RoleCustomer}, o.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestList_ScopesAndPaginates(t *testing.T) {
	f := setupService(t)
	ctx := context.Background()
	mine := pgtest.SeedProduct(t, f.pool, pgtest.Product{MerchantID: "m-1", Stock: 50})
	theirs := pgtest.SeedProduct(t, f.pool, pgtest.Product{MerchantID: "m-2", Stock: 50})

	for i := 0; i < 12; i++ {
		f.addToCart(t, mine, 1)
		f.checkout(t)
	}
	f.addToCart(t, theirs, 1)
	last := f.checkout(t)
	_, err := f.svc.Cancel(ctx, f.customer, last.ID, "")
	require.NoError(t, err)

	res, err := f.svc.List(ctx, f.customer, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 13, res.Total)
	assert.Len(t, res.Orders, DefaultPageSize)

	res, err = f.svc.List(ctx, f.customer, ListFilter{Page: 2})
	require.NoError(t, err)
	assert.Len(t, res.Orders, 3)

	res, err = f.svc.List(ctx, f.customer, ListFilter{Status: StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	res, err = f.svc.List(ctx, principal.Principal{ID: "m-2", Role: principal.RoleMerchant}, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	res, err = f.svc.List(ctx, principal.Principal{ID: "cust-2", Role: principal.RoleCustomer}, ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)

	_, err = f.svc.List(ctx, f.customer, ListFilter{Status: "completed"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
