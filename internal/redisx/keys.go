package redisx

import "time"

const (
	// Checkout idempotency: idem:checkout:{customer_id}:{key} -> order_id
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Order status cache: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Event dedup: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Cart snapshot: cart:{owner_id}
	KeyCart = "cart:%s"

	// Cart write generation: cart:gen:{owner_id} -> counter bumped on every write
	KeyCartGen = "cart:gen:%s"

	// Product snapshot: product:{product_id}
	KeyProduct = "product:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLCart        = 5 * time.Minute
	TTLCartGen     = 24 * time.Hour
	TTLProduct     = 5 * time.Minute
)
