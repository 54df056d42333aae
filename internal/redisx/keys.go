package redisx

import "time"

const (
	// Cache status order: order_status:{owner_id}:{order_id} -> {"status": "..."}
	// Owner id di key: cache hit tidak boleh bocor lintas owner.
	KeyOrderStatus = "order_status:%d:%d"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
