package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nk-nexus/order-stock-api/internal/auth"
	"github.com/nk-nexus/order-stock-api/internal/orders"
)

// mockOrderService implements OrderService with overridable funcs.
type mockOrderService struct {
	createFn  func(ctx context.Context, ownerID int64, details string, productIDs []int64) (*orders.Aggregate, error)
	listFn    func(ctx context.Context, ownerID int64, statuses []orders.Status) ([]orders.Order, error)
	getFn     func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error)
	addFn     func(ctx context.Context, ownerID, orderID int64, productIDs []int64) (*orders.Aggregate, error)
	removeFn  func(ctx context.Context, ownerID, orderID int64, orderItemIDs []int64) (*orders.Aggregate, error)
	confirmFn func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error)
	completeF func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error)
	cancelFn  func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, []int64, error)
}

func (m *mockOrderService) CreateInterested(ctx context.Context, ownerID int64, details string, productIDs []int64) (*orders.Aggregate, error) {
	return m.createFn(ctx, ownerID, details, productIDs)
}
func (m *mockOrderService) ListByOwner(ctx context.Context, ownerID int64, statuses []orders.Status) ([]orders.Order, error) {
	return m.listFn(ctx, ownerID, statuses)
}
func (m *mockOrderService) GetAggregate(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error) {
	return m.getFn(ctx, ownerID, orderID)
}
func (m *mockOrderService) AddItems(ctx context.Context, ownerID, orderID int64, productIDs []int64) (*orders.Aggregate, error) {
	return m.addFn(ctx, ownerID, orderID, productIDs)
}
func (m *mockOrderService) RemoveItems(ctx context.Context, ownerID, orderID int64, orderItemIDs []int64) (*orders.Aggregate, error) {
	return m.removeFn(ctx, ownerID, orderID, orderItemIDs)
}
func (m *mockOrderService) Confirm(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error) {
	return m.confirmFn(ctx, ownerID, orderID)
}
func (m *mockOrderService) Complete(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error) {
	return m.completeF(ctx, ownerID, orderID)
}
func (m *mockOrderService) Cancel(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, []int64, error) {
	return m.cancelFn(ctx, ownerID, orderID)
}

type publishedMsg struct {
	topic string
	value []byte
}

type fakePublisher struct{ msgs []publishedMsg }

func (f *fakePublisher) PublishTo(topic string, key, value []byte, headers ...kafkago.Header) {
	f.msgs = append(f.msgs, publishedMsg{topic: topic, value: value})
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// testAuthn injects fixed claims; middleware itself is tested apart.
func testAuthn(ownerID int64, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), claimsContextKey, &auth.Claims{OwnerID: ownerID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// unreachable redis: cache paths are best-effort and must not break
// the handlers when the cache is down.
func testRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
}

// memCache exercises the cache-hit path, which testRedis cannot.
type memCache struct{ m map[string]string }

func newMemCache() *memCache { return &memCache{m: map[string]string{}} }

func (c *memCache) Get(ctx context.Context, key string) *redis.StringCmd {
	if v, ok := c.m[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (c *memCache) Set(ctx context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	b, _ := value.([]byte)
	c.m[key] = string(b)
	return redis.NewStatusResult("OK", nil)
}

func setupOrders(t *testing.T, svc OrderService) (*fakePublisher, http.Handler) {
	t.Helper()
	pub := &fakePublisher{}
	h := &OrdersHandler{
		Svc:      svc,
		Producer: pub,
		Redis:    testRedis(),
		Log:      zaptest.NewLogger(t),
		Service:  "order-api-test",
	}
	router := NewRouter()
	h.Register(router, testAuthn(42, auth.RoleCustomer))
	return pub, router
}

func sampleAggregate(status orders.Status) *orders.Aggregate {
	stock := int64(101)
	agg := &orders.Aggregate{
		Order: orders.Order{ID: 7, OwnerID: 42, Status: status, Amount: dec("25.00")},
		Items: []orders.OrderItem{
			{ID: 11, OrderID: 7, ProductID: 1},
			{ID: 12, OrderID: 7, ProductID: 1},
			{ID: 13, OrderID: 7, ProductID: 2},
		},
	}
	if status != orders.StatusInterested {
		agg.Items[0].StockItemID = &stock
	}
	return agg
}

func TestCreateOrder(t *testing.T) {
	t.Run("created with amount and event", func(t *testing.T) {
		svc := &mockOrderService{
			createFn: func(ctx context.Context, ownerID int64, details string, productIDs []int64) (*orders.Aggregate, error) {
				assert.Equal(t, int64(42), ownerID)
				assert.Equal(t, []int64{1, 1, 2}, productIDs)
				return sampleAggregate(orders.StatusInterested), nil
			},
		}
		pub, router := setupOrders(t, svc)

		body, _ := json.Marshal(CreateOrderReq{Details: "gift", ProductIDs: []int64{1, 1, 2}})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader(body)))

		require.Equal(t, http.StatusCreated, rec.Code)
		var got orders.Aggregate
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, orders.StatusInterested, got.Order.Status)
		assert.True(t, got.Order.Amount.Equal(dec("25.00")))
		assert.Len(t, got.Items, 3)

		require.Len(t, pub.msgs, 1)
		assert.Equal(t, orders.TopicOrderCreated, pub.msgs[0].topic)
		var env orders.Envelope
		require.NoError(t, json.Unmarshal(pub.msgs[0].value, &env))
		assert.Equal(t, orders.EventOrderCreated, env.EventType)
	})

	t.Run("validation error maps to 400", func(t *testing.T) {
		svc := &mockOrderService{
			createFn: func(ctx context.Context, ownerID int64, details string, productIDs []int64) (*orders.Aggregate, error) {
				return nil, orders.ErrValidation
			},
		}
		pub, router := setupOrders(t, svc)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader([]byte(`{"product_ids":[]}`))))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, pub.msgs)
	})

	t.Run("invalid json maps to 400", func(t *testing.T) {
		_, router := setupOrders(t, &mockOrderService{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/orders", bytes.NewReader([]byte(`{`))))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestListOrders(t *testing.T) {
	svc := &mockOrderService{
		listFn: func(ctx context.Context, ownerID int64, statuses []orders.Status) ([]orders.Order, error) {
			assert.Equal(t, []orders.Status{orders.StatusOrdered, orders.StatusPurchased}, statuses)
			return nil, nil
		},
	}
	_, router := setupOrders(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?status=o,p", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String(), "nil list renders as empty array")
}

func TestGetOrder(t *testing.T) {
	t.Run("foreign order reads as not found", func(t *testing.T) {
		svc := &mockOrderService{
			getFn: func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error) {
				return nil, orders.ErrNotFound
			},
		}
		_, router := setupOrders(t, svc)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/7", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("bad id maps to 400", func(t *testing.T) {
		_, router := setupOrders(t, &mockOrderService{})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("status fallback hits service when cache is down", func(t *testing.T) {
		svc := &mockOrderService{
			getFn: func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error) {
				return sampleAggregate(orders.StatusOrdered), nil
			},
		}
		_, router := setupOrders(t, svc)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/7/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ORDERED"}`, rec.Body.String())
	})
}

func TestGetOrderStatusCacheScopedByOwner(t *testing.T) {
	cache := newMemCache()

	newRouter := func(ownerID int64, svc OrderService) http.Handler {
		h := &OrdersHandler{
			Svc:      svc,
			Producer: &fakePublisher{},
			Redis:    cache,
			Log:      zaptest.NewLogger(t),
			Service:  "order-api-test",
		}
		router := NewRouter()
		h.Register(router, testAuthn(ownerID, auth.RoleCustomer))
		return router
	}

	// owner 42 warms the cache through the DB fallback
	warm := newRouter(42, &mockOrderService{
		getFn: func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error) {
			return sampleAggregate(orders.StatusOrdered), nil
		},
	})
	rec := httptest.NewRecorder()
	warm.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/7/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	t.Run("cache hit serves the owner without a DB read", func(t *testing.T) {
		hit := newRouter(42, &mockOrderService{
			getFn: func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error) {
				t.Fatal("cache hit must not reach the service")
				return nil, nil
			},
		})
		rec := httptest.NewRecorder()
		hit.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/7/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ORDERED"}`, rec.Body.String())
	})

	t.Run("another owner never sees the cached entry", func(t *testing.T) {
		other := newRouter(99, &mockOrderService{
			getFn: func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error) {
				assert.Equal(t, int64(99), ownerID)
				return nil, orders.ErrNotFound
			},
		})
		rec := httptest.NewRecorder()
		other.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/7/status", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestConfirmOrder(t *testing.T) {
	t.Run("success publishes confirmed bindings", func(t *testing.T) {
		svc := &mockOrderService{
			confirmFn: func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error) {
				assert.Equal(t, int64(7), orderID)
				return sampleAggregate(orders.StatusOrdered), nil
			},
		}
		pub, router := setupOrders(t, svc)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/7/confirm", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, pub.msgs, 1)
		assert.Equal(t, orders.TopicOrderConfirmed, pub.msgs[0].topic)
	})

	t.Run("insufficient stock maps to 409 with details and rejected event", func(t *testing.T) {
		svc := &mockOrderService{
			confirmFn: func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error) {
				return nil, &orders.InsufficientStockError{
					OrderID: 7,
					Details: []orders.ShortageDetail{{ProductID: 1, Required: 2, Available: 1}},
				}
			},
		}
		pub, router := setupOrders(t, svc)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/7/confirm", nil))

		require.Equal(t, http.StatusConflict, rec.Code)
		var body struct {
			Details []orders.ShortageDetail `json:"details"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Details, 1)
		assert.Equal(t, int64(1), body.Details[0].ProductID)

		require.Len(t, pub.msgs, 1)
		assert.Equal(t, orders.TopicStockRejected, pub.msgs[0].topic)
	})

	t.Run("wrong state maps to 404", func(t *testing.T) {
		svc := &mockOrderService{
			confirmFn: func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error) {
				return nil, orders.ErrNotFound
			},
		}
		pub, router := setupOrders(t, svc)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/7/confirm", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, pub.msgs)
	})
}

func TestCompleteOrder(t *testing.T) {
	t.Run("unbound line maps to 422", func(t *testing.T) {
		svc := &mockOrderService{
			completeF: func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error) {
				return nil, orders.ErrUnprocessable
			},
		}
		pub, router := setupOrders(t, svc)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/7/complete", nil))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Empty(t, pub.msgs)
	})

	t.Run("success publishes completed", func(t *testing.T) {
		svc := &mockOrderService{
			completeF: func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, error) {
				return sampleAggregate(orders.StatusCompleted), nil
			},
		}
		pub, router := setupOrders(t, svc)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/7/complete", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, pub.msgs, 1)
		assert.Equal(t, orders.TopicOrderCompleted, pub.msgs[0].topic)
	})
}

func TestCancelOrder(t *testing.T) {
	svc := &mockOrderService{
		cancelFn: func(ctx context.Context, ownerID, orderID int64) (*orders.Aggregate, []int64, error) {
			agg := sampleAggregate(orders.StatusCancelled)
			for i := range agg.Items {
				agg.Items[i].StockItemID = nil
			}
			return agg, []int64{101, 102, 201}, nil
		},
	}
	pub, router := setupOrders(t, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/orders/7/cancel", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got orders.Aggregate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, orders.StatusCancelled, got.Order.Status)
	for _, it := range got.Items {
		assert.Nil(t, it.StockItemID)
	}

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, orders.TopicOrderCancelled, pub.msgs[0].topic)
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(pub.msgs[0].value, &env))
	var payload orders.OrderCancelledPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, []int64{101, 102, 201}, payload.ReleasedUnits)
}

func TestRemoveItems(t *testing.T) {
	svc := &mockOrderService{
		removeFn: func(ctx context.Context, ownerID, orderID int64, orderItemIDs []int64) (*orders.Aggregate, error) {
			assert.Equal(t, []int64{13}, orderItemIDs)
			agg := sampleAggregate(orders.StatusInterested)
			agg.Items = agg.Items[:2]
			agg.Order.Amount = dec("20.00")
			return agg, nil
		},
	}
	_, router := setupOrders(t, svc)

	body := []byte(`{"order_item_ids":[13]}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/orders/7/items", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var got orders.Aggregate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Order.Amount.Equal(dec("20.00")))
	assert.Len(t, got.Items, 2)
}
