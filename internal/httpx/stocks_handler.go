package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nk-nexus/order-stock-api/internal/orders"
	"github.com/nk-nexus/order-stock-api/internal/stocks"
)

type StockService interface {
	CreateItems(ctx context.Context, inputs []stocks.ItemInput) ([]orders.StockItem, []int64, error)
	Availability(ctx context.Context, productID int64) (int, error)
}

type StocksHandler struct {
	Svc StockService
	Log *zap.Logger
}

type CreateStockItemsReq struct {
	Items []stocks.ItemInput `json:"items"`
}

type CreateStockItemsResp struct {
	Created []orders.StockItem `json:"created"`
	// product ids that resolved to nothing; reported, not failed
	SkippedProductIDs []int64 `json:"skipped_product_ids,omitempty"`
}

func (h *StocksHandler) Register(r *chi.Mux, authn, staff func(http.Handler) http.Handler) {
	r.Route("/stocks", func(r chi.Router) {
		r.Use(authn, staff)
		r.Post("/", h.createItems)
		r.Get("/availability", h.availability)
	})
}

func (h *StocksHandler) createItems(w http.ResponseWriter, r *http.Request) {
	var req CreateStockItemsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errBody("invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	created, skipped, err := h.Svc.CreateItems(ctx, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	if created == nil {
		created = []orders.StockItem{}
	}
	writeJSON(w, http.StatusCreated, CreateStockItemsResp{Created: created, SkippedProductIDs: skipped})
}

func (h *StocksHandler) availability(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		writeJSON(w, http.StatusBadRequest, errBody("bad product id"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	n, err := h.Svc.Availability(ctx, productID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": productID, "available": n})
}
