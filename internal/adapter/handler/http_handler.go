package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rl1809/salestock/internal/adapter/cache"
	"github.com/rl1809/salestock/internal/core/domain"
	"github.com/rl1809/salestock/internal/core/service"
	"github.com/rl1809/salestock/internal/port"
)

type HTTPHandler struct {
	saleService *service.SaleService
	inventory   port.InventoryRepository
	cache       *cache.Versioned
}

func NewHTTPHandler(saleService *service.SaleService, inventory port.InventoryRepository, cache *cache.Versioned) *HTTPHandler {
	return &HTTPHandler{saleService: saleService, inventory: inventory, cache: cache}
}

type saleItemRequest struct {
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	UnitCost  float64 `json:"unit_cost"`
}

type createSaleRequest struct {
	Items []saleItemRequest `json:"items"`
}

type createSaleResponse struct {
	SaleID int64  `json:"sale_id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *HTTPHandler) CreateSale(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createSaleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	items := make([]domain.SaleItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, domain.SaleItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			UnitCost:  it.UnitCost,
		})
	}

	if err := domain.ValidateSaleItems(items); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}

	saleID, err := h.saleService.CreateSale(r.Context(), items)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	writeJSON(w, http.StatusAccepted, createSaleResponse{
		SaleID: saleID,
		Status: string(domain.SaleStatusQueued),
	})
}

func (h *HTTPHandler) GetInventoryItem(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || productID <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid product id"})
		return
	}

	payload, err := h.cache.RememberItem(r.Context(), productID, func(ctx context.Context) ([]byte, error) {
		item, err := h.inventory.GetItem(ctx, productID)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]any{
			"product_id": item.ProductID,
			"quantity":   item.Quantity,
		})
	})
	if errors.Is(err, domain.ErrItemNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

const listPageSize = 50

func (h *HTTPHandler) ListInventory(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	payload, err := h.cache.RememberList(r.Context(), nil, page, func(ctx context.Context) ([]byte, error) {
		items, err := h.inventory.ListItems(ctx, (page-1)*listPageSize, listPageSize)
		if err != nil {
			return nil, err
		}
		out := make([]map[string]any, 0, len(items))
		for _, item := range items {
			out = append(out, map[string]any{
				"product_id": item.ProductID,
				"quantity":   item.Quantity,
			})
		}
		return json.Marshal(map[string]any{"page": page, "items": out})
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(payload)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
