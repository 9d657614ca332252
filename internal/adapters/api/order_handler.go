package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rkarimi/simbazaar/internal/adapters/cache"
	"github.com/rkarimi/simbazaar/internal/domain/orders"
)

// OrderHandler exposes the purchase order workflow over HTTP
type OrderHandler struct {
	service *orders.Service
	cache   *cache.ListingCache
	logger  *slog.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(service *orders.Service, listingCache *cache.ListingCache, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{service: service, cache: listingCache, logger: logger}
}

type orderResponse struct {
	ID                   string    `json:"id"`
	BuyerID              string    `json:"buyer_id"`
	SellerID             string    `json:"seller_id"`
	SimCardID            string    `json:"sim_card_id"`
	Price                int64     `json:"price"`
	CommissionAmount     int64     `json:"commission_amount"`
	SellerReceivedAmount int64     `json:"seller_received_amount"`
	Status               string    `json:"status"`
	EscrowState          string    `json:"escrow_state"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func toOrderResponse(o *orders.PurchaseOrder) orderResponse {
	return orderResponse{
		ID:                   o.ID.String(),
		BuyerID:              o.BuyerID.String(),
		SellerID:             o.SellerID.String(),
		SimCardID:            o.SimCardID.String(),
		Price:                o.Price,
		CommissionAmount:     o.CommissionAmount,
		SellerReceivedAmount: o.SellerReceivedAmount,
		Status:               string(o.Status),
		EscrowState:          string(o.EscrowState),
		CreatedAt:            o.CreatedAt,
		UpdatedAt:            o.UpdatedAt,
	}
}

// CreateOrder handles POST /orders (fixed-price purchase)
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuyerID   string `json:"buyer_id"`
		SimCardID string `json:"sim_card_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	buyerID, err := uuid.Parse(req.BuyerID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid buyer_id")
		return
	}
	simCardID, err := uuid.Parse(req.SimCardID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sim_card_id")
		return
	}

	order, err := h.service.CreateFixedPrice(r.Context(), orders.CreateOrderCommand{
		BuyerID:   buyerID,
		SimCardID: simCardID,
	})
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	h.invalidateListing(r, order.SimCardID)
	respondJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrder handles GET /orders/{orderID}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.service.GetOrder(r.Context(), orderID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

// Advance handles POST /orders/{orderID}/advance
func (h *OrderHandler) Advance(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.service.Advance(r.Context(), orderID, orders.Status(req.Status))
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

// Complete handles POST /orders/{orderID}/complete
func (h *OrderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.service.Complete(r.Context(), orderID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

// Cancel handles POST /orders/{orderID}/cancel
func (h *OrderHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	order, err := h.service.Cancel(r.Context(), orderID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	// The listing is back on the market.
	h.invalidateListing(r, order.SimCardID)
	respondJSON(w, http.StatusOK, toOrderResponse(order))
}

// GetCommission handles GET /orders/{orderID}/commission
func (h *OrderHandler) GetCommission(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderID(w, r)
	if !ok {
		return
	}

	record, err := h.service.GetCommissionRecord(r.Context(), orderID)
	if err != nil {
		respondError(w, http.StatusNotFound, "commission record not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"order_id":               record.PurchaseOrderID.String(),
		"sale_price":             record.SalePrice,
		"commission_percentage":  record.CommissionPercentage,
		"commission_amount":      record.CommissionAmount,
		"seller_received_amount": record.SellerReceivedAmount,
		"created_at":             record.CreatedAt,
	})
}

func (h *OrderHandler) orderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order id")
		return uuid.Nil, false
	}
	return orderID, true
}

func (h *OrderHandler) invalidateListing(r *http.Request, simCardID uuid.UUID) {
	if err := h.cache.Invalidate(r.Context(), simCardID); err != nil {
		h.logger.Warn("listing cache invalidation failed", "error", err)
	}
}
