package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rkarimi/simbazaar/internal/adapters/cache"
	"github.com/rkarimi/simbazaar/internal/domain/listings"
)

// ListingHandler exposes SIM card listings over HTTP. Reads of a single
// listing go through the Redis cache; the cache is best effort and a failure
// there never fails the request.
type ListingHandler struct {
	service *listings.Service
	cache   *cache.ListingCache
	logger  *slog.Logger
}

// NewListingHandler creates a new listing handler
func NewListingHandler(service *listings.Service, listingCache *cache.ListingCache, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{service: service, cache: listingCache, logger: logger}
}

type listingResponse struct {
	ID        string    `json:"id"`
	SellerID  string    `json:"seller_id"`
	Number    string    `json:"number"`
	SaleType  string    `json:"sale_type"`
	Status    string    `json:"status"`
	Price     int64     `json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

func toListingResponse(sim *listings.SimCard) listingResponse {
	return listingResponse{
		ID:        sim.ID.String(),
		SellerID:  sim.SellerID.String(),
		Number:    sim.Number,
		SaleType:  string(sim.SaleType),
		Status:    string(sim.Status),
		Price:     sim.Price,
		CreatedAt: sim.CreatedAt,
	}
}

// CreateListing handles POST /listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SellerID string `json:"seller_id"`
		Number   string `json:"number"`
		SaleType string `json:"sale_type"`
		Price    int64  `json:"price"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sellerID, err := uuid.Parse(req.SellerID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid seller_id")
		return
	}

	sim, err := h.service.CreateListing(r.Context(), listings.CreateListingCommand{
		SellerID: sellerID,
		Number:   req.Number,
		SaleType: listings.SaleType(req.SaleType),
		Price:    req.Price,
	})
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, toListingResponse(sim))
}

// GetListing handles GET /listings/{listingID}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := uuid.Parse(chi.URLParam(r, "listingID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid listing id")
		return
	}

	if cached, cacheErr := h.cache.Get(r.Context(), listingID); cacheErr != nil {
		h.logger.Warn("listing cache read failed", "error", cacheErr)
	} else if cached != nil {
		respondJSON(w, http.StatusOK, toListingResponse(cached))
		return
	}

	sim, err := h.service.GetListing(r.Context(), listingID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	if cacheErr := h.cache.Set(r.Context(), sim); cacheErr != nil {
		h.logger.Warn("listing cache write failed", "error", cacheErr)
	}

	respondJSON(w, http.StatusOK, toListingResponse(sim))
}

// ListListings handles GET /listings?limit=&offset=
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	query := listings.ListQuery{Limit: 50}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 || limit > 200 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		query.Limit = limit
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, err := strconv.Atoi(v)
		if err != nil || offset < 0 {
			respondError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		query.Offset = offset
	}

	result, err := h.service.ListAvailable(r.Context(), query)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	out := make([]listingResponse, 0, len(result))
	for _, sim := range result {
		out = append(out, toListingResponse(sim))
	}
	respondJSON(w, http.StatusOK, out)
}
