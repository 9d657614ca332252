package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/rkarimi/simbazaar/internal/adapters/cache"
	"github.com/rkarimi/simbazaar/internal/domain/auctions"
)

// AuctionHandler exposes the bid engine and settlement over HTTP
type AuctionHandler struct {
	service *auctions.Service
	cache   *cache.ListingCache
	logger  *slog.Logger
}

// NewAuctionHandler creates a new auction handler
func NewAuctionHandler(service *auctions.Service, listingCache *cache.ListingCache, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{service: service, cache: listingCache, logger: logger}
}

type auctionResponse struct {
	ID              string    `json:"id"`
	SimCardID       string    `json:"sim_card_id"`
	BasePrice       int64     `json:"base_price"`
	CurrentBid      int64     `json:"current_bid"`
	HighestBidderID *string   `json:"highest_bidder_id,omitempty"`
	EndAt           time.Time `json:"end_at"`
	CreatedAt       time.Time `json:"created_at"`
}

func toAuctionResponse(a *auctions.Auction) auctionResponse {
	resp := auctionResponse{
		ID:         a.ID.String(),
		SimCardID:  a.SimCardID.String(),
		BasePrice:  a.BasePrice,
		CurrentBid: a.CurrentBid,
		EndAt:      a.EndAt,
		CreatedAt:  a.CreatedAt,
	}
	if a.HighestBidderID != nil {
		s := a.HighestBidderID.String()
		resp.HighestBidderID = &s
	}
	return resp
}

type bidResponse struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auction_id"`
	UserID    string    `json:"user_id"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type participantResponse struct {
	UserID           string    `json:"user_id"`
	LastBidAmount    int64     `json:"last_bid_amount"`
	LastBidAt        time.Time `json:"last_bid_at"`
	HoldsReservation bool      `json:"holds_reservation"`
}

// CreateAuction handles POST /auctions
func (h *AuctionHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SimCardID string    `json:"sim_card_id"`
		BasePrice int64     `json:"base_price"`
		EndAt     time.Time `json:"end_at"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	simCardID, err := uuid.Parse(req.SimCardID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid sim_card_id")
		return
	}

	auction, err := h.service.CreateAuction(r.Context(), auctions.CreateAuctionCommand{
		SimCardID: simCardID,
		BasePrice: req.BasePrice,
		EndAt:     req.EndAt,
	})
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, toAuctionResponse(auction))
}

// GetAuction handles GET /auctions/{auctionID}
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(chi.URLParam(r, "auctionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	auction, err := h.service.GetAuction(r.Context(), auctionID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, toAuctionResponse(auction))
}

// PlaceBid handles POST /auctions/{auctionID}/bids
func (h *AuctionHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(chi.URLParam(r, "auctionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	var req struct {
		BidderID string `json:"bidder_id"`
		Amount   int64  `json:"amount"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bidderID, err := uuid.Parse(req.BidderID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid bidder_id")
		return
	}

	bid, err := h.service.PlaceBid(r.Context(), auctions.PlaceBidCommand{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    req.Amount,
	})
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusCreated, bidResponse{
		ID:        bid.ID.String(),
		AuctionID: bid.AuctionID.String(),
		UserID:    bid.UserID.String(),
		Amount:    bid.Amount,
		CreatedAt: bid.CreatedAt,
	})
}

// Settle handles POST /auctions/{auctionID}/settle
func (h *AuctionHandler) Settle(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(chi.URLParam(r, "auctionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	var req struct {
		WinnerID string `json:"winner_id"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	winnerID, err := uuid.Parse(req.WinnerID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid winner_id")
		return
	}

	order, err := h.service.Settle(r.Context(), auctions.SettleCommand{
		AuctionID: auctionID,
		WinnerID:  winnerID,
	})
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	// The listing flipped to sold; drop the stale cache entry.
	if cacheErr := h.cache.Invalidate(r.Context(), order.SimCardID); cacheErr != nil {
		h.logger.Warn("listing cache invalidation failed", "error", cacheErr)
	}

	respondJSON(w, http.StatusCreated, toOrderResponse(order))
}

// Participants handles GET /auctions/{auctionID}/participants
func (h *AuctionHandler) Participants(w http.ResponseWriter, r *http.Request) {
	auctionID, err := uuid.Parse(chi.URLParam(r, "auctionID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid auction id")
		return
	}

	participants, err := h.service.Participants(r.Context(), auctionID)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	out := make([]participantResponse, 0, len(participants))
	for _, p := range participants {
		out = append(out, participantResponse{
			UserID:           p.UserID.String(),
			LastBidAmount:    p.LastBidAmount,
			LastBidAt:        p.LastBidAt,
			HoldsReservation: p.HoldsReservation,
		})
	}
	respondJSON(w, http.StatusOK, out)
}
