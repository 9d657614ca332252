package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rkarimi/simbazaar/internal/domain/auctions"
	"github.com/rkarimi/simbazaar/internal/domain/listings"
	"github.com/rkarimi/simbazaar/internal/domain/orders"
	"github.com/rkarimi/simbazaar/internal/domain/wallet"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// respondDomainError maps domain sentinel errors to HTTP statuses. Anything
// unmapped is a 500 and gets logged; the sentinels themselves are safe to show
// the caller.
func respondDomainError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, wallet.ErrAccountNotFound),
		errors.Is(err, listings.ErrListingNotFound),
		errors.Is(err, auctions.ErrAuctionNotFound),
		errors.Is(err, orders.ErrOrderNotFound):
		status = http.StatusNotFound

	case errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, listings.ErrInvalidNumber),
		errors.Is(err, listings.ErrInvalidSaleType),
		errors.Is(err, listings.ErrInvalidPrice),
		errors.Is(err, auctions.ErrInvalidBidAmount),
		errors.Is(err, auctions.ErrInvalidBasePrice),
		errors.Is(err, auctions.ErrInvalidEndTime):
		status = http.StatusBadRequest

	case errors.Is(err, wallet.ErrInsufficientFunds):
		status = http.StatusPaymentRequired

	case errors.Is(err, auctions.ErrBidTooLow),
		errors.Is(err, auctions.ErrAuctionExists),
		errors.Is(err, auctions.ErrAuctionClosed),
		errors.Is(err, auctions.ErrAuctionStillOpen),
		errors.Is(err, auctions.ErrNotHighestBidder),
		errors.Is(err, auctions.ErrAlreadySold),
		errors.Is(err, auctions.ErrSellerCannotBid),
		errors.Is(err, auctions.ErrNotAuctionListing),
		errors.Is(err, orders.ErrInvalidTransition),
		errors.Is(err, orders.ErrListingNotAvailable),
		errors.Is(err, orders.ErrNotFixedPrice),
		errors.Is(err, orders.ErrSelfPurchase),
		errors.Is(err, wallet.ErrInvalidLedgerState):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		respondError(w, status, "internal server error")
		return
	}

	respondError(w, status, err.Error())
}
