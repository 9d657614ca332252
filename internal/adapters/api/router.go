package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handlers groups everything the router mounts
type Handlers struct {
	Accounts *AccountHandler
	Listings *ListingHandler
	Auctions *AuctionHandler
	Orders   *OrderHandler
}

// NewRouter builds the HTTP routing table
func NewRouter(h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/accounts", func(r chi.Router) {
			r.Post("/", h.Accounts.CreateAccount)
			r.Get("/{accountID}", h.Accounts.GetBalance)
			r.Post("/{accountID}/deposit", h.Accounts.Deposit)
			r.Post("/{accountID}/withdraw", h.Accounts.Withdraw)
		})

		r.Route("/listings", func(r chi.Router) {
			r.Post("/", h.Listings.CreateListing)
			r.Get("/", h.Listings.ListListings)
			r.Get("/{listingID}", h.Listings.GetListing)
		})

		r.Route("/auctions", func(r chi.Router) {
			r.Post("/", h.Auctions.CreateAuction)
			r.Get("/{auctionID}", h.Auctions.GetAuction)
			r.Post("/{auctionID}/bids", h.Auctions.PlaceBid)
			r.Post("/{auctionID}/settle", h.Auctions.Settle)
			r.Get("/{auctionID}/participants", h.Auctions.Participants)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", h.Orders.CreateOrder)
			r.Get("/{orderID}", h.Orders.GetOrder)
			r.Post("/{orderID}/advance", h.Orders.Advance)
			r.Post("/{orderID}/complete", h.Orders.Complete)
			r.Post("/{orderID}/cancel", h.Orders.Cancel)
			r.Get("/{orderID}/commission", h.Orders.GetCommission)
		})
	})

	return r
}
