package billing

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns the provider-facing billing routes
func (h *Handler) Routes(authMiddleware, providerMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(providerMiddleware)

	r.Get("/balance", h.GetBalance)
	r.Get("/transactions", h.GetTransactions)
	r.Post("/purchases", h.CreatePurchase)

	r.Route("/campaigns", func(r chi.Router) {
		r.Post("/", h.CreateCampaign)
		r.Get("/", h.ListCampaigns)
		r.Get("/{id}", h.GetCampaign)
		r.Post("/{id}/pause", h.PauseCampaign)
		r.Post("/{id}/resume", h.ResumeCampaign)
		r.Post("/{id}/cancel", h.CancelCampaign)
		r.Get("/{id}/clicks", h.ListCampaignClicks)
	})

	r.Route("/ads", func(r chi.Router) {
		r.Post("/", h.SubmitAd)
		r.Get("/", h.ListAds)
		r.Get("/{id}", h.GetAd)
		r.Post("/{id}/pay", h.PayAd)
	})

	return r
}

// PublicRoutes returns the unauthenticated surface: gateway webhooks, the
// serving endpoint and impression/click tracking.
func (h *Handler) PublicRoutes() chi.Router {
	r := chi.NewRouter()

	r.Post("/webhooks/{provider}", h.Webhook)
	r.Get("/ads/eligible", h.ListEligibleAds)

	r.Route("/track", func(r chi.Router) {
		r.Post("/campaigns/{id}/click", h.TrackCampaignClick)
		r.Post("/campaigns/{id}/impression", h.TrackCampaignImpression)
		r.Post("/ads/{id}/click", h.TrackAdClick)
		r.Post("/ads/{id}/impression", h.TrackAdImpression)
	})

	return r
}

// AdminRoutes returns the admin-only surface: ad review, lifecycle
// overrides, balance adjustments and reconciliation.
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(authMiddleware)
	r.Use(adminMiddleware)

	r.Route("/ads/{id}", func(r chi.Router) {
		r.Post("/approve", h.ApproveAd)
		r.Post("/reject", h.RejectAd)
		r.Post("/pause", h.PauseAd)
		r.Post("/resume", h.ResumeAd)
	})

	r.Route("/accounts/{id}", func(r chi.Router) {
		r.Post("/adjust", h.AdjustBalance)
		r.Post("/reconcile", h.ReconcileBalance)
	})

	return r
}
