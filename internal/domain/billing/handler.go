package billing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/shopera/billing-api/internal/domain/boost"
	"github.com/shopera/billing-api/internal/domain/featured"
	"github.com/shopera/billing-api/internal/domain/ledger"
	"github.com/shopera/billing-api/internal/middleware"
	"github.com/shopera/billing-api/internal/pkg/response"
	"github.com/shopera/billing-api/internal/pkg/validator"
)

const maxWebhookBody = 1 << 20 // 1MB

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// --- Webhooks ---

// Webhook receives payment gateway callbacks. Always answers 200 for
// duplicates so the gateway stops redelivering.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "failed to read request body")
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get("X-Gateway-Signature")

	err = h.svc.HandleWebhook(r.Context(), provider, body, signature)
	switch {
	case err == nil:
		response.OK(w, map[string]string{"status": "processed"})
	case errors.Is(err, ErrInvalidSignature):
		response.Unauthorized(w, "invalid signature")
	case errors.Is(err, ErrInvalidWebhook):
		response.BadRequest(w, "invalid webhook payload")
	default:
		log.Error().Err(err).Str("provider", provider).Msg("webhook processing failed")
		response.InternalError(w)
	}
}

// --- Token ledger ---

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	account, err := h.svc.GetBalance(r.Context(), accountID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, account)
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	limit, offset := pagination(r)

	txs, err := h.svc.GetHistory(r.Context(), accountID, limit, offset)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.WithMeta(w, txs, response.Meta{Limit: limit, Offset: offset, Count: len(txs)})
}

func (h *Handler) CreatePurchase(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var req CreatePurchaseRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	t, err := h.svc.RegisterPurchase(r.Context(), accountID, req.Amount, req.ExternalRef, req.Description)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrDuplicateReference):
			response.Conflict(w, "external reference already registered")
		case errors.Is(err, ledger.ErrInvalidAmount):
			response.BadRequest(w, "amount must be greater than zero")
		default:
			response.InternalError(w)
		}
		return
	}
	response.Created(w, t)
}

func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	adminID := middleware.GetAccountID(r.Context())

	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid account ID")
		return
	}

	var req AdjustBalanceRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	t, err := h.svc.AdjustBalance(r.Context(), accountID, req.Delta, req.Description, adminID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			response.BadRequest(w, "delta must be non-zero")
		case errors.Is(err, ledger.ErrInsufficientBalance):
			response.Conflict(w, "insufficient token balance")
		default:
			response.InternalError(w)
		}
		return
	}
	response.OK(w, t)
}

func (h *Handler) ReconcileBalance(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid account ID")
		return
	}

	drift, err := h.svc.ReconcileBalance(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			response.NotFound(w, "account not found")
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]int64{"drift": drift})
}

// --- Boost campaigns ---

func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var req CreateCampaignRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	schedule := boost.Schedule{EndsAt: req.EndsAt}
	if req.StartsAt != nil {
		schedule.StartsAt = *req.StartsAt
	}

	c, err := h.svc.CreateCampaign(r.Context(), accountID, req.PricePerClick, req.Budget, schedule, boost.Audience{
		Countries: req.TargetCountries,
		Services:  req.TargetServices,
	})
	if err != nil {
		switch {
		case errors.Is(err, boost.ErrInvalidCampaign):
			response.BadRequest(w, "budget must cover at least one click")
		case errors.Is(err, ledger.ErrInsufficientBalance):
			response.Conflict(w, "insufficient token balance to fund the budget")
		default:
			response.InternalError(w)
		}
		return
	}
	response.Created(w, c)
}

func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	campaigns, err := h.svc.ListCampaigns(r.Context(), accountID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, campaigns)
}

func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign ID")
		return
	}

	c, err := h.svc.GetCampaign(r.Context(), accountID, campaignID)
	if err != nil {
		h.campaignError(w, err)
		return
	}
	response.OK(w, c)
}

func (h *Handler) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	h.campaignAction(w, r, h.svc.PauseCampaign)
}

func (h *Handler) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	h.campaignAction(w, r, h.svc.ResumeCampaign)
}

func (h *Handler) CancelCampaign(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign ID")
		return
	}

	unspent, err := h.svc.CancelCampaign(r.Context(), accountID, campaignID)
	if err != nil {
		h.campaignError(w, err)
		return
	}
	response.OK(w, map[string]int64{"refunded": unspent})
}

func (h *Handler) ListCampaignClicks(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign ID")
		return
	}
	limit, offset := pagination(r)

	clicks, err := h.svc.ListCampaignClicks(r.Context(), accountID, campaignID, limit, offset)
	if err != nil {
		h.campaignError(w, err)
		return
	}
	response.WithMeta(w, clicks, response.Meta{Limit: limit, Offset: offset, Count: len(clicks)})
}

// TrackCampaignClick is called by the serving surface when a boosted
// listing is clicked. 200 with charged=false means the click was served
// but not billed (duplicate, exhausted or inactive campaign).
func (h *Handler) TrackCampaignClick(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign ID")
		return
	}

	reqCtx := boost.RequestContext{
		UserID:    middleware.GetAccountID(r.Context()),
		IP:        middleware.GetClientIP(r),
		UserAgent: r.UserAgent(),
	}

	charged, err := h.svc.RecordClick(r.Context(), campaignID, reqCtx)
	if err != nil {
		switch {
		case errors.Is(err, boost.ErrCampaignNotFound):
			response.NotFound(w, "campaign not found")
			return
		case errors.Is(err, boost.ErrCampaignNotActive),
			errors.Is(err, boost.ErrBudgetExhausted),
			errors.Is(err, boost.ErrConcurrentModification):
			// The click itself succeeded from the visitor's perspective
			response.OK(w, map[string]bool{"charged": false})
			return
		default:
			response.InternalError(w)
			return
		}
	}
	response.OK(w, map[string]bool{"charged": charged})
}

func (h *Handler) TrackCampaignImpression(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign ID")
		return
	}

	if err := h.svc.RecordCampaignImpression(r.Context(), campaignID); err != nil {
		if errors.Is(err, boost.ErrCampaignNotActive) {
			response.OK(w, map[string]bool{"recorded": false})
			return
		}
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]bool{"recorded": true})
}

func (h *Handler) campaignAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, accountID, campaignID uuid.UUID) error) {
	accountID := middleware.GetAccountID(r.Context())
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid campaign ID")
		return
	}

	if err := fn(r.Context(), accountID, campaignID); err != nil {
		h.campaignError(w, err)
		return
	}
	response.OK(w, map[string]string{"status": "ok"})
}

func (h *Handler) campaignError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, boost.ErrCampaignNotFound):
		response.NotFound(w, "campaign not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "campaign belongs to another account")
	case errors.Is(err, boost.ErrInvalidStateTransition):
		response.Conflict(w, "campaign is not in a state that allows this action")
	default:
		response.InternalError(w)
	}
}

// --- Featured ads ---

func (h *Handler) SubmitAd(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	var req SubmitAdRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	a, err := h.svc.SubmitAd(r.Context(), accountID,
		featured.Creative{
			Title:       req.Title,
			Description: req.Description,
			ImageURL:    req.ImageURL,
			TargetURL:   req.TargetURL,
		},
		featured.Schedule{StartsAt: req.StartsAt, EndsAt: req.EndsAt},
		req.Placements, req.TargetCountries, req.TargetCategories,
		req.ProposedPrice, req.PriorityTier,
		featured.Caps{
			MaxImpressions: req.MaxImpressions,
			MaxClicks:      req.MaxClicks,
			Budget:         req.Budget,
			CostPerClick:   req.CostPerClick,
		})
	if err != nil {
		if errors.Is(err, featured.ErrInvalidAd) {
			response.BadRequest(w, "invalid ad parameters")
			return
		}
		response.InternalError(w)
		return
	}
	response.Created(w, a)
}

func (h *Handler) ListAds(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())

	ads, err := h.svc.ListAds(r.Context(), accountID)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, ads)
}

func (h *Handler) GetAd(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	adID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid ad ID")
		return
	}

	a, err := h.svc.GetAd(r.Context(), accountID, adID)
	if err != nil {
		h.adError(w, err)
		return
	}
	response.OK(w, a)
}

func (h *Handler) PayAd(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	adID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid ad ID")
		return
	}

	a, err := h.svc.PayAd(r.Context(), accountID, adID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientBalance):
			response.Conflict(w, "insufficient token balance")
		case errors.Is(err, featured.ErrInvalidStateTransition):
			response.Conflict(w, "ad is not awaiting payment")
		default:
			h.adError(w, err)
		}
		return
	}
	response.OK(w, a)
}

func (h *Handler) ApproveAd(w http.ResponseWriter, r *http.Request) {
	approverID := middleware.GetAccountID(r.Context())
	adID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid ad ID")
		return
	}

	var req ApproveAdRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	a, err := h.svc.ApproveAd(r.Context(), adID, req.ApprovedPrice, req.Notes, approverID)
	if err != nil {
		h.adError(w, err)
		return
	}
	response.OK(w, a)
}

func (h *Handler) RejectAd(w http.ResponseWriter, r *http.Request) {
	adID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid ad ID")
		return
	}

	var req RejectAdRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	a, err := h.svc.RejectAd(r.Context(), adID, req.Reason)
	if err != nil {
		if errors.Is(err, featured.ErrReasonRequired) {
			response.BadRequest(w, "rejection reason is required")
			return
		}
		h.adError(w, err)
		return
	}
	response.OK(w, a)
}

func (h *Handler) PauseAd(w http.ResponseWriter, r *http.Request) {
	h.adAction(w, r, h.svc.PauseAd)
}

func (h *Handler) ResumeAd(w http.ResponseWriter, r *http.Request) {
	h.adAction(w, r, h.svc.ResumeAd)
}

// ListEligibleAds is the serving endpoint: the eligible ad set for a
// placement, highest priority tier first.
func (h *Handler) ListEligibleAds(w http.ResponseWriter, r *http.Request) {
	placement := r.URL.Query().Get("placement")
	if err := validator.ValidateVar(placement, "required,placement"); err != nil {
		response.BadRequest(w, "placement must be one of: home, search, category, profile, checkout")
		return
	}
	country := r.URL.Query().Get("country")

	ads, err := h.svc.ListEligibleAds(r.Context(), placement, country)
	if err != nil {
		response.InternalError(w)
		return
	}
	response.OK(w, ads)
}

func (h *Handler) TrackAdImpression(w http.ResponseWriter, r *http.Request) {
	h.trackAd(w, r, h.svc.RecordAdImpression)
}

func (h *Handler) TrackAdClick(w http.ResponseWriter, r *http.Request) {
	h.trackAd(w, r, h.svc.RecordAdClick)
}

func (h *Handler) trackAd(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, adID uuid.UUID) error) {
	adID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid ad ID")
		return
	}

	if err := fn(r.Context(), adID); err != nil {
		switch {
		case errors.Is(err, featured.ErrAdNotFound):
			response.NotFound(w, "ad not found")
		case errors.Is(err, featured.ErrAdNotEligible):
			response.OK(w, map[string]bool{"recorded": false})
		default:
			response.InternalError(w)
		}
		return
	}
	response.OK(w, map[string]bool{"recorded": true})
}

func (h *Handler) adAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, adID uuid.UUID) error) {
	adID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid ad ID")
		return
	}

	if err := fn(r.Context(), adID); err != nil {
		h.adError(w, err)
		return
	}
	response.OK(w, map[string]string{"status": "ok"})
}

func (h *Handler) adError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, featured.ErrAdNotFound):
		response.NotFound(w, "ad not found")
	case errors.Is(err, ErrForbidden):
		response.Forbidden(w, "ad belongs to another account")
	case errors.Is(err, featured.ErrInvalidStateTransition):
		response.Conflict(w, "ad is not in a state that allows this action")
	default:
		response.InternalError(w)
	}
}

func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
