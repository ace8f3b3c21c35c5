package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/shopera/billing-api/internal/domain/boost"
	"github.com/shopera/billing-api/internal/domain/featured"
	"github.com/shopera/billing-api/internal/domain/ledger"
	"github.com/shopera/billing-api/internal/pkg/gateway"
	"github.com/shopera/billing-api/internal/pkg/notifier"
)

// Ledger is the slice of the token ledger the facade needs
type Ledger interface {
	GetAccount(ctx context.Context, accountID uuid.UUID) (*ledger.Account, error)
	Debit(ctx context.Context, accountID uuid.UUID, amount int64, description string, corr ledger.Correlation) (*ledger.Transaction, error)
	Refund(ctx context.Context, accountID uuid.UUID, amount int64, description string, corr ledger.Correlation) (*ledger.Transaction, error)
	Adjust(ctx context.Context, accountID uuid.UUID, delta int64, description string, adminID uuid.UUID) (*ledger.Transaction, error)
	RegisterPending(ctx context.Context, accountID uuid.UUID, amount int64, externalRef, description string) (*ledger.Transaction, error)
	ConfirmPending(ctx context.Context, externalRef string) (*ledger.Transaction, error)
	FailPending(ctx context.Context, externalRef string) (*ledger.Transaction, error)
	History(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]ledger.Transaction, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) (int64, error)
}

// Boost is the slice of the click budget controller the facade needs
type Boost interface {
	CreateCampaign(ctx context.Context, accountID uuid.UUID, pricePerClick, budget int64, schedule boost.Schedule, audience boost.Audience) (*boost.Campaign, error)
	Activate(ctx context.Context, campaignID uuid.UUID) error
	ChargeClick(ctx context.Context, campaignID uuid.UUID, reqCtx boost.RequestContext) (bool, error)
	RecordImpression(ctx context.Context, campaignID uuid.UUID) error
	Pause(ctx context.Context, campaignID uuid.UUID) error
	Resume(ctx context.Context, campaignID uuid.UUID) error
	Cancel(ctx context.Context, campaignID uuid.UUID) (int64, error)
	GetCampaign(ctx context.Context, campaignID uuid.UUID) (*boost.Campaign, error)
	ListCampaigns(ctx context.Context, accountID uuid.UUID) ([]boost.Campaign, error)
	ListClicks(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]boost.ClickRecord, error)
}

// Featured is the slice of the featured ad lifecycle the facade needs
type Featured interface {
	Submit(ctx context.Context, accountID uuid.UUID, creative featured.Creative, schedule featured.Schedule, placements, targetCountries, targetCategories []string, proposedPrice int64, tier int, caps featured.Caps) (*featured.Ad, error)
	Approve(ctx context.Context, adID uuid.UUID, approvedPrice *int64, notes string, approverID uuid.UUID) (*featured.Ad, error)
	Reject(ctx context.Context, adID uuid.UUID, reason string) (*featured.Ad, error)
	MarkPaid(ctx context.Context, adID uuid.UUID) (*featured.Ad, error)
	Pause(ctx context.Context, adID uuid.UUID) error
	Resume(ctx context.Context, adID uuid.UUID) error
	RecordImpression(ctx context.Context, adID uuid.UUID) error
	RecordClick(ctx context.Context, adID uuid.UUID) error
	ListEligible(ctx context.Context, placement, country string) ([]featured.Ad, error)
	GetAd(ctx context.Context, adID uuid.UUID) (*featured.Ad, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]featured.Ad, error)
}

// Service is the single entry point for the monetization domain. It owns the
// cross-module flows: funding campaigns from the ledger, refunding on cancel,
// paying for ad placements, and turning gateway webhooks into ledger events.
type Service struct {
	ledger   Ledger
	boost    Boost
	featured Featured
	gateways *gateway.Factory
	notifier notifier.Notifier
}

func NewService(l Ledger, b Boost, f Featured, gateways *gateway.Factory, n notifier.Notifier) *Service {
	if n == nil {
		n = notifier.NewLogNotifier()
	}
	return &Service{ledger: l, boost: b, featured: f, gateways: gateways, notifier: n}
}

// --- Token purchases ---

// RegisterPurchase records a pending token purchase for the external
// reference assigned at checkout. The balance doesn't move until the
// gateway confirms.
func (s *Service) RegisterPurchase(ctx context.Context, accountID uuid.UUID, amount int64, externalRef, description string) (*ledger.Transaction, error) {
	return s.ledger.RegisterPending(ctx, accountID, amount, externalRef, description)
}

// HandleWebhook verifies, parses and applies a gateway webhook. Redelivered
// events resolve to a nil error so the gateway stops retrying.
func (s *Service) HandleWebhook(ctx context.Context, providerName string, body []byte, signature string) error {
	provider, err := s.gateways.Get(providerName)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidWebhook, providerName)
	}

	if !provider.VerifyWebhook(body, signature) {
		log.Warn().Str("provider", providerName).Msg("webhook signature verification failed")
		return ErrInvalidSignature
	}

	event, err := provider.ParseWebhook(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	switch event.EventType {
	case gateway.EventSucceeded:
		t, err := s.ledger.ConfirmPending(ctx, event.Reference)
		if errors.Is(err, ledger.ErrDuplicateEvent) {
			log.Info().Str("external_ref", event.Reference).Msg("duplicate webhook ignored")
			return nil
		}
		if err != nil {
			return err
		}
		s.notifier.Notify(ctx, t.AccountID, notifier.EventPurchaseCompleted, map[string]interface{}{
			"external_ref": event.Reference,
			"amount":       t.Amount,
		})
		return nil

	case gateway.EventFailed:
		t, err := s.ledger.FailPending(ctx, event.Reference)
		if errors.Is(err, ledger.ErrDuplicateEvent) {
			log.Info().Str("external_ref", event.Reference).Msg("duplicate webhook ignored")
			return nil
		}
		if err != nil {
			return err
		}
		s.notifier.Notify(ctx, t.AccountID, notifier.EventPurchaseFailed, map[string]interface{}{
			"external_ref": event.Reference,
		})
		return nil

	default:
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidWebhook, event.EventType)
	}
}

// GetBalance returns the account, creating it lazily
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (*ledger.Account, error) {
	return s.ledger.GetAccount(ctx, accountID)
}

// GetHistory returns the account's transactions, most recent first
func (s *Service) GetHistory(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]ledger.Transaction, error) {
	return s.ledger.History(ctx, accountID, limit, offset)
}

// AdjustBalance applies a signed admin adjustment
func (s *Service) AdjustBalance(ctx context.Context, accountID uuid.UUID, delta int64, description string, adminID uuid.UUID) (*ledger.Transaction, error) {
	return s.ledger.Adjust(ctx, accountID, delta, description, adminID)
}

// ReconcileBalance repairs the cached balance from the transaction log
func (s *Service) ReconcileBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	return s.ledger.Reconcile(ctx, accountID)
}

// --- Boost campaigns ---

// CreateCampaign creates a campaign and funds its budget from the token
// ledger. The campaign is created pending so the debit can carry its ID
// without a click ever charging an unfunded budget; it activates only once
// the debit has committed. A failed debit cancels the pending campaign as
// compensation.
func (s *Service) CreateCampaign(ctx context.Context, accountID uuid.UUID, pricePerClick, budget int64, schedule boost.Schedule, audience boost.Audience) (*boost.Campaign, error) {
	c, err := s.boost.CreateCampaign(ctx, accountID, pricePerClick, budget, schedule, audience)
	if err != nil {
		return nil, err
	}

	_, err = s.ledger.Debit(ctx, accountID, budget, "boost campaign budget", ledger.CampaignCorrelation(c.ID))
	if err != nil {
		if _, cerr := s.boost.Cancel(ctx, c.ID); cerr != nil {
			log.Error().Err(cerr).Str("campaign_id", c.ID.String()).Msg("failed to cancel unfunded campaign")
		}
		return nil, err
	}

	if err := s.boost.Activate(ctx, c.ID); err != nil {
		unspent, cerr := s.boost.Cancel(ctx, c.ID)
		if cerr != nil {
			log.Error().Err(cerr).Str("campaign_id", c.ID.String()).Msg("failed to cancel unactivated campaign")
			return nil, err
		}
		if unspent > 0 {
			if _, rerr := s.ledger.Refund(ctx, accountID, unspent, "boost campaign activation failed", ledger.CampaignCorrelation(c.ID)); rerr != nil {
				log.Error().Err(rerr).Str("campaign_id", c.ID.String()).Int64("unspent", unspent).Msg("refund after failed activation failed")
			}
		}
		return nil, err
	}
	c.Status = boost.StatusActive
	return c, nil
}

// RecordClick charges one click against the campaign. Budget exhaustion
// completes the campaign and notifies the owner; the click that hit the
// wall is not charged.
func (s *Service) RecordClick(ctx context.Context, campaignID uuid.UUID, reqCtx boost.RequestContext) (bool, error) {
	charged, err := s.boost.ChargeClick(ctx, campaignID, reqCtx)
	if errors.Is(err, boost.ErrBudgetExhausted) {
		if c, gerr := s.boost.GetCampaign(ctx, campaignID); gerr == nil {
			s.notifier.Notify(ctx, c.AccountID, notifier.EventCampaignExhausted, map[string]interface{}{
				"campaign_id": campaignID.String(),
				"spent":       c.Spent,
			})
		}
	}
	return charged, err
}

// RecordCampaignImpression increments the campaign impression counter
func (s *Service) RecordCampaignImpression(ctx context.Context, campaignID uuid.UUID) error {
	return s.boost.RecordImpression(ctx, campaignID)
}

// PauseCampaign pauses the caller's active campaign
func (s *Service) PauseCampaign(ctx context.Context, accountID, campaignID uuid.UUID) error {
	if err := s.checkCampaignOwner(ctx, accountID, campaignID); err != nil {
		return err
	}
	return s.boost.Pause(ctx, campaignID)
}

// ResumeCampaign resumes the caller's paused campaign
func (s *Service) ResumeCampaign(ctx context.Context, accountID, campaignID uuid.UUID) error {
	if err := s.checkCampaignOwner(ctx, accountID, campaignID); err != nil {
		return err
	}
	return s.boost.Resume(ctx, campaignID)
}

// CancelCampaign cancels the caller's campaign and refunds the unspent
// budget to the ledger.
func (s *Service) CancelCampaign(ctx context.Context, accountID, campaignID uuid.UUID) (int64, error) {
	if err := s.checkCampaignOwner(ctx, accountID, campaignID); err != nil {
		return 0, err
	}

	unspent, err := s.boost.Cancel(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	if unspent > 0 {
		if _, err := s.ledger.Refund(ctx, accountID, unspent, "boost campaign cancelled", ledger.CampaignCorrelation(campaignID)); err != nil {
			// Campaign is already cancelled; surface the failed refund
			// rather than inventing a rollback for a committed state change.
			log.Error().Err(err).Str("campaign_id", campaignID.String()).Int64("unspent", unspent).Msg("refund after cancel failed")
			return 0, err
		}
	}
	return unspent, nil
}

// GetCampaign returns the caller's campaign
func (s *Service) GetCampaign(ctx context.Context, accountID, campaignID uuid.UUID) (*boost.Campaign, error) {
	c, err := s.boost.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if c.AccountID != accountID {
		return nil, ErrForbidden
	}
	return c, nil
}

// ListCampaigns returns all campaigns owned by the caller
func (s *Service) ListCampaigns(ctx context.Context, accountID uuid.UUID) ([]boost.Campaign, error) {
	return s.boost.ListCampaigns(ctx, accountID)
}

// ListCampaignClicks returns the campaign's audit click records
func (s *Service) ListCampaignClicks(ctx context.Context, accountID, campaignID uuid.UUID, limit, offset int) ([]boost.ClickRecord, error) {
	if err := s.checkCampaignOwner(ctx, accountID, campaignID); err != nil {
		return nil, err
	}
	return s.boost.ListClicks(ctx, campaignID, limit, offset)
}

func (s *Service) checkCampaignOwner(ctx context.Context, accountID, campaignID uuid.UUID) error {
	c, err := s.boost.GetCampaign(ctx, campaignID)
	if err != nil {
		return err
	}
	if c.AccountID != accountID {
		return ErrForbidden
	}
	return nil
}

// --- Featured ads ---

// SubmitAd submits a featured ad for review
func (s *Service) SubmitAd(ctx context.Context, accountID uuid.UUID, creative featured.Creative, schedule featured.Schedule, placements, targetCountries, targetCategories []string, proposedPrice int64, tier int, caps featured.Caps) (*featured.Ad, error) {
	return s.featured.Submit(ctx, accountID, creative, schedule, placements, targetCountries, targetCategories, proposedPrice, tier, caps)
}

// ApproveAd approves a pending ad and notifies the owner
func (s *Service) ApproveAd(ctx context.Context, adID uuid.UUID, approvedPrice *int64, notes string, approverID uuid.UUID) (*featured.Ad, error) {
	a, err := s.featured.Approve(ctx, adID, approvedPrice, notes, approverID)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, a.AccountID, notifier.EventAdApproved, map[string]interface{}{
		"ad_id": adID.String(),
		"price": a.Price(),
	})
	return a, nil
}

// RejectAd rejects a pending ad and notifies the owner with the reason
func (s *Service) RejectAd(ctx context.Context, adID uuid.UUID, reason string) (*featured.Ad, error) {
	a, err := s.featured.Reject(ctx, adID, reason)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, a.AccountID, notifier.EventAdRejected, map[string]interface{}{
		"ad_id":  adID.String(),
		"reason": reason,
	})
	return a, nil
}

// PayAd debits the effective placement price from the caller's ledger
// account and marks the ad paid. Terminal ads are refused before the
// debit; a failed MarkPaid refunds it.
func (s *Service) PayAd(ctx context.Context, accountID, adID uuid.UUID) (*featured.Ad, error) {
	a, err := s.featured.GetAd(ctx, adID)
	if err != nil {
		return nil, err
	}
	if a.AccountID != accountID {
		return nil, ErrForbidden
	}
	if a.Terminal() {
		return nil, featured.ErrInvalidStateTransition
	}

	if _, err := s.ledger.Debit(ctx, accountID, a.Price(), "featured ad placement", ledger.AdCorrelation(adID)); err != nil {
		return nil, err
	}

	paid, err := s.featured.MarkPaid(ctx, adID)
	if err != nil {
		if _, rerr := s.ledger.Refund(ctx, accountID, a.Price(), "featured ad payment reversed", ledger.AdCorrelation(adID)); rerr != nil {
			log.Error().Err(rerr).Str("ad_id", adID.String()).Msg("failed to reverse ad payment")
		}
		return nil, err
	}
	return paid, nil
}

// PauseAd suspends an active ad; admin action
func (s *Service) PauseAd(ctx context.Context, adID uuid.UUID) error {
	return s.featured.Pause(ctx, adID)
}

// ResumeAd reactivates a paused ad; admin action
func (s *Service) ResumeAd(ctx context.Context, adID uuid.UUID) error {
	return s.featured.Resume(ctx, adID)
}

// RecordAdImpression counts one impression against the ad's ceilings
func (s *Service) RecordAdImpression(ctx context.Context, adID uuid.UUID) error {
	return s.featured.RecordImpression(ctx, adID)
}

// RecordAdClick counts one click against the ad's ceilings
func (s *Service) RecordAdClick(ctx context.Context, adID uuid.UUID) error {
	return s.featured.RecordClick(ctx, adID)
}

// ListEligibleAds returns the serving set for a placement
func (s *Service) ListEligibleAds(ctx context.Context, placement, country string) ([]featured.Ad, error) {
	return s.featured.ListEligible(ctx, placement, country)
}

// GetAd returns the caller's ad
func (s *Service) GetAd(ctx context.Context, accountID, adID uuid.UUID) (*featured.Ad, error) {
	a, err := s.featured.GetAd(ctx, adID)
	if err != nil {
		return nil, err
	}
	if a.AccountID != accountID {
		return nil, ErrForbidden
	}
	return a, nil
}

// ListAds returns all ads owned by the caller
func (s *Service) ListAds(ctx context.Context, accountID uuid.UUID) ([]featured.Ad, error) {
	return s.featured.ListByAccount(ctx, accountID)
}
