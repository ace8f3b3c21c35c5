package boost

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const defaultChargeRetries = 5

// Service implements the click budget controller. It never touches the
// token ledger; the campaign budget is a self-contained allowance funded
// by the billing facade at creation time.
type Service struct {
	repo       *Repository
	dedup      Deduplicator
	maxRetries int
}

func NewService(repo *Repository, dedup Deduplicator, maxRetries int) *Service {
	if dedup == nil {
		dedup = NoopDeduplicator{}
	}
	if maxRetries <= 0 {
		maxRetries = defaultChargeRetries
	}
	return &Service{repo: repo, dedup: dedup, maxRetries: maxRetries}
}

// Schedule holds the campaign's serving window
type Schedule struct {
	StartsAt time.Time
	EndsAt   *time.Time
}

// Audience holds the optional targeting filter
type Audience struct {
	Countries []string
	Services  []string
}

// CreateCampaign creates a campaign in pending. It cannot serve or charge
// until the caller has funded the budget from the ledger and called
// Activate, so a click can never land on an unfunded budget.
func (s *Service) CreateCampaign(ctx context.Context, accountID uuid.UUID, pricePerClick, budget int64, schedule Schedule, audience Audience) (*Campaign, error) {
	if pricePerClick <= 0 || budget <= 0 || budget < pricePerClick {
		return nil, ErrInvalidCampaign
	}

	now := time.Now().UTC()
	startsAt := schedule.StartsAt
	if startsAt.IsZero() {
		startsAt = now
	}

	c := &Campaign{
		ID:              uuid.New(),
		AccountID:       accountID,
		PricePerClick:   pricePerClick,
		Budget:          budget,
		Status:          StatusPending,
		StartsAt:        startsAt,
		TargetCountries: audience.Countries,
		TargetServices:  audience.Services,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if schedule.EndsAt != nil {
		c.EndsAt = sql.NullTime{Time: *schedule.EndsAt, Valid: true}
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	log.Info().Str("campaign_id", c.ID.String()).Str("account_id", accountID.String()).
		Int64("budget", budget).Int64("price_per_click", pricePerClick).Msg("boost campaign created")
	return c, nil
}

// ChargeClick charges one click against the campaign budget. Returns
// charged=false with a taxonomy error when the click is rejected; the
// campaign is completed as a side effect of budget exhaustion. Suppressed
// duplicates return (false, nil) without touching anything.
func (s *Service) ChargeClick(ctx context.Context, campaignID uuid.UUID, reqCtx RequestContext) (bool, error) {
	suppressed, err := s.dedup.Suppress(ctx, campaignID, reqCtx.IP)
	if err != nil {
		return false, err
	}
	if suppressed {
		log.Debug().Str("campaign_id", campaignID.String()).Str("ip", reqCtx.IP).Msg("duplicate click suppressed")
		return false, nil
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		c, err := s.repo.GetByID(ctx, campaignID)
		if err != nil {
			return false, err
		}

		if c.Status != StatusActive {
			return false, ErrCampaignNotActive
		}

		now := time.Now().UTC()
		if c.Ended(now) {
			if err := s.repo.Complete(ctx, campaignID); err != nil {
				return false, err
			}
			return false, ErrCampaignNotActive
		}

		if c.Remaining() < c.PricePerClick {
			// Hard stop before overspending
			if err := s.repo.Complete(ctx, campaignID); err != nil {
				return false, err
			}
			log.Info().Str("campaign_id", campaignID.String()).Int64("spent", c.Spent).Msg("boost campaign exhausted")
			return false, ErrBudgetExhausted
		}

		rec := &ClickRecord{
			ID:         uuid.New(),
			CampaignID: campaignID,
			IP:         reqCtx.IP,
			UserAgent:  reqCtx.UserAgent,
			Charged:    c.PricePerClick,
			CreatedAt:  now,
		}
		if reqCtx.UserID != uuid.Nil {
			rec.UserID = uuid.NullUUID{UUID: reqCtx.UserID, Valid: true}
		}

		err = s.repo.ChargeClick(ctx, campaignID, c.Spent, c.PricePerClick, rec)
		if errors.Is(err, ErrConcurrentModification) {
			// Lost the CAS race; re-read and retry
			continue
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}

	return false, ErrConcurrentModification
}

// RecordImpression increments the impression counter for an active campaign
func (s *Service) RecordImpression(ctx context.Context, campaignID uuid.UUID) error {
	return s.repo.IncrementImpressions(ctx, campaignID)
}

// Activate moves a funded campaign from pending to active
func (s *Service) Activate(ctx context.Context, campaignID uuid.UUID) error {
	if err := s.repo.UpdateStatus(ctx, campaignID, StatusPending, StatusActive); err != nil {
		return err
	}
	log.Info().Str("campaign_id", campaignID.String()).Msg("boost campaign activated")
	return nil
}

// Pause moves an active campaign to paused
func (s *Service) Pause(ctx context.Context, campaignID uuid.UUID) error {
	if err := s.repo.UpdateStatus(ctx, campaignID, StatusActive, StatusPaused); err != nil {
		return err
	}
	log.Info().Str("campaign_id", campaignID.String()).Msg("boost campaign paused")
	return nil
}

// Resume moves a paused campaign back to active
func (s *Service) Resume(ctx context.Context, campaignID uuid.UUID) error {
	if err := s.repo.UpdateStatus(ctx, campaignID, StatusPaused, StatusActive); err != nil {
		return err
	}
	log.Info().Str("campaign_id", campaignID.String()).Msg("boost campaign resumed")
	return nil
}

// Cancel stops the campaign and returns the unspent budget for refunding
func (s *Service) Cancel(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	unspent, err := s.repo.Cancel(ctx, campaignID)
	if err != nil {
		return 0, err
	}
	log.Info().Str("campaign_id", campaignID.String()).Int64("unspent", unspent).Msg("boost campaign cancelled")
	return unspent, nil
}

// GetCampaign returns a campaign by ID
func (s *Service) GetCampaign(ctx context.Context, campaignID uuid.UUID) (*Campaign, error) {
	return s.repo.GetByID(ctx, campaignID)
}

// ListCampaigns returns all campaigns owned by an account
func (s *Service) ListCampaigns(ctx context.Context, accountID uuid.UUID) ([]Campaign, error) {
	return s.repo.ListByAccount(ctx, accountID)
}

// ListClicks returns the audit click records for fraud review
func (s *Service) ListClicks(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]ClickRecord, error) {
	return s.repo.ListClicks(ctx, campaignID, limit, offset)
}
