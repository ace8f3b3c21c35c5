package featured

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service implements the featured ad lifecycle. Time-based transitions run
// through an explicit sweep before eligibility reads rather than as a
// persistence side effect, so they stay testable in isolation.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Creative holds the submitted creative fields
type Creative struct {
	Title       string
	Description string
	ImageURL    string
	TargetURL   string
}

// Schedule holds the serving window
type Schedule struct {
	StartsAt time.Time
	EndsAt   time.Time
}

// Caps holds the optional ceilings. Nil means uncapped.
type Caps struct {
	MaxImpressions *int64
	MaxClicks      *int64
	Budget         *int64
	CostPerClick   *int64
}

// Submit creates an ad in pending_approval
func (s *Service) Submit(ctx context.Context, accountID uuid.UUID, creative Creative, schedule Schedule, placements []string, targetCountries []string, targetCategories []string, proposedPrice int64, tier int, caps Caps) (*Ad, error) {
	if strings.TrimSpace(creative.Title) == "" || len(placements) == 0 || proposedPrice <= 0 {
		return nil, ErrInvalidAd
	}
	if !schedule.EndsAt.After(schedule.StartsAt) {
		return nil, ErrInvalidAd
	}

	now := time.Now().UTC()
	a := &Ad{
		ID:               uuid.New(),
		AccountID:        accountID,
		Title:            creative.Title,
		Status:           StatusPendingApproval,
		PriorityTier:     tier,
		Placements:       placements,
		TargetCountries:  targetCountries,
		TargetCategories: targetCategories,
		StartsAt:         schedule.StartsAt,
		EndsAt:           schedule.EndsAt,
		ProposedPrice:    proposedPrice,
		PaymentStatus:    PaymentUnpaid,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if creative.Description != "" {
		a.Description = sql.NullString{String: creative.Description, Valid: true}
	}
	if creative.ImageURL != "" {
		a.ImageURL = sql.NullString{String: creative.ImageURL, Valid: true}
	}
	if creative.TargetURL != "" {
		a.TargetURL = sql.NullString{String: creative.TargetURL, Valid: true}
	}
	if caps.MaxImpressions != nil {
		a.MaxImpressions = sql.NullInt64{Int64: *caps.MaxImpressions, Valid: true}
	}
	if caps.MaxClicks != nil {
		a.MaxClicks = sql.NullInt64{Int64: *caps.MaxClicks, Valid: true}
	}
	if caps.Budget != nil {
		a.Budget = sql.NullInt64{Int64: *caps.Budget, Valid: true}
	}
	if caps.CostPerClick != nil {
		a.CostPerClick = sql.NullInt64{Int64: *caps.CostPerClick, Valid: true}
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	log.Info().Str("ad_id", a.ID.String()).Str("account_id", accountID.String()).Msg("featured ad submitted")
	return a, nil
}

// Approve approves a pending ad, optionally overriding the price. If the
// start date has already elapsed and the ad is paid it activates now.
func (s *Service) Approve(ctx context.Context, adID uuid.UUID, approvedPrice *int64, notes string, approverID uuid.UUID) (*Ad, error) {
	a, err := s.repo.Approve(ctx, adID, approvedPrice, notes, approverID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("ad_id", adID.String()).Str("approver_id", approverID.String()).Str("status", string(a.Status)).Msg("featured ad approved")
	return a, nil
}

// Reject rejects a pending ad. A non-empty reason is required.
func (s *Service) Reject(ctx context.Context, adID uuid.UUID, reason string) (*Ad, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}
	a, err := s.repo.Reject(ctx, adID, reason)
	if err != nil {
		return nil, err
	}
	log.Info().Str("ad_id", adID.String()).Str("reason", reason).Msg("featured ad rejected")
	return a, nil
}

// MarkPaid records payment confirmation for the placement
func (s *Service) MarkPaid(ctx context.Context, adID uuid.UUID) (*Ad, error) {
	a, err := s.repo.MarkPaid(ctx, adID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("ad_id", adID.String()).Str("status", string(a.Status)).Msg("featured ad paid")
	return a, nil
}

// Pause suspends an active ad; admin action only
func (s *Service) Pause(ctx context.Context, adID uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, adID, StatusActive, StatusPaused)
}

// Resume returns a paused ad to active; admin action only
func (s *Service) Resume(ctx context.Context, adID uuid.UUID) error {
	return s.repo.UpdateStatus(ctx, adID, StatusPaused, StatusActive)
}

// RecordImpression counts one impression; crossing the cap expires the ad
func (s *Service) RecordImpression(ctx context.Context, adID uuid.UUID) error {
	return s.repo.RecordImpression(ctx, adID)
}

// RecordClick counts one click; crossing any ceiling expires the ad
func (s *Service) RecordClick(ctx context.Context, adID uuid.UUID) error {
	return s.repo.RecordClick(ctx, adID)
}

// ListEligible sweeps time-based transitions, then returns the eligible ad
// set for a placement ordered by priority tier descending, newest first.
func (s *Service) ListEligible(ctx context.Context, placement, country string) ([]Ad, error) {
	if err := s.repo.Sweep(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListEligible(ctx, placement, country)
}

// GetAd returns an ad by ID
func (s *Service) GetAd(ctx context.Context, adID uuid.UUID) (*Ad, error) {
	return s.repo.GetByID(ctx, adID)
}

// ListByAccount returns all ads owned by an account
func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Ad, error) {
	return s.repo.ListByAccount(ctx, accountID)
}
