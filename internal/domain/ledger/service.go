package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service wraps the repository with input validation and logging. It is the
// only writer of accounts and transactions; campaigns and ads reach it
// through the billing facade.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// GetAccount returns the account, creating it lazily
func (s *Service) GetAccount(ctx context.Context, accountID uuid.UUID) (*Account, error) {
	return s.repo.GetAccount(ctx, accountID)
}

// Credit increases balance and appends a completed purchase transaction
func (s *Service) Credit(ctx context.Context, accountID uuid.UUID, amount int64, description string, corr Correlation) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := corr.Validate(); err != nil {
		return nil, err
	}

	t, err := s.repo.Credit(ctx, accountID, amount, description, corr)
	if err != nil {
		return nil, err
	}
	log.Info().Str("account_id", accountID.String()).Int64("amount", amount).Str("tx_id", t.ID.String()).Msg("ledger credit applied")
	return t, nil
}

// Debit decreases balance if sufficient and appends a spend transaction
func (s *Service) Debit(ctx context.Context, accountID uuid.UUID, amount int64, description string, corr Correlation) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := corr.Validate(); err != nil {
		return nil, err
	}

	t, err := s.repo.Debit(ctx, accountID, amount, description, corr)
	if err != nil {
		return nil, err
	}
	log.Info().Str("account_id", accountID.String()).Int64("amount", amount).Str("tx_id", t.ID.String()).Msg("ledger debit applied")
	return t, nil
}

// Refund returns previously spent tokens
func (s *Service) Refund(ctx context.Context, accountID uuid.UUID, amount int64, description string, corr Correlation) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if err := corr.Validate(); err != nil {
		return nil, err
	}

	t, err := s.repo.Refund(ctx, accountID, amount, description, corr)
	if err != nil {
		return nil, err
	}
	log.Info().Str("account_id", accountID.String()).Int64("amount", amount).Str("tx_id", t.ID.String()).Msg("ledger refund applied")
	return t, nil
}

// Adjust applies a signed admin adjustment with the admin actor recorded
func (s *Service) Adjust(ctx context.Context, accountID uuid.UUID, delta int64, description string, adminID uuid.UUID) (*Transaction, error) {
	if delta == 0 {
		return nil, ErrInvalidAmount
	}
	corr := AdminCorrelation(adminID)
	if err := corr.Validate(); err != nil {
		return nil, err
	}

	t, err := s.repo.Adjust(ctx, accountID, delta, description, corr)
	if err != nil {
		return nil, err
	}
	log.Info().Str("account_id", accountID.String()).Int64("delta", delta).Str("admin_id", adminID.String()).Msg("ledger adjustment applied")
	return t, nil
}

// RegisterPending records the pending purchase before the gateway confirms
func (s *Service) RegisterPending(ctx context.Context, accountID uuid.UUID, amount int64, externalRef, description string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if externalRef == "" {
		return nil, ErrInvalidCorrelation
	}

	t, err := s.repo.RegisterPending(ctx, accountID, amount, externalRef, description)
	if err != nil {
		return nil, err
	}
	log.Info().Str("account_id", accountID.String()).Int64("amount", amount).Str("external_ref", externalRef).Msg("pending purchase registered")
	return t, nil
}

// ConfirmPending credits the account exactly once for the given external
// reference. ErrDuplicateEvent means the event was already processed.
func (s *Service) ConfirmPending(ctx context.Context, externalRef string) (*Transaction, error) {
	t, err := s.repo.ConfirmPending(ctx, externalRef)
	if err != nil {
		return nil, err
	}
	log.Info().Str("account_id", t.AccountID.String()).Int64("amount", t.Amount).Str("external_ref", externalRef).Msg("pending purchase completed")
	return t, nil
}

// FailPending marks the pending purchase failed without touching the balance
func (s *Service) FailPending(ctx context.Context, externalRef string) (*Transaction, error) {
	t, err := s.repo.FailPending(ctx, externalRef)
	if err != nil {
		return nil, err
	}
	log.Info().Str("account_id", t.AccountID.String()).Str("external_ref", externalRef).Msg("pending purchase failed")
	return t, nil
}

// History returns the account's transactions, most recent first
func (s *Service) History(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]Transaction, error) {
	return s.repo.History(ctx, accountID, limit, offset)
}

// Reconcile repairs the cached balance from the transaction log
func (s *Service) Reconcile(ctx context.Context, accountID uuid.UUID) (int64, error) {
	drift, err := s.repo.Reconcile(ctx, accountID)
	if err != nil {
		return 0, err
	}
	if drift != 0 {
		log.Warn().Str("account_id", accountID.String()).Int64("drift", drift).Msg("ledger balance drift repaired")
	}
	return drift, nil
}
