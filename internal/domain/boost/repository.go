package boost

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 3 * time.Second

// Repository handles boost campaign database operations. Budget charging
// uses optimistic compare-and-swap on the spent column so concurrent clicks
// serialize at the store, not in the application.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const campaignColumns = `
	id, account_id, price_per_click, budget, spent, clicks, impressions,
	status, starts_at, ends_at, target_countries, target_services,
	created_at, updated_at, completed_at`

func scanCampaign(row interface {
	Scan(dest ...interface{}) error
}) (*Campaign, error) {
	var c Campaign
	var countries, services pq.StringArray
	err := row.Scan(
		&c.ID, &c.AccountID, &c.PricePerClick, &c.Budget, &c.Spent, &c.Clicks, &c.Impressions,
		&c.Status, &c.StartsAt, &c.EndsAt, &countries, &services,
		&c.CreatedAt, &c.UpdatedAt, &c.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	c.TargetCountries = countries
	c.TargetServices = services
	return &c, nil
}

// Create inserts a new campaign
func (r *Repository) Create(ctx context.Context, c *Campaign) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO boost_campaigns (
			id, account_id, price_per_click, budget, spent, clicks, impressions,
			status, starts_at, ends_at, target_countries, target_services,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, 0, 0, 0, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.AccountID, c.PricePerClick, c.Budget,
		c.Status, c.StartsAt, c.EndsAt,
		pq.Array(c.TargetCountries), pq.Array(c.TargetServices),
		c.CreatedAt, c.UpdatedAt)
	return err
}

// GetByID returns a campaign by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Campaign, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx2, `SELECT `+campaignColumns+` FROM boost_campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListByAccount returns all campaigns owned by an account, newest first
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Campaign, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx2, `
		SELECT `+campaignColumns+` FROM boost_campaigns
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := make([]Campaign, 0)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		campaigns = append(campaigns, *c)
	}
	return campaigns, rows.Err()
}

// ChargeClick applies one click charge conditioned on the campaign still
// being active and spent being unchanged since it was read (CAS). When the
// charge exactly exhausts the budget the campaign completes in the same
// update. The click record is written in the same database transaction, so
// a charge either fully commits or leaves no trace.
// Returns ErrConcurrentModification when the CAS condition missed.
func (r *Repository) ChargeClick(ctx context.Context, campaignID uuid.UUID, readSpent, pricePerClick int64, rec *ClickRecord) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx2, `
		UPDATE boost_campaigns
		SET spent = spent + $3,
			clicks = clicks + 1,
			status = CASE WHEN spent + $3 >= budget THEN 'completed' ELSE status END,
			completed_at = CASE WHEN spent + $3 >= budget THEN now() ELSE completed_at END,
			updated_at = now()
		WHERE id = $1 AND status = 'active' AND spent = $2
	`, campaignID, readSpent, pricePerClick)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrConcurrentModification
	}

	if _, err := tx.ExecContext(ctx2, `
		INSERT INTO boost_click_records (id, campaign_id, user_id, ip, user_agent, charged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.CampaignID, rec.UserID, rec.IP, rec.UserAgent, rec.Charged, rec.CreatedAt); err != nil {
		return err
	}

	return tx.Commit()
}

// Complete transitions an active campaign to completed. Losing the race to
// another completer is not an error.
func (r *Repository) Complete(ctx context.Context, campaignID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE boost_campaigns
		SET status = 'completed', completed_at = now(), updated_at = now()
		WHERE id = $1 AND status = 'active'
	`, campaignID)
	return err
}

// IncrementImpressions bumps the impression counter while active
func (r *Repository) IncrementImpressions(ctx context.Context, campaignID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE boost_campaigns
		SET impressions = impressions + 1, updated_at = now()
		WHERE id = $1 AND status = 'active'
	`, campaignID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCampaignNotActive
	}
	return nil
}

// UpdateStatus performs a guarded status transition
func (r *Repository) UpdateStatus(ctx context.Context, campaignID uuid.UUID, from, to Status) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE boost_campaigns
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, campaignID, from, to)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrInvalidStateTransition
	}
	return nil
}

// Cancel stops a non-terminal campaign and returns the unspent budget in a
// single statement, so the refund amount cannot race a late charge.
func (r *Repository) Cancel(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var unspent int64
	err := r.db.QueryRowContext(ctx2, `
		UPDATE boost_campaigns
		SET status = 'cancelled', completed_at = now(), updated_at = now()
		WHERE id = $1 AND status IN ('pending', 'active', 'paused')
		RETURNING budget - spent
	`, campaignID).Scan(&unspent)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInvalidStateTransition
	}
	if err != nil {
		return 0, err
	}
	return unspent, nil
}

// ListClicks returns the audit click records for a campaign, newest first
func (r *Repository) ListClicks(ctx context.Context, campaignID uuid.UUID, limit, offset int) ([]ClickRecord, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	records := make([]ClickRecord, 0)
	err := r.db.SelectContext(ctx2, &records, `
		SELECT id, campaign_id, user_id, ip, user_agent, charged, created_at
		FROM boost_click_records
		WHERE campaign_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, campaignID, limit, offset)
	if err != nil {
		return nil, err
	}
	return records, nil
}
