package featured

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

// Repository handles featured ad database operations. Counter bumps carry
// the eligibility predicate in their WHERE clause and flip the ad to
// expired in the same statement when a ceiling is crossed, so an ad can
// never over-serve.
type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const adColumns = `
	id, account_id, title, description, image_url, target_url,
	status, priority_tier, placements, target_countries, target_categories,
	starts_at, ends_at, proposed_price, approved_price, payment_status,
	budget, cost_per_click, spent, impressions, max_impressions, clicks, max_clicks,
	approved_by, approved_at, review_notes, reject_reason,
	created_at, updated_at, expired_at`

func scanAd(row interface {
	Scan(dest ...interface{}) error
}) (*Ad, error) {
	var a Ad
	var placements, countries, categories pq.StringArray
	err := row.Scan(
		&a.ID, &a.AccountID, &a.Title, &a.Description, &a.ImageURL, &a.TargetURL,
		&a.Status, &a.PriorityTier, &placements, &countries, &categories,
		&a.StartsAt, &a.EndsAt, &a.ProposedPrice, &a.ApprovedPrice, &a.PaymentStatus,
		&a.Budget, &a.CostPerClick, &a.Spent, &a.Impressions, &a.MaxImpressions, &a.Clicks, &a.MaxClicks,
		&a.ApprovedBy, &a.ApprovedAt, &a.ReviewNotes, &a.RejectReason,
		&a.CreatedAt, &a.UpdatedAt, &a.ExpiredAt,
	)
	if err != nil {
		return nil, err
	}
	a.Placements = placements
	a.TargetCountries = countries
	a.TargetCategories = categories
	return &a, nil
}

// Create inserts a new ad in pending_approval
func (r *Repository) Create(ctx context.Context, a *Ad) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO featured_ads (
			id, account_id, title, description, image_url, target_url,
			status, priority_tier, placements, target_countries, target_categories,
			starts_at, ends_at, proposed_price, payment_status,
			budget, cost_per_click, spent, impressions, max_impressions, clicks, max_clicks,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16, $17, 0, 0, $18, 0, $19, $20, $21
		)
	`, a.ID, a.AccountID, a.Title, a.Description, a.ImageURL, a.TargetURL,
		a.Status, a.PriorityTier, pq.Array(a.Placements), pq.Array(a.TargetCountries), pq.Array(a.TargetCategories),
		a.StartsAt, a.EndsAt, a.ProposedPrice, a.PaymentStatus,
		a.Budget, a.CostPerClick, a.MaxImpressions, a.MaxClicks,
		a.CreatedAt, a.UpdatedAt)
	return err
}

// GetByID returns an ad by ID
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Ad, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx2, `SELECT `+adColumns+` FROM featured_ads WHERE id = $1`, id)
	a, err := scanAd(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAdNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// ListByAccount returns all ads owned by an account, newest first
func (r *Repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Ad, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx2, `
		SELECT `+adColumns+` FROM featured_ads
		WHERE account_id = $1
		ORDER BY created_at DESC
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ads := make([]Ad, 0)
	for rows.Next() {
		a, err := scanAd(rows)
		if err != nil {
			return nil, err
		}
		ads = append(ads, *a)
	}
	return ads, rows.Err()
}

// Approve transitions pending_approval to approved, or straight to active
// when the start date has already elapsed and payment is confirmed.
func (r *Repository) Approve(ctx context.Context, id uuid.UUID, approvedPrice *int64, notes string, approverID uuid.UUID) (*Ad, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var price sql.NullInt64
	if approvedPrice != nil {
		price = sql.NullInt64{Int64: *approvedPrice, Valid: true}
	}

	row := r.db.QueryRowContext(ctx2, `
		UPDATE featured_ads
		SET status = CASE
				WHEN starts_at <= now() AND payment_status = 'paid' THEN 'active'
				ELSE 'approved'
			END,
			approved_price = COALESCE($2, approved_price),
			review_notes = NULLIF($3, ''),
			approved_by = $4,
			approved_at = now(),
			updated_at = now()
		WHERE id = $1 AND status = 'pending_approval'
		RETURNING `+adColumns, id, price, notes, approverID)
	a, err := scanAd(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidStateTransition
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Reject transitions pending_approval to rejected. Terminal.
func (r *Repository) Reject(ctx context.Context, id uuid.UUID, reason string) (*Ad, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx2, `
		UPDATE featured_ads
		SET status = 'rejected', reject_reason = $2, updated_at = now()
		WHERE id = $1 AND status = 'pending_approval'
		RETURNING `+adColumns, id, reason)
	a, err := scanAd(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidStateTransition
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// MarkPaid records payment confirmation; an approved ad whose start date
// has passed activates in the same statement. Terminal ads never match:
// a rejected or expired placement can't serve, so it must not take money.
func (r *Repository) MarkPaid(ctx context.Context, id uuid.UUID) (*Ad, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx2, `
		UPDATE featured_ads
		SET payment_status = 'paid',
			status = CASE
				WHEN status = 'approved' AND starts_at <= now() AND ends_at > now() THEN 'active'
				ELSE status
			END,
			updated_at = now()
		WHERE id = $1 AND payment_status = 'unpaid'
		  AND status NOT IN ('rejected', 'expired')
		RETURNING `+adColumns, id)
	a, err := scanAd(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidStateTransition
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// UpdateStatus performs a guarded manual transition (pause/resume)
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE featured_ads SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
	`, id, from, to)
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

// Sweep applies time-based transitions: approved ads whose window has
// opened (and are paid) activate; ads past their end date expire. Invoked
// lazily before eligibility reads, not from a background daemon, so
// staleness is bounded by read frequency.
func (r *Repository) Sweep(ctx context.Context) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if _, err := r.db.ExecContext(ctx2, `
		UPDATE featured_ads
		SET status = 'active', updated_at = now()
		WHERE status = 'approved' AND payment_status = 'paid'
		  AND starts_at <= now() AND ends_at > now()
	`); err != nil {
		return err
	}

	_, err := r.db.ExecContext(ctx2, `
		UPDATE featured_ads
		SET status = 'expired', expired_at = now(), updated_at = now()
		WHERE status IN ('approved', 'active') AND ends_at < now()
	`)
	return err
}

// RecordImpression bumps the impression counter for an eligible ad and
// expires it in the same statement when the cap is crossed.
func (r *Repository) RecordImpression(ctx context.Context, id uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE featured_ads
		SET impressions = impressions + 1,
			status = CASE
				WHEN max_impressions IS NOT NULL AND impressions + 1 >= max_impressions THEN 'expired'
				ELSE status
			END,
			expired_at = CASE
				WHEN max_impressions IS NOT NULL AND impressions + 1 >= max_impressions THEN now()
				ELSE expired_at
			END,
			updated_at = now()
		WHERE id = $1 AND status = 'active' AND payment_status = 'paid'
		  AND starts_at <= now() AND ends_at >= now()
		  AND (max_impressions IS NULL OR impressions < max_impressions)
		  AND (max_clicks IS NULL OR clicks < max_clicks)
		  AND (budget IS NULL OR spent < budget)
	`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAdNotEligible
	}
	return nil
}

// RecordClick bumps the click counter and, when a cost-per-click is
// configured, the spend. Crossing the click or budget ceiling expires the
// ad in the same statement.
func (r *Repository) RecordClick(ctx context.Context, id uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE featured_ads
		SET clicks = clicks + 1,
			spent = spent + COALESCE(cost_per_click, 0),
			status = CASE
				WHEN (max_clicks IS NOT NULL AND clicks + 1 >= max_clicks)
				  OR (budget IS NOT NULL AND spent + COALESCE(cost_per_click, 0) >= budget) THEN 'expired'
				ELSE status
			END,
			expired_at = CASE
				WHEN (max_clicks IS NOT NULL AND clicks + 1 >= max_clicks)
				  OR (budget IS NOT NULL AND spent + COALESCE(cost_per_click, 0) >= budget) THEN now()
				ELSE expired_at
			END,
			updated_at = now()
		WHERE id = $1 AND status = 'active' AND payment_status = 'paid'
		  AND starts_at <= now() AND ends_at >= now()
		  AND (max_impressions IS NULL OR impressions < max_impressions)
		  AND (max_clicks IS NULL OR clicks < max_clicks)
		  AND (budget IS NULL OR spent < budget)
	`, id)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAdNotEligible
	}
	return nil
}

// ListEligible returns ads satisfying the eligibility predicate for a
// placement, optionally filtered by target country. Ordered by priority
// tier descending, then recency; callers depend on this tie-break.
func (r *Repository) ListEligible(ctx context.Context, placement, country string) ([]Ad, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx2, `
		SELECT `+adColumns+` FROM featured_ads
		WHERE status = 'active' AND payment_status = 'paid'
		  AND starts_at <= now() AND ends_at >= now()
		  AND (max_impressions IS NULL OR impressions < max_impressions)
		  AND (max_clicks IS NULL OR clicks < max_clicks)
		  AND (budget IS NULL OR spent < budget)
		  AND $1 = ANY(placements)
		  AND ($2 = '' OR target_countries = '{}' OR $2 = ANY(target_countries))
		ORDER BY priority_tier DESC, created_at DESC
	`, placement, country)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ads := make([]Ad, 0)
	for rows.Next() {
		a, err := scanAd(rows)
		if err != nil {
			return nil, err
		}
		ads = append(ads, *a)
	}
	return ads, rows.Err()
}
