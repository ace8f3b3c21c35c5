package featured

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status represents featured ad lifecycle state.
// pending_approval -> {approved, rejected}; approved -> active once the
// start date has passed and payment is confirmed; active -> expired on end
// date or any ceiling; paused is reachable from active by admin action only.
// rejected and expired are terminal.
type Status string

const (
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusRejected        Status = "rejected"
	StatusActive          Status = "active"
	StatusPaused          Status = "paused"
	StatusExpired         Status = "expired"
)

// PaymentStatus represents whether the placement has been paid for
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

// Ad is a scheduled flat-rate placement with optional impression, click
// and budget ceilings.
type Ad struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AccountID uuid.UUID `db:"account_id" json:"account_id"`

	// Creative
	Title       string         `db:"title" json:"title"`
	Description sql.NullString `db:"description" json:"description,omitempty"`
	ImageURL    sql.NullString `db:"image_url" json:"image_url,omitempty"`
	TargetURL   sql.NullString `db:"target_url" json:"target_url,omitempty"`

	Status       Status `db:"status" json:"status"`
	PriorityTier int    `db:"priority_tier" json:"priority_tier"`

	// Placement and targeting
	Placements       []string `db:"-" json:"placements"`
	TargetCountries  []string `db:"-" json:"target_countries,omitempty"`
	TargetCategories []string `db:"-" json:"target_categories,omitempty"`

	// Schedule
	StartsAt time.Time `db:"starts_at" json:"starts_at"`
	EndsAt   time.Time `db:"ends_at" json:"ends_at"`

	// Pricing
	ProposedPrice int64         `db:"proposed_price" json:"proposed_price"`
	ApprovedPrice sql.NullInt64 `db:"approved_price" json:"approved_price,omitempty"`
	PaymentStatus PaymentStatus `db:"payment_status" json:"payment_status"`

	// Ceilings. Null means uncapped.
	Budget         sql.NullInt64 `db:"budget" json:"budget,omitempty"`
	CostPerClick   sql.NullInt64 `db:"cost_per_click" json:"cost_per_click,omitempty"`
	Spent          int64         `db:"spent" json:"spent"`
	Impressions    int           `db:"impressions" json:"impressions"`
	MaxImpressions sql.NullInt64 `db:"max_impressions" json:"max_impressions,omitempty"`
	Clicks         int           `db:"clicks" json:"clicks"`
	MaxClicks      sql.NullInt64 `db:"max_clicks" json:"max_clicks,omitempty"`

	// Review trail
	ApprovedBy   uuid.NullUUID  `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt   sql.NullTime   `db:"approved_at" json:"approved_at,omitempty"`
	ReviewNotes  sql.NullString `db:"review_notes" json:"review_notes,omitempty"`
	RejectReason sql.NullString `db:"reject_reason" json:"reject_reason,omitempty"`

	CreatedAt time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt time.Time    `db:"updated_at" json:"updated_at"`
	ExpiredAt sql.NullTime `db:"expired_at" json:"expired_at,omitempty"`
}

// Eligible is the display eligibility predicate: active, paid, inside the
// schedule window, and no ceiling reached.
func (a *Ad) Eligible(now time.Time) bool {
	if a.Status != StatusActive {
		return false
	}
	if a.PaymentStatus != PaymentPaid {
		return false
	}
	if now.Before(a.StartsAt) || now.After(a.EndsAt) {
		return false
	}
	if a.MaxImpressions.Valid && int64(a.Impressions) >= a.MaxImpressions.Int64 {
		return false
	}
	if a.MaxClicks.Valid && int64(a.Clicks) >= a.MaxClicks.Int64 {
		return false
	}
	if a.Budget.Valid && a.Spent >= a.Budget.Int64 {
		return false
	}
	return true
}

// Price returns the effective placement price: the admin-approved price
// when set, the proposed price otherwise.
func (a *Ad) Price() int64 {
	if a.ApprovedPrice.Valid {
		return a.ApprovedPrice.Int64
	}
	return a.ProposedPrice
}

// Terminal reports whether the state admits no further transitions
func (a *Ad) Terminal() bool {
	return a.Status == StatusRejected || a.Status == StatusExpired
}
