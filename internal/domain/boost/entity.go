package boost

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status represents campaign status
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Campaign is a pay-per-click profile boost. Its budget is a self-contained
// allowance funded from the ledger at creation time; click charges mutate
// the campaign record only, never the shared token balance.
// Invariant: Spent <= Budget, and Spent is a multiple of PricePerClick.
type Campaign struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AccountID uuid.UUID `db:"account_id" json:"account_id"`

	PricePerClick int64 `db:"price_per_click" json:"price_per_click"`
	Budget        int64 `db:"budget" json:"budget"`
	Spent         int64 `db:"spent" json:"spent"`

	Clicks      int `db:"clicks" json:"clicks"`
	Impressions int `db:"impressions" json:"impressions"`

	Status   Status       `db:"status" json:"status"`
	StartsAt time.Time    `db:"starts_at" json:"starts_at"`
	EndsAt   sql.NullTime `db:"ends_at" json:"ends_at,omitempty"`

	// Audience filter
	TargetCountries []string `db:"-" json:"target_countries,omitempty"`
	TargetServices  []string `db:"-" json:"target_services,omitempty"`

	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
	CompletedAt sql.NullTime `db:"completed_at" json:"completed_at,omitempty"`
}

// Remaining returns the unspent budget
func (c *Campaign) Remaining() int64 {
	return c.Budget - c.Spent
}

// IsActive returns true if the campaign can serve and charge
func (c *Campaign) IsActive() bool {
	return c.Status == StatusActive
}

// Ended reports whether the schedule window has passed
func (c *Campaign) Ended(now time.Time) bool {
	return c.EndsAt.Valid && now.After(c.EndsAt.Time)
}

// CanTransition reports whether a manual status transition is allowed.
// Campaigns start pending and activate once funded. Pause/resume only move
// between active and paused; cancel is allowed from any non-terminal state;
// completed and cancelled are terminal.
func (c *Campaign) CanTransition(to Status) bool {
	switch to {
	case StatusPaused:
		return c.Status == StatusActive
	case StatusActive:
		return c.Status == StatusPending || c.Status == StatusPaused
	case StatusCancelled:
		return c.Status == StatusPending || c.Status == StatusActive || c.Status == StatusPaused
	case StatusCompleted:
		return c.Status == StatusActive
	}
	return false
}

// ClickRecord is the append-only audit row written for every accepted
// charge. Retained independently of the campaign so charge evidence
// survives completion.
type ClickRecord struct {
	ID         uuid.UUID     `db:"id" json:"id"`
	CampaignID uuid.UUID     `db:"campaign_id" json:"campaign_id"`
	UserID     uuid.NullUUID `db:"user_id" json:"user_id,omitempty"`
	IP         string        `db:"ip" json:"ip"`
	UserAgent  string        `db:"user_agent" json:"user_agent"`
	Charged    int64         `db:"charged" json:"charged"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// RequestContext carries requester metadata for dedup and audit
type RequestContext struct {
	UserID    uuid.UUID
	IP        string
	UserAgent string
}
