package boost

import "errors"

var (
	// ErrCampaignNotFound is returned when the campaign doesn't exist
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrCampaignNotActive is returned for charges/impressions on a
	// paused, completed or cancelled campaign
	ErrCampaignNotActive = errors.New("campaign not active")

	// ErrBudgetExhausted is returned when a charge would overspend the
	// budget; the campaign is completed as a side effect
	ErrBudgetExhausted = errors.New("campaign budget exhausted")

	// ErrInvalidStateTransition is returned for pause/resume/cancel from
	// an invalid state
	ErrInvalidStateTransition = errors.New("invalid campaign state transition")

	// ErrConcurrentModification is returned when the optimistic check
	// failed repeatedly under contention
	ErrConcurrentModification = errors.New("concurrent campaign modification")

	// ErrInvalidCampaign is returned for malformed campaign parameters
	ErrInvalidCampaign = errors.New("invalid campaign parameters")
)
