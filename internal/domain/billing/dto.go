package billing

import "time"

// CreatePurchaseRequest registers a pending token purchase. The external
// reference comes from the checkout collaborator that initiated payment.
type CreatePurchaseRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	ExternalRef string `json:"external_ref" validate:"required,max=255"`
	Description string `json:"description" validate:"max=500"`
}

// CreateCampaignRequest creates a boost campaign
type CreateCampaignRequest struct {
	PricePerClick   int64      `json:"price_per_click" validate:"required,gt=0"`
	Budget          int64      `json:"budget" validate:"required,gt=0"`
	StartsAt        *time.Time `json:"starts_at"`
	EndsAt          *time.Time `json:"ends_at"`
	TargetCountries []string   `json:"target_countries" validate:"omitempty,dive,country"`
	TargetServices  []string   `json:"target_services" validate:"omitempty,dive,max=100"`
}

// SubmitAdRequest submits a featured ad for review
type SubmitAdRequest struct {
	Title            string     `json:"title" validate:"required,max=200"`
	Description      string     `json:"description" validate:"max=1000"`
	ImageURL         string     `json:"image_url" validate:"omitempty,url"`
	TargetURL        string     `json:"target_url" validate:"omitempty,url"`
	Placements       []string   `json:"placements" validate:"required,min=1,dive,placement"`
	TargetCountries  []string   `json:"target_countries" validate:"omitempty,dive,country"`
	TargetCategories []string   `json:"target_categories" validate:"omitempty,dive,max=100"`
	StartsAt         time.Time  `json:"starts_at" validate:"required"`
	EndsAt           time.Time  `json:"ends_at" validate:"required"`
	ProposedPrice    int64      `json:"proposed_price" validate:"required,gt=0"`
	PriorityTier     int        `json:"priority_tier" validate:"tier"`
	MaxImpressions   *int64     `json:"max_impressions" validate:"omitempty,gt=0"`
	MaxClicks        *int64     `json:"max_clicks" validate:"omitempty,gt=0"`
	Budget           *int64     `json:"budget" validate:"omitempty,gt=0"`
	CostPerClick     *int64     `json:"cost_per_click" validate:"omitempty,gt=0"`
}

// ApproveAdRequest approves a pending ad, optionally overriding the price
type ApproveAdRequest struct {
	ApprovedPrice *int64 `json:"approved_price" validate:"omitempty,gt=0"`
	Notes         string `json:"notes" validate:"max=1000"`
}

// RejectAdRequest rejects a pending ad
type RejectAdRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// AdjustBalanceRequest applies a signed admin balance adjustment
type AdjustBalanceRequest struct {
	Delta       int64  `json:"delta" validate:"required"`
	Description string `json:"description" validate:"required,max=500"`
}
