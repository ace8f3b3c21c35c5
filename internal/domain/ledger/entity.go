package ledger

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Kind defines supported ledger transaction kinds.
type Kind string

const (
	KindPurchase   Kind = "purchase"
	KindSpend      Kind = "spend"
	KindRefund     Kind = "refund"
	KindAdjustment Kind = "adjustment"
)

// Status represents transaction status. Only purchase transactions pass
// through pending; every other kind is written completed.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// CorrelationKind tags what a transaction is correlated to.
type CorrelationKind string

const (
	CorrelationPayment  CorrelationKind = "payment"
	CorrelationCampaign CorrelationKind = "campaign"
	CorrelationAd       CorrelationKind = "ad"
	CorrelationAdmin    CorrelationKind = "admin"
)

// Correlation is a tagged union of known correlation kinds. Exactly the
// field matching Kind must be set; Validate enforces this so the ledger
// invariant checker stays exhaustive.
type Correlation struct {
	Kind       CorrelationKind
	PaymentRef string
	CampaignID uuid.UUID
	AdID       uuid.UUID
	AdminID    uuid.UUID
}

// PaymentCorrelation correlates a transaction to an external payment reference
func PaymentCorrelation(ref string) Correlation {
	return Correlation{Kind: CorrelationPayment, PaymentRef: ref}
}

// CampaignCorrelation correlates a transaction to a boost campaign
func CampaignCorrelation(campaignID uuid.UUID) Correlation {
	return Correlation{Kind: CorrelationCampaign, CampaignID: campaignID}
}

// AdCorrelation correlates a transaction to a featured ad
func AdCorrelation(adID uuid.UUID) Correlation {
	return Correlation{Kind: CorrelationAd, AdID: adID}
}

// AdminCorrelation correlates a transaction to the admin who made it
func AdminCorrelation(adminID uuid.UUID) Correlation {
	return Correlation{Kind: CorrelationAdmin, AdminID: adminID}
}

// Validate checks that the union is well-formed
func (c Correlation) Validate() error {
	switch c.Kind {
	case CorrelationPayment:
		if c.PaymentRef == "" {
			return ErrInvalidCorrelation
		}
	case CorrelationCampaign:
		if c.CampaignID == uuid.Nil {
			return ErrInvalidCorrelation
		}
	case CorrelationAd:
		if c.AdID == uuid.Nil {
			return ErrInvalidCorrelation
		}
	case CorrelationAdmin:
		if c.AdminID == uuid.Nil {
			return ErrInvalidCorrelation
		}
	default:
		return ErrInvalidCorrelation
	}
	return nil
}

// Account holds the token balance for one provider. Created lazily on
// first purchase or campaign creation, never physically deleted.
// Invariant: CurrentBalance = LifetimePurchased - LifetimeSpent.
type Account struct {
	ID                uuid.UUID `db:"id" json:"id"`
	CurrentBalance    int64     `db:"current_balance" json:"current_balance"`
	LifetimePurchased int64     `db:"lifetime_purchased" json:"lifetime_purchased"`
	LifetimeSpent     int64     `db:"lifetime_spent" json:"lifetime_spent"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable ledger row. Amount is signed: positive for
// credits, negative for spends. Balance before/after are null while a
// purchase is still pending and are fixed at completion time.
type Transaction struct {
	ID            uuid.UUID     `db:"id" json:"id"`
	AccountID     uuid.UUID     `db:"account_id" json:"account_id"`
	Kind          Kind          `db:"kind" json:"kind"`
	Status        Status        `db:"status" json:"status"`
	Amount        int64         `db:"amount" json:"amount"`
	BalanceBefore sql.NullInt64 `db:"balance_before" json:"balance_before,omitempty"`
	BalanceAfter  sql.NullInt64 `db:"balance_after" json:"balance_after,omitempty"`
	Description   string        `db:"description" json:"description"`

	CorrelationKind sql.NullString `db:"correlation_kind" json:"correlation_kind,omitempty"`
	PaymentRef      sql.NullString `db:"payment_ref" json:"payment_ref,omitempty"`
	CampaignID      uuid.NullUUID  `db:"campaign_id" json:"campaign_id,omitempty"`
	AdID            uuid.NullUUID  `db:"ad_id" json:"ad_id,omitempty"`
	AdminID         uuid.NullUUID  `db:"admin_id" json:"admin_id,omitempty"`

	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	CompletedAt sql.NullTime `db:"completed_at" json:"completed_at,omitempty"`
}

// Correlation reconstructs the tagged union from the stored columns
func (t *Transaction) Correlation() Correlation {
	c := Correlation{}
	if !t.CorrelationKind.Valid {
		return c
	}
	c.Kind = CorrelationKind(t.CorrelationKind.String)
	switch c.Kind {
	case CorrelationPayment:
		c.PaymentRef = t.PaymentRef.String
	case CorrelationCampaign:
		c.CampaignID = t.CampaignID.UUID
	case CorrelationAd:
		c.AdID = t.AdID.UUID
	case CorrelationAdmin:
		c.AdminID = t.AdminID.UUID
	}
	return c
}
