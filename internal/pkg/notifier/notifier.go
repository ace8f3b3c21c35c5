package notifier

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event names pushed to the notification collaborator.
const (
	EventPurchaseCompleted = "purchase.completed"
	EventPurchaseFailed    = "purchase.failed"
	EventCampaignExhausted = "campaign.exhausted"
	EventAdApproved        = "ad.approved"
	EventAdRejected        = "ad.rejected"
	EventAdExpired         = "ad.expired"
)

// Notifier delivers outcome notifications to providers. Delivery is
// fire-and-forget: a failed notification must never roll back the ledger
// or campaign mutation that triggered it.
type Notifier interface {
	Notify(ctx context.Context, accountID uuid.UUID, event string, payload map[string]interface{})
}

// LogNotifier logs notifications. Used when no notification collaborator
// is configured; the real integration is owned by the platform.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, accountID uuid.UUID, event string, payload map[string]interface{}) {
	log.Info().
		Str("account_id", accountID.String()).
		Str("event", event).
		Interface("payload", payload).
		Msg("notification dispatched")
}
