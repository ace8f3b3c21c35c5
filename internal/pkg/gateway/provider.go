package gateway

import (
	"fmt"
)

// Provider constants
const (
	ProviderEpay   = "epay"
	ProviderManual = "manual"
)

// Event types delivered by payment gateways. Gateways retry with
// at-least-once semantics; consumers must treat events as idempotent.
const (
	EventSucceeded = "payment.succeeded"
	EventFailed    = "payment.failed"
)

// WebhookEvent is a standardized webhook event across all providers
type WebhookEvent struct {
	Provider  string // Provider name (e.g. "epay")
	EventType string // EventSucceeded or EventFailed
	Reference string // External payment reference assigned at checkout
	Amount    int64  // Token amount, informational only; the pending transaction is authoritative
	RawData   string // Original webhook payload for debugging
}

// Provider defines the interface that all payment gateway integrations
// must implement. The gateway itself is an external system; this layer
// only verifies authenticity and normalizes the payload.
type Provider interface {
	// VerifyWebhook validates webhook signature and returns whether it's authentic
	VerifyWebhook(body []byte, signature string) bool

	// ParseWebhook parses provider-specific webhook data into standardized format
	ParseWebhook(body []byte) (*WebhookEvent, error)

	// Name returns the provider identifier
	Name() string
}

// Factory creates payment provider instances
type Factory struct {
	providers map[string]Provider
}

// NewFactory creates a new provider factory
func NewFactory() *Factory {
	return &Factory{
		providers: make(map[string]Provider),
	}
}

// Register adds a payment provider to the factory
func (f *Factory) Register(provider Provider) {
	f.providers[provider.Name()] = provider
}

// Get retrieves a payment provider by name
func (f *Factory) Get(name string) (Provider, error) {
	provider, exists := f.providers[name]
	if !exists {
		return nil, fmt.Errorf("payment provider '%s' not found", name)
	}
	return provider, nil
}

// MapStatusToEventType converts a provider-specific status string to an
// internal event type. Unknown statuses map to failed rather than silently
// crediting.
func MapStatusToEventType(providerStatus string) string {
	status := ""
	for _, r := range providerStatus {
		if r >= 'A' && r <= 'Z' {
			status += string(r + 32)
		} else {
			status += string(r)
		}
	}

	switch status {
	case "success", "succeeded", "completed", "paid", "approved", "authorized":
		return EventSucceeded
	default:
		return EventFailed
	}
}
