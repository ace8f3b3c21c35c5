package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// EpayProvider integrates the epay gateway. Webhooks are JSON bodies
// signed with HMAC-SHA256 over the raw payload, hex-encoded in the
// X-Gateway-Signature header.
type EpayProvider struct {
	secret []byte
}

// NewEpayProvider creates an epay provider with the shared webhook secret
func NewEpayProvider(secret string) *EpayProvider {
	return &EpayProvider{secret: []byte(secret)}
}

// Name returns the provider identifier
func (p *EpayProvider) Name() string {
	return ProviderEpay
}

// VerifyWebhook checks the HMAC-SHA256 signature of the raw body.
// Comparison is constant-time and case-insensitive on the hex encoding.
func (p *EpayProvider) VerifyWebhook(body []byte, signature string) bool {
	if len(p.secret) == 0 || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, p.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

type epayPayload struct {
	Event     string `json:"event"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// ParseWebhook parses the epay JSON webhook body
func (p *EpayProvider) ParseWebhook(body []byte) (*WebhookEvent, error) {
	var payload epayPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook body: %w", err)
	}

	if payload.Reference == "" {
		return nil, fmt.Errorf("reference is required")
	}

	eventType := payload.Event
	if eventType == "" {
		eventType = MapStatusToEventType(payload.Status)
	}
	if eventType != EventSucceeded && eventType != EventFailed {
		return nil, fmt.Errorf("unsupported event type: %s", eventType)
	}

	return &WebhookEvent{
		Provider:  ProviderEpay,
		EventType: eventType,
		Reference: payload.Reference,
		Amount:    payload.Amount,
		RawData:   string(body),
	}, nil
}
