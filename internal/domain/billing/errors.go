package billing

import "errors"

var (
	// ErrForbidden is returned when the caller doesn't own the resource
	ErrForbidden = errors.New("resource belongs to another account")

	// ErrInvalidSignature is returned for webhooks failing signature verification
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrInvalidWebhook is returned for webhook payloads that cannot be parsed
	ErrInvalidWebhook = errors.New("invalid webhook payload")
)
