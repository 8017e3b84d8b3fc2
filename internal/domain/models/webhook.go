package models

import "time"

// WebhookEvent is a provider notification normalized by the provider adapter.
// RawPayload keeps the original bytes for audit and signature re-verification.
type WebhookEvent struct {
	Provider   string
	EventType  string
	EventID    string
	Timestamp  time.Time
	Data       map[string]string
	RawPayload []byte
}
