package store

import "time"

// WebhookDelivery is one queued POST of an event body to one endpoint.
type WebhookDelivery struct {
	ID        string
	EventType string
	URL       string
	Secret    string
	Payload   []byte
	Status    string
	Attempts  int
}

// Delivery states.
const (
	DeliveryPending   = "pending"
	DeliveryRetry     = "retry"
	DeliveryDelivered = "delivered"
	DeliveryFailed    = "failed"
)

// DeadLetter records a delivery that exhausted its attempts.
type DeadLetter struct {
	ID           string    `json:"id"`
	EventType    string    `json:"eventType"`
	URL          string    `json:"url"`
	Attempts     int       `json:"attempts"`
	LastError    string    `json:"lastError,omitempty"`
	ResponseCode int       `json:"responseCode"`
	LatencyMs    int       `json:"latencyMs"`
	FailedAt     time.Time `json:"failedAt"`
}
