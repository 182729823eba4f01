package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"tollfee/internal/store"
)

// Event is the JSON body POSTed to every webhook endpoint.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	TS   time.Time `json:"ts"`
	Data any       `json:"data"`
}

// Publisher fans events out to the configured endpoints through the delivery queue.
type Publisher struct {
	Store  store.Store
	URLs   []string
	Secret string
	now    func() time.Time
}

func NewPublisher(s store.Store, urls []string, secret string) *Publisher {
	return &Publisher{Store: s, URLs: urls, Secret: secret, now: time.Now}
}

// Emit enqueues one delivery of the event per endpoint and returns the event id.
// With no endpoints configured it does nothing.
func (p *Publisher) Emit(ctx context.Context, eventType string, data any) (string, error) {
	if p == nil || len(p.URLs) == 0 {
		return "", nil
	}
	evt := Event{
		ID:   "evt_" + ulid.Make().String(),
		Type: eventType,
		TS:   p.now().UTC().Truncate(time.Second),
		Data: data,
	}
	body, err := json.Marshal(evt)
	if err != nil {
		return "", fmt.Errorf("encode %s event: %w", eventType, err)
	}
	for _, u := range p.URLs {
		if _, err := p.Store.EnqueueWebhook(ctx, eventType, u, p.Secret, body); err != nil {
			return evt.ID, fmt.Errorf("enqueue %s for %s: %w", eventType, u, err)
		}
	}
	return evt.ID, nil
}
