package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"tollfee/internal/model"
)

// Memory is an in-process store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.RWMutex
	passages   map[string]model.Passage
	deliveries map[string]*memDelivery
	order      []string // pending delivery ids in enqueue order
	dlq        []DeadLetter
}

func NewMemory() *Memory {
	return &Memory{
		passages:   map[string]model.Passage{},
		deliveries: map[string]*memDelivery{},
	}
}

// memDelivery augments WebhookDelivery with scheduling state.
type memDelivery struct {
	WebhookDelivery
	NextAttemptAt time.Time
	LastError     string
	ResponseCode  int
	LatencyMs     int
	DeliveredAt   *time.Time
}

func (m *Memory) CreatePassage(ctx context.Context, in model.PassageInput) (model.Passage, error) {
	if _, err := checkInput(in); err != nil {
		return model.Passage{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertLocked(in), nil
}

func (m *Memory) CreatePassages(ctx context.Context, ins []model.PassageInput) ([]model.Passage, error) {
	for _, in := range ins {
		if _, err := checkInput(in); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Passage, 0, len(ins))
	for _, in := range ins {
		out = append(out, m.insertLocked(in))
	}
	return out, nil
}

func (m *Memory) insertLocked(in model.PassageInput) model.Passage {
	p := model.Passage{
		ID:          uuid.New().String(),
		VehicleID:   in.VehicleID,
		VehicleType: in.VehicleType,
		Timestamp:   in.Timestamp,
	}
	m.passages[p.ID] = p
	return p
}

func (m *Memory) GetPassage(ctx context.Context, id string) (model.Passage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.passages[id]
	if !ok {
		return model.Passage{}, ErrNotFound
	}
	return p, nil
}

func (m *Memory) ListPassages(ctx context.Context) ([]model.Passage, error) {
	return m.list(func(model.Passage) bool { return true }), nil
}

func (m *Memory) ListPassagesByVehicle(ctx context.Context, vehicleID string) ([]model.Passage, error) {
	return m.list(func(p model.Passage) bool { return p.VehicleID == vehicleID }), nil
}

func (m *Memory) list(keep func(model.Passage) bool) []model.Passage {
	m.mu.RLock()
	out := make([]model.Passage, 0, len(m.passages))
	for _, p := range m.passages {
		if keep(p) {
			out = append(out, p)
		}
	}
	m.mu.RUnlock()
	sortPassages(out)
	return out
}

func (m *Memory) DeletePassage(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.passages[id]; !ok {
		return ErrNotFound
	}
	delete(m.passages, id)
	return nil
}

func (m *Memory) ClearPassages(ctx context.Context) error {
	m.mu.Lock()
	m.passages = map[string]model.Passage{}
	m.mu.Unlock()
	return nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &memDelivery{
		WebhookDelivery: WebhookDelivery{ID: id, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: DeliveryPending},
		NextAttemptAt:   time.Now(),
	}
	m.order = append(m.order, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.order {
		d := m.deliveries[id]
		if d == nil {
			continue
		}
		if (d.Status == DeliveryPending || d.Status == DeliveryRetry) && !d.NextAttemptAt.After(now) {
			out = append(out, d.WebhookDelivery)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = DeliveryDelivered
		now := time.Now()
		d.DeliveredAt = &now
		m.dropLocked(id)
		return nil
	}
	d.Status = DeliveryRetry
	d.LastError = lastError
	if nextAttemptAt != nil {
		d.NextAttemptAt = *nextAttemptAt
	} else {
		d.NextAttemptAt = time.Now().Add(time.Minute)
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = DeliveryFailed
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	m.dlq = append(m.dlq, DeadLetter{
		ID: id, EventType: d.EventType, URL: d.URL, Attempts: d.Attempts,
		LastError: lastError, ResponseCode: responseCode, LatencyMs: latencyMs, FailedAt: time.Now().UTC(),
	})
	m.dropLocked(id)
	return nil
}

// dropLocked forgets a delivery that reached a terminal state so the queue scan
// only walks live items.
func (m *Memory) dropLocked(id string) {
	delete(m.deliveries, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}

// ListWebhookDLQ returns dead letters newest first.
func (m *Memory) ListWebhookDLQ(ctx context.Context, limit int) ([]DeadLetter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	n := len(m.dlq)
	if n > limit {
		n = limit
	}
	out := make([]DeadLetter, 0, n)
	for i := len(m.dlq) - 1; len(out) < n; i-- {
		out = append(out, m.dlq[i])
	}
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
