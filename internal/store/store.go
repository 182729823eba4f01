package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"tollfee/internal/model"
	"tollfee/internal/toll"
)

// Store is the persistence interface used by the API server and the webhook worker.
type Store interface {
	// Passages
	CreatePassage(ctx context.Context, in model.PassageInput) (model.Passage, error)
	// CreatePassages stores all inputs or none of them.
	CreatePassages(ctx context.Context, ins []model.PassageInput) ([]model.Passage, error)
	GetPassage(ctx context.Context, id string) (model.Passage, error)
	ListPassages(ctx context.Context) ([]model.Passage, error)
	ListPassagesByVehicle(ctx context.Context, vehicleID string) ([]model.Passage, error)
	DeletePassage(ctx context.Context, id string) error
	ClearPassages(ctx context.Context) error

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDLQ(ctx context.Context, limit int) ([]DeadLetter, error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// sortPassages orders passages by instant with the id as tie-break. Timestamps that
// do not parse sort after every parseable one.
func sortPassages(ps []model.Passage) {
	at := make(map[string]time.Time, len(ps))
	for _, p := range ps {
		if t, err := toll.ParseTimestamp(p.Timestamp); err == nil {
			at[p.ID] = t
		}
	}
	sort.SliceStable(ps, func(i, j int) bool {
		ti, iok := at[ps[i].ID]
		tj, jok := at[ps[j].ID]
		switch {
		case iok && !jok:
			return true
		case !iok && jok:
			return false
		case iok && jok && !ti.Equal(tj):
			return ti.Before(tj)
		}
		return ps[i].ID < ps[j].ID
	})
}

// checkInput rejects inputs the engine could not price and returns the resolved
// instant.
func checkInput(in model.PassageInput) (time.Time, error) {
	if !in.VehicleType.Valid() {
		return time.Time{}, fmt.Errorf("%w: %q", model.ErrUnknownVehicleType, in.VehicleType)
	}
	at, err := toll.ParseTimestamp(in.Timestamp)
	if err != nil {
		return time.Time{}, &toll.TimestampError{Value: in.Timestamp, Err: err}
	}
	return at, nil
}
