package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"tollfee/internal/model"
	"tollfee/internal/toll"
)

func TestMemoryPassageLifecycle(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a, err := m.CreatePassage(ctx, model.PassageInput{VehicleID: "ABC123", VehicleType: model.VehicleCar, Timestamp: "2024-05-20T07:20:00+02:00"})
	if err != nil || a.ID == "" {
		t.Fatalf("CreatePassage: %+v %v", a, err)
	}
	b, err := m.CreatePassage(ctx, model.PassageInput{VehicleID: "XYZ789", VehicleType: model.VehicleBus, Timestamp: "2024-05-20T05:05:00Z"})
	if err != nil {
		t.Fatalf("CreatePassage: %v", err)
	}
	got, err := m.GetPassage(ctx, a.ID)
	if err != nil || got != a {
		t.Fatalf("GetPassage: %+v %v", got, err)
	}
	list, _ := m.ListPassages(ctx)
	if len(list) != 2 || list[0].ID != b.ID || list[1].ID != a.ID {
		t.Fatalf("ListPassages not ordered by instant: %+v", list)
	}
	byVeh, _ := m.ListPassagesByVehicle(ctx, "ABC123")
	if len(byVeh) != 1 || byVeh[0].ID != a.ID {
		t.Fatalf("ListPassagesByVehicle: %+v", byVeh)
	}
	if err := m.DeletePassage(ctx, a.ID); err != nil {
		t.Fatalf("DeletePassage: %v", err)
	}
	if err := m.DeletePassage(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := m.GetPassage(ctx, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetPassage after delete: %v", err)
	}
	if err := m.ClearPassages(ctx); err != nil {
		t.Fatalf("ClearPassages: %v", err)
	}
	if list, _ := m.ListPassages(ctx); len(list) != 0 {
		t.Fatalf("expected empty store, got %d", len(list))
	}
}

func TestMemoryListTieBreaksOnID(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 5; i++ {
		if _, err := m.CreatePassage(ctx, model.PassageInput{VehicleID: "V", VehicleType: model.VehicleCar, Timestamp: "2024-05-20T07:00:00+02:00"}); err != nil {
			t.Fatal(err)
		}
	}
	list, _ := m.ListPassages(ctx)
	for i := 1; i < len(list); i++ {
		if list[i-1].ID >= list[i].ID {
			t.Fatalf("equal instants not ordered by id: %s >= %s", list[i-1].ID, list[i].ID)
		}
	}
}

func TestMemoryCreatePassagesIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, err := m.CreatePassages(ctx, []model.PassageInput{
		{VehicleID: "V", VehicleType: model.VehicleCar, Timestamp: "2024-05-20T07:00:00+02:00"},
		{VehicleID: "V", VehicleType: "Spaceship", Timestamp: "2024-05-20T07:00:00+02:00"},
	})
	if !errors.Is(err, model.ErrUnknownVehicleType) {
		t.Fatalf("err = %v", err)
	}
	_, err = m.CreatePassages(ctx, []model.PassageInput{
		{VehicleID: "V", VehicleType: model.VehicleCar, Timestamp: "2024-05-20T07:00:00+02:00"},
		{VehicleID: "V", VehicleType: model.VehicleCar, Timestamp: "20 May"},
	})
	if !errors.Is(err, toll.ErrInvalidTimestamp) {
		t.Fatalf("err = %v", err)
	}
	if list, _ := m.ListPassages(ctx); len(list) != 0 {
		t.Fatalf("partial batch stored: %+v", list)
	}
	out, err := m.CreatePassages(ctx, []model.PassageInput{
		{VehicleID: "V", VehicleType: model.VehicleCar, Timestamp: "2024-05-20T07:00:00+02:00"},
		{VehicleID: "W", VehicleType: model.VehicleTractor, Timestamp: "2024-05-20T08:00:00+02:00"},
	})
	if err != nil || len(out) != 2 || out[0].ID == out[1].ID {
		t.Fatalf("CreatePassages: %+v %v", out, err)
	}
}

func TestMemoryWebhookQueue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	id, err := m.EnqueueWebhook(ctx, "passage.created", "http://example.invalid/hook", "s", []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].ID != id || due[0].Status != DeliveryPending {
		t.Fatalf("due: %+v", due)
	}
	later := time.Now().Add(time.Hour)
	if err := m.MarkWebhookDelivery(ctx, id, false, &later, "boom", 500, 3); err != nil {
		t.Fatal(err)
	}
	if due, _ := m.FetchDueWebhookDeliveries(ctx, 10); len(due) != 0 {
		t.Fatalf("retry scheduled in the future should not be due: %+v", due)
	}
	if err := m.FailWebhookDelivery(ctx, id, "boom", 500, 3); err != nil {
		t.Fatal(err)
	}
	dlq, _ := m.ListWebhookDLQ(ctx, 0)
	if len(dlq) != 1 || dlq[0].ID != id || dlq[0].Attempts != 2 || dlq[0].EventType != "passage.created" {
		t.Fatalf("dlq: %+v", dlq)
	}
	if err := m.MarkWebhookDelivery(ctx, "missing", true, nil, "", 200, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown delivery: %v", err)
	}
}

func TestMemoryWebhookDLQNewestFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	var ids []string
	for i := 0; i < 3; i++ {
		id, _ := m.EnqueueWebhook(ctx, "passage.deleted", "http://example.invalid/hook", "", []byte(`{}`))
		if err := m.FailWebhookDelivery(ctx, id, "boom", 500, 1); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, id)
	}
	dlq, _ := m.ListWebhookDLQ(ctx, 2)
	if len(dlq) != 2 || dlq[0].ID != ids[2] || dlq[1].ID != ids[1] {
		t.Fatalf("dlq order: %+v, enqueued %v", dlq, ids)
	}
	if all, _ := m.ListWebhookDLQ(ctx, 0); len(all) != 3 || all[2].ID != ids[0] {
		t.Fatalf("full dlq: %+v", all)
	}
}

func TestMemoryWebhookQueueForgetsFinishedDeliveries(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	delivered, _ := m.EnqueueWebhook(ctx, "passage.created", "http://example.invalid/a", "", []byte(`{}`))
	failed, _ := m.EnqueueWebhook(ctx, "passage.created", "http://example.invalid/b", "", []byte(`{}`))
	pending, _ := m.EnqueueWebhook(ctx, "passage.created", "http://example.invalid/c", "", []byte(`{}`))

	if err := m.MarkWebhookDelivery(ctx, delivered, true, nil, "", 204, 1); err != nil {
		t.Fatal(err)
	}
	if err := m.FailWebhookDelivery(ctx, failed, "boom", 500, 1); err != nil {
		t.Fatal(err)
	}
	if len(m.deliveries) != 1 || len(m.order) != 1 || m.order[0] != pending {
		t.Fatalf("queue not pruned: deliveries=%d order=%v", len(m.deliveries), m.order)
	}
	due, _ := m.FetchDueWebhookDeliveries(ctx, 10)
	if len(due) != 1 || due[0].ID != pending {
		t.Fatalf("due: %+v", due)
	}
	if err := m.MarkWebhookDelivery(ctx, delivered, true, nil, "", 204, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("finished delivery still addressable: %v", err)
	}
}
