package events_test

import (
	"testing"

	"github.com/pencilsharp/pencilsharp/internal/events"
)

func TestMemoryEventLogger_LogEvent(t *testing.T) {
	logger := events.NewMemoryEventLogger()

	err := logger.LogEvent(events.Record{
		UserID:    "user-1",
		EventType: events.TopicChanged,
		Data: map[string]any{
			"topic": "Variables",
		},
	})
	if err != nil {
		t.Fatalf("LogEvent() error = %v", err)
	}

	records := logger.Records()
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].EventType != events.TopicChanged {
		t.Errorf("EventType = %q, want topic_changed", records[0].EventType)
	}
	if records[0].CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
}

func TestMemoryEventLogger_RequiresType(t *testing.T) {
	logger := events.NewMemoryEventLogger()
	if err := logger.LogEvent(events.Record{UserID: "u"}); err == nil {
		t.Fatal("expected error for empty event type")
	}
}

func TestPostgresEventLogger_LogEvent_NilPool(t *testing.T) {
	logger := events.NewPostgresEventLogger(nil)

	err := logger.LogEvent(events.Record{
		UserID:    "user-1",
		EventType: events.SubjectChanged,
	})
	if err == nil {
		t.Fatal("expected error for nil pool")
	}
}

func TestRecorder_ForwardsNotifications(t *testing.T) {
	logger := events.NewMemoryEventLogger()
	rec := events.NewRecorder(logger, 8)

	var bus events.Bus
	bus.AddObserver(rec.For("user-1"))
	bus.Notify(events.SubjectChanged, "Math")
	bus.Notify(events.UnitChanged, 1)
	rec.Close()

	records := logger.Records()
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].UserID != "user-1" {
		t.Errorf("UserID = %q, want user-1", records[0].UserID)
	}
	if records[0].Data["subject"] != "Math" {
		t.Errorf("Data[subject] = %v, want Math", records[0].Data["subject"])
	}
	if records[1].Data["unit_index"] != 1 {
		t.Errorf("Data[unit_index] = %v, want 1", records[1].Data["unit_index"])
	}
}

func TestRecorder_CloseIsIdempotent(t *testing.T) {
	rec := events.NewRecorder(nil, 0)
	rec.Close()
	rec.Close()
}

func TestRecorder_DropsAfterClose(t *testing.T) {
	logger := events.NewMemoryEventLogger()
	rec := events.NewRecorder(logger, 1)
	obs := rec.For("user-1")
	rec.Close()

	obs.Notify(events.TopicChanged, "A")

	if n := len(logger.Records()); n != 0 {
		t.Errorf("len(records) = %d, want 0 after Close", n)
	}
}
