package usersink_test

import (
	"context"
	"testing"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/goliatone/go-scriptload/pkg/activity"
	"github.com/goliatone/go-scriptload/pkg/activity/usersink"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsLoadEvent(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	actorID := uuid.New()
	tenantID := uuid.New()
	sessionID := uuid.New()

	event := activity.BuildArchiveLoadedEvent(activity.LoadEventInput{
		ActorID:    actorID.String(),
		TenantID:   tenantID.String(),
		SessionID:  sessionID.String(),
		Archive:    "resnet",
		Classes:    2,
		OccurredAt: now,
	})
	event.Channel = "scriptload"

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.TenantID != tenantID {
		t.Fatalf("unexpected identities: %+v", record)
	}
	if record.UserID != uuid.Nil {
		t.Fatalf("expected nil user, got %s", record.UserID)
	}
	if record.Verb != activity.VerbArchiveLoaded || record.ObjectType != "archive" || record.ObjectID != sessionID.String() {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "scriptload" || !record.OccurredAt.Equal(now) {
		t.Fatalf("unexpected channel or time: %+v", record)
	}
	if record.Data["archive"] != "resnet" || record.Data["session_id"] != sessionID.String() {
		t.Fatalf("expected metadata passthrough, got %v", record.Data)
	}
}

func TestHookNotifyFallsBackToConfiguredActor(t *testing.T) {
	sink := &recordingSink{}
	service := uuid.New()
	hook := usersink.Hook{Sink: sink, ActorID: service}

	err := hook.Notify(context.Background(), activity.Event{Verb: "archive.loaded", ObjectType: "archive", ObjectID: "resnet"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sink.records[0].ActorID != service {
		t.Fatalf("expected fallback actor %s, got %s", service, sink.records[0].ActorID)
	}
	if _, ok := sink.records[0].Data["session_id"]; ok {
		t.Fatalf("non-uuid object IDs must not be reported as sessions")
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}

func TestHookNotifySkipsIncompleteEvents(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
}
