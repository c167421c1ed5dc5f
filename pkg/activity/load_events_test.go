package activity

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestBuildArchiveLoadedEvent(t *testing.T) {
	meta := map[string]any{"custom": "value"}
	event := BuildArchiveLoadedEvent(LoadEventInput{
		ActorID:   " actor ",
		SessionID: "session-1",
		Archive:   "resnet",
		Format:    "modern",
		Classes:   3,
		Constants: 2,
		Duration:  1500 * time.Millisecond,
		Metadata:  meta,
	})

	if event.Verb != VerbArchiveLoaded || event.ObjectType != ObjectTypeArchive || event.ObjectID != "session-1" {
		t.Fatalf("unexpected event fields: %+v", event)
	}
	if event.ActorID != "actor" {
		t.Fatalf("expected trimmed actor, got %q", event.ActorID)
	}
	if event.Metadata["archive"] != "resnet" || event.Metadata["format"] != "modern" {
		t.Fatalf("unexpected metadata %+v", event.Metadata)
	}
	if event.Metadata["classes"] != 3 || event.Metadata["constants"] != 2 || event.Metadata["duration_ms"] != int64(1500) {
		t.Fatalf("unexpected counters %+v", event.Metadata)
	}
	if _, ok := event.Metadata["error"]; ok {
		t.Fatalf("successful load must not carry an error")
	}
	event.Metadata["custom"] = "changed"
	if meta["custom"] != "value" {
		t.Fatalf("expected input metadata untouched")
	}
}

func TestBuildArchiveLoadFailedEventRecordsError(t *testing.T) {
	event := BuildArchiveLoadFailedEvent(LoadEventInput{Archive: "broken", Err: errors.New("bad record")})
	if event.Verb != VerbArchiveLoadFailed {
		t.Fatalf("expected %s, got %s", VerbArchiveLoadFailed, event.Verb)
	}
	if event.ObjectID != "broken" {
		t.Fatalf("expected archive name fallback, got %q", event.ObjectID)
	}
	if event.Metadata["error"] != "bad record" {
		t.Fatalf("expected error metadata, got %+v", event.Metadata)
	}
}

func TestBuildLoadEventFallsBackToObjectType(t *testing.T) {
	event := BuildArchiveLoadedEvent(LoadEventInput{})
	if event.ObjectID != ObjectTypeArchive {
		t.Fatalf("expected fallback object ID, got %q", event.ObjectID)
	}
	capture := &CaptureHook{}
	if err := (Hooks{capture}).Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if verbs := capture.Verbs(); len(verbs) != 1 || verbs[0] != VerbArchiveLoaded {
		t.Fatalf("unexpected verbs %v", verbs)
	}
}
