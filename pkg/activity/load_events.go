package activity

import (
	"strings"
	"time"
)

// Verbs and object type of archive load events.
const (
	VerbArchiveLoaded     = "archive.loaded"
	VerbArchiveLoadFailed = "archive.load_failed"
	ObjectTypeArchive     = "archive"
)

// LoadEventInput describes one finished load.
type LoadEventInput struct {
	ActorID   string
	UserID    string
	TenantID  string
	SessionID string
	Archive   string
	Format    string
	Classes   int
	Constants int
	Duration  time.Duration
	Err       error
	Metadata  map[string]any
	// OccurredAt defaults to the time of normalization.
	OccurredAt time.Time
}

// BuildArchiveLoadedEvent constructs the event for a successful load.
func BuildArchiveLoadedEvent(input LoadEventInput) Event {
	return buildLoadEvent(VerbArchiveLoaded, input)
}

// BuildArchiveLoadFailedEvent constructs the event for a failed load. The
// error text is recorded under "error".
func BuildArchiveLoadFailedEvent(input LoadEventInput) Event {
	return buildLoadEvent(VerbArchiveLoadFailed, input)
}

func buildLoadEvent(verb string, input LoadEventInput) Event {
	metadata := cloneMap(input.Metadata)
	if metadata == nil {
		metadata = map[string]any{}
	}
	if input.Archive != "" {
		metadata["archive"] = input.Archive
	}
	if input.Format != "" {
		metadata["format"] = input.Format
	}
	metadata["classes"] = input.Classes
	metadata["constants"] = input.Constants
	metadata["duration_ms"] = input.Duration.Milliseconds()
	if input.Err != nil {
		metadata["error"] = input.Err.Error()
	}

	objectID := strings.TrimSpace(input.SessionID)
	if objectID == "" {
		objectID = strings.TrimSpace(input.Archive)
	}
	if objectID == "" {
		objectID = ObjectTypeArchive
	}

	return Event{
		Verb:       verb,
		ActorID:    strings.TrimSpace(input.ActorID),
		UserID:     strings.TrimSpace(input.UserID),
		TenantID:   strings.TrimSpace(input.TenantID),
		ObjectType: ObjectTypeArchive,
		ObjectID:   objectID,
		Metadata:   metadata,
		OccurredAt: input.OccurredAt,
	}
}
