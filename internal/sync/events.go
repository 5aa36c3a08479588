package sync

import "time"

// SyncEventType identifies a sync event.
type SyncEventType string

const (
	SyncEventStarted    SyncEventType = "sync.started"
	SyncEventProgress   SyncEventType = "sync.progress"
	SyncEventCompleted  SyncEventType = "sync.completed"
	SyncEventItemFailed SyncEventType = "sync.item_failed"
)

// SyncEvent is emitted while a drain pass runs.
type SyncEvent struct {
	Type      SyncEventType `json:"type"`
	Message   string        `json:"message,omitempty"`
	UploadID  int64         `json:"uploadId,omitempty"`
	Current   int           `json:"current,omitempty"`
	Total     int           `json:"total,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// SyncEventHandler receives sync events. OnSyncEvent is called on the drain
// goroutine and should not block.
type SyncEventHandler interface {
	OnSyncEvent(event SyncEvent)
}

// SyncEventHandlerFunc adapts a function to SyncEventHandler.
type SyncEventHandlerFunc func(SyncEvent)

// OnSyncEvent calls f(event).
func (f SyncEventHandlerFunc) OnSyncEvent(event SyncEvent) {
	f(event)
}

// emitEvent delivers event to the handler, stamping it if needed.
func (e *SyncEngine) emitEvent(event SyncEvent) {
	e.mu.Lock()
	handler := e.handler
	e.mu.Unlock()

	if handler == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	handler.OnSyncEvent(event)
}
