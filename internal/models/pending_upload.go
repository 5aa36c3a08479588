package models

import (
	"encoding/json"
	"time"
)

// UploadType identifies which entity collection a pending upload targets.
type UploadType string

const (
	UploadTypeMenu     UploadType = "menu"
	UploadTypeMenuItem UploadType = "menuItem"
)

// Valid reports whether t is a known upload type.
func (t UploadType) Valid() bool {
	return t == UploadTypeMenu || t == UploadTypeMenuItem
}

// HTTP methods accepted for pending uploads.
const (
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
)

// ValidMethod reports whether m is one of the methods a pending upload may use.
func ValidMethod(m string) bool {
	switch m {
	case MethodPost, MethodPut, MethodDelete:
		return true
	}
	return false
}

// PendingUpload is a queued server write that has not been acknowledged yet.
type PendingUpload struct {
	ID         int64           `db:"id" json:"id"`
	Type       UploadType      `db:"type" json:"type"`
	Data       json.RawMessage `db:"data" json:"data"`
	Endpoint   string          `db:"endpoint" json:"endpoint"`
	Method     string          `db:"method" json:"method"`
	CreatedAt  int64           `db:"created_at" json:"createdAt"` // unix milliseconds, FIFO key
	RetryCount int             `db:"retry_count" json:"retryCount"`
}

// TableName returns the table name for PendingUpload.
func (PendingUpload) TableName() string {
	return "pending_uploads"
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (p *PendingUpload) CreatedAtTime() time.Time {
	return time.UnixMilli(p.CreatedAt)
}

// Payload decodes Data into a field map.
func (p *PendingUpload) Payload() (map[string]interface{}, error) {
	if len(p.Data) == 0 {
		return map[string]interface{}{}, nil
	}
	var payload map[string]interface{}
	if err := json.Unmarshal(p.Data, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return payload, nil
}

// BusinessKey returns the string data.id carried by the payload, if any.
// It is matched against Menu.MenuID or MenuItem.ItemID depending on Type.
func (p *PendingUpload) BusinessKey() (string, bool) {
	payload, err := p.Payload()
	if err != nil {
		return "", false
	}
	id, ok := payload["id"].(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
