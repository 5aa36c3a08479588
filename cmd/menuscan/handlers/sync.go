package handlers

import (
	"context"
	"net/http"

	syncpkg "github.com/kimhsiao/menuscan/backend/internal/sync"
	"github.com/kimhsiao/menuscan/backend/internal/sync/scheduler"
)

// SyncController is the part of the scheduler the API drives.
type SyncController interface {
	SyncNow(ctx context.Context) syncpkg.DrainResult
	SetOnlineStatus(ctx context.Context, isOnline bool)
	GetStatus(ctx context.Context) (scheduler.SchedulerStatus, error)
}

// SyncHandler handles sync status and control.
type SyncHandler struct {
	ctrl SyncController
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(ctrl SyncController) *SyncHandler {
	return &SyncHandler{ctrl: ctrl}
}

// GetStatus handles GET /api/sync/status
func (h *SyncHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.ctrl.GetStatus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// SyncNow handles POST /api/sync/now
// It drains the queue and returns the result.
func (h *SyncHandler) SyncNow(w http.ResponseWriter, r *http.Request) {
	result := h.ctrl.SyncNow(r.Context())
	writeJSON(w, http.StatusOK, result)
}

// SetOnline handles POST /api/sync/online
// The host reports connectivity changes here; coming online starts a drain.
func (h *SyncHandler) SetOnline(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Online *bool `json:"online"`
	}
	if !decodeBody(w, r, &request) {
		return
	}
	if request.Online == nil {
		badRequest(w, "online is required")
		return
	}

	// The drain outlives the request.
	h.ctrl.SetOnlineStatus(context.WithoutCancel(r.Context()), *request.Online)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"online": *request.Online})
}
