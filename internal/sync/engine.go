// Package sync replays queued uploads against the server and reconciles
// local synced flags.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kimhsiao/menuscan/backend/internal/db"
	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
	"github.com/kimhsiao/menuscan/backend/internal/logging"
	"github.com/kimhsiao/menuscan/backend/internal/models"
	"github.com/kimhsiao/menuscan/backend/internal/sync/queue"
	"github.com/kimhsiao/menuscan/backend/internal/telemetry"
)

// SyncStatus represents the current sync status.
type SyncStatus string

const (
	SyncStatusIdle    SyncStatus = "idle"
	SyncStatusSyncing SyncStatus = "syncing"
)

// OnlineChecker reports the last known connectivity state.
type OnlineChecker interface {
	IsOnline() bool
}

// Doer sends HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Options configures a SyncEngine.
type Options struct {
	// BaseURL is prepended to relative upload endpoints.
	BaseURL string
	// Client defaults to an *http.Client with no timeout.
	Client  Doer
	Metrics *telemetry.Metrics
	Logger  *logging.Logger
}

// DrainResult summarizes one Drain call. It is informational only.
type DrainResult struct {
	StartedAt time.Time     `json:"startedAt" yaml:"startedAt"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Passes    int           `json:"passes" yaml:"passes"`
	Attempted int           `json:"attempted" yaml:"attempted"`
	Delivered int           `json:"delivered" yaml:"delivered"`
	Failed    int           `json:"failed" yaml:"failed"`
	// Offline is set when the gate reported offline and nothing was sent.
	Offline bool `json:"offline" yaml:"offline"`
	// Coalesced is set when a pass was already running; the running pass
	// will make one more pass on the caller's behalf.
	Coalesced bool `json:"coalesced" yaml:"coalesced"`
}

// SyncEngine drains the pending-upload queue.
type SyncEngine struct {
	repo    *db.Repository
	queue   *queue.Queue
	gate    OnlineChecker
	client  Doer
	baseURL *url.URL
	metrics *telemetry.Metrics
	log     *logging.Logger

	mu         sync.Mutex
	running    bool
	followUp   bool
	lastSync   *time.Time
	lastResult *DrainResult
	handler    SyncEventHandler
}

// NewSyncEngine creates a new SyncEngine. A nil gate is treated as always online.
func NewSyncEngine(repo *db.Repository, q *queue.Queue, gate OnlineChecker, opts Options) (*SyncEngine, error) {
	var base *url.URL
	if opts.BaseURL != "" {
		u, err := url.Parse(opts.BaseURL)
		if err != nil || !u.IsAbs() {
			return nil, apperrors.Newf(apperrors.ErrConfig, "invalid server base URL %q", opts.BaseURL)
		}
		base = u
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Get()
	}

	return &SyncEngine{
		repo:    repo,
		queue:   q,
		gate:    gate,
		client:  client,
		baseURL: base,
		metrics: opts.Metrics,
		log:     logger.With(map[string]interface{}{"component": "sync"}),
	}, nil
}

// SetEventHandler sets the handler that receives sync events. Nil disables events.
func (e *SyncEngine) SetEventHandler(handler SyncEventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

// Status returns the current sync status.
func (e *SyncEngine) Status() SyncStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return SyncStatusSyncing
	}
	return SyncStatusIdle
}

// LastSync returns when the last drain that reached the queue finished.
func (e *SyncEngine) LastSync() *time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastSync
}

// LastResult returns the result of the last drain that reached the queue.
func (e *SyncEngine) LastResult() *DrainResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastResult == nil {
		return nil
	}
	r := *e.lastResult
	return &r
}

// PendingChanges returns the number of queued uploads.
func (e *SyncEngine) PendingChanges(ctx context.Context) (int, error) {
	return e.queue.Size(ctx)
}

func (e *SyncEngine) online() bool {
	return e.gate == nil || e.gate.IsOnline()
}

// Drain delivers every queued upload once, in createdAt order.
//
// When offline it returns immediately without network calls. When a drain is
// already running it records a single follow-up request and returns with
// Coalesced set; the running drain then makes exactly one more pass. Delivery
// failures only increment the upload's retry count and never reach the caller.
func (e *SyncEngine) Drain(ctx context.Context) DrainResult {
	start := time.Now()

	if !e.online() {
		e.metrics.ObservePass(telemetry.PassOffline)
		e.log.Debug("drain skipped, offline")
		return DrainResult{StartedAt: start, Offline: true}
	}

	e.mu.Lock()
	if e.running {
		e.followUp = true
		e.mu.Unlock()
		e.metrics.ObservePass(telemetry.PassCoalesced)
		return DrainResult{StartedAt: start, Coalesced: true}
	}
	e.running = true
	e.mu.Unlock()

	total := DrainResult{StartedAt: start}
	for {
		r := e.pass(ctx)
		total.Passes++
		total.Attempted += r.Attempted
		total.Delivered += r.Delivered
		total.Failed += r.Failed
		if r.Offline && total.Passes == 1 {
			total.Offline = true
		}

		e.mu.Lock()
		if !e.followUp || ctx.Err() != nil {
			e.followUp = false
			e.running = false
			total.Duration = time.Since(start)
			if !total.Offline {
				end := start.Add(total.Duration)
				e.lastSync = &end
				result := total
				e.lastResult = &result
			}
			e.mu.Unlock()
			return total
		}
		e.followUp = false
		e.mu.Unlock()
	}
}

// pass attempts every upload present when it starts exactly once.
func (e *SyncEngine) pass(ctx context.Context) DrainResult {
	var result DrainResult

	if !e.online() {
		e.metrics.ObservePass(telemetry.PassOffline)
		result.Offline = true
		return result
	}

	uploads, err := e.queue.ListOrdered(ctx)
	if err != nil {
		e.log.ErrorWithCode("failed to list pending uploads", string(apperrors.CodeOf(err)), err)
		return result
	}
	if len(uploads) == 0 {
		e.metrics.ObservePass(telemetry.PassEmpty)
		e.recordQueue(ctx)
		return result
	}

	e.emitEvent(SyncEvent{
		Type:    SyncEventStarted,
		Message: fmt.Sprintf("delivering %d pending uploads", len(uploads)),
		Total:   len(uploads),
	})

	for i, upload := range uploads {
		if ctx.Err() != nil {
			break
		}
		result.Attempted++

		if err := e.deliver(ctx, upload); err != nil {
			result.Failed++
			e.handleFailure(ctx, upload, err)
		} else {
			result.Delivered++
			e.metrics.ObserveDelivery(telemetry.OutcomeDelivered)
			e.acknowledge(ctx, upload)
		}

		e.emitEvent(SyncEvent{
			Type:     SyncEventProgress,
			UploadID: upload.ID,
			Current:  i + 1,
			Total:    len(uploads),
		})
	}

	e.metrics.ObservePass(telemetry.PassCompleted)
	e.recordQueue(ctx)
	e.emitEvent(SyncEvent{
		Type:    SyncEventCompleted,
		Message: fmt.Sprintf("%d delivered, %d failed", result.Delivered, result.Failed),
		Current: result.Attempted,
		Total:   len(uploads),
	})
	e.log.Info("drain pass completed", map[string]interface{}{
		"attempted": result.Attempted,
		"delivered": result.Delivered,
		"failed":    result.Failed,
	})
	return result
}

// deliver sends one upload. A nil error means the server answered 2xx.
func (e *SyncEngine) deliver(ctx context.Context, upload *models.PendingUpload) error {
	req, err := e.buildRequest(ctx, upload)
	if err != nil {
		return err
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDeliveryFailed, "request failed", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

func (e *SyncEngine) buildRequest(ctx context.Context, upload *models.PendingUpload) (*http.Request, error) {
	if !models.ValidMethod(upload.Method) {
		return nil, apperrors.Newf(apperrors.ErrMalformedUpload, "unsupported method %q", upload.Method)
	}
	target, err := e.resolve(upload.Endpoint)
	if err != nil {
		return nil, err
	}

	body := []byte(upload.Data)
	if len(body) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		return nil, apperrors.New(apperrors.ErrMalformedUpload, "upload data is not valid JSON")
	}

	req, err := http.NewRequestWithContext(ctx, upload.Method, target, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedUpload, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// resolve turns an endpoint into an absolute URL using the base URL.
func (e *SyncEngine) resolve(endpoint string) (string, error) {
	if endpoint == "" {
		return "", apperrors.New(apperrors.ErrMalformedUpload, "empty endpoint")
	}
	ref, err := url.Parse(endpoint)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrMalformedUpload, "unparsable endpoint", err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	if e.baseURL == nil {
		return "", apperrors.Newf(apperrors.ErrMalformedUpload, "relative endpoint %q without server base URL", endpoint)
	}
	return JoinURL(e.baseURL, ref), nil
}

// JoinURL appends a relative reference to base. The base path is kept as a
// prefix, so "http://host/v1" and "/api/menus" give "http://host/v1/api/menus".
func JoinURL(base, ref *url.URL) string {
	u := *base
	u.Path = joinPath(base.Path, ref.Path)
	u.RawPath = joinPath(base.EscapedPath(), ref.EscapedPath())
	u.RawQuery = ref.RawQuery
	u.Fragment = ref.Fragment
	return u.String()
}

func joinPath(prefix, p string) string {
	return strings.TrimSuffix(prefix, "/") + "/" + strings.TrimPrefix(p, "/")
}

// acknowledge removes a delivered upload and marks its entity synced once no
// other queued upload references it.
func (e *SyncEngine) acknowledge(ctx context.Context, upload *models.PendingUpload) {
	storeCtx := context.WithoutCancel(ctx)
	err := e.repo.InTx(storeCtx, func(tx *db.Repository) error {
		if err := tx.Delete(storeCtx, db.CollectionPendingUploads, upload.ID); err != nil {
			return err
		}

		key, ok := upload.BusinessKey()
		if !ok {
			return nil
		}
		coll, field, ok := entityIndex(upload.Type)
		if !ok {
			return nil
		}

		remaining, err := tx.CountPendingForKey(storeCtx, upload.Type, key)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		_, err = tx.ModifyWhere(storeCtx, coll, field, key, db.Patch{"synced": true})
		return err
	})
	if err != nil {
		e.log.ErrorWithCode("failed to acknowledge delivered upload", string(apperrors.CodeOf(err)), err,
			map[string]interface{}{"upload_id": upload.ID})
	}
}

// entityIndex maps an upload type to the collection and business-key field it reconciles.
func entityIndex(t models.UploadType) (db.Collection, string, bool) {
	switch t {
	case models.UploadTypeMenu:
		return db.CollectionMenus, "menuId", true
	case models.UploadTypeMenuItem:
		return db.CollectionMenuItems, "itemId", true
	}
	return "", "", false
}

func (e *SyncEngine) handleFailure(ctx context.Context, upload *models.PendingUpload, cause error) {
	outcome := telemetry.OutcomeTransport
	switch {
	case apperrors.Is(cause, apperrors.ErrMalformedUpload):
		outcome = telemetry.OutcomeMalformed
	case IsStatusError(cause):
		outcome = telemetry.OutcomeRejected
	}
	e.metrics.ObserveDelivery(outcome)

	if err := e.queue.BumpRetry(context.WithoutCancel(ctx), upload.ID); err != nil {
		e.log.ErrorWithCode("failed to record retry", string(apperrors.CodeOf(err)), err,
			map[string]interface{}{"upload_id": upload.ID})
	}

	e.log.WarnWithCode("upload delivery failed", string(apperrors.ErrDeliveryFailed), cause, map[string]interface{}{
		"upload_id":   upload.ID,
		"type":        string(upload.Type),
		"endpoint":    upload.Endpoint,
		"retry_count": upload.RetryCount + 1,
		"outcome":     outcome,
	})
	e.emitEvent(SyncEvent{
		Type:     SyncEventItemFailed,
		UploadID: upload.ID,
		Message:  cause.Error(),
	})
}

func (e *SyncEngine) recordQueue(ctx context.Context) {
	if e.metrics == nil {
		return
	}
	stats, err := e.queue.Stats(context.WithoutCancel(ctx))
	if err != nil {
		e.log.Error("failed to read queue stats", err)
		return
	}
	e.metrics.SetQueue(stats.Total, stats.MaxRetryCount)
}

// StatusError reports a non-2xx server response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// IsStatusError reports whether err is a non-2xx response.
func IsStatusError(err error) bool {
	_, ok := err.(*StatusError)
	return ok
}
