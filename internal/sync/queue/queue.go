// Package queue provides the durable pending-upload queue for offline writes.
package queue

import (
	"context"
	"encoding/json"

	"github.com/kimhsiao/menuscan/backend/internal/db"
	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
	"github.com/kimhsiao/menuscan/backend/internal/logging"
	"github.com/kimhsiao/menuscan/backend/internal/models"
)

// Upload describes a server write to be replayed later.
type Upload struct {
	Type     models.UploadType
	Data     map[string]interface{}
	Endpoint string
	Method   string
}

// Stats summarizes the queue.
type Stats struct {
	Total         int                       `json:"total" yaml:"total"`
	ByType        map[models.UploadType]int `json:"byType" yaml:"byType"`
	MaxRetryCount int                       `json:"maxRetryCount" yaml:"maxRetryCount"`
}

// Queue is a FIFO of pending uploads backed by the pending_uploads collection.
// Entries survive restarts and are ordered by createdAt, then id.
type Queue struct {
	repo *db.Repository
	now  func() int64
}

// NewQueue creates a queue over repo.
func NewQueue(repo *db.Repository) *Queue {
	return &Queue{repo: repo, now: models.NowMillis}
}

// Enqueue appends an upload with retryCount 0 and returns its id.
// Uploads that cannot be delivered (no endpoint, unknown method) are still
// accepted; they fail at delivery time.
func (q *Queue) Enqueue(ctx context.Context, u Upload) (int64, error) {
	var id int64
	err := q.repo.InTx(ctx, func(tx *db.Repository) error {
		var err error
		id, err = q.EnqueueTx(ctx, tx, u)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// EnqueueTx appends an upload using repo, which should be a transactional view
// from Repository.InTx so the enqueue commits together with the entity write.
func (q *Queue) EnqueueTx(ctx context.Context, repo *db.Repository, u Upload) (int64, error) {
	data, err := encodeData(u.Data)
	if err != nil {
		return 0, err
	}

	latest, err := repo.MaxCreatedAt(ctx, db.CollectionPendingUploads)
	if err != nil {
		return 0, err
	}
	createdAt := q.now()
	if createdAt <= latest {
		createdAt = latest + 1
	}

	upload := &models.PendingUpload{
		Type:       u.Type,
		Data:       data,
		Endpoint:   u.Endpoint,
		Method:     u.Method,
		CreatedAt:  createdAt,
		RetryCount: 0,
	}
	id, err := repo.PutPendingUpload(ctx, upload)
	if err != nil {
		return 0, err
	}

	logging.Debug("upload enqueued", map[string]interface{}{
		"upload_id": id,
		"type":      string(u.Type),
		"method":    u.Method,
		"endpoint":  u.Endpoint,
	})
	return id, nil
}

func encodeData(data map[string]interface{}) (json.RawMessage, error) {
	if data == nil {
		return json.RawMessage("{}"), nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedUpload, "upload data is not JSON-encodable", err)
	}
	return raw, nil
}

// ListOrdered returns every queued upload, oldest first. An empty queue
// yields an empty slice.
func (q *Queue) ListOrdered(ctx context.Context) ([]*models.PendingUpload, error) {
	return q.repo.QueryPendingUploads(ctx, "", nil)
}

// Remove deletes an upload. Removing an absent id succeeds.
func (q *Queue) Remove(ctx context.Context, id int64) error {
	return q.repo.Delete(ctx, db.CollectionPendingUploads, id)
}

// BumpRetry increments an upload's retry count. A missing id is ignored.
func (q *Queue) BumpRetry(ctx context.Context, id int64) error {
	updated, err := q.repo.IncrementRetryCount(ctx, id)
	if err != nil {
		return err
	}
	if !updated {
		logging.Debug("retry bump skipped, upload no longer queued", map[string]interface{}{"upload_id": id})
	}
	return nil
}

// HasPendingFor reports whether any queued upload of uploadType still carries
// data.id == key.
func (q *Queue) HasPendingFor(ctx context.Context, uploadType models.UploadType, key string) (bool, error) {
	n, err := q.repo.CountPendingForKey(ctx, uploadType, key)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Size returns the number of queued uploads.
func (q *Queue) Size(ctx context.Context) (int, error) {
	return q.repo.Count(ctx, db.CollectionPendingUploads)
}

// Stats returns queue statistics.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	rows, err := q.repo.PendingUploadStats(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{ByType: make(map[models.UploadType]int, len(rows))}
	for _, row := range rows {
		stats.Total += row.Count
		stats.ByType[row.Type] = row.Count
		if row.MaxRetryCount > stats.MaxRetryCount {
			stats.MaxRetryCount = row.MaxRetryCount
		}
	}
	return stats, nil
}

// Clear removes every queued upload and returns how many were dropped.
// Dropped uploads are never delivered; their entities stay unsynced.
func (q *Queue) Clear(ctx context.Context) (int64, error) {
	n, err := q.repo.Truncate(ctx, db.CollectionPendingUploads)
	if err != nil {
		return 0, err
	}
	logging.Warn("pending upload queue cleared", map[string]interface{}{"dropped": n})
	return n, nil
}
