package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
	"github.com/kimhsiao/menuscan/backend/internal/models"
)

// Collection names one of the record collections held by the store.
type Collection string

const (
	CollectionMenus          Collection = "menus"
	CollectionMenuItems      Collection = "menu_items"
	CollectionPendingUploads Collection = "pending_uploads"
)

// schema maps the public field names of a collection to its columns.
type schema struct {
	indexed   map[string]string // queryable fields
	patchable map[string]string // fields ModifyWhere may change
}

var schemas = map[Collection]schema{
	CollectionMenus: {
		indexed: map[string]string{
			"menuId":    "menu_id",
			"name":      "name",
			"createdAt": "created_at",
			"synced":    "synced",
		},
		patchable: map[string]string{
			"name":        "name",
			"imageUrl":    "image_url",
			"description": "description",
			"imageBlob":   "image_blob",
			"updatedAt":   "updated_at",
			"synced":      "synced",
		},
	},
	CollectionMenuItems: {
		indexed: map[string]string{
			"itemId":    "item_id",
			"menuId":    "menu_id",
			"name":      "name",
			"category":  "category",
			"createdAt": "created_at",
			"synced":    "synced",
		},
		patchable: map[string]string{
			"menuId":      "menu_id",
			"name":        "name",
			"description": "description",
			"price":       "price",
			"category":    "category",
			"imageUrl":    "image_url",
			"nutrition":   "nutrition",
			"aiEnriched":  "ai_enriched",
			"updatedAt":   "updated_at",
			"synced":      "synced",
		},
	},
	CollectionPendingUploads: {
		indexed: map[string]string{
			"type":       "type",
			"endpoint":   "endpoint",
			"createdAt":  "created_at",
			"retryCount": "retry_count",
		},
		patchable: map[string]string{
			"data":       "data",
			"endpoint":   "endpoint",
			"method":     "method",
			"retryCount": "retry_count",
		},
	},
}

// Patch is a partial update keyed by public field name.
type Patch map[string]interface{}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Repository is the durable store for menus, menu items and pending uploads.
// A Repository returned by InTx shares the statement cache but runs every
// call inside the enclosing transaction.
type Repository struct {
	db *sql.DB
	tx *sql.Tx

	// Prepared statements are cached per query string on the root connection.
	stmtCache *sync.Map // map[string]*sql.Stmt
}

// NewRepository creates a new Repository instance.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, stmtCache: &sync.Map{}}
}

// PrepareStmt gets or creates a prepared statement from cache.
// Inside a transaction a cached statement is rebound to the tx; an uncached
// one is prepared on the tx itself, since the pool has a single connection
// and the tx already holds it.
func (r *Repository) PrepareStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if r.tx != nil {
		if stmt, ok := r.stmtCache.Load(query); ok {
			return r.tx.StmtContext(ctx, stmt.(*sql.Stmt)), nil
		}
		stmt, err := r.tx.PrepareContext(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to prepare statement: %w", err)
		}
		return stmt, nil
	}
	return r.rootStmt(ctx, query)
}

func (r *Repository) rootStmt(ctx context.Context, query string) (*sql.Stmt, error) {
	if stmt, ok := r.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := r.db.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	// If another goroutine stored it first, close our duplicate.
	actual, loaded := r.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements.
// Should be called when the Repository is no longer needed.
func (r *Repository) Close() error {
	if r.tx != nil {
		return nil
	}
	var firstErr error
	r.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		r.stmtCache.Delete(key)
		return true
	})
	return firstErr
}

func (r *Repository) conn() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// InTx runs fn against a transactional view of the repository. The
// transaction commits when fn returns nil and rolls back otherwise.
// Nested calls reuse the enclosing transaction.
func (r *Repository) InTx(ctx context.Context, fn func(tx *Repository) error) error {
	if r.tx != nil {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	view := &Repository{db: r.db, tx: tx, stmtCache: r.stmtCache}
	if err := fn(view); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to commit transaction", err)
	}
	return nil
}

// =====================================================
// Generic collection operations
// =====================================================

func lookupSchema(coll Collection) (schema, error) {
	s, ok := schemas[coll]
	if !ok {
		return schema{}, apperrors.Newf(apperrors.ErrInvalid, "unknown collection %q", coll)
	}
	return s, nil
}

// indexColumn resolves an indexed field name to its column.
func indexColumn(coll Collection, field string) (string, error) {
	s, err := lookupSchema(coll)
	if err != nil {
		return "", err
	}
	col, ok := s.indexed[field]
	if !ok {
		return "", apperrors.Newf(apperrors.ErrInvalid, "field %q is not indexed on %s", field, coll)
	}
	return col, nil
}

// ModifyWhere applies patch to every record of coll whose field equals value.
// It returns the number of records changed.
func (r *Repository) ModifyWhere(ctx context.Context, coll Collection, field string, value interface{}, patch Patch) (int64, error) {
	s, err := lookupSchema(coll)
	if err != nil {
		return 0, err
	}
	whereCol, err := indexColumn(coll, field)
	if err != nil {
		return 0, err
	}
	if len(patch) == 0 {
		return 0, nil
	}

	// Sorted keys keep the generated SQL stable for the statement cache.
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys)+1)
	for _, k := range keys {
		col, ok := s.patchable[k]
		if !ok {
			return 0, apperrors.Newf(apperrors.ErrInvalid, "field %q cannot be modified on %s", k, coll)
		}
		sets = append(sets, col+" = ?")
		args = append(args, patch[k])
	}
	args = append(args, value)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?", coll, strings.Join(sets, ", "), whereCol)
	stmt, err := r.PrepareStmt(ctx, query)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "modify "+string(coll), err)
	}
	res, err := stmt.ExecContext(ctx, args...)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "modify "+string(coll), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "modify "+string(coll), err)
	}
	return n, nil
}

// Delete removes a record by its store-assigned id. Deleting a missing id is a no-op.
func (r *Repository) Delete(ctx context.Context, coll Collection, id int64) error {
	if _, err := lookupSchema(coll); err != nil {
		return err
	}
	stmt, err := r.PrepareStmt(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", coll))
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "delete from "+string(coll), err)
	}
	if _, err := stmt.ExecContext(ctx, id); err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "delete from "+string(coll), err)
	}
	return nil
}

// Count returns the number of records in coll.
func (r *Repository) Count(ctx context.Context, coll Collection) (int, error) {
	if _, err := lookupSchema(coll); err != nil {
		return 0, err
	}
	var n int
	err := r.conn().QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", coll)).Scan(&n)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "count "+string(coll), err)
	}
	return n, nil
}

// Truncate removes every record in coll.
func (r *Repository) Truncate(ctx context.Context, coll Collection) (int64, error) {
	if _, err := lookupSchema(coll); err != nil {
		return 0, err
	}
	res, err := r.conn().ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", coll))
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "truncate "+string(coll), err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// MaxCreatedAt returns the largest created_at in coll, or 0 when empty.
func (r *Repository) MaxCreatedAt(ctx context.Context, coll Collection) (int64, error) {
	if _, err := lookupSchema(coll); err != nil {
		return 0, err
	}
	var max int64
	err := r.conn().QueryRowContext(ctx, fmt.Sprintf("SELECT COALESCE(MAX(created_at), 0) FROM %s", coll)).Scan(&max)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "max created_at of "+string(coll), err)
	}
	return max, nil
}

// selectWhere builds "SELECT cols FROM coll [WHERE col = ?] ORDER BY created_at, id".
func selectWhere(coll Collection, columns, field string) (string, error) {
	base := fmt.Sprintf("SELECT %s FROM %s", columns, coll)
	if field == "" {
		return base + " ORDER BY created_at ASC, id ASC", nil
	}
	col, err := indexColumn(coll, field)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s WHERE %s = ? ORDER BY created_at ASC, id ASC", base, col), nil
}

func (r *Repository) queryRows(ctx context.Context, coll Collection, columns, field string, value interface{}) (*sql.Rows, error) {
	query, err := selectWhere(coll, columns, field)
	if err != nil {
		return nil, err
	}
	stmt, err := r.PrepareStmt(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "query "+string(coll), err)
	}
	var rows *sql.Rows
	if field == "" {
		rows, err = stmt.QueryContext(ctx)
	} else {
		rows, err = stmt.QueryContext(ctx, value)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "query "+string(coll), err)
	}
	return rows, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// =====================================================
// Menu Operations
// =====================================================

const menuColumns = "id, menu_id, name, image_url, description, image_blob, created_at, updated_at, synced"

// PutMenu inserts the menu when menu.ID is zero, allocating and returning a
// new id; otherwise it overwrites the record with that id.
func (r *Repository) PutMenu(ctx context.Context, menu *models.Menu) (int64, error) {
	now := models.NowMillis()
	if menu.CreatedAt == 0 {
		menu.CreatedAt = now
	}
	if menu.UpdatedAt == 0 {
		menu.UpdatedAt = menu.CreatedAt
	}

	args := []interface{}{
		menu.MenuID, menu.Name, nullString(menu.ImageURL), nullString(menu.Description),
		menu.ImageBlob, menu.CreatedAt, menu.UpdatedAt, menu.Synced,
	}

	if menu.ID == 0 {
		query := `
		INSERT INTO menus (menu_id, name, image_url, description, image_blob, created_at, updated_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		id, err := r.insert(ctx, query, args...)
		if err != nil {
			return 0, apperrors.Wrap(apperrors.ErrDatabase, "insert menu", err)
		}
		menu.ID = id
		return id, nil
	}

	query := `
	INSERT INTO menus (id, menu_id, name, image_url, description, image_blob, created_at, updated_at, synced)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		menu_id = excluded.menu_id, name = excluded.name, image_url = excluded.image_url,
		description = excluded.description, image_blob = excluded.image_blob,
		created_at = excluded.created_at, updated_at = excluded.updated_at, synced = excluded.synced`
	if _, err := r.exec(ctx, query, append([]interface{}{menu.ID}, args...)...); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "upsert menu", err)
	}
	return menu.ID, nil
}

// QueryMenus returns menus whose indexed field equals value, oldest first.
// An empty field returns every menu.
func (r *Repository) QueryMenus(ctx context.Context, field string, value interface{}) ([]*models.Menu, error) {
	rows, err := r.queryRows(ctx, CollectionMenus, menuColumns, field, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var menus []*models.Menu
	for rows.Next() {
		menu, err := scanMenu(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "scan menu", err)
		}
		menus = append(menus, menu)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "iterate menus", err)
	}
	return menus, nil
}

// GetMenuByMenuID returns the first menu with the given business key.
func (r *Repository) GetMenuByMenuID(ctx context.Context, menuID string) (*models.Menu, error) {
	menus, err := r.QueryMenus(ctx, "menuId", menuID)
	if err != nil {
		return nil, err
	}
	if len(menus) == 0 {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "menu %q not found", menuID)
	}
	return menus[0], nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMenu(row rowScanner) (*models.Menu, error) {
	var menu models.Menu
	var imageURL, description sql.NullString
	err := row.Scan(&menu.ID, &menu.MenuID, &menu.Name, &imageURL, &description,
		&menu.ImageBlob, &menu.CreatedAt, &menu.UpdatedAt, &menu.Synced)
	if err != nil {
		return nil, err
	}
	menu.ImageURL = imageURL.String
	menu.Description = description.String
	return &menu, nil
}

// =====================================================
// MenuItem Operations
// =====================================================

const menuItemColumns = "id, item_id, menu_id, name, description, price, category, image_url, nutrition, ai_enriched, created_at, updated_at, synced"

// PutMenuItem inserts or overwrites a menu item, following the PutMenu rules.
func (r *Repository) PutMenuItem(ctx context.Context, item *models.MenuItem) (int64, error) {
	now := models.NowMillis()
	if item.CreatedAt == 0 {
		item.CreatedAt = now
	}
	if item.UpdatedAt == 0 {
		item.UpdatedAt = item.CreatedAt
	}

	args := []interface{}{
		item.ItemID, item.MenuID, item.Name, nullString(item.Description), item.Price,
		nullString(item.Category), nullString(item.ImageURL), nullString(item.Nutrition),
		item.AIEnriched, item.CreatedAt, item.UpdatedAt, item.Synced,
	}

	if item.ID == 0 {
		query := `
		INSERT INTO menu_items (item_id, menu_id, name, description, price, category, image_url,
			nutrition, ai_enriched, created_at, updated_at, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		id, err := r.insert(ctx, query, args...)
		if err != nil {
			return 0, apperrors.Wrap(apperrors.ErrDatabase, "insert menu item", err)
		}
		item.ID = id
		return id, nil
	}

	query := `
	INSERT INTO menu_items (id, item_id, menu_id, name, description, price, category, image_url,
		nutrition, ai_enriched, created_at, updated_at, synced)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		item_id = excluded.item_id, menu_id = excluded.menu_id, name = excluded.name,
		description = excluded.description, price = excluded.price, category = excluded.category,
		image_url = excluded.image_url, nutrition = excluded.nutrition,
		ai_enriched = excluded.ai_enriched, created_at = excluded.created_at,
		updated_at = excluded.updated_at, synced = excluded.synced`
	if _, err := r.exec(ctx, query, append([]interface{}{item.ID}, args...)...); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "upsert menu item", err)
	}
	return item.ID, nil
}

// QueryMenuItems returns menu items whose indexed field equals value, oldest first.
func (r *Repository) QueryMenuItems(ctx context.Context, field string, value interface{}) ([]*models.MenuItem, error) {
	rows, err := r.queryRows(ctx, CollectionMenuItems, menuItemColumns, field, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*models.MenuItem
	for rows.Next() {
		item, err := scanMenuItem(rows)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "scan menu item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "iterate menu items", err)
	}
	return items, nil
}

// GetMenuItemByItemID returns the first item with the given business key.
func (r *Repository) GetMenuItemByItemID(ctx context.Context, itemID string) (*models.MenuItem, error) {
	items, err := r.QueryMenuItems(ctx, "itemId", itemID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "menu item %q not found", itemID)
	}
	return items[0], nil
}

// ListMenuItems returns the items of one menu in creation order.
func (r *Repository) ListMenuItems(ctx context.Context, menuID string) ([]*models.MenuItem, error) {
	return r.QueryMenuItems(ctx, "menuId", menuID)
}

func scanMenuItem(row rowScanner) (*models.MenuItem, error) {
	var item models.MenuItem
	var description, category, imageURL, nutrition sql.NullString
	var price sql.NullFloat64
	err := row.Scan(&item.ID, &item.ItemID, &item.MenuID, &item.Name, &description, &price,
		&category, &imageURL, &nutrition, &item.AIEnriched, &item.CreatedAt, &item.UpdatedAt,
		&item.Synced)
	if err != nil {
		return nil, err
	}
	item.Description = description.String
	item.Category = category.String
	item.ImageURL = imageURL.String
	item.Nutrition = nutrition.String
	if price.Valid {
		p := price.Float64
		item.Price = &p
	}
	return &item, nil
}

// =====================================================
// PendingUpload Operations
// =====================================================

const pendingUploadColumns = "id, type, data, endpoint, method, created_at, retry_count"

// PutPendingUpload inserts or overwrites a pending upload, following the PutMenu rules.
func (r *Repository) PutPendingUpload(ctx context.Context, upload *models.PendingUpload) (int64, error) {
	if upload.CreatedAt == 0 {
		upload.CreatedAt = models.NowMillis()
	}
	data := string(upload.Data)
	if data == "" {
		data = "{}"
	}

	args := []interface{}{string(upload.Type), data, upload.Endpoint, upload.Method, upload.CreatedAt, upload.RetryCount}

	if upload.ID == 0 {
		query := `
		INSERT INTO pending_uploads (type, data, endpoint, method, created_at, retry_count)
		VALUES (?, ?, ?, ?, ?, ?)`
		id, err := r.insert(ctx, query, args...)
		if err != nil {
			return 0, apperrors.Wrap(apperrors.ErrDatabase, "insert pending upload", err)
		}
		upload.ID = id
		return id, nil
	}

	query := `
	INSERT INTO pending_uploads (id, type, data, endpoint, method, created_at, retry_count)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		type = excluded.type, data = excluded.data, endpoint = excluded.endpoint,
		method = excluded.method, created_at = excluded.created_at, retry_count = excluded.retry_count`
	if _, err := r.exec(ctx, query, append([]interface{}{upload.ID}, args...)...); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "upsert pending upload", err)
	}
	return upload.ID, nil
}

// QueryPendingUploads returns pending uploads whose indexed field equals
// value in ascending created_at order. An empty field returns the whole queue.
func (r *Repository) QueryPendingUploads(ctx context.Context, field string, value interface{}) ([]*models.PendingUpload, error) {
	rows, err := r.queryRows(ctx, CollectionPendingUploads, pendingUploadColumns, field, value)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uploads := []*models.PendingUpload{}
	for rows.Next() {
		var upload models.PendingUpload
		var uploadType, data string
		if err := rows.Scan(&upload.ID, &uploadType, &data, &upload.Endpoint, &upload.Method,
			&upload.CreatedAt, &upload.RetryCount); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "scan pending upload", err)
		}
		upload.Type = models.UploadType(uploadType)
		upload.Data = []byte(data)
		uploads = append(uploads, &upload)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "iterate pending uploads", err)
	}
	return uploads, nil
}

// IncrementRetryCount adds one to retry_count of the given upload. It reports
// whether a row was updated.
func (r *Repository) IncrementRetryCount(ctx context.Context, id int64) (bool, error) {
	res, err := r.exec(ctx, "UPDATE pending_uploads SET retry_count = retry_count + 1 WHERE id = ?", id)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrDatabase, "increment retry count", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrDatabase, "increment retry count", err)
	}
	return n > 0, nil
}

// CountPendingForKey counts queued uploads of the given type whose data.id
// equals key.
func (r *Repository) CountPendingForKey(ctx context.Context, uploadType models.UploadType, key string) (int, error) {
	stmt, err := r.PrepareStmt(ctx,
		`SELECT COUNT(*) FROM pending_uploads
		WHERE type = ? AND CASE WHEN json_valid(data) THEN json_extract(data, '$.id') END = ?`)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "count pending uploads", err)
	}
	var n int
	if err := stmt.QueryRowContext(ctx, string(uploadType), key).Scan(&n); err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "count pending uploads", err)
	}
	return n, nil
}

// PendingTypeStats summarizes the queue for one upload type.
type PendingTypeStats struct {
	Type          models.UploadType
	Count         int
	MaxRetryCount int
}

// PendingUploadStats groups the queue by upload type.
func (r *Repository) PendingUploadStats(ctx context.Context) ([]PendingTypeStats, error) {
	rows, err := r.conn().QueryContext(ctx,
		"SELECT type, COUNT(*), COALESCE(MAX(retry_count), 0) FROM pending_uploads GROUP BY type ORDER BY type")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "pending upload stats", err)
	}
	defer rows.Close()

	var stats []PendingTypeStats
	for rows.Next() {
		var s PendingTypeStats
		var uploadType string
		if err := rows.Scan(&uploadType, &s.Count, &s.MaxRetryCount); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "scan pending upload stats", err)
		}
		s.Type = models.UploadType(uploadType)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "iterate pending upload stats", err)
	}
	return stats, nil
}

// =====================================================
// Helpers
// =====================================================

func (r *Repository) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	stmt, err := r.PrepareStmt(ctx, query)
	if err != nil {
		return nil, err
	}
	return stmt.ExecContext(ctx, args...)
}

func (r *Repository) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := r.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// IsNotFound reports whether err means the requested record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || apperrors.Is(err, apperrors.ErrNotFound)
}
