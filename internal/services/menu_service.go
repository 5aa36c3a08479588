// Package services provides the menu write path. Every local write is
// committed together with the pending upload that replays it to the server.
package services

import (
	"context"
	"net/url"
	"strings"

	"github.com/kimhsiao/menuscan/backend/internal/db"
	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
	"github.com/kimhsiao/menuscan/backend/internal/extract"
	"github.com/kimhsiao/menuscan/backend/internal/logging"
	"github.com/kimhsiao/menuscan/backend/internal/models"
	"github.com/kimhsiao/menuscan/backend/internal/sync/queue"
	"github.com/kimhsiao/menuscan/backend/internal/uuid"
)

// Endpoints are the server collection paths uploads are sent to.
type Endpoints struct {
	Menus string
	Items string
}

// DefaultEndpoints returns the server's standard collection paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{Menus: "/api/menus", Items: "/api/menu-items"}
}

// MenuInput describes a new menu. An empty MenuID is minted.
type MenuInput struct {
	MenuID      string `json:"menuId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	ImageBlob   []byte `json:"-"`
}

// MenuPatch changes the non-nil fields of a menu.
type MenuPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	ImageURL    *string `json:"imageUrl"`
}

// ItemInput describes a new menu item. An empty ItemID is minted.
type ItemInput struct {
	ItemID      string   `json:"itemId"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Category    string   `json:"category"`
	ImageURL    string   `json:"imageUrl"`
	Nutrition   string   `json:"nutrition"`
	AIEnriched  bool     `json:"aiEnriched"`
}

// ItemPatch changes the non-nil fields of an item.
type ItemPatch struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Category    *string  `json:"category"`
	ImageURL    *string  `json:"imageUrl"`
	Nutrition   *string  `json:"nutrition"`
}

// MenuWithItems is a menu together with its items in creation order.
type MenuWithItems struct {
	*models.Menu
	Items []*models.MenuItem `json:"items"`
}

// ImportRequest creates a menu from an extraction result.
type ImportRequest struct {
	MenuName  string
	ImageURL  string
	ImageBlob []byte
	Items     []extract.Item
}

// MenuService creates and edits menus and queues their server writes.
type MenuService struct {
	repo      *db.Repository
	queue     *queue.Queue
	endpoints Endpoints
}

// NewMenuService creates a MenuService.
func NewMenuService(repo *db.Repository, q *queue.Queue, endpoints Endpoints) *MenuService {
	return &MenuService{repo: repo, queue: q, endpoints: endpoints}
}

// CreateMenu stores a new menu and enqueues its POST.
func (s *MenuService) CreateMenu(ctx context.Context, in MenuInput) (*models.Menu, error) {
	var menu *models.Menu
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		var err error
		menu, err = s.createMenu(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	logging.Info("menu created", map[string]interface{}{"menu_id": menu.MenuID})
	return menu, nil
}

func (s *MenuService) createMenu(ctx context.Context, tx *db.Repository, in MenuInput) (*models.Menu, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "menu name is required")
	}
	menuID := in.MenuID
	if menuID == "" {
		menuID = uuid.NewKey(uuid.PrefixMenu)
	} else if err := uuid.ValidateKey(menuID); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "invalid menu id", err)
	}
	if _, err := tx.GetMenuByMenuID(ctx, menuID); err == nil {
		return nil, apperrors.Newf(apperrors.ErrValidation, "menu %q already exists", menuID)
	} else if !db.IsNotFound(err) {
		return nil, err
	}

	menu := &models.Menu{
		MenuID:      menuID,
		Name:        name,
		Description: in.Description,
		ImageURL:    in.ImageURL,
		ImageBlob:   in.ImageBlob,
		Synced:      false,
	}
	if _, err := tx.PutMenu(ctx, menu); err != nil {
		return nil, err
	}
	if _, err := s.queue.EnqueueTx(ctx, tx, s.menuUpload(menu, models.MethodPost)); err != nil {
		return nil, err
	}
	return menu, nil
}

// UpdateMenu applies patch to the menu, marks it unsynced and enqueues a PUT.
func (s *MenuService) UpdateMenu(ctx context.Context, menuID string, patch MenuPatch) (*models.Menu, error) {
	var menu *models.Menu
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		var err error
		menu, err = tx.GetMenuByMenuID(ctx, menuID)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return apperrors.New(apperrors.ErrValidation, "menu name is required")
			}
			menu.Name = name
		}
		if patch.Description != nil {
			menu.Description = *patch.Description
		}
		if patch.ImageURL != nil {
			menu.ImageURL = *patch.ImageURL
		}
		menu.Touch()
		if _, err := tx.PutMenu(ctx, menu); err != nil {
			return err
		}
		_, err = s.queue.EnqueueTx(ctx, tx, s.menuUpload(menu, models.MethodPut))
		return err
	})
	if err != nil {
		return nil, err
	}
	return menu, nil
}

// AddItem stores a new item under menuID and enqueues its POST.
func (s *MenuService) AddItem(ctx context.Context, menuID string, in ItemInput) (*models.MenuItem, error) {
	var item *models.MenuItem
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		if _, err := tx.GetMenuByMenuID(ctx, menuID); err != nil {
			return err
		}
		var err error
		item, err = s.addItem(ctx, tx, menuID, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *MenuService) addItem(ctx context.Context, tx *db.Repository, menuID string, in ItemInput) (*models.MenuItem, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "item name is required")
	}
	itemID := in.ItemID
	if itemID == "" {
		itemID = uuid.NewKey(uuid.PrefixItem)
	} else if err := uuid.ValidateKey(itemID); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrValidation, "invalid item id", err)
	}

	item := &models.MenuItem{
		ItemID:      itemID,
		MenuID:      menuID,
		Name:        name,
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		ImageURL:    in.ImageURL,
		Nutrition:   in.Nutrition,
		AIEnriched:  in.AIEnriched,
	}
	if _, err := tx.PutMenuItem(ctx, item); err != nil {
		return nil, err
	}
	if _, err := s.queue.EnqueueTx(ctx, tx, s.itemUpload(item, models.MethodPost)); err != nil {
		return nil, err
	}
	return item, nil
}

// UpdateItem applies patch to the item, marks it unsynced and enqueues a PUT.
func (s *MenuService) UpdateItem(ctx context.Context, itemID string, patch ItemPatch) (*models.MenuItem, error) {
	var item *models.MenuItem
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		var err error
		item, err = tx.GetMenuItemByItemID(ctx, itemID)
		if err != nil {
			return err
		}
		if patch.Name != nil {
			name := strings.TrimSpace(*patch.Name)
			if name == "" {
				return apperrors.New(apperrors.ErrValidation, "item name is required")
			}
			item.Name = name
		}
		if patch.Description != nil {
			item.Description = *patch.Description
		}
		if patch.Price != nil {
			price := *patch.Price
			item.Price = &price
		}
		if patch.Category != nil {
			item.Category = *patch.Category
		}
		if patch.ImageURL != nil {
			item.ImageURL = *patch.ImageURL
		}
		if patch.Nutrition != nil {
			item.Nutrition = *patch.Nutrition
		}
		item.Touch()
		if _, err := tx.PutMenuItem(ctx, item); err != nil {
			return err
		}
		_, err = s.queue.EnqueueTx(ctx, tx, s.itemUpload(item, models.MethodPut))
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ImportExtraction creates a menu and every extracted item in one transaction.
// Temporary extraction ids are replaced by minted item keys.
func (s *MenuService) ImportExtraction(ctx context.Context, req ImportRequest) (*MenuWithItems, error) {
	out := &MenuWithItems{}
	err := s.repo.InTx(ctx, func(tx *db.Repository) error {
		menu, err := s.createMenu(ctx, tx, MenuInput{
			Name:      req.MenuName,
			ImageURL:  req.ImageURL,
			ImageBlob: req.ImageBlob,
		})
		if err != nil {
			return err
		}
		out.Menu = menu
		out.Items = make([]*models.MenuItem, 0, len(req.Items))

		for _, extracted := range req.Items {
			in := ItemInput{
				Name:       extracted.Name,
				Price:      extracted.Price,
				Category:   extracted.Category,
				AIEnriched: extracted.AIEnriched,
			}
			if extracted.Description != nil {
				in.Description = *extracted.Description
			}
			if extracted.ImageURL != nil {
				in.ImageURL = *extracted.ImageURL
			}
			if extracted.Nutrition != nil {
				in.Nutrition = *extracted.Nutrition
			}
			if strings.TrimSpace(in.Name) == "" {
				in.Name = extract.DefaultItemName
			}
			item, err := s.addItem(ctx, tx, menu.MenuID, in)
			if err != nil {
				return err
			}
			out.Items = append(out.Items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info("extraction imported", map[string]interface{}{
		"menu_id": out.MenuID,
		"items":   len(out.Items),
	})
	return out, nil
}

// ScanMenu extracts items from img and imports them as a new menu named name.
func (s *MenuService) ScanMenu(ctx context.Context, ex extract.Extractor, name string, img extract.Image) (*MenuWithItems, error) {
	res, err := ex.Extract(ctx, img)
	if err != nil {
		return nil, err
	}
	return s.ImportExtraction(ctx, ImportRequest{
		MenuName:  name,
		ImageURL:  img.URL,
		ImageBlob: img.Data,
		Items:     res.Items,
	})
}

// GetMenu returns one menu with its items.
func (s *MenuService) GetMenu(ctx context.Context, menuID string) (*MenuWithItems, error) {
	menu, err := s.repo.GetMenuByMenuID(ctx, menuID)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListMenuItems(ctx, menuID)
	if err != nil {
		return nil, err
	}
	return &MenuWithItems{Menu: menu, Items: items}, nil
}

// ListMenus returns every menu, oldest first, with its items.
func (s *MenuService) ListMenus(ctx context.Context) ([]*MenuWithItems, error) {
	menus, err := s.repo.QueryMenus(ctx, "", nil)
	if err != nil {
		return nil, err
	}
	out := make([]*MenuWithItems, 0, len(menus))
	for _, menu := range menus {
		items, err := s.repo.ListMenuItems(ctx, menu.MenuID)
		if err != nil {
			return nil, err
		}
		out = append(out, &MenuWithItems{Menu: menu, Items: items})
	}
	return out, nil
}

func (s *MenuService) menuUpload(menu *models.Menu, method string) queue.Upload {
	return queue.Upload{
		Type: models.UploadTypeMenu,
		Data: map[string]interface{}{
			"id":          menu.MenuID,
			"name":        menu.Name,
			"description": menu.Description,
			"imageUrl":    menu.ImageURL,
		},
		Endpoint: endpointFor(s.endpoints.Menus, menu.MenuID, method),
		Method:   method,
	}
}

func (s *MenuService) itemUpload(item *models.MenuItem, method string) queue.Upload {
	data := map[string]interface{}{
		"id":          item.ItemID,
		"menuId":      item.MenuID,
		"name":        item.Name,
		"description": item.Description,
		"category":    item.Category,
		"imageUrl":    item.ImageURL,
		"nutrition":   item.Nutrition,
		"aiEnriched":  item.AIEnriched,
	}
	if item.Price != nil {
		data["price"] = *item.Price
	}
	return queue.Upload{
		Type:     models.UploadTypeMenuItem,
		Data:     data,
		Endpoint: endpointFor(s.endpoints.Items, item.ItemID, method),
		Method:   method,
	}
}

// endpointFor returns the collection path for POST and <collection>/<key> otherwise.
func endpointFor(collection, key, method string) string {
	if method == models.MethodPost {
		return collection
	}
	return strings.TrimRight(collection, "/") + "/" + url.PathEscape(key)
}
