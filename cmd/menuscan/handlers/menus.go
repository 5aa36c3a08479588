package handlers

import (
	"net/http"

	"github.com/kimhsiao/menuscan/backend/internal/services"
)

// MenuHandler handles menu and menu item operations.
type MenuHandler struct {
	menus *services.MenuService
}

// NewMenuHandler creates a new MenuHandler.
func NewMenuHandler(menus *services.MenuService) *MenuHandler {
	return &MenuHandler{menus: menus}
}

// ListMenus handles GET /api/menus
func (h *MenuHandler) ListMenus(w http.ResponseWriter, r *http.Request) {
	menus, err := h.menus.ListMenus(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"menus": menus,
		"total": len(menus),
	})
}

// CreateMenu handles POST /api/menus
func (h *MenuHandler) CreateMenu(w http.ResponseWriter, r *http.Request) {
	var in services.MenuInput
	if !decodeBody(w, r, &in) {
		return
	}
	menu, err := h.menus.CreateMenu(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, menu)
}

// GetMenu handles GET /api/menus/{menuId}
func (h *MenuHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	menu, err := h.menus.GetMenu(r.Context(), r.PathValue("menuId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, menu)
}

// UpdateMenu handles PUT /api/menus/{menuId}
func (h *MenuHandler) UpdateMenu(w http.ResponseWriter, r *http.Request) {
	var patch services.MenuPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	menu, err := h.menus.UpdateMenu(r.Context(), r.PathValue("menuId"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, menu)
}

// AddItem handles POST /api/menus/{menuId}/items
func (h *MenuHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var in services.ItemInput
	if !decodeBody(w, r, &in) {
		return
	}
	item, err := h.menus.AddItem(r.Context(), r.PathValue("menuId"), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// UpdateItem handles PUT /api/items/{itemId}
func (h *MenuHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var patch services.ItemPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	item, err := h.menus.UpdateItem(r.Context(), r.PathValue("itemId"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
