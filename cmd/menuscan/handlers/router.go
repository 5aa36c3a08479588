package handlers

import (
	"net/http"

	"github.com/kimhsiao/menuscan/backend/internal/services"
)

// Deps are the components the API serves. Nil Metrics or WebSocket handlers
// leave those routes unregistered.
type Deps struct {
	Menus     *services.MenuService
	Sync      SyncController
	Extractor ExtractorFactory
	Metrics   http.Handler
	WebSocket http.Handler
}

// NewRouter registers every API route.
func NewRouter(d Deps) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "menuscan"})
	})

	menus := NewMenuHandler(d.Menus)
	mux.HandleFunc("GET /api/menus", menus.ListMenus)
	mux.HandleFunc("POST /api/menus", menus.CreateMenu)
	mux.HandleFunc("GET /api/menus/{menuId}", menus.GetMenu)
	mux.HandleFunc("PUT /api/menus/{menuId}", menus.UpdateMenu)
	mux.HandleFunc("POST /api/menus/{menuId}/items", menus.AddItem)
	mux.HandleFunc("PUT /api/items/{itemId}", menus.UpdateItem)

	parse := NewParseHandler(d.Extractor)
	mux.HandleFunc("POST /api/parse-menu", parse.ParseMenu)

	sync := NewSyncHandler(d.Sync)
	mux.HandleFunc("GET /api/sync/status", sync.GetStatus)
	mux.HandleFunc("POST /api/sync/now", sync.SyncNow)
	mux.HandleFunc("POST /api/sync/online", sync.SetOnline)

	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}
	if d.WebSocket != nil {
		mux.Handle("GET /ws", d.WebSocket)
	}
	return mux
}
