package handlers

import (
	"encoding/base64"
	"net/http"
	"strings"

	"github.com/kimhsiao/menuscan/backend/internal/extract"
)

// ExtractorFactory returns the configured extractor. It is called per request
// so a missing API key is reported as AI_NOT_CONFIGURED rather than at startup.
type ExtractorFactory func() (extract.Extractor, error)

// ParseHandler extracts menu items from a photo.
type ParseHandler struct {
	extractor ExtractorFactory
}

// NewParseHandler creates a new ParseHandler.
func NewParseHandler(extractor ExtractorFactory) *ParseHandler {
	return &ParseHandler{extractor: extractor}
}

// ParseMenu handles POST /api/parse-menu
// The body carries a base64 image (optionally a data: URL) or an imageUrl.
func (h *ParseHandler) ParseMenu(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Image     string `json:"image"`
		ImageURL  string `json:"imageUrl"`
		MediaType string `json:"mediaType"`
	}
	if !decodeBody(w, r, &request) {
		return
	}
	if request.Image == "" && request.ImageURL == "" {
		badRequest(w, "No image provided")
		return
	}

	img := extract.Image{URL: request.ImageURL, MediaType: request.MediaType}
	if request.Image != "" {
		mediaType, data, err := decodeImage(request.Image)
		if err != nil {
			badRequest(w, "image must be base64 encoded")
			return
		}
		img.Data = data
		if img.MediaType == "" {
			img.MediaType = mediaType
		}
	}

	ex, err := h.extractor()
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := ex.Extract(r.Context(), img)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// decodeImage accepts raw base64 or a data:<type>;base64,<data> URL.
func decodeImage(s string) (string, []byte, error) {
	var mediaType string
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if found {
			mediaType = strings.TrimSuffix(meta, ";base64")
			s = payload
		}
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", nil, err
	}
	return mediaType, data, nil
}
