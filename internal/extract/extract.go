// Package extract turns a photo of a restaurant menu into structured menu items
// using a vision-capable language model.
package extract

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
	"github.com/kimhsiao/menuscan/backend/internal/uuid"
)

// Provider names.
const (
	ProviderClaude = "claude"
	ProviderOpenAI = "openai"
)

// Defaults applied when the item has no value.
const (
	DefaultItemName = "Unknown Item"
	DefaultCategory = "Other"
)

// Prompt is sent with every image.
const Prompt = `Analyze this restaurant menu image and extract all menu items. Return a JSON object with the following structure:
{
  "items": [
    {
      "name": "item name",
      "description": "item description if available",
      "price": "price as number or null",
      "category": "category/section name"
    }
  ]
}

If you can't clearly read an item, skip it. Focus on accuracy over completeness.`

// Image is the input to an extraction. Either Data or URL must be set.
type Image struct {
	Data      []byte
	MediaType string
	URL       string
}

// Validate checks that the image carries content.
func (img Image) Validate() error {
	if len(img.Data) == 0 && img.URL == "" {
		return apperrors.New(apperrors.ErrInvalid, "image data or URL is required")
	}
	return nil
}

// mediaType returns the declared type, sniffing the data when none was given.
func (img Image) mediaType() string {
	if img.MediaType != "" {
		return img.MediaType
	}
	if len(img.Data) > 0 {
		if ct := http.DetectContentType(img.Data); strings.HasPrefix(ct, "image/") {
			return ct
		}
	}
	return "image/jpeg"
}

// dataURL encodes the image as a data: URL, or returns URL when set.
func (img Image) dataURL() string {
	if img.URL != "" {
		return img.URL
	}
	return "data:" + img.mediaType() + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Item is one extracted menu item. IDs are temporary until the item is saved.
type Item struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price"`
	Category    string   `json:"category"`
	ImageURL    *string  `json:"imageUrl"`
	Nutrition   *string  `json:"nutrition"`
	AIEnriched  bool     `json:"aiEnriched"`
}

// Result is the normalized extraction output.
type Result struct {
	Success    bool   `json:"success"`
	Items      []Item `json:"items"`
	TotalItems int    `json:"totalItems"`
}

// Extractor extracts menu items from an image.
type Extractor interface {
	Extract(ctx context.Context, img Image) (*Result, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider  string
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Client    *http.Client
}

// New returns the extractor for cfg.Provider. A missing API key yields AI_NOT_CONFIGURED.
func New(cfg Config) (Extractor, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperrors.Newf(apperrors.ErrAINotConfigured, "%s API key not configured", cfg.Provider)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	switch cfg.Provider {
	case ProviderClaude, "":
		return NewClaudeExtractor(cfg), nil
	case ProviderOpenAI:
		return NewOpenAIExtractor(cfg), nil
	}
	return nil, apperrors.Newf(apperrors.ErrConfig, "unknown extraction provider %q", cfg.Provider)
}

// rawItem accepts whatever the model produced for one item.
type rawItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       json.RawMessage `json:"price"`
	Category    string          `json:"category"`
}

// ParseResponse parses model output into a Result. Markdown code fences are
// ignored. The payload must be an object with an "items" array.
func ParseResponse(content string) (*Result, error) {
	clean := strings.ReplaceAll(content, "```json", "")
	clean = strings.TrimSpace(strings.ReplaceAll(clean, "```", ""))
	if clean == "" {
		return nil, apperrors.New(apperrors.ErrExtractionFailed, "no content returned from model")
	}

	var parsed struct {
		Items *[]json.RawMessage `json:"items"`
	}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExtractionFailed, "failed to parse menu data from image", err)
	}
	if parsed.Items == nil {
		return nil, apperrors.New(apperrors.ErrExtractionFailed, "invalid menu data structure")
	}

	items := make([]Item, 0, len(*parsed.Items))
	for _, raw := range *parsed.Items {
		var in rawItem
		// Fields of the wrong type are treated as absent.
		if err := json.Unmarshal(raw, &in); err != nil {
			in = decodeLoose(raw)
		}
		items = append(items, normalize(in))
	}

	return &Result{Success: true, Items: items, TotalItems: len(items)}, nil
}

func decodeLoose(raw json.RawMessage) rawItem {
	var fields map[string]json.RawMessage
	var in rawItem
	if json.Unmarshal(raw, &fields) != nil {
		return in
	}
	json.Unmarshal(fields["name"], &in.Name)
	json.Unmarshal(fields["description"], &in.Description)
	json.Unmarshal(fields["category"], &in.Category)
	in.Price = fields["price"]
	return in
}

func normalize(in rawItem) Item {
	item := Item{
		ID:       uuid.NewKey(uuid.PrefixTemp),
		Name:     in.Name,
		Category: in.Category,
	}
	if item.Name == "" {
		item.Name = DefaultItemName
	}
	if item.Category == "" {
		item.Category = DefaultCategory
	}
	if in.Description != "" {
		d := in.Description
		item.Description = &d
	}

	// Only JSON numbers count as prices; "$12" or "12.50" strings are dropped.
	var price float64
	if len(in.Price) > 0 && in.Price[0] != '"' && json.Unmarshal(in.Price, &price) == nil {
		if string(in.Price) != "null" {
			item.Price = &price
		}
	}
	return item
}
