package extract

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
)

const defaultClaudeModel = "claude-sonnet-4-5"

// ClaudeExtractor calls the Anthropic Messages API.
type ClaudeExtractor struct {
	client anthropic.Client
	model  string
	tokens int64
}

// NewClaudeExtractor creates a ClaudeExtractor.
func NewClaudeExtractor(cfg Config) *ClaudeExtractor {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Client != nil {
		opts = append(opts, option.WithHTTPClient(cfg.Client))
	}
	model := cfg.Model
	if model == "" {
		model = defaultClaudeModel
	}
	return &ClaudeExtractor{
		client: anthropic.NewClient(opts...),
		model:  model,
		tokens: int64(cfg.MaxTokens),
	}
}

// Extract implements Extractor.
func (e *ClaudeExtractor) Extract(ctx context.Context, img Image) (*Result, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	var imageBlock anthropic.ContentBlockParamUnion
	if img.URL != "" {
		imageBlock = anthropic.NewImageBlock(anthropic.URLImageSourceParam{URL: img.URL})
	} else {
		imageBlock = anthropic.NewImageBlockBase64(img.mediaType(), base64.StdEncoding.EncodeToString(img.Data))
	}

	msg, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(e.model),
		MaxTokens: e.tokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(imageBlock, anthropic.NewTextBlock(Prompt)),
		},
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExtractionFailed, "failed to process menu image", err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return ParseResponse(text.String())
}
