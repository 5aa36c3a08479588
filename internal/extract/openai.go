package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o"
)

// OpenAIExtractor calls an OpenAI-compatible chat completions endpoint.
type OpenAIExtractor struct {
	cfg        Config
	httpClient *http.Client
}

// NewOpenAIExtractor creates an OpenAIExtractor.
func NewOpenAIExtractor(cfg Config) *OpenAIExtractor {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &OpenAIExtractor{cfg: cfg, httpClient: client}
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string       `json:"role"`
	Content []openAIPart `json:"content"`
}

type openAIPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Extract implements Extractor.
func (e *OpenAIExtractor) Extract(ctx context.Context, img Image) (*Result, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	reqBody := openAIRequest{
		Model: e.cfg.Model,
		Messages: []openAIMessage{{
			Role: "user",
			Content: []openAIPart{
				{Type: "text", Text: Prompt},
				{Type: "image_url", ImageURL: &openAIImageURL{URL: img.dataURL()}},
			},
		}},
		MaxTokens: e.cfg.MaxTokens,
	}

	resp, err := e.doRequest(ctx, reqBody)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExtractionFailed, "failed to process menu image", err)
	}
	if resp.Error != nil {
		return nil, apperrors.Newf(apperrors.ErrExtractionFailed, "OpenAI API error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, apperrors.New(apperrors.ErrExtractionFailed, "no response from OpenAI")
	}

	return ParseResponse(resp.Choices[0].Message.Content)
}

func (e *OpenAIExtractor) doRequest(ctx context.Context, reqBody openAIRequest) (*openAIResponse, error) {
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := strings.TrimRight(e.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("OpenAI API returned %d: %s", resp.StatusCode, string(body))
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &out, nil
}
