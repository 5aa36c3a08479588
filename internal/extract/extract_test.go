package extract

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kimhsiao/menuscan/backend/internal/errors"
	"github.com/kimhsiao/menuscan/backend/internal/uuid"
)

const sampleContent = "```json\n" + `{"items":[
  {"name":"Pad Thai","description":"Rice noodles","price":12.5,"category":"Mains"},
  {"name":"","description":"","price":"$4","category":""},
  {"name":"Tea","price":null,"category":"Drinks"}
]}` + "\n```"

func TestParseResponse(t *testing.T) {
	res, err := ParseResponse(sampleContent)
	require.NoError(t, err)

	assert.True(t, res.Success)
	require.Len(t, res.Items, 3)
	assert.Equal(t, 3, res.TotalItems)

	first := res.Items[0]
	assert.Equal(t, "Pad Thai", first.Name)
	require.NotNil(t, first.Description)
	assert.Equal(t, "Rice noodles", *first.Description)
	require.NotNil(t, first.Price)
	assert.Equal(t, 12.5, *first.Price)
	assert.Equal(t, "Mains", first.Category)
	assert.False(t, first.AIEnriched)
	assert.Nil(t, first.ImageURL)
	assert.Nil(t, first.Nutrition)
	assert.True(t, uuid.HasPrefix(first.ID, uuid.PrefixTemp))

	second := res.Items[1]
	assert.Equal(t, DefaultItemName, second.Name)
	assert.Equal(t, DefaultCategory, second.Category)
	assert.Nil(t, second.Description)
	assert.Nil(t, second.Price, "string prices are dropped")

	assert.Nil(t, res.Items[2].Price)
	assert.NotEqual(t, res.Items[0].ID, res.Items[1].ID)
}

func TestParseResponse_wrongFieldTypes(t *testing.T) {
	res, err := ParseResponse(`{"items":[{"name":42,"price":9,"category":"Sides"}]}`)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, DefaultItemName, res.Items[0].Name)
	require.NotNil(t, res.Items[0].Price)
	assert.Equal(t, 9.0, *res.Items[0].Price)
	assert.Equal(t, "Sides", res.Items[0].Category)
}

func TestParseResponse_failures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", "   "},
		{"not json", "Sorry, I cannot read this menu."},
		{"missing items", `{"menu":[]}`},
		{"items not array", `{"items":"none"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseResponse(tt.content)
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrExtractionFailed))
		})
	}
}

func TestParseResponse_emptyItems(t *testing.T) {
	res, err := ParseResponse(`{"items":[]}`)
	require.NoError(t, err)
	assert.NotNil(t, res.Items)
	assert.Equal(t, 0, res.TotalItems)
}

func TestNew(t *testing.T) {
	_, err := New(Config{Provider: ProviderClaude})
	assert.True(t, apperrors.Is(err, apperrors.ErrAINotConfigured))

	_, err = New(Config{Provider: "gemini", APIKey: "k"})
	assert.True(t, apperrors.Is(err, apperrors.ErrConfig))

	ex, err := New(Config{Provider: ProviderClaude, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &ClaudeExtractor{}, ex)

	ex, err = New(Config{Provider: ProviderOpenAI, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIExtractor{}, ex)
}

func TestImage_Validate(t *testing.T) {
	assert.True(t, apperrors.Is(Image{}.Validate(), apperrors.ErrInvalid))
	assert.NoError(t, Image{URL: "https://example.com/menu.jpg"}.Validate())
	assert.NoError(t, Image{Data: []byte{0xff, 0xd8}}.Validate())
}

func TestImage_dataURL(t *testing.T) {
	img := Image{Data: []byte("abc"), MediaType: "image/png"}
	assert.Equal(t, "data:image/png;base64,YWJj", img.dataURL())

	img = Image{URL: "https://example.com/m.jpg", Data: []byte("abc")}
	assert.Equal(t, "https://example.com/m.jpg", img.dataURL())
}

func TestOpenAIExtractor_Extract(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		resp := map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"content": sampleContent}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	ex := NewOpenAIExtractor(Config{APIKey: "test-key", BaseURL: srv.URL, MaxTokens: 1000})
	res, err := ex.Extract(context.Background(), Image{Data: []byte("jpegbytes"), MediaType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalItems)

	assert.Equal(t, defaultOpenAIModel, got.Model)
	assert.Equal(t, 1000, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	require.Len(t, got.Messages[0].Content, 2)
	assert.Equal(t, Prompt, got.Messages[0].Content[0].Text)
	assert.True(t, strings.HasPrefix(got.Messages[0].Content[1].ImageURL.URL, "data:image/jpeg;base64,"))
}

func TestOpenAIExtractor_errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusUnauthorized, `{"error":{"message":"bad key"}}`},
		{"api error", http.StatusOK, `{"error":{"message":"quota","type":"insufficient_quota"}}`},
		{"no choices", http.StatusOK, `{"choices":[]}`},
		{"unparsable content", http.StatusOK, `{"choices":[{"message":{"content":"no menu here"}}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			ex := NewOpenAIExtractor(Config{APIKey: "k", BaseURL: srv.URL})
			_, err := ex.Extract(context.Background(), Image{URL: "https://example.com/menu.jpg"})
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.ErrExtractionFailed))
		})
	}
}

func TestOpenAIExtractor_invalidImage(t *testing.T) {
	ex := NewOpenAIExtractor(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	_, err := ex.Extract(context.Background(), Image{})
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalid))
}

func TestClaudeExtractor_Extract(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		resp := map[string]interface{}{
			"id":    "msg_01",
			"type":  "message",
			"role":  "assistant",
			"model": "claude-test",
			"content": []map[string]interface{}{
				{"type": "text", "text": sampleContent},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]interface{}{"input_tokens": 10, "output_tokens": 20},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	ex := NewClaudeExtractor(Config{APIKey: "test-key", BaseURL: srv.URL, Model: "claude-test", MaxTokens: 1000})
	res, err := ex.Extract(context.Background(), Image{Data: []byte("jpegbytes"), MediaType: "image/jpeg"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.TotalItems)
	assert.Equal(t, "Pad Thai", res.Items[0].Name)

	assert.Equal(t, "claude-test", got["model"])
	assert.Equal(t, float64(1000), got["max_tokens"])
	messages := got["messages"].([]interface{})
	require.Len(t, messages, 1)
	content := messages[0].(map[string]interface{})["content"].([]interface{})
	require.Len(t, content, 2)
	assert.Equal(t, "image", content[0].(map[string]interface{})["type"])
	assert.Equal(t, "text", content[1].(map[string]interface{})["type"])
}

func TestClaudeExtractor_apiError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"type":"error","error":{"type":"invalid_request_error","message":"bad image"}}`)
	}))
	defer srv.Close()

	ex := NewClaudeExtractor(Config{APIKey: "k", BaseURL: srv.URL, MaxTokens: 100})
	_, err := ex.Extract(context.Background(), Image{Data: []byte("x")})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrExtractionFailed))
}
