package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// ErrNotConfigured is returned when no Gemini API key is available. Callers
// surface this as a blocking configuration error rather than degrading
// silently.
var ErrNotConfigured = errors.New("vision: gemini api key not configured")

// explainFallback is shown when a dish explanation cannot be fetched. The
// lookup is non-critical, so failures collapse into this string instead of
// propagating.
const explainFallback = "暫時無法取得說明"

// GeminiClient calls the Gemini generateContent endpoint over plain HTTP.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func NewGeminiClient(apiKey, model string) *GeminiClient {
	if model == "" {
		model = "gemini-3-flash-preview"
	}
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Configured reports whether the client holds a usable credential.
func (g *GeminiClient) Configured() bool {
	return g != nil && g.apiKey != ""
}

// request/response shapes for the generateContent wire format.
type geminiRequest struct {
	Contents         []geminiContent   `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// generate posts a request and returns the first candidate's text.
func (g *GeminiClient) generate(ctx context.Context, reqBody geminiRequest) (string, error) {
	if !g.Configured() {
		return "", ErrNotConfigured
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("vision: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("vision: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision: call gemini: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("vision: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision: gemini api error (status %d): %s", resp.StatusCode, truncate(raw, 512))
	}

	var result geminiResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("vision: decode response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("vision: empty gemini response")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// ExplainDish fetches a short tourist-facing explanation of a dish. Never
// returns an error: the explanation is decoration, not data.
func (g *GeminiClient) ExplainDish(ctx context.Context, dishName string) string {
	if !g.Configured() {
		return explainFallback
	}
	prompt := fmt.Sprintf(
		`Explain the dish "%s" to a foreign tourist in Traditional Chinese (繁體中文). Focus on taste, texture, and key ingredients. Keep it under 50 words.`,
		dishName)

	text, err := g.generate(ctx, geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		logrus.WithError(err).WithField("dish", dishName).Warn("Dish explanation lookup failed, using fallback")
		return explainFallback
	}
	if text == "" {
		return explainFallback
	}
	return text
}

// ParseMenuImage sends one resized JPEG to Gemini and decodes the extracted
// dish list. The ids assigned by the model are discarded downstream; see
// decode.go.
func (g *GeminiClient) ParseMenuImage(ctx context.Context, jpeg []byte, country Country) ([]ExtractedItem, error) {
	text, err := g.generate(ctx, geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &inlineData{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(jpeg),
				}},
				{Text: menuPrompt(country)},
			},
		}},
		GenerationConfig: &generationConfig{
			Temperature:      0.2,
			MaxOutputTokens:  4096,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return nil, err
	}
	return DecodeItems([]byte(stripFences(text)))
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
