package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// unreadablePageSentinel is returned verbatim by the vision model for pages
// it cannot transcribe, per spec §4.2.
const unreadablePageSentinel = "[PAGINA_ILEGIVEL]"

const visionPrompt = "Transcribe this page image verbatim as Markdown. " +
	"Preserve tables, numbered lists, and technical codes exactly as shown. " +
	"Do not summarize or translate. If the page is unreadable, respond with exactly: " +
	unreadablePageSentinel

// VisionClient is the optional vision-model OCR path (spec §4.2, §9 Open
// Question): an explicit mode switch replacing Tesseract recognition with a
// vision-capable generative model, grounded on the HTTP-JSON client idiom
// used throughout the pack's external-service clients.
type VisionClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type visionRequest struct {
	Image  string `json:"image"`
	Prompt string `json:"prompt"`
}

type visionResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// NewVisionClient constructs a vision-model OCR client.
func NewVisionClient(baseURL, apiKey string) *VisionClient {
	return &VisionClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Recognize sends a single page image for verbatim Markdown transcription.
func (c *VisionClient) Recognize(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read rasterized page: %w", err)
	}

	payload := visionRequest{
		Image:  base64.StdEncoding.EncodeToString(data),
		Prompt: visionPrompt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/vision/transcribe", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read vision response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("vision transcription failed with HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result visionResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("failed to parse vision response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("vision transcription error: %s", result.Error)
	}

	return result.Text, nil
}
