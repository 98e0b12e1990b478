package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "chat-companion/backend/pkg/errors"
)

// CaptionClient uses hosted image-captioning inference endpoints. Two
// models are tried in order because the free tier of either can be
// cold-started or rate limited at any moment.
type CaptionClient struct {
	apiKey     string
	endpoints  []string
	httpClient *http.Client
}

func NewCaptionClient(apiKey string, endpoints ...string) *CaptionClient {
	if len(endpoints) == 0 {
		endpoints = []string{
			"https://api-inference.huggingface.co/models/Salesforce/blip-image-captioning-large",
			"https://api-inference.huggingface.co/models/nlpconnect/vit-gpt2-image-captioning",
		}
	}
	return &CaptionClient{
		apiKey:     apiKey,
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type captionResponse []struct {
	GeneratedText string `json:"generated_text"`
}

// Caption describes the image, falling through the configured endpoints.
func (c *CaptionClient) Caption(ctx context.Context, image []byte) (string, error) {
	var lastErr error
	for _, endpoint := range c.endpoints {
		caption, err := c.captionOnce(ctx, endpoint, image)
		if err == nil {
			return caption, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (c *CaptionClient) captionOnce(ctx context.Context, endpoint string, image []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("error creating caption request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrTransientBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: caption request failed with status %d: %s",
			apperrors.ErrTransientBackend, resp.StatusCode, string(respBody))
	}

	var captions captionResponse
	if err := json.NewDecoder(resp.Body).Decode(&captions); err != nil {
		return "", fmt.Errorf("error unmarshaling caption response: %v", err)
	}
	if len(captions) == 0 || captions[0].GeneratedText == "" {
		return "", apperrors.ErrEmptyResult
	}
	return captions[0].GeneratedText, nil
}
