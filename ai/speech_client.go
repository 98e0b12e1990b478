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

// SpeechClient talks to an asynchronous text-to-speech service that
// works submit-then-poll: a generation request returns a process id, and
// a status endpoint reports progress until the audio is ready.
type SpeechClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

func NewSpeechClient(apiKey, baseURL string) *SpeechClient {
	return &SpeechClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type speechSubmitRequest struct {
	Prompt string `json:"prompt"`
	Voice  string `json:"voice,omitempty"`
}

type speechSubmitResponse struct {
	ProcessID string `json:"process_id"`
}

type speechStatusResponse struct {
	Status string `json:"status"`
	Result struct {
		Output []string `json:"output"`
	} `json:"result"`
}

// Synthesize submits the text and returns a pending job to poll.
func (c *SpeechClient) Synthesize(ctx context.Context, text, voiceID string) (*SpeechJob, error) {
	body, err := json.Marshal(speechSubmitRequest{Prompt: text, Voice: voiceID})
	if err != nil {
		return nil, fmt.Errorf("error marshaling synthesis request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generate", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("error creating synthesis request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransientBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: synthesis request failed with status %d: %s",
			apperrors.ErrTransientBackend, resp.StatusCode, string(respBody))
	}

	var submitResp speechSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&submitResp); err != nil {
		return nil, fmt.Errorf("error unmarshaling synthesis response: %v", err)
	}
	if submitResp.ProcessID == "" {
		return nil, apperrors.ErrEmptyResult
	}

	return &SpeechJob{ID: submitResp.ProcessID, Status: SpeechStatusPending}, nil
}

// PollStatus checks the job and downloads the audio once completed.
func (c *SpeechClient) PollStatus(ctx context.Context, jobID string) (*SpeechJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/"+jobID, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating status request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransientBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status request failed with status %d: %s",
			apperrors.ErrTransientBackend, resp.StatusCode, string(respBody))
	}

	var statusResp speechStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&statusResp); err != nil {
		return nil, fmt.Errorf("error unmarshaling status response: %v", err)
	}

	job := &SpeechJob{ID: jobID, Status: statusResp.Status}
	if statusResp.Status != SpeechStatusCompleted {
		return job, nil
	}

	if len(statusResp.Result.Output) == 0 {
		return nil, apperrors.ErrEmptyResult
	}
	audio, err := c.download(ctx, statusResp.Result.Output[0])
	if err != nil {
		return nil, err
	}
	job.Audio = audio
	return job, nil
}

func (c *SpeechClient) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating download request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrTransientBackend, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: audio download failed with status %d",
			apperrors.ErrTransientBackend, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
