package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	googleBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultTimeout bounds a whole generateContent call. There are no retries.
	DefaultTimeout = 60 * time.Second
)

// GoogleConfig configures the Gemini client.
type GoogleConfig struct {
	APIKey  string
	Model   string        // Default model when a request names none
	BaseURL string        // Overrides the public endpoint, mainly for tests
	Timeout time.Duration // HTTP client timeout
}

// GoogleProvider implements the Provider interface for Google Gemini.
type GoogleProvider struct {
	BaseProvider
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGoogleProvider creates a new Google Gemini provider. An empty API key yields
// a provider that reports itself unavailable.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = googleBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &GoogleProvider{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Name returns the provider name.
func (p *GoogleProvider) Name() string {
	return "google"
}

// Available returns true if the API key is configured.
func (p *GoogleProvider) Available() bool {
	return p.apiKey != ""
}

// Model returns the default model.
func (p *GoogleProvider) Model() string {
	return p.model
}

// geminiRequest is the request format for Google's Gemini API.
type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	ResponseMIMEType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

// geminiResponse is the response format from Google Gemini.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
			Role string `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ResponseID string `json:"responseId"`
}

// CreateMessage sends a message to the Google Gemini API.
func (p *GoogleProvider) CreateMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error) {
	if !p.Available() {
		return nil, ErrProviderNotAvailable("google")
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	contents := make([]geminiContent, 0, len(req.Messages))
	for _, msg := range req.Messages {
		contents = append(contents, geminiContent{
			Role:  msg.Role,
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}

	geminiReq := geminiRequest{Contents: contents}
	if req.ResponseMIMEType != "" {
		geminiReq.GenerationConfig = &geminiGenerationConfig{
			ResponseMIMEType: req.ResponseMIMEType,
			ResponseSchema:   req.ResponseSchema,
		}
	}
	if req.System != "" {
		geminiReq.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.System}},
		}
	}

	body, err := json.Marshal(geminiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		err = fmt.Errorf("failed to send request: %w", err)
		p.TrackFailure(err)
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("failed to read response: %w", err)
		p.TrackFailure(err)
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		p.TrackFailure(apiErr)
		return nil, apiErr
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		err = fmt.Errorf("failed to unmarshal response: %w", err)
		p.TrackFailure(err)
		return nil, err
	}

	// Concatenate text parts of the first candidate
	var content strings.Builder
	stopReason := ""
	if len(geminiResp.Candidates) > 0 {
		candidate := geminiResp.Candidates[0]
		stopReason = candidate.FinishReason
		for _, part := range candidate.Content.Parts {
			content.WriteString(part.Text)
		}
	}

	p.TrackUsage(geminiResp.UsageMetadata.PromptTokenCount, geminiResp.UsageMetadata.CandidatesTokenCount)

	return &MessageResponse{
		ID:         geminiResp.ResponseID,
		Content:    content.String(),
		Model:      model,
		StopReason: stopReason,
		Usage: ResponseUsage{
			InputTokens:  geminiResp.UsageMetadata.PromptTokenCount,
			OutputTokens: geminiResp.UsageMetadata.CandidatesTokenCount,
		},
	}, nil
}

// APIError is a non-200 answer from the service.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Google API error (status %d): %s", e.StatusCode, e.Body)
}
