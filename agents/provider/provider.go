// Package provider is the client side of the text-generation service. The only
// implementation talks to Google Gemini; tests substitute their own Provider.
package provider

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// ModelGemini25Flash is the model used for reports and task scoring.
const ModelGemini25Flash = "gemini-2.5-flash"

// DefaultModel is used when no model is configured.
const DefaultModel = ModelGemini25Flash

// ErrProviderNotAvailable is returned when no API key is configured.
type ErrProviderNotAvailable string

func (e ErrProviderNotAvailable) Error() string {
	return fmt.Sprintf("provider %s not available: API key not configured", string(e))
}

// Provider generates text for a prompt.
type Provider interface {
	CreateMessage(ctx context.Context, req *MessageRequest) (*MessageResponse, error)
	Name() string

	// Available reports whether a credential is configured. Requests to an
	// unavailable provider fail with ErrProviderNotAvailable.
	Available() bool

	GetUsage() TokenUsage
	ResetUsage()
}

// MessageRequest is one generation call.
type MessageRequest struct {
	Model    string // Empty means the provider's default
	System   string
	Messages []Message

	// JSON mode: the answer must be JSON matching ResponseSchema (OpenAPI subset).
	ResponseMIMEType string
	ResponseSchema   map[string]any
}

// Message is one turn of the prompt. Role is "user" or "model".
type Message struct {
	Role    string
	Content string
}

// MessageResponse is the generated text and its metadata.
type MessageResponse struct {
	ID         string
	Content    string // Text parts of the first candidate, concatenated
	Model      string
	StopReason string
	Usage      ResponseUsage
}

// ResponseUsage is the token count of one response.
type ResponseUsage struct {
	InputTokens  int
	OutputTokens int
}

// TokenUsage accumulates over the provider's lifetime and is shown on the status page.
type TokenUsage struct {
	InputTokens    int64     `json:"input_tokens"`
	OutputTokens   int64     `json:"output_tokens"`
	TotalRequests  int64     `json:"total_requests"`
	FailedRequests int64     `json:"failed_requests"`
	LastUsed       time.Time `json:"last_used"`
	LastError      string    `json:"last_error,omitempty"`
}

// BaseProvider keeps the usage counters. Embed it in a Provider.
type BaseProvider struct {
	mu    sync.Mutex
	usage TokenUsage
}

// TrackUsage records a successful call.
func (b *BaseProvider) TrackUsage(input, output int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.usage.InputTokens += int64(input)
	b.usage.OutputTokens += int64(output)
	b.usage.TotalRequests++
	b.usage.LastUsed = time.Now()
}

// TrackFailure records a call that reached the service but failed.
func (b *BaseProvider) TrackFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.usage.TotalRequests++
	b.usage.FailedRequests++
	b.usage.LastUsed = time.Now()
	b.usage.LastError = err.Error()
}

// GetUsage returns the counters.
func (b *BaseProvider) GetUsage() TokenUsage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.usage
}

// ResetUsage zeroes the counters.
func (b *BaseProvider) ResetUsage() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.usage = TokenUsage{}
}
