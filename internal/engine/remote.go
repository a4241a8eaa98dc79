package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/INFO-698-InfoSci-Capstone/summiva/internal/model"
)

// RemoteAdapter is the high-quality/high-cost tier, backed by any
// OpenAI-compatible chat completions endpoint.
type RemoteAdapter struct {
	name       string
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

var _ Adapter = (*RemoteAdapter)(nil)

// RemoteOption configures the remote adapter.
type RemoteOption func(*RemoteAdapter)

// WithModel sets the model identifier (default: gpt-4o-mini).
func WithModel(m string) RemoteOption {
	return func(a *RemoteAdapter) { a.model = m }
}

// WithBaseURL overrides the API endpoint (default: https://api.openai.com/v1).
func WithBaseURL(url string) RemoteOption {
	return func(a *RemoteAdapter) { a.baseURL = strings.TrimRight(url, "/") }
}

// NewRemoteAdapter creates the remote tier.
func NewRemoteAdapter(name, apiKey string, opts ...RemoteOption) *RemoteAdapter {
	a := &RemoteAdapter{
		name:       name,
		apiKey:     apiKey,
		baseURL:    "https://api.openai.com/v1",
		model:      "gpt-4o-mini",
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *RemoteAdapter) Name() string { return a.name }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Produce sends the operation's prompt to the endpoint and validates the
// returned draft. HTTP 429 and 5xx map to ModelUnavailable, deadline
// expiry to ModelTimeout, malformed output to ModelError.
func (a *RemoteAdapter) Produce(ctx context.Context, kind, text string, opts Options) (*Draft, error) {
	prompt, err := buildPrompt(kind, text, opts)
	if err != nil {
		return nil, &model.ModelError{Tier: a.name, Err: err}
	}

	raw, err := a.complete(ctx, prompt)
	if err != nil {
		return nil, a.classify(err)
	}

	payload := []byte(stripCodeFence(raw))
	if err := ValidateDraft(kind, payload); err != nil {
		return nil, &model.ModelError{Tier: a.name, Err: err}
	}

	return &Draft{
		Payload:    payload,
		Confidence: 0.9,
		// Rough token estimate at 4 chars/token; good enough for routing stats.
		CostEstimate: float64(len(text)) / 4,
	}, nil
}

// Ping probes the endpoint's model listing with a short deadline.
func (a *RemoteAdapter) Ping(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/models", nil)
	if err != nil {
		return Unhealthy
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return Unhealthy
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusOK:
		return Healthy
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError:
		return Degraded
	default:
		return Unhealthy
	}
}

func (a *RemoteAdapter) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:       a.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.2,
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &apiError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return "", errors.New(parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("empty choices in response")
	}
	return parsed.Choices[0].Message.Content, nil
}

// classify maps transport failures onto the pipeline's error taxonomy.
func (a *RemoteAdapter) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &model.ModelTimeoutError{Tier: a.name, Err: err}
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError {
			return &model.ModelUnavailableError{Tier: a.name, Err: err}
		}
		return &model.ModelError{Tier: a.name, Err: err}
	}
	// Connection-level failures: the tier is unreachable.
	return &model.ModelUnavailableError{Tier: a.name, Err: err}
}

type apiError struct {
	StatusCode int
	Body       string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// stripCodeFence removes a ```json ... ``` wrapper some models add.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
