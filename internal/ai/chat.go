package ai

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

	"github.com/keshon/jukebox/pkg/retrylimit"
)

const DefaultEndpoint = "https://text.pollinations.ai/openai"

var (
	ErrEmptyChoices = errors.New("empty choices")
	ErrGarbage      = errors.New("unusable reply")
)

// StatusError is a non-2xx reply from the endpoint.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string   { return fmt.Sprintf("http %d: %s", e.Code, e.Body) }
func (e *StatusError) StatusCode() int { return e.Code }

// ChatProvider posts to an OpenAI-compatible /chat/completions style URL.
type ChatProvider struct {
	endpoint string
	model    string
	client   *http.Client
	limiter  *retrylimit.AdaptiveLimiter
	retry    retrylimit.RetryConfig
}

func NewChatProvider(endpoint, model string, timeout time.Duration) *ChatProvider {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if model == "" {
		model = "openai"
	}
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &ChatProvider{
		endpoint: endpoint,
		model:    model,
		client:   &http.Client{Timeout: timeout},
		limiter:  retrylimit.NewAdaptiveLimiter(2, 0.2, 5, 0.5, 0.5),
		retry:    retrylimit.DefaultRetryConfig(),
	}
}

func (p *ChatProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	payload := map[string]any{
		"model":       p.model,
		"messages":    messages,
		"temperature": 0.7,
		"max_tokens":  50,
		"private":     true,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	var reply string
	err = retrylimit.WithRetry(ctx, func() error {
		r, err := p.post(ctx, data)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && !retrylimit.Retryable(se) {
				return retrylimit.Fatal(err)
			}
			return err
		}
		reply = r
		return nil
	}, p.limiter, p.retry)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	return reply, nil
}

func (p *ChatProvider) post(ctx context.Context, data []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(data))
	if err != nil {
		return "", retrylimit.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{Code: resp.StatusCode, Body: truncate(body)}
	}
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return "", retrylimit.Fatal(fmt.Errorf("%w: html page", ErrGarbage))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", retrylimit.Fatal(fmt.Errorf("unmarshal: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", ErrEmptyChoices
	}

	reply := cleanReply(parsed.Choices[0].Message.Content)
	if isGarbageResponse(reply) {
		return "", ErrGarbage
	}
	return reply, nil
}
