package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/freekieb7/go-drawer/internal/upstream"
)

var (
	ErrNotConfigured = errors.New("summarizer: no api key configured")
	ErrUnavailable   = errors.New("summarizer: temporarily unavailable")
	ErrUpstream      = errors.New("summarizer: request failed")
)

const systemPrompt = "Summarize the following study document for a student in a few short paragraphs."

type Summarizer interface {
	Summarize(ctx context.Context, document string) (string, error)
}

// HTTPSummarizer calls an OpenAI compatible chat completions endpoint.
type HTTPSummarizer struct {
	url    string
	apiKey string
	model  string
	http   *upstream.Client
	logger *slog.Logger
}

func NewHTTPSummarizer(url, apiKey, model string, httpClient *upstream.Client, logger *slog.Logger) *HTTPSummarizer {
	return &HTTPSummarizer{
		url:    url,
		apiKey: apiKey,
		model:  model,
		http:   httpClient,
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (s *HTTPSummarizer) Summarize(ctx context.Context, document string) (string, error) {
	if s.apiKey == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: document},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal summary request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create summary request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if errors.Is(err, upstream.ErrOpen) {
		return "", ErrUnavailable
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.WarnContext(ctx, "Summarizer request failed", "status", resp.StatusCode, "body", string(raw))
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUpstream)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
