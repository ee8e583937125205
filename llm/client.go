// Package llm sends disclosure text to an OpenAI-compatible chat
// completion endpoint and returns the generated summary.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/porticus-lab/tdnet-digest/settings"
)

// SystemPrompt instructs the model to produce a short bulleted Japanese
// summary of a timely disclosure.
const SystemPrompt = "あなたは日本の適時開示情報を要約する専門家です。開示内容を簡潔に要約し、重要なポイントを箇条書きで示してください。"

// UserPromptPrefix precedes the disclosure text in the user message.
const UserPromptPrefix = "以下のTDnet開示内容を要約してください:\n\n"

// maxResponseSize caps how much of a response body is read.
const maxResponseSize = 8 << 20

// ErrMalformedResponse is returned when a successful response carries no
// summary content.
var ErrMalformedResponse = errors.New("llm: response has no choices[0].message.content")

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

// maxErrorBody caps how much of an error body is quoted in the message.
const maxErrorBody = 300

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("llm: API call failed with status %d", e.StatusCode)
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return msg
	}
	if r := []rune(body); len(r) > maxErrorBody {
		body = string(r[:maxErrorBody]) + "..."
	}
	return msg + ": " + body
}

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the request body sent to the endpoint.
type ChatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client calls a chat completion endpoint.
type Client struct {
	http         *http.Client
	systemPrompt string
	log          *logrus.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithSystemPrompt replaces [SystemPrompt].
func WithSystemPrompt(p string) Option {
	return func(cl *Client) {
		cl.systemPrompt = p
	}
}

// WithLogger sets the client's logger.
func WithLogger(l *logrus.Logger) Option {
	return func(cl *Client) {
		cl.log = l
	}
}

// NewClient returns a Client. By default it uses http.DefaultClient.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:         http.DefaultClient,
		systemPrompt: SystemPrompt,
		log:          logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// NewRequest builds the completion request for text.
func (c *Client) NewRequest(text, model string) ChatRequest {
	return ChatRequest{
		Model: model,
		Messages: []Message{
			{Role: "system", Content: c.systemPrompt},
			{Role: "user", Content: UserPromptPrefix + text},
		},
	}
}

// Summarize sends one completion request for text and returns the content
// of the first choice unchanged. It does not retry.
func (c *Client) Summarize(ctx context.Context, text string, s settings.Settings) (string, error) {
	body, err := json.Marshal(c.NewRequest(text, s.Model))
	if err != nil {
		return "", fmt.Errorf("llm: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llm: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.APIKey)

	entry := c.log.WithFields(logrus.Fields{"model": s.Model, "chars": len([]rune(text))})
	entry.Debug("requesting summary")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm: calling API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("llm: reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		entry.WithField("status", resp.StatusCode).Warn("completion endpoint returned an error")
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	var out chatResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(out.Choices) == 0 || out.Choices[0].Message.Content == nil || *out.Choices[0].Message.Content == "" {
		return "", ErrMalformedResponse
	}
	return *out.Choices[0].Message.Content, nil
}
