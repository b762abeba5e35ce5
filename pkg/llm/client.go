// Package llm is a dual-dialect chat-completion client (Anthropic Messages
// API and OpenAI Chat Completions API) with the retry policy from §4.2: a
// request budget of 3 total attempts, 429 honouring Retry-After, 5xx/timeout
// exponential backoff, and immediate failure on 401 or any other 4xx.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"skillforge/pkg/config"
	"skillforge/pkg/errors"
)

const domain = "llm"

const (
	requestTimeout = 120 * time.Second
	baseDelay      = 1 * time.Second
	maxAttempts    = 3
)

// anthropicURLOverride and openaiURLOverride let tests redirect requests to a
// local httptest server; production code never sets them.
var (
	anthropicURLOverride string
	openaiURLOverride    string
)

func anthropicURL() string {
	if anthropicURLOverride != "" {
		return anthropicURLOverride
	}
	return "https://api.anthropic.com/v1/messages"
}

func openaiURL() string {
	if openaiURLOverride != "" {
		return openaiURLOverride
	}
	return "https://api.openai.com/v1/chat/completions"
}

// Client speaks one provider dialect, selected at construction.
type Client struct {
	cfg  config.LLMConfig
	http *http.Client
}

// New builds a Client bound to the given LLM configuration.
func New(cfg config.LLMConfig) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = maxAttempts - 1
	rc.RetryWaitMin = baseDelay
	rc.Logger = nil
	rc.CheckRetry = checkRetry
	rc.Backoff = backoff
	// Hand the last response back once retries are exhausted, so doJSON can
	// classify a final 429 or 5xx by its status code.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.HTTPClient.Timeout = requestTimeout

	return &Client{cfg: cfg, http: rc.StandardClient()}
}

// Chat sends one system+user prompt and returns the model's text reply.
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	switch c.cfg.Provider {
	case "anthropic":
		return c.chatAnthropic(ctx, system, user)
	case "openai":
		return c.chatOpenAI(ctx, system, user)
	default:
		return "", errors.New(errors.CodeUnexpectedResponse, domain,
			fmt.Sprintf("unsupported provider %q", c.cfg.Provider), nil)
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
}

func (c *Client) chatAnthropic(ctx context.Context, system, user string) (string, error) {
	body := anthropicRequest{
		Model:     c.cfg.Model,
		System:    system,
		Messages:  []anthropicMessage{{Role: "user", Content: user}},
		MaxTokens: maxTokens(c.cfg),
	}
	if c.cfg.Temperature != 0 {
		t := c.cfg.Temperature
		body.Temperature = &t
	}

	raw, err := c.doJSON(ctx, anthropicURL(), map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": "2023-06-01",
	}, body)
	if err != nil {
		return "", err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(raw, &resp); err != nil || len(resp.Content) == 0 || resp.Content[0].Type != "text" {
		return "", unexpectedResponse(raw)
	}
	return resp.Content[0].Text, nil
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature *float64        `json:"temperature,omitempty"`
}

type openaiChoice struct {
	Message openaiMessage `json:"message"`
}

type openaiResponse struct {
	Choices []openaiChoice `json:"choices"`
}

func (c *Client) chatOpenAI(ctx context.Context, system, user string) (string, error) {
	body := openaiRequest{
		Model: c.cfg.Model,
		Messages: []openaiMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens: maxTokens(c.cfg),
	}
	if c.cfg.Temperature != 0 {
		t := c.cfg.Temperature
		body.Temperature = &t
	}

	raw, err := c.doJSON(ctx, openaiURL(), map[string]string{
		"authorization": "Bearer " + c.cfg.APIKey,
	}, body)
	if err != nil {
		return "", err
	}

	var resp openaiResponse
	if err := json.Unmarshal(raw, &resp); err != nil || len(resp.Choices) == 0 {
		return "", unexpectedResponse(raw)
	}
	return resp.Choices[0].Message.Content, nil
}

func maxTokens(cfg config.LLMConfig) int {
	if cfg.MaxTokens > 0 {
		return cfg.MaxTokens
	}
	return 4096
}

func (c *Client) doJSON(ctx context.Context, url string, headers map[string]string, body any) ([]byte, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, domain, "failed to encode request body", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.New(errors.CodeInternal, domain, "failed to build request", err)
	}
	req.Header.Set("content-type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.New(errors.CodeLLMTimeout, domain, "request failed after retries", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errors.New(errors.CodeAuthFailed, domain, "authentication failed", nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.New(errors.CodeRateLimited, domain, "rate limited after exhausting retries", nil)
	case resp.StatusCode >= 500:
		return nil, errors.New(errors.CodeServerError, domain, fmt.Sprintf("server error %d after exhausting retries", resp.StatusCode), nil)
	case resp.StatusCode >= 400:
		return nil, errors.New(errors.CodeUnexpectedResponse, domain, fmt.Sprintf("client error %d: %s", resp.StatusCode, preview(raw)), nil)
	}
	return raw, nil
}

func unexpectedResponse(raw []byte) error {
	return errors.New(errors.CodeUnexpectedResponse, domain, "unexpected response shape: "+preview(raw), nil)
}

func preview(raw []byte) string {
	s := string(raw)
	if len(s) > 500 {
		return s[:500]
	}
	return s
}

// checkRetry implements §4.2's transient/permanent classification. 401 and
// other non-429 4xx never retry; 429 and 5xx (or a transport-level error)
// retry up to the client's RetryMax.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		// Transport-level failure (including timeout): treat as transient.
		return true, nil
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return false, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return true, nil
	}
	if resp.StatusCode >= 400 {
		return false, nil
	}
	return false, nil
}

// backoff honours Retry-After on 429, and otherwise computes base*2^attempt,
// matching §4.2 exactly; retryablehttp calls this only between retried
// attempts, never before the first.
func backoff(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil {
				return time.Duration(secs) * time.Second
			}
		}
		return 2 * baseDelay
	}
	delay := baseDelay
	for i := 0; i < attemptNum; i++ {
		delay *= 2
	}
	if delay > max {
		return max
	}
	return delay
}
