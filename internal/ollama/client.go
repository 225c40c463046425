// Package ollama is the gateway to a locally hosted Ollama server. Calls
// carry a hard deadline and classify failures so the pipeline can degrade
// instead of surfacing transport errors to the user.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/lewisedginton/log_analysis_assistant/pkg/logger"
	"github.com/lewisedginton/log_analysis_assistant/pkg/metrics"
)

// DefaultHost is the standard local Ollama endpoint.
const DefaultHost = "http://localhost:11434"

// Options configures a Client. Zero values pick the defaults.
type Options struct {
	Host    string
	Model   string
	Logger  logger.Logger
	Metrics *metrics.Metrics

	// Timeout bounds one chat call end to end.
	Timeout time.Duration

	// Sampling configuration, deterministic-leaning by default.
	Temperature float64
	TopP        float64
	NumPredict  int
	Stop        []string

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the Ollama HTTP API.
type Client struct {
	opts Options
	http *http.Client
}

// NewClient creates a Client.
func NewClient(opts Options) *Client {
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	opts.Host = strings.TrimRight(opts.Host, "/")
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Temperature == 0 {
		opts.Temperature = 0.2
	}
	if opts.TopP == 0 {
		opts.TopP = 0.9
	}
	if opts.NumPredict <= 0 {
		opts.NumPredict = 1024
	}
	if opts.Stop == nil {
		opts.Stop = []string{"</answer>", "User Query:"}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{opts: opts, http: httpClient}
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.opts.Model
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p"`
	NumPredict  int      `json:"num_predict"`
	Stop        []string `json:"stop,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
	Error   string      `json:"error"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Chat sends a system and user prompt and returns the model's answer.
// Failures come back as *GatewayError with the kind set; a deadline miss
// abandons the call, it is never retried here.
func (c *Client) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.opts.Metrics != nil {
		c.opts.Metrics.ModelCallsCounter.Inc()
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	payload, err := json.Marshal(chatRequest{
		Model:    c.opts.Model,
		Messages: messages,
		Stream:   false,
		Options: chatOptions{
			Temperature: c.opts.Temperature,
			TopP:        c.opts.TopP,
			NumPredict:  c.opts.NumPredict,
			Stop:        c.opts.Stop,
		},
	})
	if err != nil {
		return "", upstreamError(fmt.Errorf("failed to encode chat request: %w", err))
	}

	start := time.Now()
	resp, err := c.post(callCtx, "/api/chat", payload)
	if err != nil {
		if isTimeout(err) {
			if c.opts.Metrics != nil {
				c.opts.Metrics.ModelTimeoutsCounter.Inc()
			}
			c.opts.Logger.Warn("Model call abandoned at deadline",
				logger.StringField("model", c.opts.Model),
				logger.DurationField("deadline", c.opts.Timeout))
			return "", timeoutError(c.opts.Timeout)
		}
		if c.opts.Metrics != nil {
			c.opts.Metrics.ModelErrorsCounter.Inc()
		}
		return "", upstreamError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if c.opts.Metrics != nil {
		c.opts.Metrics.ModelDurationHistogram.Observe(time.Since(start).Seconds())
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", c.countUpstream(fmt.Errorf("failed to read model response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return "", c.countUpstream(fmt.Errorf("model endpoint returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", c.countUpstream(fmt.Errorf("malformed model response: %w", err))
	}
	if parsed.Error != "" {
		return "", c.countUpstream(fmt.Errorf("model endpoint error: %s", parsed.Error))
	}
	if strings.TrimSpace(parsed.Message.Content) == "" {
		return "", c.countUpstream(fmt.Errorf("model returned an empty answer"))
	}
	return parsed.Message.Content, nil
}

// ListModels returns the names of models registered on the server.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.Host+"/api/tags", nil)
	if err != nil {
		return nil, upstreamError(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, timeoutError(c.opts.Timeout)
		}
		return nil, upstreamError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, upstreamError(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, upstreamError(fmt.Errorf("model endpoint returned status %d", resp.StatusCode))
	}

	var parsed tagsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, configurationError(fmt.Errorf("malformed model list response: %w", err))
	}

	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// CheckConnection probes the server and reports whether chat calls can be
// expected to work. Used by diagnostics, not on the hot path.
func (c *Client) CheckConnection(ctx context.Context) (bool, string) {
	models, err := c.ListModels(ctx)
	if err != nil {
		return false, fmt.Sprintf("cannot reach model endpoint at %s: %v", c.opts.Host, err)
	}
	if len(models) == 0 {
		return false, "no models registered on the endpoint; pull a model first"
	}
	for _, name := range models {
		if name == c.opts.Model {
			return true, fmt.Sprintf("%d models available; %s is registered", len(models), c.opts.Model)
		}
	}
	return false, fmt.Sprintf("configured model %s is not registered; available: %s",
		c.opts.Model, strings.Join(models, ", "))
}

func (c *Client) post(ctx context.Context, path string, payload []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Host+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.http.Do(req)
}

func (c *Client) countUpstream(err error) error {
	if c.opts.Metrics != nil {
		c.opts.Metrics.ModelErrorsCounter.Inc()
	}
	return upstreamError(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
