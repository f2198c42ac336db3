// Package llm implements the arbitration and extraction agents over the
// OpenAI chat completions API.
//
// Both agents run in JSON mode at low temperature, decode the model output
// into the domain schema, validate it, and retry a bounded number of times
// when the output is malformed. Every invocation is recorded as an AgentRun
package llm

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	openai "github.com/sashabaranov/go-openai"

	perr "regtruth/internal/platform/errors"
	"regtruth/internal/platform/logger"
	"regtruth/internal/services/audit"
)

const (
	defaultModel       = openai.GPT4o
	defaultTemperature = 0.1
	defaultMaxRetries  = 2
	defaultMaxTokens   = 2048
)

// chatAPI is the slice of the OpenAI client the agents use; a seam for tests
type chatAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// RunRecorder receives one AgentRun per model invocation. Best effort
type RunRecorder interface {
	Run(ctx context.Context, run audit.AgentRun)
}

// Options configures the agents
type Options struct {
	APIKey  string
	BaseURL string // optional override for proxies / compatible endpoints
	Model   string

	// Temperature defaults low: arbitration wants determinism, not creativity
	Temperature float32

	// MaxRetries bounds re-asks after malformed (schema-invalid) output.
	// Transport failures are not retried here; the worker loop re-leases
	MaxRetries int
	MaxTokens  int
}

// Client hosts both agent kinds over one OpenAI connection
type Client struct {
	api      chatAPI
	opts     Options
	validate *validator.Validate
	runs     RunRecorder
	log      logger.Logger
	now      func() time.Time
}

// NewClient creates the agent client. runs may be nil
func NewClient(o Options, runs RunRecorder) *Client {
	if o.Model == "" {
		o.Model = defaultModel
	}
	if o.Temperature <= 0 {
		o.Temperature = defaultTemperature
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = defaultMaxRetries
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = defaultMaxTokens
	}

	cfg := openai.DefaultConfig(o.APIKey)
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}

	return &Client{
		api:      openai.NewClientWithConfig(cfg),
		opts:     o,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		runs:     runs,
		log:      *logger.Named("llm"),
		now:      time.Now,
	}
}

// completeJSON runs one JSON-mode chat completion and returns the raw content
func (c *Client) completeJSON(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.opts.Model,
		Temperature: c.opts.Temperature,
		MaxTokens:   c.opts.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnavailable, "chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", perr.Schemaf("model returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// record writes the AgentRun when a recorder is wired
func (c *Client) record(ctx context.Context, run audit.AgentRun) {
	if c.runs == nil {
		return
	}
	run.Model = c.opts.Model
	c.runs.Run(ctx, run)
}
