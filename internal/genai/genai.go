// Package genai provides LLM operations using the OpenAI Responses API.
//
// Every call can carry a previous response ID so the model sees prior turns
// of the same conversation without the caller resending them.
package genai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// responseService defines the minimal interface of the Responses API used by
// this package. Kept narrow so tests can substitute a fake.
type responseService interface {
	New(ctx context.Context, params responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
	NewStreaming(ctx context.Context, params responses.ResponseNewParams, opts ...option.RequestOption) *ssestream.Stream[responses.ResponseStreamEventUnion]
	Get(ctx context.Context, responseID string, params responses.ResponseGetParams, opts ...option.RequestOption) (*responses.Response, error)
}

// Client wraps the OpenAI Responses service.
type Client struct {
	responses responseService
	model     string
}

// Opts holds configuration options for creating a Client.
type Opts struct {
	APIKey  string
	Model   string
	BaseURL string
}

// Option configures Opts.
type Option func(*Opts)

// WithAPIKey sets the API key, overriding the OPENAI_API_KEY environment variable.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel sets the model used for all generations.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithBaseURL points the client at an OpenAI-compatible endpoint.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// NewClient initializes a GenAI client. The API key falls back to the
// OPENAI_API_KEY environment variable.
func NewClient(options ...Option) (*Client, error) {
	var opts Opts
	for _, opt := range options {
		opt(&opts)
	}
	if opts.APIKey == "" {
		opts.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if opts.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY not set")
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(opts.APIKey)}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	cli := openai.NewClient(reqOpts...)
	slog.Debug("GenAI client created", "model", opts.Model)
	return &Client{responses: &cli.Responses, model: opts.Model}, nil
}

// Request describes one generation call.
type Request struct {
	Input              string
	Instructions       string
	PreviousResponseID string
	JSONOutput         bool
	Temperature        *float64
}

// Result is the outcome of a generation call. ResponseID is the continuity
// token for the next turn.
type Result struct {
	ResponseID string
	Text       string
}

func (c *Client) buildParams(req Request) responses.ResponseNewParams {
	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(c.model),
		Input: responses.ResponseNewParamsInputUnion{OfString: openai.String(req.Input)},
	}
	if req.Instructions != "" {
		params.Instructions = openai.String(req.Instructions)
	}
	if req.PreviousResponseID != "" {
		params.PreviousResponseID = openai.String(req.PreviousResponseID)
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.JSONOutput {
		params.Text = responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
		}
	}
	return params
}

// Generate performs a single blocking generation.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	slog.Debug("GenAI Generate", "model", c.model, "hasPrevious", req.PreviousResponseID != "", "json", req.JSONOutput)

	resp, err := c.responses.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("failed to generate response: %w", err)
	}
	slog.Debug("GenAI Generate completed", "responseID", resp.ID)
	return &Result{ResponseID: resp.ID, Text: resp.OutputText()}, nil
}

// GenerateStream performs a streaming generation, invoking onChunk for each
// partial text delta. It returns the final result with the accumulated text.
func (c *Client) GenerateStream(ctx context.Context, req Request, onChunk func(string)) (*Result, error) {
	slog.Debug("GenAI GenerateStream", "model", c.model, "hasPrevious", req.PreviousResponseID != "")

	stream := c.responses.NewStreaming(ctx, c.buildParams(req))
	defer stream.Close()

	var result Result
	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "response.output_text.delta":
			result.Text += event.Delta.OfString
			if onChunk != nil {
				onChunk(event.Delta.OfString)
			}
		case "response.completed":
			result.ResponseID = event.Response.ID
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("stream failed: %w", err)
	}
	slog.Debug("GenAI GenerateStream completed", "responseID", result.ResponseID, "chars", len(result.Text))
	return &result, nil
}

// PollUntilTerminal fetches a response until it reaches a terminal status or
// the timeout elapses. Used for background-mode responses.
func (c *Client) PollUntilTerminal(ctx context.Context, responseID string, interval, timeout time.Duration) (*Result, error) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	deadline := time.Now().Add(timeout)

	for {
		resp, err := c.responses.Get(ctx, responseID, responses.ResponseGetParams{})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch response %s: %w", responseID, err)
		}
		switch resp.Status {
		case responses.ResponseStatusCompleted:
			return &Result{ResponseID: resp.ID, Text: resp.OutputText()}, nil
		case responses.ResponseStatusFailed:
			return nil, fmt.Errorf("response %s failed: %s", responseID, resp.Error.Message)
		case responses.ResponseStatusCancelled, responses.ResponseStatusIncomplete:
			return nil, fmt.Errorf("response %s ended with status %s", responseID, resp.Status)
		}

		if timeout > 0 && time.Now().After(deadline) {
			return nil, fmt.Errorf("timed out waiting for response %s", responseID)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}
