package genai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/responses"
)

func float64Ptr(v float64) *float64 { return &v }

func TestBuildParams(t *testing.T) {
	c := &Client{model: "gpt-4o-mini"}
	req := Request{
		Input:              "evaluate this",
		Instructions:       "you are a strict evaluator",
		PreviousResponseID: "resp_prev",
		JSONOutput:         true,
		Temperature:        float64Ptr(0.2),
	}

	params := c.buildParams(req)

	if string(params.Model) != "gpt-4o-mini" {
		t.Errorf("Model = %s, want gpt-4o-mini", params.Model)
	}
	if params.Input.OfString.Value != "evaluate this" {
		t.Errorf("Input = %q, want %q", params.Input.OfString.Value, "evaluate this")
	}
	if params.Instructions.Value != "you are a strict evaluator" {
		t.Errorf("Instructions = %q", params.Instructions.Value)
	}
	if params.PreviousResponseID.Value != "resp_prev" {
		t.Errorf("PreviousResponseID = %q, want resp_prev", params.PreviousResponseID.Value)
	}
	if params.Temperature.Value != 0.2 {
		t.Errorf("Temperature = %v, want 0.2", params.Temperature.Value)
	}
	if params.Text.Format.OfJSONObject == nil {
		t.Error("expected JSON object response format")
	}
}

func TestBuildParamsOmitsOptionalFields(t *testing.T) {
	c := &Client{model: "gpt-4o-mini"}
	params := c.buildParams(Request{Input: "hello"})

	if params.Instructions.Valid() {
		t.Error("expected Instructions unset")
	}
	if params.PreviousResponseID.Valid() {
		t.Error("expected PreviousResponseID unset")
	}
	if params.Temperature.Valid() {
		t.Error("expected Temperature unset")
	}
	if params.Text.Format.OfJSONObject != nil {
		t.Error("expected plain text response format")
	}
}

// fakeResponseService scripts Get responses for polling tests.
type fakeResponseService struct {
	newErr    error
	responses []responses.Response
	getCalls  int
}

func (f *fakeResponseService) New(ctx context.Context, params responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error) {
	if f.newErr != nil {
		return nil, f.newErr
	}
	return &responses.Response{ID: "resp_new"}, nil
}

func (f *fakeResponseService) NewStreaming(ctx context.Context, params responses.ResponseNewParams, opts ...option.RequestOption) *ssestream.Stream[responses.ResponseStreamEventUnion] {
	return nil
}

func (f *fakeResponseService) Get(ctx context.Context, responseID string, params responses.ResponseGetParams, opts ...option.RequestOption) (*responses.Response, error) {
	if f.getCalls >= len(f.responses) {
		return nil, errors.New("no scripted response")
	}
	resp := f.responses[f.getCalls]
	f.getCalls++
	return &resp, nil
}

func TestGenerateReturnsContinuityToken(t *testing.T) {
	c := &Client{responses: &fakeResponseService{}, model: "gpt-4o-mini"}

	result, err := c.Generate(context.Background(), Request{Input: "hi"})
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if result.ResponseID != "resp_new" {
		t.Errorf("ResponseID = %s, want resp_new", result.ResponseID)
	}
}

func TestGeneratePropagatesError(t *testing.T) {
	c := &Client{responses: &fakeResponseService{newErr: errors.New("boom")}, model: "gpt-4o-mini"}

	if _, err := c.Generate(context.Background(), Request{Input: "hi"}); err == nil {
		t.Error("expected error from failed generation")
	}
}

func TestPollUntilTerminalCompletes(t *testing.T) {
	svc := &fakeResponseService{responses: []responses.Response{
		{ID: "resp_1", Status: responses.ResponseStatusInProgress},
		{ID: "resp_1", Status: responses.ResponseStatusCompleted},
	}}
	c := &Client{responses: svc, model: "gpt-4o-mini"}

	result, err := c.PollUntilTerminal(context.Background(), "resp_1", time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("PollUntilTerminal() error = %v", err)
	}
	if result.ResponseID != "resp_1" {
		t.Errorf("ResponseID = %s, want resp_1", result.ResponseID)
	}
	if svc.getCalls != 2 {
		t.Errorf("getCalls = %d, want 2", svc.getCalls)
	}
}

func TestPollUntilTerminalFailedStatus(t *testing.T) {
	svc := &fakeResponseService{responses: []responses.Response{
		{ID: "resp_1", Status: responses.ResponseStatusFailed},
	}}
	c := &Client{responses: svc, model: "gpt-4o-mini"}

	if _, err := c.PollUntilTerminal(context.Background(), "resp_1", time.Millisecond, time.Second); err == nil {
		t.Error("expected error for failed response")
	}
}

func TestPollUntilTerminalHonorsContext(t *testing.T) {
	svc := &fakeResponseService{responses: []responses.Response{
		{ID: "resp_1", Status: responses.ResponseStatusInProgress},
		{ID: "resp_1", Status: responses.ResponseStatusInProgress},
	}}
	c := &Client{responses: svc, model: "gpt-4o-mini"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.PollUntilTerminal(ctx, "resp_1", 50*time.Millisecond, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
