package api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aifightclub/arena/internal/conversation"
	"github.com/aifightclub/arena/internal/evaluation"
	"github.com/aifightclub/arena/internal/genai"
	"github.com/aifightclub/arena/internal/journey"
	"github.com/aifightclub/arena/internal/models"
	"github.com/aifightclub/arena/internal/store"
	"github.com/aifightclub/arena/internal/testutil"
)

const evalPayload = `{"score": 82, "feedback": "solid reasoning", "strengths": ["clarity"], "areas_for_improvement": ["depth"]}`

// stubLLM returns a fixed payload for every generation.
type stubLLM struct {
	text   string
	chunks []string
}

func (s *stubLLM) Generate(ctx context.Context, req genai.Request) (*genai.Result, error) {
	return &genai.Result{ResponseID: "resp_1", Text: s.text}, nil
}

func (s *stubLLM) GenerateStream(ctx context.Context, req genai.Request, onChunk func(string)) (*genai.Result, error) {
	for _, chunk := range s.chunks {
		if onChunk != nil {
			onChunk(chunk)
		}
	}
	return &genai.Result{ResponseID: "resp_1", Text: s.text}, nil
}

// newTestServer wires a server with in-memory dependencies and a stub LLM.
func newTestServer() *Server {
	st := store.NewInMemoryStore()
	states := conversation.NewStoreBasedStateManager(st)
	journeySvc := journey.NewService(st, nil, journey.Config{}, 0)
	llm := &stubLLM{text: evalPayload, chunks: []string{`{"score": 82`, `, "feedback": "solid reasoning"}`}}
	evalSvc := evaluation.NewService(states, llm, st, journeySvc)
	return NewServer(evalSvc, journeySvc, states, st)
}

func TestHealthEndpoint(t *testing.T) {
	handler := newTestServer().Handler()
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "health")
}

func TestCreateEvaluation(t *testing.T) {
	handler := newTestServer().Handler()
	rr := httptest.NewRecorder()

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/evaluations", testutil.SampleEvaluationRequest("user-1", "thread-1"))
	handler.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusCreated, rr.Code, "create evaluation")
	response := testutil.AssertJSONResponse(t, rr, "ok")
	result, ok := response["result"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected result object, got %v", response["result"])
	}
	if result["score"] != float64(82) {
		t.Errorf("score = %v, want 82", result["score"])
	}
	if result["thread_id"] == "" {
		t.Error("expected thread_id in evaluation")
	}
}

func TestCreateEvaluationInvalidJSON(t *testing.T) {
	handler := newTestServer().Handler()
	rr := httptest.NewRecorder()

	req := httptest.NewRequest(http.MethodPost, "/evaluations", strings.NewReader("{not json"))
	handler.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "invalid JSON")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestCreateEvaluationValidationFailure(t *testing.T) {
	handler := newTestServer().Handler()
	rr := httptest.NewRecorder()

	body := testutil.SampleEvaluationRequest("user-1", "thread-1")
	body.Responses = nil
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/evaluations", body)
	handler.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "empty responses")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestGetEvaluationRoundTrip(t *testing.T) {
	server := newTestServer()
	handler := server.Handler()

	createRR := httptest.NewRecorder()
	handler.ServeHTTP(createRR, testutil.CreateHTTPRequest(t, http.MethodPost, "/evaluations", testutil.SampleEvaluationRequest("user-1", "thread-1")))
	testutil.AssertHTTPStatus(t, http.StatusCreated, createRR.Code, "create for round trip")
	created := testutil.AssertJSONResponse(t, createRR, "ok")
	id := created["result"].(map[string]interface{})["id"].(string)

	getRR := httptest.NewRecorder()
	handler.ServeHTTP(getRR, httptest.NewRequest(http.MethodGet, "/evaluations/"+id, nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, getRR.Code, "get evaluation")
}

func TestGetEvaluationNotFound(t *testing.T) {
	handler := newTestServer().Handler()
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/evaluations/missing", nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "missing evaluation")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestListUserEvaluationsEmpty(t *testing.T) {
	handler := newTestServer().Handler()
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/user-1/evaluations", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "empty list")
	response := testutil.AssertJSONResponse(t, rr, "ok")
	results, ok := response["result"].([]interface{})
	if !ok {
		t.Fatalf("expected result array, got %v", response["result"])
	}
	if len(results) != 0 {
		t.Errorf("expected empty list, got %d entries", len(results))
	}
}

func TestStreamEvaluationFrames(t *testing.T) {
	handler := newTestServer().Handler()
	rr := httptest.NewRecorder()

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/evaluations/stream", testutil.SampleEvaluationRequest("user-1", "thread-1"))
	handler.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "stream evaluation")
	if ct := rr.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %s, want text/event-stream", ct)
	}

	var chunkFrames, completeFrames int
	scanner := bufio.NewScanner(rr.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		switch {
		case strings.Contains(line, `"type":"chunk"`):
			chunkFrames++
		case strings.Contains(line, `"type":"complete"`):
			completeFrames++
		case strings.Contains(line, `"type":"error"`):
			t.Errorf("unexpected error frame: %s", line)
		}
	}
	if chunkFrames != 2 {
		t.Errorf("chunk frames = %d, want 2", chunkFrames)
	}
	if completeFrames != 1 {
		t.Errorf("complete frames = %d, want 1", completeFrames)
	}
}

func TestStreamEvaluationValidationReturnsJSON(t *testing.T) {
	handler := newTestServer().Handler()
	rr := httptest.NewRecorder()

	body := testutil.SampleEvaluationRequest("user-1", "")
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/evaluations/stream", body)
	handler.ServeHTTP(rr, req)

	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "stream validation")
	testutil.AssertJSONResponse(t, rr, "error")
}

func TestRecordJourneyEventAndGetJourney(t *testing.T) {
	handler := newTestServer().Handler()

	recordRR := httptest.NewRecorder()
	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/users/user-1/journey/events", testutil.SampleJourneyEvent("", models.EventLogin))
	handler.ServeHTTP(recordRR, req)
	testutil.AssertHTTPStatus(t, http.StatusCreated, recordRR.Code, "record event")

	getRR := httptest.NewRecorder()
	handler.ServeHTTP(getRR, httptest.NewRequest(http.MethodGet, "/users/user-1/journey", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, getRR.Code, "get journey")
	response := testutil.AssertJSONResponse(t, getRR, "ok")
	result := response["result"].(map[string]interface{})
	if result["session_count"] != float64(1) {
		t.Errorf("session_count = %v, want 1", result["session_count"])
	}
}

func TestRecordJourneyEventUserMismatch(t *testing.T) {
	handler := newTestServer().Handler()
	rr := httptest.NewRecorder()

	req := testutil.CreateHTTPRequest(t, http.MethodPost, "/users/user-1/journey/events", testutil.SampleJourneyEvent("user-2", models.EventLogin))
	handler.ServeHTTP(rr, req)
	testutil.AssertHTTPStatus(t, http.StatusBadRequest, rr.Code, "user mismatch")
}

func TestGetJourneyNotFound(t *testing.T) {
	handler := newTestServer().Handler()
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/nobody/journey", nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, rr.Code, "missing journey")
}

func TestGetJourneyInsights(t *testing.T) {
	handler := newTestServer().Handler()

	recordRR := httptest.NewRecorder()
	handler.ServeHTTP(recordRR, testutil.CreateHTTPRequest(t, http.MethodPost, "/users/user-1/journey/events", testutil.SampleJourneyEvent("", models.EventLogin)))
	testutil.AssertHTTPStatus(t, http.StatusCreated, recordRR.Code, "record event")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/users/user-1/journey/insights", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, rr.Code, "get insights")
	response := testutil.AssertJSONResponse(t, rr, "ok")
	result := response["result"].(map[string]interface{})
	if result["insight"] == "" {
		t.Error("expected non-empty insight")
	}
}

func TestArchiveConversation(t *testing.T) {
	server := newTestServer()
	handler := server.Handler()

	// Create a conversation state through an evaluation.
	createRR := httptest.NewRecorder()
	handler.ServeHTTP(createRR, testutil.CreateHTTPRequest(t, http.MethodPost, "/evaluations", testutil.SampleEvaluationRequest("user-1", "thread-1")))
	created := testutil.AssertJSONResponse(t, createRR, "ok")
	threadID := created["result"].(map[string]interface{})["thread_id"].(string)

	archiveRR := httptest.NewRecorder()
	handler.ServeHTTP(archiveRR, httptest.NewRequest(http.MethodPost, "/conversations/"+threadID+"/archive", nil))
	testutil.AssertHTTPStatus(t, http.StatusOK, archiveRR.Code, "archive conversation")

	againRR := httptest.NewRecorder()
	handler.ServeHTTP(againRR, httptest.NewRequest(http.MethodPost, "/conversations/"+threadID+"/archive", nil))
	testutil.AssertHTTPStatus(t, http.StatusNotFound, againRR.Code, "archive twice")
}
