// Package testutil provides common test utilities and helpers for arena tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aifightclub/arena/internal/models"
)

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertJSONResponse decodes JSON response and validates the status field.
func AssertJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, expectedStatus string) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode JSON response: %v", err)
	}

	if status, ok := response["status"].(string); ok {
		if status != expectedStatus {
			t.Errorf("expected status '%s', got '%s'", expectedStatus, status)
		}
	} else {
		t.Error("response missing or invalid 'status' field")
	}

	return response
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	return req
}

// SampleEvaluationRequest builds a valid evaluation request body for tests.
func SampleEvaluationRequest(userID, threadID string) models.EvaluationRequest {
	return models.EvaluationRequest{
		Challenge: &models.Challenge{
			ID:            "challenge-1",
			UserID:        userID,
			Title:         "Explain the tradeoff",
			ChallengeType: "reasoning",
		},
		Responses: []models.ChallengeResponse{
			{Question: "Why?", Answer: "Because throughput and latency trade off."},
		},
		ThreadID: threadID,
	}
}

// SampleJourneyEvent builds a valid journey event body for tests.
func SampleJourneyEvent(userID string, eventType models.JourneyEventType) models.UserJourneyEvent {
	return models.UserJourneyEvent{
		UserID:    userID,
		EventType: eventType,
		EventData: models.JourneyEventData{Source: "web"},
	}
}
