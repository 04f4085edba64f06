package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusNotFound, "Chat not found")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	resp := decodeResponse(t, rec)
	if resp.Status != "error" {
		t.Fatalf("unexpected status field %q", resp.Status)
	}
	if resp.Message != "Chat not found" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
	if resp.Code != ErrCodeNotFound {
		t.Fatalf("unexpected code %q", resp.Code)
	}
	if resp.Timestamp.IsZero() {
		t.Fatalf("expected timestamp to be set")
	}
}

func TestRespondSuccessSingleData(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondSuccess(rec, http.StatusOK, map[string]int{"credits": 20})

	resp := decodeResponse(t, rec)
	if resp.Status != "success" {
		t.Fatalf("unexpected status field %q", resp.Status)
	}

	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected single data object, got %T", resp.Data)
	}
	if data["credits"] != float64(20) {
		t.Fatalf("unexpected credits %v", data["credits"])
	}
}

func TestRespondValidationError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondValidationError(rec, "Missing required fields", []string{"email", "password"})

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}

	resp := decodeResponse(t, rec)
	if resp.Code != ErrCodeValidation {
		t.Fatalf("unexpected code %q", resp.Code)
	}
	if resp.Message != "Missing required fields: email, password" {
		t.Fatalf("unexpected message %q", resp.Message)
	}
}
