package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	middleware "github.com/quickgpt/quickgpt-server/middlewares"
	"github.com/quickgpt/quickgpt-server/models"
)

const testChatID = "b3b6f5a0-0000-0000-0000-000000000002"

type recordingTextGenerator struct {
	calls int
}

func (g *recordingTextGenerator) GenerateText(ctx context.Context, prompt string) (string, error) {
	g.calls++
	return "ok", nil
}

type recordingImageGenerator struct {
	calls int
}

func (g *recordingImageGenerator) TextToImage(ctx context.Context, prompt string) ([]byte, error) {
	g.calls++
	return []byte{0x89, 'P', 'N', 'G'}, nil
}

type fakeImageStore struct {
	uploads int
}

func (s *fakeImageStore) UploadPNG(ctx context.Context, data []byte) (string, error) {
	s.uploads++
	return "https://cdn.example.com/quickgpt/x.png", nil
}

// fakeMessageStore mirrors the store contract: lookups return sql.ErrNoRows on
// absence and the debit is conditional on the balance. drained simulates a
// concurrent request emptying the balance between the gate and the debit.
type fakeMessageStore struct {
	credits int
	chatID  string
	appends int
	drained bool
}

func (s *fakeMessageStore) UserCredits(ctx context.Context, userID string) (int, error) {
	return s.credits, nil
}

func (s *fakeMessageStore) ChatOwned(ctx context.Context, chatID, userID string) error {
	if chatID != s.chatID {
		return sql.ErrNoRows
	}
	return nil
}

func (s *fakeMessageStore) AppendExchange(ctx context.Context, chatID, prompt string, reply *models.Message) error {
	s.appends++
	return nil
}

func (s *fakeMessageStore) DebitCredits(ctx context.Context, userID string, cost int) (int, error) {
	if s.drained || s.credits < cost {
		return 0, sql.ErrNoRows
	}
	s.credits -= cost
	return s.credits, nil
}

func decodeMessageResponse(t *testing.T, rec *httptest.ResponseRecorder) (string, int) {
	t.Helper()
	var resp struct {
		Message string `json:"message"`
		Data    struct {
			UpdatedCredits int `json:"updated_credits"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.Message, resp.Data.UpdatedCredits
}

func authedRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	ctx := context.WithValue(req.Context(), middleware.UserIDContextKey, "b3b6f5a0-0000-0000-0000-000000000001")
	return req.WithContext(ctx)
}

func TestTextMessageUnauthorized(t *testing.T) {
	gen := &recordingTextGenerator{}
	h := &MessageHandler{Text: gen}

	req := httptest.NewRequest(http.MethodPost, "/api/message/text", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	h.TextMessage(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if gen.calls != 0 {
		t.Fatalf("generator must not be called without auth")
	}
}

func TestTextMessageMissingPrompt(t *testing.T) {
	gen := &recordingTextGenerator{}
	h := &MessageHandler{Text: gen}

	req := authedRequest(http.MethodPost, "/api/message/text", `{"chat_id":"b3b6f5a0-0000-0000-0000-000000000002"}`)
	rec := httptest.NewRecorder()

	h.TextMessage(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if gen.calls != 0 {
		t.Fatalf("generator must not be called without a prompt")
	}
}

func TestTextMessageInvalidChatID(t *testing.T) {
	gen := &recordingTextGenerator{}
	h := &MessageHandler{Text: gen}

	req := authedRequest(http.MethodPost, "/api/message/text", `{"chat_id":"not-a-uuid","prompt":"hello"}`)
	rec := httptest.NewRecorder()

	h.TextMessage(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if gen.calls != 0 {
		t.Fatalf("generator must not be called for an unknown chat")
	}
}

func TestImageMessageInsufficientCredits(t *testing.T) {
	store := &fakeMessageStore{credits: 1, chatID: testChatID}
	gen := &recordingImageGenerator{}
	uploads := &fakeImageStore{}
	h := &MessageHandler{Data: store, Image: gen, Store: uploads}

	req := authedRequest(http.MethodPost, "/api/message/image", `{"chat_id":"`+testChatID+`","prompt":"a red fox"}`)
	rec := httptest.NewRecorder()

	h.ImageMessage(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	msg, _ := decodeMessageResponse(t, rec)
	if msg != "You don't have enough credits" {
		t.Fatalf("unexpected message %q", msg)
	}
	if gen.calls != 0 || uploads.uploads != 0 {
		t.Fatalf("external calls must not run on insufficient balance")
	}
	if store.appends != 0 {
		t.Fatalf("no messages may be saved on insufficient balance")
	}
	if store.credits != 1 {
		t.Fatalf("balance must be untouched, got %d", store.credits)
	}
}

func TestTextMessageDebitsOneCredit(t *testing.T) {
	store := &fakeMessageStore{credits: 5, chatID: testChatID}
	gen := &recordingTextGenerator{}
	h := &MessageHandler{Data: store, Text: gen}

	req := authedRequest(http.MethodPost, "/api/message/text", `{"chat_id":"`+testChatID+`","prompt":"hello"}`)
	rec := httptest.NewRecorder()

	h.TextMessage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if gen.calls != 1 {
		t.Fatalf("expected 1 generation call, got %d", gen.calls)
	}
	if store.appends != 1 {
		t.Fatalf("expected exchange to be saved once, got %d", store.appends)
	}
	if store.credits != 4 {
		t.Fatalf("expected balance 4 after debit, got %d", store.credits)
	}
	if _, balance := decodeMessageResponse(t, rec); balance != 4 {
		t.Fatalf("unexpected updated_credits %d", balance)
	}
}

func TestTextMessageDrainedBalanceKeepsMessage(t *testing.T) {
	store := &fakeMessageStore{credits: 1, chatID: testChatID, drained: true}
	gen := &recordingTextGenerator{}
	h := &MessageHandler{Data: store, Text: gen}

	req := authedRequest(http.MethodPost, "/api/message/text", `{"chat_id":"`+testChatID+`","prompt":"hello"}`)
	rec := httptest.NewRecorder()

	h.TextMessage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if store.appends != 1 {
		t.Fatalf("the saved message must survive a skipped debit, appends %d", store.appends)
	}
	if store.credits != 1 {
		t.Fatalf("a skipped debit must not change the balance, got %d", store.credits)
	}
	if _, balance := decodeMessageResponse(t, rec); balance != 1 {
		t.Fatalf("unexpected updated_credits %d", balance)
	}
}
