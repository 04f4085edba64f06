package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	middleware "github.com/quickgpt/quickgpt-server/middlewares"
	"github.com/quickgpt/quickgpt-server/models"
	"github.com/quickgpt/quickgpt-server/utils"
)

const (
	textCredits  = 1
	imageCredits = 2

	generationTimeout = 30 * time.Second
)

// TextGenerator produces a completion for a prompt.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// ImageGenerator produces raw PNG bytes for a prompt.
type ImageGenerator interface {
	TextToImage(ctx context.Context, prompt string) ([]byte, error)
}

// ImageStore uploads generated images and returns their public URL.
type ImageStore interface {
	UploadPNG(ctx context.Context, data []byte) (string, error)
}

// MessageStore is the persistence behind the metered gateway. Lookups return
// sql.ErrNoRows on absence; DebitCredits returns sql.ErrNoRows when the
// balance is below cost and must leave it untouched.
type MessageStore interface {
	UserCredits(ctx context.Context, userID string) (int, error)
	ChatOwned(ctx context.Context, chatID, userID string) error
	AppendExchange(ctx context.Context, chatID, prompt string, reply *models.Message) error
	DebitCredits(ctx context.Context, userID string, cost int) (int, error)
}

// MessageHandler is the metered action gateway. Every request checks the
// persisted balance, runs the external generation call, persists the exchange
// and only then debits the cost. A failed generation never costs credits.
type MessageHandler struct {
	Data  MessageStore
	Text  TextGenerator
	Image ImageGenerator
	Store ImageStore
}

type messageInput struct {
	ChatID      string `json:"chat_id"`
	Prompt      string `json:"prompt"`
	IsPublished bool   `json:"is_published"`
}

func (h *MessageHandler) TextMessage(w http.ResponseWriter, r *http.Request) {
	userID, input, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	if !h.gateCredits(w, r, userID, input.ChatID, textCredits) {
		return
	}

	genCtx, cancel := context.WithTimeout(r.Context(), generationTimeout)
	defer cancel()

	reply, err := h.Text.GenerateText(genCtx, input.Prompt)
	if err != nil {
		log.Printf("Text generation failed for user %s: %v", userID, err)
		utils.RespondError(w, http.StatusBadGateway, "Text generation failed, please try again")
		return
	}

	h.persistAndDebit(w, r, userID, input.ChatID, input.Prompt, models.Message{
		Role:    models.RoleAssistant,
		Content: reply,
	}, textCredits)
}

func (h *MessageHandler) ImageMessage(w http.ResponseWriter, r *http.Request) {
	userID, input, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	if !h.gateCredits(w, r, userID, input.ChatID, imageCredits) {
		return
	}

	genCtx, cancel := context.WithTimeout(r.Context(), generationTimeout)
	defer cancel()

	imageData, err := h.Image.TextToImage(genCtx, input.Prompt)
	if err != nil {
		log.Printf("Image generation failed for user %s: %v", userID, err)
		utils.RespondError(w, http.StatusBadGateway, "Image generation failed, please try again")
		return
	}

	imageURL, err := h.Store.UploadPNG(genCtx, imageData)
	if err != nil {
		log.Printf("Image upload failed for user %s: %v", userID, err)
		utils.RespondError(w, http.StatusBadGateway, "Image upload failed, please try again")
		return
	}

	h.persistAndDebit(w, r, userID, input.ChatID, input.Prompt, models.Message{
		Role:        models.RoleAssistant,
		Content:     imageURL,
		IsImage:     true,
		IsPublished: input.IsPublished,
	}, imageCredits)
}

// parseRequest authenticates and validates the common metered-action input.
func (h *MessageHandler) parseRequest(w http.ResponseWriter, r *http.Request) (string, messageInput, bool) {
	var input messageInput

	userID, ok := r.Context().Value(middleware.UserIDContextKey).(string)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return "", input, false
	}

	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return "", input, false
	}

	if input.Prompt == "" {
		utils.RespondError(w, http.StatusBadRequest, "Prompt is required")
		return "", input, false
	}

	if _, err := uuid.Parse(input.ChatID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "Chat not found")
		return "", input, false
	}

	return userID, input, true
}

// gateCredits loads the persisted balance and verifies chat ownership before
// any external call is made. Insufficient balance means no call and no debit.
func (h *MessageHandler) gateCredits(w http.ResponseWriter, r *http.Request, userID, chatID string, cost int) bool {
	credits, err := h.Data.UserCredits(r.Context(), userID)
	if err == sql.ErrNoRows {
		utils.RespondError(w, http.StatusNotFound, "User not found")
		return false
	}
	if err != nil {
		utils.RespondInternal(w, err, "Unable to check credits")
		return false
	}

	if credits < cost {
		utils.RespondError(w, http.StatusBadRequest, "You don't have enough credits")
		return false
	}

	err = h.Data.ChatOwned(r.Context(), chatID, userID)
	if err == sql.ErrNoRows {
		utils.RespondError(w, http.StatusNotFound, "Chat not found")
		return false
	}
	if err != nil {
		utils.RespondInternal(w, err, "Unable to verify chat")
		return false
	}

	return true
}

// persistAndDebit appends the prompt/reply pair in one transaction, then
// debits the cost. The debit is conditional on the balance so a concurrent
// drain can never push credits negative; generation+persist+debit is not a
// single transaction, matching the append-then-charge ordering guarantee.
func (h *MessageHandler) persistAndDebit(w http.ResponseWriter, r *http.Request, userID, chatID, prompt string, reply models.Message, cost int) {
	if err := h.Data.AppendExchange(r.Context(), chatID, prompt, &reply); err != nil {
		utils.RespondInternal(w, err, "Failed to save messages")
		return
	}

	balance, err := h.Data.DebitCredits(r.Context(), userID, cost)
	if err == sql.ErrNoRows {
		// A concurrent request drained the balance between the gate and the
		// debit; the message stays saved and uncharged.
		log.Printf("Debit skipped for user %s: balance below %d", userID, cost)
		balance, err = h.Data.UserCredits(r.Context(), userID)
		if err != nil {
			utils.RespondInternal(w, err, "Unable to read balance")
			return
		}
	} else if err != nil {
		utils.RespondInternal(w, err, "Unable to update balance")
		return
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{
		"reply":           reply,
		"updated_credits": balance,
	})
}
