package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	middleware "github.com/quickgpt/quickgpt-server/middlewares"
	"github.com/quickgpt/quickgpt-server/models"
	"github.com/quickgpt/quickgpt-server/utils"
)

var (
	errPublishNotAssistant = errors.New("Only AI-generated content can be published")
	errPublishNotImage     = errors.New("Only images can be published to community")
	errPublishAlready      = errors.New("Image is already published to community")
)

// validatePublish holds the publish preconditions in one place: only an
// unpublished AI-generated image may go to the community page.
func validatePublish(m models.Message) error {
	if m.Role != models.RoleAssistant {
		return errPublishNotAssistant
	}
	if !m.IsImage {
		return errPublishNotImage
	}
	if m.IsPublished {
		return errPublishAlready
	}
	return nil
}

type CommunityHandler struct {
	DB *sql.DB
}

// PublishMessage flips is_published on the message at the given index of an
// owned chat. Each violated precondition yields its own rejection reason.
func (h *CommunityHandler) PublishMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDContextKey).(string)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	chatID := r.PathValue("id")
	if _, err := uuid.Parse(chatID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "Chat not found")
		return
	}

	var body struct {
		MessageIndex int `json:"message_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var exists bool
	err := h.DB.QueryRow(`SELECT TRUE FROM chats WHERE id = $1 AND user_id = $2`, chatID, userID).Scan(&exists)
	if err == sql.ErrNoRows {
		utils.RespondError(w, http.StatusNotFound, "Chat not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, err, "Unable to verify chat")
		return
	}

	if body.MessageIndex < 0 {
		utils.RespondError(w, http.StatusNotFound, "Message not found")
		return
	}

	var msg models.Message
	err = h.DB.QueryRow(`
		SELECT id, role, content, is_image, is_published
		FROM messages
		WHERE chat_id = $1
		ORDER BY position
		LIMIT 1 OFFSET $2
	`, chatID, body.MessageIndex).Scan(&msg.ID, &msg.Role, &msg.Content, &msg.IsImage, &msg.IsPublished)
	if err == sql.ErrNoRows {
		utils.RespondError(w, http.StatusNotFound, "Message not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, err, "Unable to fetch message")
		return
	}

	if err := validatePublish(msg); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	_, err = h.DB.Exec(`UPDATE messages SET is_published = TRUE WHERE id = $1`, msg.ID)
	if err != nil {
		utils.RespondInternal(w, err, "Failed to publish message")
		return
	}

	utils.RespondString(w, http.StatusOK, "Image published to community!")
}

// GetPublishedImages is the public community gallery.
func (h *CommunityHandler) GetPublishedImages(w http.ResponseWriter, r *http.Request) {
	rows, err := h.DB.Query(`
		SELECT m.id, m.content, c.user_name, c.user_id, m.created_at
		FROM messages m
		JOIN chats c ON c.id = m.chat_id
		WHERE m.is_image = TRUE AND m.is_published = TRUE
		ORDER BY m.created_at DESC
	`)
	if err != nil {
		utils.RespondInternal(w, err, "Failed to fetch published images")
		return
	}
	defer rows.Close()

	images := []models.PublishedImage{}
	for rows.Next() {
		var img models.PublishedImage
		if err := rows.Scan(&img.ID, &img.ImageURL, &img.UserName, &img.UserID, &img.Timestamp); err != nil {
			utils.RespondInternal(w, err, "Failed to fetch published images")
			return
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		utils.RespondInternal(w, err, "Failed to fetch published images")
		return
	}

	utils.RespondSuccess(w, http.StatusOK, images)
}

// UnpublishImage removes an image from the community page, scoped to the
// owning user's chats.
func (h *CommunityHandler) UnpublishImage(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDContextKey).(string)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	imageID := r.PathValue("id")
	if _, err := uuid.Parse(imageID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "Image not found or you don't have permission to delete it")
		return
	}

	res, err := h.DB.Exec(`
		UPDATE messages
		SET is_published = FALSE
		WHERE id = $1 AND is_image = TRUE AND is_published = TRUE
		AND chat_id IN (SELECT id FROM chats WHERE user_id = $2)
	`, imageID, userID)
	if err != nil {
		utils.RespondInternal(w, err, "Failed to delete image from community")
		return
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		utils.RespondError(w, http.StatusNotFound, "Image not found or you don't have permission to delete it")
		return
	}

	utils.RespondString(w, http.StatusOK, "Image removed from community")
}
