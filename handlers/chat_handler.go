package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	middleware "github.com/quickgpt/quickgpt-server/middlewares"
	"github.com/quickgpt/quickgpt-server/models"
	"github.com/quickgpt/quickgpt-server/utils"
)

type ChatHandler struct {
	DB *sql.DB
}

func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDContextKey).(string)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var chat models.Chat
	err := h.DB.QueryRow(`
		INSERT INTO chats (user_id, user_name, name)
		SELECT uuid, name, 'New Chat' FROM users WHERE uuid = $1
		RETURNING id, user_id, user_name, name, created_at, updated_at
	`, userID).Scan(&chat.ID, &chat.UserID, &chat.UserName, &chat.Name, &chat.CreatedAt, &chat.UpdatedAt)

	if err == sql.ErrNoRows {
		utils.RespondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		utils.RespondInternal(w, err, "Failed to create chat")
		return
	}

	utils.RespondSuccess(w, http.StatusCreated, chat)
}

func (h *ChatHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDContextKey).(string)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	rows, err := h.DB.Query(`
		SELECT id, user_id, user_name, name, created_at, updated_at
		FROM chats
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		utils.RespondInternal(w, err, "Failed to fetch chats")
		return
	}
	defer rows.Close()

	chats := []models.Chat{}
	for rows.Next() {
		var chat models.Chat
		if err := rows.Scan(&chat.ID, &chat.UserID, &chat.UserName, &chat.Name, &chat.CreatedAt, &chat.UpdatedAt); err != nil {
			utils.RespondInternal(w, err, "Failed to fetch chats")
			return
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		utils.RespondInternal(w, err, "Failed to fetch chats")
		return
	}

	utils.RespondSuccess(w, http.StatusOK, chats)
}

func (h *ChatHandler) GetChatByID(w http.ResponseWriter, r *http.Request) {
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

	var exists bool
	if err := h.DB.QueryRow(`SELECT TRUE FROM chats WHERE id = $1 AND user_id = $2`, chatID, userID).Scan(&exists); err != nil {
		if err == sql.ErrNoRows {
			utils.RespondError(w, http.StatusNotFound, "Chat not found")
			return
		}
		utils.RespondInternal(w, err, "Failed to fetch chat")
		return
	}

	rows, err := h.DB.Query(`
		SELECT id, role, content, is_image, is_published, created_at
		FROM messages
		WHERE chat_id = $1
		ORDER BY position
	`, chatID)
	if err != nil {
		utils.RespondInternal(w, err, "Failed to fetch chat")
		return
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Role, &m.Content, &m.IsImage, &m.IsPublished, &m.Timestamp); err != nil {
			utils.RespondInternal(w, err, "Failed to fetch chat")
			return
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		utils.RespondInternal(w, err, "Failed to fetch chat")
		return
	}

	utils.RespondSuccess(w, http.StatusOK, messages)
}

func (h *ChatHandler) UpdateChatName(w http.ResponseWriter, r *http.Request) {
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
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		utils.RespondError(w, http.StatusBadRequest, "Chat name is required")
		return
	}

	res, err := h.DB.Exec(`
		UPDATE chats SET name = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3
	`, body.Name, chatID, userID)
	if err != nil {
		utils.RespondInternal(w, err, "Failed to update chat name")
		return
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		utils.RespondError(w, http.StatusNotFound, "Chat not found")
		return
	}

	utils.RespondString(w, http.StatusOK, "Chat name updated")
}

func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
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

	res, err := h.DB.Exec(`DELETE FROM chats WHERE id = $1 AND user_id = $2`, chatID, userID)
	if err != nil {
		utils.RespondInternal(w, err, "Failed to delete chat")
		return
	}

	if affected, _ := res.RowsAffected(); affected == 0 {
		utils.RespondError(w, http.StatusNotFound, "Chat not found")
		return
	}

	utils.RespondString(w, http.StatusOK, "Chat deleted")
}
