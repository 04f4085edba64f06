package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	middleware "github.com/quickgpt/quickgpt-server/middlewares"
	"github.com/quickgpt/quickgpt-server/models"
	"github.com/quickgpt/quickgpt-server/utils"
)

const (
	accessTokenTTL  = 24 * time.Hour * 3
	refreshTokenTTL = 24 * time.Hour * 30
)

type UserHandler struct {
	DB          *sql.DB
	RedisClient *redis.Client
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var form models.RegisterForm

	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		log.Printf("Error decoding request body: %v", err)
		utils.RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if form.Name == "" || form.Email == "" || form.Password == "" {
		utils.RespondValidationError(w, "Missing required fields", []string{"name", "email", "password"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(form.Email))

	passwordHash, err := utils.HashPassword(form.Password)
	if err != nil {
		log.Printf("Error while hashing password: %v", err)
		utils.RespondInternal(w, err, "Could not process password")
		return
	}

	var user models.User
	err = h.DB.QueryRow(`
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING uuid, credits
	`, form.Name, email, passwordHash).Scan(&user.UUID, &user.Credits)

	if err != nil {
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			log.Printf("Unique violation: %v", err)
			utils.RespondError(w, http.StatusConflict, "Email already in use")
			return
		}
		log.Printf("Unexpected DB error: %v", err)
		utils.RespondInternal(w, err, "Unable to create account")
		return
	}

	if err := h.issueSession(w, r, user.UUID.String()); err != nil {
		utils.RespondInternal(w, err, "Could not create session")
		return
	}

	utils.RespondSuccess(w, http.StatusCreated, map[string]interface{}{
		"uuid":    user.UUID,
		"name":    form.Name,
		"email":   email,
		"credits": user.Credits,
	})
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginForm models.LoginForm
	if err := json.NewDecoder(r.Body).Decode(&loginForm); err != nil {
		log.Printf("Error decoding login request body: %v", err)
		utils.RespondError(w, http.StatusBadRequest, "Invalid login payload")
		return
	}

	if loginForm.Email == "" || loginForm.Password == "" {
		utils.RespondValidationError(w, "email and password are required", []string{"email", "password"})
		return
	}

	email := strings.ToLower(strings.TrimSpace(loginForm.Email))

	var storedUser models.User
	err := h.DB.QueryRow(`
		SELECT uuid, name, credits, password_hash FROM users WHERE email = $1
	`, email).Scan(&storedUser.UUID, &storedUser.Name, &storedUser.Credits, &storedUser.PasswordHash)

	if err == sql.ErrNoRows {
		log.Printf("Login attempt failed: User not found for email: %s", email)
		utils.RespondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		utils.RespondInternal(w, err, "Unable to process login")
		return
	}

	if !utils.CheckPasswordHash(loginForm.Password, storedUser.PasswordHash) {
		log.Printf("Login attempt failed: Password mismatch for user %s", storedUser.UUID)
		utils.RespondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	if err := h.issueSession(w, r, storedUser.UUID.String()); err != nil {
		utils.RespondInternal(w, err, "Could not create session")
		return
	}

	utils.RespondSuccess(w, http.StatusOK, map[string]interface{}{
		"uuid":    storedUser.UUID,
		"name":    storedUser.Name,
		"email":   email,
		"credits": storedUser.Credits,
	})
}

func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	utils.ClearAuthCookie(w)
	utils.RespondSuccess(w, http.StatusOK)
}

// GetUserInfo returns the persisted profile including the authoritative credit
// balance. The client refetches this after every credit-affecting call instead
// of trusting its cached copy.
func (h *UserHandler) GetUserInfo(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDContextKey).(string)
	if !ok {
		log.Printf("Error: User ID not found in context")
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	row := h.DB.QueryRow(`SELECT uuid, name, email, credits, created_at FROM users WHERE uuid = $1`, userID)

	var user models.UserProfile
	err := row.Scan(&user.UUID, &user.Name, &user.Email, &user.Credits, &user.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			log.Printf("User not found for ID: %s", userID)
			utils.RespondError(w, http.StatusNotFound, "User not found")
		} else {
			utils.RespondInternal(w, err, "Internal server error")
		}
		return
	}

	utils.RespondSuccess(w, http.StatusOK, user)
}

func (h *UserHandler) RefreshTokenVerify(w http.ResponseWriter, r *http.Request) {
	refreshCookie, err := r.Cookie("refresh_token")
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized: Authentication token required")
		return
	}

	refreshJWTKey := os.Getenv("ACCESS_JWT_REFRESH_TOKEN_SECRET")

	claims, err := utils.ParseToken(refreshCookie.Value, []byte(refreshJWTKey))
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "Unauthorized: Invalid token")
		return
	}

	if err := h.issueSession(w, r, claims.UserID); err != nil {
		utils.RespondInternal(w, err, "Could not refresh session")
		return
	}

	utils.RespondSuccess(w, http.StatusOK)
}

// issueSession creates the access/refresh token pair, pins the refresh token
// in Redis and sets both cookies.
func (h *UserHandler) issueSession(w http.ResponseWriter, r *http.Request, userID string) error {
	accessJWTKey := os.Getenv("ACCESS_JWT_ACCESS_TOKEN_SECRET")
	refreshJWTKey := os.Getenv("ACCESS_JWT_REFRESH_TOKEN_SECRET")

	accessToken, err := utils.CreateToken(userID, accessTokenTTL, []byte(accessJWTKey))
	if err != nil {
		log.Printf("Error creating access token: %v", err)
		return err
	}

	refreshToken, err := utils.CreateToken(userID, refreshTokenTTL, []byte(refreshJWTKey))
	if err != nil {
		log.Printf("Error creating refresh token: %v", err)
		return err
	}

	redisOpCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	key := fmt.Sprintf("refresh:%s", userID)
	if err := h.RedisClient.Set(redisOpCtx, key, refreshToken, refreshTokenTTL).Err(); err != nil {
		log.Printf("Error saving refresh token to Redis: %v", err)
		return err
	}

	utils.SetAuthCookie(w, accessToken, refreshToken)
	return nil
}
