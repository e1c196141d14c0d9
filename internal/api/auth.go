package api

import (
	"errors"
	"log/slog"
	"net/http"
	"net/mail"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/stocktaker/internal/auth"
	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	Store       *store.Store
	JWTSecret   string
	TokenExpiry time.Duration
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// Login handles POST /api/auth/login. Unapproved users get a token too; the
// approval gate is applied per route.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		jsonError(w, http.StatusBadRequest, "email and password required")
		return
	}

	user, err := h.Store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, err, "internal error")
		return
	}
	if user == nil {
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		slog.Warn("login failed", "email", req.Email, "remote", r.RemoteAddr)
		jsonError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, user, h.TokenExpiry)
	if err != nil {
		writeError(w, err, "failed to generate token")
		return
	}

	slog.Info("user logged in", "user", user.Email, "role", user.Role, "approved", user.Approved)
	jsonResponse(w, http.StatusOK, loginResponse{Token: token, User: user})
}

// Signup handles POST /api/auth/signup. New accounts start unapproved with
// the user role.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := mail.ParseAddress(req.Email); err != nil {
		jsonError(w, http.StatusBadRequest, "valid email required")
		return
	}
	if req.Name == "" {
		jsonError(w, http.StatusBadRequest, "name required")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, err, "failed to hash password")
		return
	}

	user, err := h.Store.CreateUser(r.Context(), model.User{
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
	})
	if errors.Is(err, store.ErrConflict) {
		jsonError(w, http.StatusConflict, "email already registered")
		return
	}
	if err != nil {
		writeError(w, err, "failed to create user")
		return
	}

	slog.Info("user signed up", "user", user.Email)
	jsonResponse(w, http.StatusCreated, user)
}

// Logout handles POST /api/auth/logout by revoking the presented token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := session(r)

	expiresAt := sess.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(auth.TokenExpiry)
	}
	if err := h.Store.RevokeToken(r.Context(), sess.TokenID, expiresAt); err != nil {
		writeError(w, err, "failed to log out")
		return
	}

	slog.Info("user logged out", "user", sess.Email)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Store.GetUser(r.Context(), session(r).UserID)
	if err != nil {
		writeError(w, err, "failed to get user")
		return
	}
	if user == nil {
		jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	jsonResponse(w, http.StatusOK, user)
}

// ChangePassword handles PUT /api/auth/password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	sess := session(r)

	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		jsonError(w, http.StatusBadRequest, "current and new password required")
		return
	}
	if err := model.ValidatePassword(req.NewPassword); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.Store.GetUser(r.Context(), sess.UserID)
	if err != nil || user == nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		jsonError(w, http.StatusUnauthorized, "current password is incorrect")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, err, "failed to hash password")
		return
	}

	if err := h.Store.UpdateUserPassword(r.Context(), sess.UserID, string(hash)); err != nil {
		writeError(w, err, "failed to update password")
		return
	}

	slog.Info("user changed own password", "user", sess.Email)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password updated"})
}
