package api

import (
	"log/slog"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/stocktaker/internal/model"
	"github.com/erazemk/stocktaker/internal/store"
)

// UsersHandler handles user management endpoints (admin only).
type UsersHandler struct {
	Store *store.Store
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

// List handles GET /api/users.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		writeError(w, err, "failed to list users")
		return
	}
	if users == nil {
		users = []model.User{}
	}
	jsonResponse(w, http.StatusOK, users)
}

// Approve handles PUT /api/users/{id}/approve.
func (h *UsersHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.Store.ApproveUser(r.Context(), id); err != nil {
		writeError(w, err, "failed to approve user")
		return
	}

	user, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to get user")
		return
	}
	slog.Info("user approved", "user", session(r).Email, "target_user", user.Email)
	jsonResponse(w, http.StatusOK, user)
}

// SetRole handles PUT /api/users/{id}/role.
func (h *UsersHandler) SetRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	sess := session(r)
	if id == sess.UserID && req.Role != model.RoleAdmin {
		jsonError(w, http.StatusBadRequest, "cannot demote yourself")
		return
	}

	if err := h.Store.UpdateUserRole(r.Context(), id, req.Role); err != nil {
		writeError(w, err, "failed to update user")
		return
	}

	user, err := h.Store.GetUser(r.Context(), id)
	if err != nil {
		writeError(w, err, "failed to get user")
		return
	}
	slog.Info("user role updated", "user", sess.Email, "target_user", user.Email, "new_role", req.Role)
	jsonResponse(w, http.StatusOK, user)
}

// ResetPassword handles PUT /api/users/{id}/password.
func (h *UsersHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
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

	if err := h.Store.UpdateUserPassword(r.Context(), id, string(hash)); err != nil {
		writeError(w, err, "failed to reset password")
		return
	}

	slog.Info("user password reset", "user", session(r).Email, "target_user", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "password reset"})
}

// Delete handles DELETE /api/users/{id}.
func (h *UsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	sess := session(r)
	if id == sess.UserID {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := h.Store.DeleteUser(r.Context(), id); err != nil {
		writeError(w, err, "failed to delete user")
		return
	}

	slog.Info("user deleted", "user", sess.Email, "deleted_user", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
