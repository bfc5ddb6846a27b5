package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthHandler handles login, registration and profile requests.
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
	logger         logrus.FieldLogger
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection, logger logrus.FieldLogger) *AuthHandler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthHandler{authService: authService, userCollection: userCollection, logger: logger}
}

// Login exchanges credentials for a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), req.Username)
	if err != nil || !h.authService.CheckPassword(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if !user.IsActive {
		http.Error(w, "Account is deactivated", http.StatusUnauthorized)
		return
	}

	resp, err := h.tokens(user)
	if err != nil {
		h.logger.WithError(err).Error("token generation failed")
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		h.logger.WithError(err).WithField("user_id", user.ID.Hex()).Warn("failed to update last login")
	}
	writeJSON(w, http.StatusOK, resp)
}

// Register creates an account. Public sign-ups are viewers; any other role
// needs a caller allowed to manage users.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Role == "" {
		req.Role = models.RoleViewer
	}
	for _, err := range []error{
		h.authService.ValidateUsername(req.Username),
		h.authService.ValidateEmail(req.Email),
		h.authService.ValidatePassword(req.Password),
	} {
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if !models.IsValidRole(req.Role) {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}
	if req.Role != models.RoleViewer && !h.canAssignRoles(r) {
		http.Error(w, "Only user managers can register accounts with this role", http.StatusForbidden)
		return
	}

	if taken, err := h.exists(r, h.userCollection.FindUserByUsername, req.Username); err != nil {
		writeError(w, h.logger, err)
		return
	} else if taken {
		http.Error(w, "Username already exists", http.StatusConflict)
		return
	}
	if taken, err := h.exists(r, h.userCollection.FindUserByEmail, req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	} else if taken {
		http.Error(w, "Email already exists", http.StatusConflict)
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}
	now := time.Now()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Role:         req.Role,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.userCollection.InsertUser(r.Context(), user); err != nil {
		h.logger.WithError(err).Error("failed to create user")
		http.Error(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	resp, err := h.tokens(&user)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	h.logger.WithFields(logrus.Fields{"user_id": user.ID.Hex(), "role": user.Role}).Info("user registered")
	writeJSON(w, http.StatusCreated, resp)
}

// GetProfile returns the caller's account.
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}
	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// UpdateProfile changes the caller's name or email.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}
	if req.Email != "" && req.Email != user.Email {
		if err := h.authService.ValidateEmail(req.Email); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		existing, err := h.userCollection.FindUserByEmail(r.Context(), req.Email)
		switch {
		case err == nil && existing.ID.Hex() != claims.UserID:
			http.Error(w, "Email already exists", http.StatusConflict)
			return
		case err != nil && !errors.Is(err, db.ErrNotFound):
			writeError(w, h.logger, err)
			return
		}
		user.Email = req.Email
	}

	if err := h.userCollection.UpdateUser(r.Context(), claims.UserID, *user); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Profile updated successfully"})
}

// ChangePassword replaces the caller's password after checking the current one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		http.Error(w, "Current password and new password are required", http.StatusBadRequest)
		return
	}
	if err := h.authService.ValidatePassword(req.NewPassword); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}
	if !h.authService.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		http.Error(w, "Current password is incorrect", http.StatusUnauthorized)
		return
	}
	hash, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}
	user.PasswordHash = hash
	if err := h.userCollection.UpdateUser(r.Context(), claims.UserID, *user); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// canAssignRoles checks the optional bearer token of a registration request.
// The route is public, so the auth middleware has not parsed it.
func (h *AuthHandler) canAssignRoles(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	if header == "" {
		return false
	}
	claims, err := h.authService.ValidateToken(header)
	if err != nil {
		return false
	}
	return claims.Can(models.ActionManageUsers)
}

func (h *AuthHandler) tokens(user *models.User) (models.LoginResponse, error) {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		return models.LoginResponse{}, err
	}
	refresh, err := h.authService.GenerateRefreshToken()
	if err != nil {
		return models.LoginResponse{}, err
	}
	return models.LoginResponse{Token: token, RefreshToken: refresh, User: *user}, nil
}

func (h *AuthHandler) exists(r *http.Request, find func(ctx context.Context, key string) (*models.User, error), key string) (bool, error) {
	_, err := find(r.Context(), key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, db.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
