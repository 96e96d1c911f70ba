package handlers

import (
	"context"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vehicle-service-log/internal/auth"
	"github.com/ukydev/vehicle-service-log/internal/db"
	"github.com/ukydev/vehicle-service-log/internal/httpx"
	"github.com/ukydev/vehicle-service-log/internal/middleware"
	"github.com/ukydev/vehicle-service-log/internal/models"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService    *auth.Service
	userCollection db.UserCollection
	logger         log.FieldLogger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, userCollection db.UserCollection, logger log.FieldLogger) *AuthHandler {
	return &AuthHandler{
		authService:    authService,
		userCollection: userCollection,
		logger:         logger,
	}
}

// Login handles user login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var loginReq models.LoginRequest
	if !decodeJSON(w, r, &loginReq) {
		return
	}
	if loginReq.Username == "" || loginReq.Password == "" {
		httpx.Error(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.userCollection.FindUserByUsername(r.Context(), loginReq.Username)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			h.logger.WithError(err).Error("Failed to look up user")
		}
		httpx.Error(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if !user.IsActive {
		httpx.Error(w, http.StatusUnauthorized, "Account is deactivated")
		return
	}
	if !h.authService.CheckPassword(loginReq.Password, user.PasswordHash) {
		httpx.Error(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authService.GenerateToken(user)
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate token")
		httpx.Error(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	if err := h.userCollection.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		h.logger.WithError(err).WithField("username", user.Username).Warn("Failed to update last login")
	}

	httpx.JSON(w, http.StatusOK, models.LoginResponse{Token: token, User: *user})
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var registerReq models.RegisterRequest
	if !decodeJSON(w, r, &registerReq) {
		return
	}
	if registerReq.Role == "" {
		registerReq.Role = models.RoleViewer
	}
	if err := h.authService.ValidateRegistration(registerReq); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	// Self-registration yields a viewer; other roles need a user manager.
	if registerReq.Role != models.RoleViewer {
		claims, ok := middleware.GetUserFromContext(r.Context())
		if !ok || !claims.Role.HasPermission(models.ActionManageUsers) {
			httpx.Error(w, http.StatusForbidden, "Insufficient permissions to assign role")
			return
		}
	}

	if ok := h.ensureUnused(w, r, h.userCollection.FindUserByUsername, registerReq.Username, "Username already exists"); !ok {
		return
	}
	if ok := h.ensureUnused(w, r, h.userCollection.FindUserByEmail, registerReq.Email, "Email already exists"); !ok {
		return
	}

	passwordHash, err := h.authService.HashPassword(registerReq.Password)
	if err != nil {
		h.logger.WithError(err).Error("Failed to hash password")
		httpx.Error(w, http.StatusInternalServerError, "Failed to hash password")
		return
	}

	user, err := h.userCollection.InsertUser(r.Context(), models.User{
		Username:     registerReq.Username,
		Email:        registerReq.Email,
		PasswordHash: passwordHash,
		Role:         registerReq.Role,
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to create user")
		httpx.Error(w, http.StatusInternalServerError, "Failed to create user")
		return
	}

	token, err := h.authService.GenerateToken(&user)
	if err != nil {
		h.logger.WithError(err).Error("Failed to generate token")
		httpx.Error(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	h.logger.WithFields(log.Fields{"username": user.Username, "role": user.Role}).Info("User registered")
	httpx.JSON(w, http.StatusCreated, models.LoginResponse{Token: token, User: user})
}

func (h *AuthHandler) ensureUnused(w http.ResponseWriter, r *http.Request, find func(ctx context.Context, key string) (*models.User, error), key, conflict string) bool {
	_, err := find(r.Context(), key)
	switch {
	case err == nil:
		httpx.Error(w, http.StatusConflict, conflict)
		return false
	case errors.Is(err, db.ErrNotFound):
		return true
	default:
		h.logger.WithError(err).Error("Failed to look up user")
		httpx.Error(w, http.StatusInternalServerError, "Internal server error")
		return false
	}
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		httpx.Error(w, http.StatusUnauthorized, "User context not found")
		return
	}

	user, err := h.userCollection.FindUserByID(r.Context(), claims.UserID)
	if err != nil {
		storageError(w, h.logger, err, "User not found")
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
