package handlers

import (
	"net/http"

	"github.com/isdelr/tasktracker-be/internal/api/respond"
	"github.com/isdelr/tasktracker-be/internal/auth"
	"github.com/isdelr/tasktracker-be/internal/models"
	"github.com/isdelr/tasktracker-be/internal/services"
	"github.com/rs/zerolog/hlog"
)

// AuthHandler handles registration, login and the current-user lookup.
type AuthHandler struct {
	service services.UserServiceProvider
	issuer  *auth.TokenIssuer
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service services.UserServiceProvider, issuer *auth.TokenIssuer) *AuthHandler {
	return &AuthHandler{service: service, issuer: issuer}
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message string      `json:"message"`
	Token   string      `json:"token"`
	User    models.User `json:"user"`
}

// Register handles new user registration.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.Register(r.Context(), payload.Name, payload.Email, payload.Password)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("email", payload.Email).Msg("Failed to register user")
		writeServiceError(w, r, err, "Failed to register user")
		return
	}

	h.respondWithToken(w, r, http.StatusCreated, "User registered successfully", user)
}

// Login handles user authentication and JWT generation.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := decodeAndValidate(r, &payload); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.service.Authenticate(r.Context(), payload.Email, payload.Password)
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("email", payload.Email).Msg("Failed authentication attempt")
		writeServiceError(w, r, err, "Failed to authenticate user")
		return
	}

	h.respondWithToken(w, r, http.StatusOK, "Login successful", user)
}

// Me retrieves the currently authenticated user from the token.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Missing auth token")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, r, err, "Failed to load current user")
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, status int, message string, user models.User) {
	token, err := h.issuer.IssueToken(user.ID, user.Email)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("user_id", user.ID).Msg("Failed to generate JWT")
		respond.Error(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	respond.JSON(w, status, AuthResponse{
		Message: message,
		Token:   token,
		User:    user,
	})
}
