package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/gameshelf/api/internal/httputil"
	"github.com/gameshelf/api/internal/logging"
	"github.com/gameshelf/api/internal/ratelimit"
	"github.com/gameshelf/api/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service      *Service
	sessions     SessionStore
	rateLimiter  *ratelimit.Limiter
	logger       *logging.Logger
	isProduction bool
	sessionTTL   time.Duration
}

func NewHandler(service *Service, sessions SessionStore, rateLimiter *ratelimit.Limiter, logger *logging.Logger, isProduction bool, sessionTTL time.Duration) *Handler {
	return &Handler{
		service:      service,
		sessions:     sessions,
		rateLimiter:  rateLimiter,
		logger:       logger,
		isProduction: isProduction,
		sessionTTL:   sessionTTL,
	}
}

// RegisterRequest is the registration request body
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RequestResetRequest is the password reset request body
type RequestResetRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest is the reset confirmation body; the token travels in
// the URL path.
type ResetPasswordRequest struct {
	Password string `json:"password"`
}

// RegisterResponse is the registration response
type RegisterResponse struct {
	Message string          `json:"message"`
	User    user.PublicView `json:"user"`
}

// LoginResponse is the login response
type LoginResponse struct {
	Message string          `json:"message"`
	Token   string          `json:"token"`
	User    user.PublicView `json:"user"`
}

// Register handles POST /api/auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	if h.limitByIP(w, r, "register") {
		return
	}

	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	newUser, err := h.service.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateCredential):
			logger.Warn("registration failed: duplicate credential")
			respondError(w, "username or email already taken", httputil.CodeDuplicateCredential, http.StatusBadRequest)
		case errors.Is(err, ErrUsernameRequired),
			errors.Is(err, ErrEmailRequired),
			errors.Is(err, ErrPasswordRequired),
			errors.Is(err, ErrPasswordTooShort),
			errors.Is(err, ErrPasswordTooLong),
			errors.Is(err, ErrInvalidEmailFormat):
			logger.Warn("registration failed: validation error", "error", err.Error())
			respondError(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
		default:
			logger.Error("registration failed: internal error", "error", err.Error())
			respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, RegisterResponse{
		Message: "User registered successfully!",
		User:    newUser.Public(),
	}, http.StatusCreated)
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	if h.limitByIP(w, r, "login") {
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			logger.Warn("login failed: invalid credentials")
			respondError(w, "invalid credentials", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
			return
		}
		logger.Error("login failed: internal error", "error", err.Error())
		respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("user logged in", "user_id", result.User.ID)

	// Browsers additionally get a server-side session so the token never has
	// to live in page-accessible storage
	if ShouldUseCookies(r) {
		sessionID, err := h.sessions.Create(r.Context(), Identity{
			UserID:   result.User.ID,
			Username: result.User.Username,
		})
		if err != nil {
			logger.Error("failed to create session", "error", err.Error())
		} else {
			SetSessionCookie(w, sessionID, h.isProduction, h.sessionTTL)
		}
	}

	respondJSON(w, LoginResponse{
		Message: "Login successful",
		Token:   result.Token,
		User:    result.User.Public(),
	}, http.StatusOK)
}

// Logout handles POST /api/auth/logout. Bearer-token clients simply discard
// their token; cookie-mode clients get their server-side session deleted.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	if sessionID, err := GetSessionFromCookie(r); err == nil && sessionID != "" {
		if err := h.sessions.Delete(r.Context(), sessionID); err != nil {
			logger.Warn("failed to delete session", "error", err.Error())
		}
	}

	ClearSessionCookie(w, h.isProduction)

	respondJSON(w, map[string]string{"message": "logged out"}, http.StatusOK)
}

// RequestReset handles POST /api/auth/request-reset. The response is the same
// whether or not the email is registered.
func (h *Handler) RequestReset(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	var req RequestResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reset request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if h.limitByIP(w, r, "reset") {
		return
	}

	onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), req.Email)
	if err != nil {
		logger.Error("failed to check email cooldown", "error", err.Error())
		// A broken limiter must not block legitimate requests
	} else if onCooldown {
		logger.Warn("reset request on cooldown")
		respondError(w, "please wait before requesting another reset", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return
	}

	if err := h.rateLimiter.SetEmailCooldown(r.Context(), req.Email); err != nil {
		logger.Error("failed to set email cooldown", "error", err.Error())
	}

	_ = h.service.RequestPasswordReset(r.Context(), req.Email)

	respondJSON(w, map[string]string{
		"message": "If an account exists with that email, a password reset link has been sent.",
	}, http.StatusOK)
}

// ResetPassword handles POST /api/auth/reset/{token}
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	token := strings.TrimSpace(chi.URLParam(r, "token"))
	if token == "" {
		respondError(w, "reset token required", httputil.CodeValidationError, http.StatusBadRequest)
		return
	}

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		respondError(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	err := h.service.ResetPassword(r.Context(), token, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidResetToken):
			logger.Warn("password reset failed: invalid or expired token")
			respondError(w, "invalid or expired reset token", httputil.CodeInvalidResetToken, http.StatusBadRequest)
		case errors.Is(err, ErrPasswordRequired), errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong):
			logger.Warn("password reset failed: validation error", "error", err.Error())
			respondError(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
		default:
			logger.Error("password reset failed: internal error", "error", err.Error())
			respondError(w, "failed to reset password", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, map[string]string{
		"message": "Password reset successfully. You can now login with your new password.",
	}, http.StatusOK)
}

// limitByIP applies the per-IP fixed-window limit for the given purpose.
// Returns true when the request was rejected and a response already written.
func (h *Handler) limitByIP(w http.ResponseWriter, r *http.Request, purpose string) bool {
	logger := logging.FromContext(r.Context())
	ip := clientIP(r)

	exceeded, err := h.rateLimiter.CheckIPRateLimit(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
		return false
	}
	if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.RecordIPRequest(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}

	return false
}

// clientIP extracts the client IP, honoring proxy headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

func respondJSON(w http.ResponseWriter, data any, statusCode int) {
	httputil.RespondJSON(w, data, statusCode)
}

func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}
