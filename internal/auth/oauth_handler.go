package auth

import (
	"net/http"
	"time"

	"github.com/gameshelf/api/internal/httputil"
	"github.com/gameshelf/api/internal/logging"
)

const oauthStateCookieName = "oauth_state"

// OAuthHandler drives the Google login flow: redirect out with a random
// state, exchange the callback code, upsert the account, establish a session,
// and send the browser back to the frontend.
type OAuthHandler struct {
	provider     *GoogleProvider
	service      *Service
	sessions     SessionStore
	logger       *logging.Logger
	frontendURL  string
	isProduction bool
	sessionTTL   time.Duration
}

func NewOAuthHandler(provider *GoogleProvider, service *Service, sessions SessionStore, logger *logging.Logger, frontendURL string, isProduction bool, sessionTTL time.Duration) *OAuthHandler {
	return &OAuthHandler{
		provider:     provider,
		service:      service,
		sessions:     sessions,
		logger:       logger,
		frontendURL:  frontendURL,
		isProduction: isProduction,
		sessionTTL:   sessionTTL,
	}
}

// GoogleLogin handles GET /api/auth/google/login
func (h *OAuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateRandomToken()
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to generate OAuth state", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to start login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	// The state round-trips through a short-lived cookie; the callback
	// rejects any response whose state does not match it
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback handles GET /api/auth/google/callback
func (h *OAuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != r.URL.Query().Get("state") {
		logger.Warn("OAuth callback with bad state")
		httputil.RespondErrorWithCode(w, "invalid OAuth state", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	// State is single-use
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.isProduction,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		logger.Warn("OAuth callback without code")
		httputil.RespondErrorWithCode(w, "authorization was not granted", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	googleUser, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		logger.Error("OAuth exchange failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to complete login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	result, err := h.service.LoginExternal(r.Context(), googleUser.ID, googleUser.Email, googleUser.Name)
	if err != nil {
		logger.Error("external login failed", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to complete login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	sessionID, err := h.sessions.Create(r.Context(), Identity{
		UserID:   result.User.ID,
		Username: result.User.Username,
	})
	if err != nil {
		logger.Error("failed to create session", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to complete login", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	SetSessionCookie(w, sessionID, h.isProduction, h.sessionTTL)

	logger.Info("user logged in via Google", "user_id", result.User.ID)

	http.Redirect(w, r, h.frontendURL, http.StatusTemporaryRedirect)
}
