package account

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gameshelf/api/internal/auth"
	"github.com/gameshelf/api/internal/httputil"
	"github.com/gameshelf/api/internal/logging"
	"github.com/gameshelf/api/internal/upload"
	"github.com/gameshelf/api/internal/user"
)

// Handler contains HTTP handlers for the authenticated user surface:
// profile, settings, profile picture, and wishlist.
type Handler struct {
	service        *user.Service
	logger         *logging.Logger
	maxUploadBytes int64
}

func NewHandler(service *user.Service, logger *logging.Logger, maxUploadBytes int64) *Handler {
	return &Handler{
		service:        service,
		logger:         logger,
		maxUploadBytes: maxUploadBytes,
	}
}

// ProfileRequest is the partial profile update body.
type ProfileRequest struct {
	DisplayName *string `json:"displayName"`
	Bio         *string `json:"bio"`
}

// Me handles GET /api/users/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	u, err := h.service.Get(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to load user")
		return
	}

	httputil.RespondJSON(w, map[string]any{"user": u.Public()}, http.StatusOK)
}

// GetSettings handles GET /api/settings
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	settings, err := h.service.GetSettings(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to load settings")
		return
	}

	httputil.RespondJSON(w, settings, http.StatusOK)
}

// UpdateSettings handles PUT /api/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	var patch user.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		logger.Warn("invalid settings request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	settings, err := h.service.UpdateSettings(r.Context(), userID, patch)
	if err != nil {
		if errors.Is(err, user.ErrInvalidSetting) {
			logger.Warn("settings update rejected: invalid value")
			httputil.RespondErrorWithCode(w, "invalid setting value", httputil.CodeInvalidSetting, http.StatusBadRequest)
			return
		}
		h.respondServiceError(w, r, err, "failed to update settings")
		return
	}

	httputil.RespondJSON(w, settings, http.StatusOK)
}

// UpdateProfile handles PUT /api/users/profile
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid profile request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), userID, req.DisplayName, req.Bio)
	if err != nil {
		if errors.Is(err, user.ErrBioTooLong) {
			logger.Warn("profile update rejected: bio too long")
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
			return
		}
		h.respondServiceError(w, r, err, "failed to update profile")
		return
	}

	httputil.RespondJSON(w, map[string]any{"user": updated.Public()}, http.StatusOK)
}

// UploadProfilePicture handles POST /api/users/profile-picture (multipart,
// field name "image").
func (h *Handler) UploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	// Caps the whole request body; the store enforces the per-file limit
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+4096)

	file, header, err := r.FormFile("image")
	if err != nil {
		logger.Warn("profile picture upload without usable file", "error", err.Error())
		httputil.RespondErrorWithCode(w, "image file required", httputil.CodeInvalidUpload, http.StatusBadRequest)
		return
	}
	defer file.Close()

	url, err := h.service.SetProfilePicture(r.Context(), userID, file, header.Filename)
	if err != nil {
		switch {
		case errors.Is(err, upload.ErrNotImage):
			logger.Warn("profile picture upload rejected: not an image")
			httputil.RespondErrorWithCode(w, "only image files are allowed", httputil.CodeInvalidUpload, http.StatusBadRequest)
		case errors.Is(err, upload.ErrTooLarge):
			logger.Warn("profile picture upload rejected: too large")
			httputil.RespondErrorWithCode(w, "file exceeds the size limit", httputil.CodeInvalidUpload, http.StatusBadRequest)
		default:
			h.respondServiceError(w, r, err, "failed to store profile picture")
		}
		return
	}

	httputil.RespondJSON(w, map[string]string{"profilePic": url}, http.StatusOK)
}

// GetWishlist handles GET /api/wishlist
func (h *Handler) GetWishlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	gameIDs, err := h.service.Wishlist(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, r, err, "failed to load wishlist")
		return
	}

	if gameIDs == nil {
		gameIDs = []string{}
	}
	httputil.RespondJSON(w, map[string]any{"wishlist": gameIDs}, http.StatusOK)
}

// AddWishlistRequest is the wishlist add body.
type AddWishlistRequest struct {
	GameID string `json:"gameId"`
}

// AddToWishlist handles POST /api/wishlist
func (h *Handler) AddToWishlist(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	var req AddWishlistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid wishlist request body", "error", err.Error())
		httputil.RespondErrorWithCode(w, "invalid request body", httputil.CodeInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if err := h.service.AddToWishlist(r.Context(), userID, req.GameID); err != nil {
		if errors.Is(err, user.ErrGameIDRequired) {
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
			return
		}
		h.respondServiceError(w, r, err, "failed to update wishlist")
		return
	}

	httputil.RespondJSON(w, map[string]string{"message": "added to wishlist"}, http.StatusOK)
}

// RemoveFromWishlist handles DELETE /api/wishlist/{gameID}
func (h *Handler) RemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeUnauthorized, http.StatusUnauthorized)
		return
	}

	gameID := chi.URLParam(r, "gameID")
	if err := h.service.RemoveFromWishlist(r.Context(), userID, gameID); err != nil {
		if errors.Is(err, user.ErrGameIDRequired) {
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationError, http.StatusBadRequest)
			return
		}
		h.respondServiceError(w, r, err, "failed to update wishlist")
		return
	}

	httputil.RespondJSON(w, map[string]string{"message": "removed from wishlist"}, http.StatusOK)
}

// respondServiceError maps unexpected service failures to a generic 500 and
// a NotFound to 404, keeping internal detail out of the response.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	logger := logging.FromContext(r.Context())

	if errors.Is(err, user.ErrNotFound) {
		logger.Warn("user not found for authenticated request")
		httputil.RespondErrorWithCode(w, "user not found", httputil.CodeNotFound, http.StatusNotFound)
		return
	}

	logger.Error(message, "error", err.Error())
	httputil.RespondErrorWithCode(w, message, httputil.CodeInternalError, http.StatusInternalServerError)
}
