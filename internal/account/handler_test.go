package account

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gameshelf/api/internal/auth"
	"github.com/gameshelf/api/internal/logging"
	"github.com/gameshelf/api/internal/upload"
	"github.com/gameshelf/api/internal/user"
)

const testMaxUploadBytes = 1024

// fakeStore is an in-memory user.Store for handler tests.
type fakeStore struct {
	users     map[uuid.UUID]*user.User
	wishlists map[uuid.UUID][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[uuid.UUID]*user.User),
		wishlists: make(map[uuid.UUID][]string),
	}
}

func (f *fakeStore) addUser() *user.User {
	u := &user.User{
		ID:        uuid.New(),
		Username:  "alice",
		Email:     "alice@example.com",
		Settings:  user.DefaultSettings(),
		CreatedAt: time.Now(),
	}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) UpdateSettings(ctx context.Context, userID uuid.UUID, s user.Settings) error {
	u, ok := f.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.Settings = s
	return nil
}

func (f *fakeStore) UpdateProfile(ctx context.Context, userID uuid.UUID, displayName, bio *string) (*user.User, error) {
	u, ok := f.users[userID]
	if !ok {
		return nil, user.ErrNotFound
	}
	if displayName != nil {
		u.DisplayName = *displayName
	}
	if bio != nil {
		u.Bio = *bio
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) UpdateProfilePicture(ctx context.Context, userID uuid.UUID, url string) error {
	u, ok := f.users[userID]
	if !ok {
		return user.ErrNotFound
	}
	u.ProfilePicURL = url
	return nil
}

func (f *fakeStore) AddToWishlist(ctx context.Context, userID uuid.UUID, gameID string) error {
	for _, existing := range f.wishlists[userID] {
		if existing == gameID {
			return nil
		}
	}
	f.wishlists[userID] = append(f.wishlists[userID], gameID)
	return nil
}

func (f *fakeStore) RemoveFromWishlist(ctx context.Context, userID uuid.UUID, gameID string) error {
	entries := f.wishlists[userID]
	for i, existing := range entries {
		if existing == gameID {
			f.wishlists[userID] = append(entries[:i], entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) ListWishlist(ctx context.Context, userID uuid.UUID) ([]string, error) {
	return f.wishlists[userID], nil
}

// fakeSessions satisfies the guard's session dependency; these tests
// authenticate with bearer tokens only.
type fakeSessions struct{}

func (f *fakeSessions) Create(ctx context.Context, identity auth.Identity) (string, error) {
	return "", auth.ErrSessionNotFound
}

func (f *fakeSessions) Get(ctx context.Context, sessionID string) (*auth.Identity, error) {
	return nil, auth.ErrSessionNotFound
}

func (f *fakeSessions) Delete(ctx context.Context, sessionID string) error { return nil }

func (f *fakeSessions) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error { return nil }

type handlerFixture struct {
	router *chi.Mux
	store  *fakeStore
	user   *user.User
	token  string
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	store := newFakeStore()
	u := store.addUser()

	uploads, err := upload.NewStore(t.TempDir(), testMaxUploadBytes)
	require.NoError(t, err)

	logger := logging.NewLogger(true)
	service := user.NewService(store, uploads, logger)
	handler := NewHandler(service, logger, testMaxUploadBytes)

	tokens, err := auth.NewPasetoService([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	token, err := tokens.Issue(u.ID, u.Username)
	require.NoError(t, err)

	mw := auth.NewMiddleware(tokens, &fakeSessions{})

	router := chi.NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(mw.RequireAuth)

		r.Get("/api/settings", handler.GetSettings)
		r.Put("/api/settings", handler.UpdateSettings)

		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", handler.Me)
			r.Put("/profile", handler.UpdateProfile)
			r.Post("/profile-picture", handler.UploadProfilePicture)
		})

		r.Route("/api/wishlist", func(r chi.Router) {
			r.Get("/", handler.GetWishlist)
			r.Post("/", handler.AddToWishlist)
			r.Delete("/{gameID}", handler.RemoveFromWishlist)
		})
	})

	return &handlerFixture{router: router, store: store, user: u, token: token}
}

// do issues an authenticated JSON request; a nil body sends no payload.
func (fx *handlerFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+fx.token)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func pngPayload(size int) []byte {
	payload := make([]byte, size)
	copy(payload, pngHeader)
	return payload
}

// multipartBody builds a multipart form with a single file field.
func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func (fx *handlerFixture) upload(t *testing.T, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, "image", filename, content)
	req := httptest.NewRequest(http.MethodPost, "/api/users/profile-picture", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+fx.token)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)
	return rec
}

func TestProtectedSurface_RequiresAuth(t *testing.T) {
	fx := newHandlerFixture(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/settings"},
		{http.MethodPut, "/api/settings"},
		{http.MethodGet, "/api/users/me"},
		{http.MethodPut, "/api/users/profile"},
		{http.MethodPost, "/api/users/profile-picture"},
		{http.MethodGet, "/api/wishlist"},
		{http.MethodPost, "/api/wishlist"},
		{http.MethodDelete, "/api/wishlist/game-1"},
	}

	for _, p := range paths {
		t.Run(p.method+" "+p.path, func(t *testing.T) {
			req := httptest.NewRequest(p.method, p.path, nil)
			rec := httptest.NewRecorder()
			fx.router.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "UNAUTHORIZED", decodeBody(t, rec)["code"])
		})
	}
}

func TestGetSettings_DefaultsAfterLogin(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.JSONEq(t,
		`{"notifications":true,"emailUpdates":true,"language":"English","privacy":"Public"}`,
		rec.Body.String(),
	)
}

func TestUpdateSettings_PartialPatch(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(t, http.MethodPut, "/api/settings", map[string]any{
		"notifications": false,
		"language":      "Spanish",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.JSONEq(t,
		`{"notifications":false,"emailUpdates":true,"language":"Spanish","privacy":"Public"}`,
		rec.Body.String(),
	)
}

func TestUpdateSettings_InvalidEnumRejected(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(t, http.MethodPut, "/api/settings", map[string]any{
		"notifications": false,
		"privacy":       "Invisible",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_SETTING", decodeBody(t, rec)["code"])

	// Nothing was written, the valid field included
	current := fx.do(t, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, current.Code)
	assert.JSONEq(t,
		`{"notifications":true,"emailUpdates":true,"language":"English","privacy":"Public"}`,
		current.Body.String(),
	)
}

func TestMe(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(t, http.MethodGet, "/api/users/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	userBody, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, fx.user.ID.String(), userBody["id"])
	assert.Equal(t, "alice", userBody["username"])
	assert.Equal(t, "alice@example.com", userBody["email"])
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestUpdateProfile(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(t, http.MethodPut, "/api/users/profile", map[string]any{
		"displayName": "  Alice W  ",
		"bio":         "Hello there.",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	userBody, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice W", userBody["displayName"])
	assert.Equal(t, "Hello there.", userBody["bio"])
}

func TestUpdateProfile_BioTooLong(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(t, http.MethodPut, "/api/users/profile", map[string]any{
		"bio": strings.Repeat("a", 501),
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody(t, rec)["code"])
}

func TestUploadProfilePicture(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.upload(t, "avatar.png", pngPayload(100))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	url, ok := body["profilePic"].(string)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(url, "/uploads/"))

	// The URL was persisted on the user
	me := fx.do(t, http.MethodGet, "/api/users/me", nil)
	require.Equal(t, http.StatusOK, me.Code)
	userBody := decodeBody(t, me)["user"].(map[string]any)
	assert.Equal(t, url, userBody["profilePic"])
}

func TestUploadProfilePicture_RejectsNonImage(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.upload(t, "notes.txt", []byte("plain text pretending to be an image"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_UPLOAD", decodeBody(t, rec)["code"])
}

func TestUploadProfilePicture_RejectsOversize(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.upload(t, "big.png", pngPayload(testMaxUploadBytes+1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_UPLOAD", decodeBody(t, rec)["code"])
}

func TestUploadProfilePicture_MissingFile(t *testing.T) {
	fx := newHandlerFixture(t)

	body, contentType := multipartBody(t, "wrong-field", "avatar.png", pngPayload(64))
	req := httptest.NewRequest(http.MethodPost, "/api/users/profile-picture", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+fx.token)
	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_UPLOAD", decodeBody(t, rec)["code"])
}

func TestWishlist_AddListRemove(t *testing.T) {
	fx := newHandlerFixture(t)

	empty := fx.do(t, http.MethodGet, "/api/wishlist", nil)
	require.Equal(t, http.StatusOK, empty.Code)
	assert.JSONEq(t, `{"wishlist":[]}`, empty.Body.String())

	require.Equal(t, http.StatusOK, fx.do(t, http.MethodPost, "/api/wishlist", map[string]string{"gameId": "game-1"}).Code)
	require.Equal(t, http.StatusOK, fx.do(t, http.MethodPost, "/api/wishlist", map[string]string{"gameId": "game-2"}).Code)
	require.Equal(t, http.StatusOK, fx.do(t, http.MethodPost, "/api/wishlist", map[string]string{"gameId": "game-1"}).Code,
		"duplicate add is a no-op")

	list := fx.do(t, http.MethodGet, "/api/wishlist", nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.JSONEq(t, `{"wishlist":["game-1","game-2"]}`, list.Body.String())

	require.Equal(t, http.StatusOK, fx.do(t, http.MethodDelete, "/api/wishlist/game-1", nil).Code)

	after := fx.do(t, http.MethodGet, "/api/wishlist", nil)
	assert.JSONEq(t, `{"wishlist":["game-2"]}`, after.Body.String())
}

func TestWishlist_RequiresGameID(t *testing.T) {
	fx := newHandlerFixture(t)

	rec := fx.do(t, http.MethodPost, "/api/wishlist", map[string]string{"gameId": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody(t, rec)["code"])
}
