package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"identity-service/backend/internal/db/dbtest"
	"identity-service/backend/internal/identity/service"
	"identity-service/backend/internal/security"
	"identity-service/backend/internal/store"
)

func newMux(auth AuthAPI) *http.ServeMux {
	mux := http.NewServeMux()
	NewHTTPHandler(auth, nil).Routes(mux)
	return mux
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHTTPHandler_Register(t *testing.T) {
	fake := &fakeAuth{}
	rec := do(t, newMux(fake), http.MethodPost, BasePath+"/register",
		`{"name":"Alice","phone":"+15551234567","email":"a@x.com","password":"secretpw","origin":1,"device":10}`, nil)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	res := decodeBody[RegisterResponse](t, rec)
	assert.Equal(t, "101910251", res.PublicID)
	assert.Equal(t, "User created successfully.", res.Message)
	assert.Equal(t, 10, int(fake.register.Device))
}

func TestHTTPHandler_BadBody(t *testing.T) {
	rec := do(t, newMux(&fakeAuth{}), http.MethodPost, BasePath+"/login", `{"email":`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decodeBody[ErrorResponse](t, rec).Detail)
}

func TestHTTPHandler_MethodNotAllowed(t *testing.T) {
	rec := do(t, newMux(&fakeAuth{}), http.MethodGet, BasePath+"/register", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHTTPHandler_APIKeyHeader(t *testing.T) {
	fake := &fakeAuth{}
	mux := newMux(fake)

	rec := do(t, mux, http.MethodGet, BasePath+"/renew", "", map[string]string{APIKeyHTTPHeader: "k-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "k-1", fake.apiKey)
	assert.Equal(t, "tok2", decodeBody[TokenResponse](t, rec).Token)

	rec = do(t, mux, http.MethodGet, BasePath+"/me", "", map[string]string{APIKeyHTTPHeader: "k-2"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "k-2", fake.apiKey)
	assert.Len(t, decodeBody[ProfileResponse](t, rec).Identities, 1)
}

func TestHTTPHandler_ErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		detail string
	}{
		{service.ErrInvalidDevice, http.StatusBadRequest, service.ErrInvalidDevice.Error()},
		{service.ErrPhoneAlreadyRegistered, http.StatusConflict, "phone already registered"},
		{service.ErrMissingAPIKey, http.StatusUnauthorized, "api key is required"},
		{service.ErrUnknownAPIKey, http.StatusForbidden, "api key not recognized"},
		{security.ErrAllocationExhausted, http.StatusInternalServerError, "internal error"},
		{errors.New("disk full"), http.StatusInternalServerError, "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.detail, func(t *testing.T) {
			rec := do(t, newMux(&fakeAuth{err: tt.err}), http.MethodPost, BasePath+"/social", `{}`, nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.detail, decodeBody[ErrorResponse](t, rec).Detail)
		})
	}
}

func TestHTTPHandler_EndToEnd(t *testing.T) {
	svc := service.NewAuthService(store.NewSQLite(dbtest.NewSQLite(t)), security.NewTestHasher(), security.NewTestTokenProvider(nil))
	mux := newMux(svc)

	rec := do(t, mux, http.MethodPost, BasePath+"/social",
		`{"provider":"google","type":"oauth","provider_id":"g-1","email":"bob@x.com","device":20,"name":"Bob"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	soc := decodeBody[SocialResponse](t, rec)
	assert.True(t, soc.Created)
	assert.Regexp(t, `^20\d{6}\d+$`, soc.PublicID)

	rec = do(t, mux, http.MethodGet, BasePath+"/me", "", map[string]string{APIKeyHTTPHeader: soc.APIKey})
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody[ProfileResponse](t, rec)
	assert.Equal(t, "bob@x.com", me.Email)
	assert.True(t, me.IsVerified)
	assert.True(t, strings.HasPrefix(me.Phone, security.SyntheticPhonePrefix))

	rec = do(t, mux, http.MethodGet, BasePath+"/renew", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
