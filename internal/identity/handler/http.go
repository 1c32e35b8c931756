package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	accountdomain "identity-service/backend/internal/account/domain"
	"identity-service/backend/internal/identity/service"
)

const (
	// BasePath prefixes every auth route.
	BasePath = "/api/v2/auth"
	// APIKeyHTTPHeader carries the api key for renew and me.
	APIKeyHTTPHeader = "X-API-Key"

	maxBodyBytes = 1 << 20
)

// HTTPHandler serves AuthAPI as JSON over HTTP.
type HTTPHandler struct {
	auth   AuthAPI
	logger *zap.Logger
}

func NewHTTPHandler(auth AuthAPI, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{auth: auth, logger: logger}
}

// Routes registers the auth routes on mux.
func (h *HTTPHandler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST "+BasePath+"/register", h.register)
	mux.HandleFunc("POST "+BasePath+"/login", h.login)
	mux.HandleFunc("POST "+BasePath+"/social", h.social)
	mux.HandleFunc("GET "+BasePath+"/renew", h.renew)
	mux.HandleFunc("GET "+BasePath+"/me", h.me)
}

func (h *HTTPHandler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.auth.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Password: req.Password,
		Origin:   req.Origin,
		Device:   accountdomain.Device(req.Device),
	})
	if err != nil {
		h.writeError(w, r, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterResponse{PublicID: res.PublicID, Message: res.Message})
}

func (h *HTTPHandler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, tokenToResponse(res))
}

func (h *HTTPHandler) social(w http.ResponseWriter, r *http.Request) {
	var req SocialRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.auth.SocialAuth(r.Context(), service.SocialAuthInput{
		Provider:   req.Provider,
		Type:       req.Type,
		ProviderID: req.ProviderID,
		Email:      req.Email,
		Device:     accountdomain.Device(req.Device),
		PhotoURL:   req.PhotoURL,
		Name:       req.Name,
	})
	if err != nil {
		h.writeError(w, r, "social", err)
		return
	}
	writeJSON(w, http.StatusOK, SocialResponse{TokenResponse: *tokenToResponse(&res.TokenResult), Created: res.Created, Linked: res.Linked})
}

func (h *HTTPHandler) renew(w http.ResponseWriter, r *http.Request) {
	res, err := h.auth.RenewToken(r.Context(), r.Header.Get(APIKeyHTTPHeader))
	if err != nil {
		h.writeError(w, r, "renew", err)
		return
	}
	writeJSON(w, http.StatusOK, tokenToResponse(res))
}

func (h *HTTPHandler) me(w http.ResponseWriter, r *http.Request) {
	res, err := h.auth.Me(r.Context(), r.Header.Get(APIKeyHTTPHeader))
	if err != nil {
		h.writeError(w, r, "me", err)
		return
	}
	writeJSON(w, http.StatusOK, profileToResponse(res))
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	_, httpStatus, ok := classify(err)
	if !ok {
		logInternal(r.Context(), h.logger, op, err)
		writeJSON(w, httpStatus, ErrorResponse{Detail: internalMessage})
		return
	}
	writeJSON(w, httpStatus, ErrorResponse{Detail: err.Error()})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "invalid request body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
