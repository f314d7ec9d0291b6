package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"remind-server/middleware"
	"remind-server/models"
	"remind-server/store"
)

type AuthHandler struct {
	store    *store.Store
	auth     *middleware.Auth
	validate *validator.Validate
}

func NewAuthHandler(s *store.Store, auth *middleware.Auth) *AuthHandler {
	return &AuthHandler{store: s, auth: auth, validate: validator.New()}
}

// Register creates the single local account. Once one exists, further
// registrations are refused.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Username and a password of at least 6 characters are required", http.StatusBadRequest)
		return
	}

	if _, ok := h.store.GetAccount(); ok {
		http.Error(w, "Account already registered", http.StatusConflict)
		return
	}

	acc, err := h.store.CreateAccount(req.Username, req.Password)
	if err != nil {
		http.Error(w, "Failed to create account", http.StatusInternalServerError)
		return
	}

	token, err := h.auth.GenerateToken(acc.ID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.AuthResponse{
		Token:   token,
		Account: acc.ToResponse(),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	acc, ok := h.store.GetAccount()
	if !ok || acc.Username != req.Username {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if !h.store.ValidatePassword(acc, req.Password) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	token, err := h.auth.GenerateToken(acc.ID)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.AuthResponse{
		Token:   token,
		Account: acc.ToResponse(),
	})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	_ = middleware.GetAccountID(r)
	acc, ok := h.store.GetAccount()
	if !ok {
		http.Error(w, "Account not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(acc.ToResponse())
}
