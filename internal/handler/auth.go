package handler

import (
	"net/http"
	"time"

	"github.com/leca/cardvault/internal/api"
	"github.com/leca/cardvault/internal/model"
)

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// sessionResult is returned by register and login.
type sessionResult struct {
	User      model.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.Cards.Register(r.Context(), body.Username, body.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.startSession(w, r, http.StatusCreated, user)
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.Cards.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.startSession(w, r, http.StatusOK, user)
}

// Me handles GET /api/me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.Cards.GetUser(r.Context(), api.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(user))
}

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, status int, user model.User) {
	token, expires, err := h.Sessions.Issue(user.ID, user.Username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, status, api.SuccessResponse(sessionResult{User: user, Token: token, ExpiresAt: expires}))
}
