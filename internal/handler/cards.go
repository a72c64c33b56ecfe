package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leca/cardvault/internal/api"
	"github.com/leca/cardvault/internal/collection"
	"github.com/leca/cardvault/internal/model"
)

// ListCards handles GET /api/cards, the caller's own collection.
func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	h.writeCards(w, r, api.UserID(r.Context()))
}

// CardSuggestions handles GET /api/cards/suggestions?q=.
func (h *Handler) CardSuggestions(w http.ResponseWriter, r *http.Request) {
	cards, err := h.Cards.UserCards(r.Context(), api.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	suggestions := collection.Suggestions(cards, r.URL.Query().Get("q"))
	api.WriteJSON(w, http.StatusOK, api.List(suggestions, len(suggestions)))
}

// CreateCard handles POST /api/cards.
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var in model.CardInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	card, err := h.Cards.AddCard(r.Context(), api.UserID(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, api.SuccessResponse(card))
}

// UpdateCard handles PATCH /api/cards/{card_id}.
func (h *Handler) UpdateCard(w http.ResponseWriter, r *http.Request) {
	var patch model.CardPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.writeError(w, r, err)
		return
	}

	card, err := h.Cards.UpdateCard(r.Context(), api.UserID(r.Context()), chi.URLParam(r, "card_id"), patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(card))
}

// ToggleFavorite handles POST /api/cards/{card_id}/favorite.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	card, err := h.Cards.ToggleFavorite(r.Context(), api.UserID(r.Context()), chi.URLParam(r, "card_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(card))
}

// DeleteCard handles DELETE /api/cards/{card_id}.
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	cardID := chi.URLParam(r, "card_id")
	if err := h.Cards.DeleteCard(r.Context(), api.UserID(r.Context()), cardID); err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(map[string]string{"id": cardID}))
}
