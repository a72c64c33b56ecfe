package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/leca/cardvault/internal/api"
	"github.com/leca/cardvault/internal/collection"
	"github.com/leca/cardvault/internal/model"
)

// cardList is the result of the card listing endpoints. Games and Grades are
// computed over the unfiltered collection so filter menus stay stable.
type cardList struct {
	Cards  []model.Card `json:"cards"`
	Games  []string     `json:"games"`
	Grades []string     `json:"grades"`
}

// ListUsers handles GET /api/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Cards.ListUsers(r.Context(), api.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.List(users, len(users)))
}

// Overview handles GET /api/users/overview.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.Cards.Overview(r.Context(), api.UserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.List(summaries, len(summaries)))
}

// GetUser handles GET /api/users/{user_id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.Cards.GetUser(r.Context(), chi.URLParam(r, "user_id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, api.SuccessResponse(user))
}

// UserCards handles GET /api/users/{user_id}/cards.
func (h *Handler) UserCards(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "user_id")
	if _, err := h.Cards.GetUser(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeCards(w, r, userID)
}

func (h *Handler) writeCards(w http.ResponseWriter, r *http.Request, userID string) {
	cards, err := h.Cards.UserCards(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	filtered := filterFromQuery(r).Apply(cards)
	result := cardList{
		Cards:  filtered,
		Games:  collection.UniqueGames(cards),
		Grades: collection.UniqueGrades(cards),
	}
	api.WriteJSON(w, http.StatusOK, api.ListResponse{
		Response:   api.SuccessResponse(result),
		ResultInfo: api.ResultInfo{Count: len(filtered), TotalCount: len(cards)},
	})
}

func filterFromQuery(r *http.Request) collection.Filter {
	q := r.URL.Query()
	return collection.Filter{
		Search: q.Get("search"),
		Game:   q.Get("game"),
		Rarity: q.Get("rarity"),
		Grade:  q.Get("grade"),
		SortBy: q.Get("sortBy"),
	}
}
