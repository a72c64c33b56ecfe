package collection

import (
	"slices"
	"sort"
	"strings"

	"github.com/leca/cardvault/internal/model"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Sort orders accepted by Filter.SortBy.
const (
	SortName      = "name"
	SortNameDesc  = "name-desc"
	SortGame      = "game"
	SortRarity    = "rarity"
	SortCondition = "condition"
)

const maxSuggestions = 10

// Filter narrows and orders a card list.
type Filter struct {
	Search string
	Game   string
	Rarity string
	Grade  string
	SortBy string
}

// Apply returns the cards matching f, sorted by f.SortBy. An unknown sort
// keeps the input order. The input slice is not modified.
func (f Filter) Apply(cards []model.Card) []model.Card {
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]model.Card, 0, len(cards))
	for _, c := range cards {
		if search != "" &&
			!strings.Contains(strings.ToLower(c.Name), search) &&
			!strings.Contains(strings.ToLower(c.Game), search) {
			continue
		}
		if f.Game != "" && c.Game != f.Game {
			continue
		}
		if f.Rarity != "" && c.Rarity != f.Rarity {
			continue
		}
		if f.Grade != "" && c.Grade != f.Grade {
			continue
		}
		out = append(out, c)
	}

	var key func(model.Card) string
	desc := false
	switch f.SortBy {
	case SortName:
		key = func(c model.Card) string { return c.Name }
	case SortNameDesc:
		key, desc = func(c model.Card) string { return c.Name }, true
	case SortGame:
		key = func(c model.Card) string { return c.Game }
	case SortRarity:
		key = func(c model.Card) string { return c.Rarity }
	case SortCondition:
		key = func(c model.Card) string { return c.Condition }
	default:
		return out
	}

	col := newCollator()
	sort.SliceStable(out, func(i, j int) bool {
		cmp := col.CompareString(key(out[i]), key(out[j]))
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
	return out
}

// Suggestions returns up to ten distinct card names and games containing
// query, case-insensitively. Names come before games.
func Suggestions(cards []model.Card, query string) []string {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return []string{}
	}

	seen := make(map[string]bool)
	out := []string{}
	consider := func(s string) {
		if s == "" || seen[s] || len(out) >= maxSuggestions {
			return
		}
		seen[s] = true
		if strings.Contains(strings.ToLower(s), q) {
			out = append(out, s)
		}
	}
	for _, c := range cards {
		consider(c.Name)
	}
	for _, c := range cards {
		consider(c.Game)
	}
	return out
}

// UniqueGames returns the sorted distinct games in cards.
func UniqueGames(cards []model.Card) []string {
	return unique(cards, func(c model.Card) string { return c.Game })
}

// UniqueGrades returns the sorted distinct non-empty grades in cards.
func UniqueGrades(cards []model.Card) []string {
	return unique(cards, func(c model.Card) string { return c.Grade })
}

func unique(cards []model.Card, field func(model.Card) string) []string {
	values := make([]string, 0, len(cards))
	for _, c := range cards {
		if v := field(c); v != "" {
			values = append(values, v)
		}
	}
	slices.Sort(values)
	return slices.Compact(values)
}

// previewOrder sorts favorites first, then by name.
func previewOrder(cards []model.Card) {
	col := newCollator()
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].IsFavorite != cards[j].IsFavorite {
			return cards[i].IsFavorite
		}
		return col.CompareString(cards[i].Name, cards[j].Name) < 0
	})
}

// newCollator compares strings the way a user expects an A-Z list to read:
// case and accents are secondary to the base letters.
func newCollator() *collate.Collator {
	return collate.New(language.English, collate.IgnoreCase)
}
