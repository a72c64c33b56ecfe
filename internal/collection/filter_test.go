package collection

import (
	"testing"

	"github.com/leca/cardvault/internal/model"
	"github.com/stretchr/testify/assert"
)

func sampleCards() []model.Card {
	return []model.Card{
		{ID: "1", Name: "charizard", Game: "Pokemon", Rarity: "Rare", Condition: "Mint", Grade: "PSA 10"},
		{ID: "2", Name: "Black Lotus", Game: "Magic", Rarity: "Mythic Rare", Condition: "Good"},
		{ID: "3", Name: "Blue-Eyes White Dragon", Game: "Yu-Gi-Oh", Rarity: "Ultra Rare", Condition: "Near Mint", Grade: "BGS 9.5"},
		{ID: "4", Name: "Pikachu", Game: "Pokemon", Rarity: "Common", Condition: "Excellent", Grade: "PSA 10"},
		{ID: "5", Name: "Ancient Mew", Game: "Pokemon", Condition: "Fair", IsFavorite: true},
	}
}

func ids(cards []model.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func TestFilter_Apply(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty filter keeps order", Filter{}, []string{"1", "2", "3", "4", "5"}},
		{"search name case-insensitive", Filter{Search: "BLACK"}, []string{"2"}},
		{"search matches game", Filter{Search: "yu-gi"}, []string{"3"}},
		{"search trims spaces", Filter{Search: "  mew "}, []string{"5"}},
		{"game exact", Filter{Game: "Pokemon"}, []string{"1", "4", "5"}},
		{"rarity exact", Filter{Rarity: "Rare"}, []string{"1"}},
		{"grade exact", Filter{Grade: "PSA 10"}, []string{"1", "4"}},
		{"combined", Filter{Game: "Pokemon", Grade: "PSA 10", Search: "pika"}, []string{"4"}},
		{"no match", Filter{Game: "Lorcana"}, []string{}},
		{"sort by name ignores case", Filter{SortBy: SortName}, []string{"5", "2", "3", "1", "4"}},
		{"sort by name descending", Filter{SortBy: SortNameDesc}, []string{"4", "1", "3", "2", "5"}},
		{"sort by game is stable", Filter{SortBy: SortGame}, []string{"2", "1", "4", "5", "3"}},
		{"sort by condition", Filter{SortBy: SortCondition}, []string{"4", "5", "2", "1", "3"}},
		{"unknown sort keeps order", Filter{SortBy: "price"}, []string{"1", "2", "3", "4", "5"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(tt.filter.Apply(sampleCards())))
		})
	}
}

func TestFilter_ApplyDoesNotModifyInput(t *testing.T) {
	cards := sampleCards()
	Filter{SortBy: SortNameDesc}.Apply(cards)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(cards))
}

func TestSuggestions(t *testing.T) {
	cards := sampleCards()

	assert.Equal(t, []string{"Black Lotus", "Blue-Eyes White Dragon"}, Suggestions(cards, "bl"))
	assert.Equal(t, []string{"charizard", "Black Lotus", "Blue-Eyes White Dragon", "Pikachu", "Ancient Mew", "Magic"}, Suggestions(cards, "a"))
	assert.Equal(t, []string{"Pokemon"}, Suggestions(cards, "poke"))
	assert.Equal(t, []string{}, Suggestions(cards, "   "))
	assert.Equal(t, []string{}, Suggestions(cards, "zzz"))
}

func TestSuggestions_Limit(t *testing.T) {
	var cards []model.Card
	for _, name := range []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9", "a10", "a11", "a1"} {
		cards = append(cards, model.Card{Name: name, Game: "Game"})
	}

	got := Suggestions(cards, "a")
	assert.Len(t, got, maxSuggestions)
	assert.Equal(t, "a1", got[0])
	assert.NotContains(t, got, "a11")
}

func TestUniqueGamesAndGrades(t *testing.T) {
	cards := sampleCards()

	assert.Equal(t, []string{"Magic", "Pokemon", "Yu-Gi-Oh"}, UniqueGames(cards))
	assert.Equal(t, []string{"BGS 9.5", "PSA 10"}, UniqueGrades(cards))
	assert.Empty(t, UniqueGrades(nil))
}

func TestPreviewOrder(t *testing.T) {
	cards := sampleCards()
	cards[3].IsFavorite = true

	previewOrder(cards)
	assert.Equal(t, []string{"5", "4", "2", "3", "1"}, ids(cards))
}
