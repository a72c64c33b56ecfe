package collection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/alexedwards/argon2id"
	"github.com/leca/cardvault/internal/database"
	"github.com/leca/cardvault/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var dbSeq atomic.Int64

// cheapHash keeps argon2id fast in tests.
var cheapHash = &argon2id.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func newTestService(t *testing.T) (*Service, *database.SQLiteDB) {
	t.Helper()
	db, err := database.NewSQLiteDB(fmt.Sprintf("file:collection-test-%d?mode=memory&cache=shared", dbSeq.Add(1)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := New(db, Options{
		HashParams:   cheapHash,
		ImageLimitKB: 50,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return svc, db
}

func register(t *testing.T, svc *Service, username string) model.User {
	t.Helper()
	u, err := svc.Register(context.Background(), username, "password123")
	require.NoError(t, err)
	return u
}

func validCard(name string) model.CardInput {
	return model.CardInput{Name: name, Game: "Pokemon", Set: "Base Set", Condition: "Near Mint", Rarity: "Rare"}
}

func addCard(t *testing.T, svc *Service, userID string, in model.CardInput) model.Card {
	t.Helper()
	c, err := svc.AddCard(context.Background(), userID, in)
	require.NoError(t, err)
	return c
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

func TestRegisterAndLogin(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	u, err := svc.Register(ctx, "  ash  ", "pikachu123")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ash", u.Username)
	assert.Empty(t, u.PasswordHash)

	docs, err := db.List(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.NotContains(t, string(docs[0].Body), "pikachu123")
	assert.Contains(t, string(docs[0].Body), "$argon2id$")

	got, err := svc.Login(ctx, "ash", "pikachu123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Empty(t, got.PasswordHash)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	register(t, svc, "misty")

	_, err := svc.Register(context.Background(), "MISTY", "password123")
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Register(ctx, "misty", "password123")
		}()
	}
	wg.Wait()

	var ok, taken int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrUsernameTaken):
			taken++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, taken)

	users, err := svc.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		username, password, field string
	}{
		{"", "password123", "username"},
		{"ab", "password123", "username"},
		{"has space", "password123", "username"},
		{"brock", "short", "password"},
	}
	for _, tc := range cases {
		_, err := svc.Register(context.Background(), tc.username, tc.password)
		assert.ErrorIs(t, err, ErrValidation, "%q/%q", tc.username, tc.password)
		assert.Contains(t, err.Error(), tc.field)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	svc, _ := newTestService(t)
	register(t, svc, "gary")

	_, err := svc.Login(context.Background(), "gary", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), "nobody", "password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestListUsers(t *testing.T) {
	svc, _ := newTestService(t)
	me := register(t, svc, "zoe")
	register(t, svc, "bob")
	register(t, svc, "Alice")

	users, err := svc.ListUsers(context.Background(), me.ID)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
	for _, u := range users {
		assert.Empty(t, u.PasswordHash)
	}
}

func TestGetUser(t *testing.T) {
	svc, _ := newTestService(t)
	u := register(t, svc, "oak")

	got, err := svc.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "oak", got.Username)

	_, err = svc.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ---------------------------------------------------------------------------
// Cards
// ---------------------------------------------------------------------------

func TestAddCard(t *testing.T) {
	svc, _ := newTestService(t)
	u := register(t, svc, "ash")

	card := addCard(t, svc, u.ID, validCard("Charizard"))
	assert.NotEmpty(t, card.ID)
	assert.Equal(t, model.KindCard, card.Type)
	assert.Equal(t, u.ID, card.UserID)
	assert.False(t, card.IsFavorite)

	cards, err := svc.UserCards(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, card.ID, cards[0].ID)
	assert.Equal(t, "Charizard", cards[0].Name)
}

func TestAddCard_RequiresUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddCard(context.Background(), "", validCard("Mew"))
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestAddCard_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	u := register(t, svc, "ash")

	missing := validCard("")
	badCondition := validCard("Mew")
	badCondition.Condition = "Damaged"
	badImage := validCard("Mew")
	badImage.Image = "ftp://example.com/mew.png"
	badRarity := validCard("Mew")
	badRarity.Rarity = "Legendary"

	for _, in := range []model.CardInput{missing, badCondition, badImage, badRarity} {
		_, err := svc.AddCard(context.Background(), u.ID, in)
		assert.ErrorIs(t, err, ErrValidation, "%+v", in)
	}

	ok := validCard("Mew")
	ok.Image = "https://images.example.com/mew.png"
	addCard(t, svc, u.ID, ok)
}

func TestAddCard_ImageTooLarge(t *testing.T) {
	svc, _ := newTestService(t)
	u := register(t, svc, "ash")

	in := validCard("Lugia")
	in.Image = "data:image/jpeg;base64," + strings.Repeat("A", 70000)

	_, err := svc.AddCard(context.Background(), u.ID, in)
	assert.ErrorIs(t, err, ErrImageTooLarge)
	assert.Contains(t, err.Error(), "50KB")

	in.Image = "data:image/jpeg;base64," + strings.Repeat("A", 4000)
	addCard(t, svc, u.ID, in)
}

func TestAddCard_StoreRejectsPayload(t *testing.T) {
	svc, db := newTestService(t)
	u := register(t, svc, "ash")
	db.MaxDocumentBytes = 300

	in := validCard("Ho-Oh")
	in.Notes = strings.Repeat("n", 500)

	_, err := svc.AddCard(context.Background(), u.ID, in)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
	assert.Contains(t, err.Error(), "KB")
}

func TestUpdateCard(t *testing.T) {
	svc, _ := newTestService(t)
	u := register(t, svc, "ash")
	card := addCard(t, svc, u.ID, validCard("Pikachu"))

	name, grade := "Raichu", "PSA 9"
	updated, err := svc.UpdateCard(context.Background(), u.ID, card.ID, model.CardPatch{Name: &name, Grade: &grade})
	require.NoError(t, err)
	assert.Equal(t, "Raichu", updated.Name)
	assert.Equal(t, "PSA 9", updated.Grade)
	assert.Equal(t, "Base Set", updated.Set)

	cards, err := svc.UserCards(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Raichu", cards[0].Name)
	assert.Equal(t, card.CreatedAt.Unix(), cards[0].CreatedAt.Unix())
}

func TestUpdateCard_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	u := register(t, svc, "ash")
	card := addCard(t, svc, u.ID, validCard("Pikachu"))

	bad := "Shredded"
	_, err := svc.UpdateCard(context.Background(), u.ID, card.ID, model.CardPatch{Condition: &bad})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdateCard_BlankRequiredFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	u := register(t, svc, "ash")
	card := addCard(t, svc, u.ID, validCard("Pikachu"))

	blank := "   "
	for field, patch := range map[string]model.CardPatch{
		"name": {Name: &blank},
		"game": {Game: &blank},
		"set":  {Set: &blank},
	} {
		_, err := svc.UpdateCard(ctx, u.ID, card.ID, patch)
		require.ErrorIs(t, err, ErrValidation, field)

		var fe *FieldError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, field, fe.Field)
		assert.Equal(t, field+" is required", fe.Message)
	}

	cards, err := svc.UserCards(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Pikachu", cards[0].Name)
	assert.Equal(t, "Pokemon", cards[0].Game)
	assert.Equal(t, "Base Set", cards[0].Set)
}

func TestUpdateCard_TrimsFields(t *testing.T) {
	svc, _ := newTestService(t)
	u := register(t, svc, "ash")
	card := addCard(t, svc, u.ID, validCard("Pikachu"))

	name, image := "  Raichu ", " https://example.com/raichu.png "
	updated, err := svc.UpdateCard(context.Background(), u.ID, card.ID, model.CardPatch{Name: &name, Image: &image})
	require.NoError(t, err)
	assert.Equal(t, "Raichu", updated.Name)
	assert.Equal(t, "https://example.com/raichu.png", updated.Image)
}

func TestCardOwnership(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	owner := register(t, svc, "ash")
	other := register(t, svc, "gary")
	card := addCard(t, svc, owner.ID, validCard("Pikachu"))

	name := "Stolen"
	_, err := svc.UpdateCard(ctx, other.ID, card.ID, model.CardPatch{Name: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.ToggleFavorite(ctx, other.ID, card.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	assert.ErrorIs(t, svc.DeleteCard(ctx, other.ID, card.ID), ErrForbidden)

	assert.ErrorIs(t, svc.DeleteCard(ctx, owner.ID, "missing"), ErrNotFound)
}

func TestToggleFavorite(t *testing.T) {
	svc, _ := newTestService(t)
	u := register(t, svc, "ash")
	card := addCard(t, svc, u.ID, validCard("Eevee"))

	fav, err := svc.ToggleFavorite(context.Background(), u.ID, card.ID)
	require.NoError(t, err)
	assert.True(t, fav.IsFavorite)

	fav, err = svc.ToggleFavorite(context.Background(), u.ID, card.ID)
	require.NoError(t, err)
	assert.False(t, fav.IsFavorite)
}

func TestDeleteCard(t *testing.T) {
	svc, _ := newTestService(t)
	u := register(t, svc, "ash")
	card := addCard(t, svc, u.ID, validCard("Snorlax"))

	require.NoError(t, svc.DeleteCard(context.Background(), u.ID, card.ID))

	cards, err := svc.UserCards(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestOverview(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	me := register(t, svc, "me")
	collector := register(t, svc, "collector")
	register(t, svc, "empty")

	addCard(t, svc, me.ID, validCard("Mine"))
	for _, name := range []string{"Gengar", "Abra", "Zubat", "Onix", "Machop", "Dratini"} {
		addCard(t, svc, collector.ID, validCard(name))
	}
	cards, err := svc.UserCards(ctx, collector.ID)
	require.NoError(t, err)
	var zubat string
	for _, c := range cards {
		if c.Name == "Zubat" {
			zubat = c.ID
		}
	}
	_, err = svc.ToggleFavorite(ctx, collector.ID, zubat)
	require.NoError(t, err)

	summaries, err := svc.Overview(ctx, me.ID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	s := summaries[0]
	assert.Equal(t, "collector", s.Username)
	assert.Equal(t, 6, s.CardCount)
	require.Len(t, s.PreviewCards, previewSize)
	names := make([]string, 0, len(s.PreviewCards))
	for _, c := range s.PreviewCards {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"Zubat", "Abra", "Dratini", "Gengar", "Machop"}, names)
}

func TestLoad_SkipsUnknownDocuments(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	_, err := db.Create(ctx, []byte(`{"type":"trade","offer":"x"}`))
	require.NoError(t, err)
	_, err = db.Create(ctx, []byte(`{"type":"card","name":42}`))
	require.NoError(t, err)
	u := register(t, svc, "ash")

	users, err := svc.ListUsers(ctx, "")
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, u.ID, users[0].ID)

	cards, err := svc.UserCards(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, cards)
}

// gatedStore pauses the first List after it is armed, once the documents
// have been read.
type gatedStore struct {
	database.Database
	armed   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) List(ctx context.Context) ([]model.Document, error) {
	docs, err := g.Database.List(ctx)
	if g.armed.CompareAndSwap(true, false) {
		close(g.entered)
		<-g.release
	}
	return docs, err
}

func TestLoad_DiscardsSnapshotOverlappingWrite(t *testing.T) {
	_, db := newTestService(t)
	store := &gatedStore{Database: db, entered: make(chan struct{}), release: make(chan struct{})}
	svc := New(store, Options{HashParams: cheapHash, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx := context.Background()
	u := register(t, svc, "ash")

	store.armed.Store(true)
	done := make(chan []model.Card)
	go func() {
		cards, err := svc.UserCards(ctx, u.ID)
		assert.NoError(t, err)
		done <- cards
	}()

	<-store.entered
	addCard(t, svc, u.ID, validCard("Mew"))
	close(store.release)
	assert.Empty(t, <-done)

	cards, err := svc.UserCards(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "Mew", cards[0].Name)
}

func TestValidationError_FieldError(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), "ab", "password123")
	var fe *FieldError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "username", fe.Field)
	assert.Equal(t, "validation failed: username must be at least 3 characters", err.Error())
}
