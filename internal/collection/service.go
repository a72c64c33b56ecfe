package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/leca/cardvault/internal/database"
	"github.com/leca/cardvault/internal/imageproc"
	"github.com/leca/cardvault/internal/model"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrValidation         = errors.New("validation failed")
	ErrPayloadTooLarge    = errors.New("card data is too large")
	ErrImageTooLarge      = errors.New("image is too large")
)

const (
	previewSize     = 5
	snapshotKey     = "documents"
	defaultCacheTTL = 30 * time.Second
)

// DefaultHashParams mirrors the argon2id cost used for collector passwords.
var DefaultHashParams = &argon2id.Params{
	Memory:      64 * 1024,
	Iterations:  3,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Options tunes a Service. Zero values select defaults.
type Options struct {
	// CacheTTL bounds how long a listing of the store is reused between writes.
	CacheTTL time.Duration
	// PayloadWarnKB logs a warning for card documents larger than this.
	PayloadWarnKB float64
	// ImageLimitKB rejects embedded data URI images above this estimated size.
	ImageLimitKB float64
	HashParams   *argon2id.Params
	Logger       *slog.Logger
}

// Service implements collector accounts and card collections on top of a
// shared document store.
type Service struct {
	store    database.Database
	validate *validator.Validate
	cache    *expirable.LRU[string, *snapshot]
	opts     Options
	log      *slog.Logger

	// cacheMu guards generation and the cache slot it versions.
	cacheMu    sync.Mutex
	generation uint64

	// accounts serializes the username check and create in Register.
	accounts sync.Mutex
}

// snapshot is a decoded listing of the store.
type snapshot struct {
	users []model.User
	cards []model.Card
}

// New creates a Service backed by store.
func New(store database.Database, opts Options) *Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaultCacheTTL
	}
	if opts.HashParams == nil {
		opts.HashParams = DefaultHashParams
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		validate: newValidator(),
		cache:    expirable.NewLRU[string, *snapshot](1, nil, opts.CacheTTL),
		opts:     opts,
		log:      logger,
	}
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

type registration struct {
	Username string `json:"username" validate:"required,min=3,max=32,alphanum"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// Register creates a collector account.
func (s *Service) Register(ctx context.Context, username, password string) (model.User, error) {
	username = strings.TrimSpace(username)
	if err := s.validate.Struct(registration{Username: username, Password: password}); err != nil {
		return model.User{}, validationError(err)
	}

	s.accounts.Lock()
	defer s.accounts.Unlock()

	snap, err := s.load(ctx)
	if err != nil {
		return model.User{}, err
	}
	for _, u := range snap.users {
		if strings.EqualFold(u.Username, username) {
			return model.User{}, ErrUsernameTaken
		}
	}

	hash, err := argon2id.CreateHash(password, s.opts.HashParams)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := model.User{
		Type:         model.KindUser,
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	id, err := s.create(ctx, user)
	if err != nil {
		return model.User{}, err
	}
	user.ID = id

	s.log.Info("collector registered", "user_id", id, "username", username)
	return user.Public(), nil
}

// Login verifies credentials and returns the matching collector.
func (s *Service) Login(ctx context.Context, username, password string) (model.User, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return model.User{}, err
	}

	username = strings.TrimSpace(username)
	for _, u := range snap.users {
		if u.Username != username {
			continue
		}
		ok, err := argon2id.ComparePasswordAndHash(password, u.PasswordHash)
		if err != nil {
			s.log.Warn("unreadable password hash", "user_id", u.ID, "error", err)
			return model.User{}, ErrInvalidCredentials
		}
		if !ok {
			return model.User{}, ErrInvalidCredentials
		}
		return u.Public(), nil
	}
	return model.User{}, ErrInvalidCredentials
}

// GetUser returns a collector by id.
func (s *Service) GetUser(ctx context.Context, id string) (model.User, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return model.User{}, err
	}
	for _, u := range snap.users {
		if u.ID == id {
			return u.Public(), nil
		}
	}
	return model.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
}

// ListUsers returns all collectors except excludeID, ordered by username.
func (s *Service) ListUsers(ctx context.Context, excludeID string) ([]model.User, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(snap.users))
	for _, u := range snap.users {
		if u.ID != excludeID {
			users = append(users, u.Public())
		}
	}
	sort.SliceStable(users, func(i, j int) bool {
		return strings.ToLower(users[i].Username) < strings.ToLower(users[j].Username)
	})
	return users, nil
}

// Overview lists every other collector who owns at least one card, with a
// preview of up to five cards, favorites first.
func (s *Service) Overview(ctx context.Context, excludeID string) ([]model.CollectorSummary, error) {
	users, err := s.ListUsers(ctx, excludeID)
	if err != nil {
		return nil, err
	}
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	byOwner := make(map[string][]model.Card)
	for _, c := range snap.cards {
		byOwner[c.UserID] = append(byOwner[c.UserID], c)
	}

	out := make([]model.CollectorSummary, 0, len(users))
	for _, u := range users {
		cards := byOwner[u.ID]
		if len(cards) == 0 {
			continue
		}
		preview := slices.Clone(cards)
		previewOrder(preview)
		if len(preview) > previewSize {
			preview = preview[:previewSize]
		}
		out = append(out, model.CollectorSummary{User: u, CardCount: len(cards), PreviewCards: preview})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Cards
// ---------------------------------------------------------------------------

// UserCards returns the cards owned by userID in creation order.
func (s *Service) UserCards(ctx context.Context, userID string) ([]model.Card, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	cards := []model.Card{}
	for _, c := range snap.cards {
		if c.UserID == userID {
			cards = append(cards, c)
		}
	}
	return cards, nil
}

// AddCard stores a new card owned by userID.
func (s *Service) AddCard(ctx context.Context, userID string, in model.CardInput) (model.Card, error) {
	if userID == "" {
		return model.Card{}, fmt.Errorf("%w: must be logged in to add cards", ErrForbidden)
	}
	in = trimInput(in)
	if err := s.validate.Struct(in); err != nil {
		return model.Card{}, validationError(err)
	}
	if err := s.checkImage(in.Image); err != nil {
		return model.Card{}, err
	}

	card := model.Card{
		Type:      model.KindCard,
		UserID:    userID,
		Name:      in.Name,
		Game:      in.Game,
		Set:       in.Set,
		Rarity:    in.Rarity,
		Condition: in.Condition,
		Grade:     in.Grade,
		Image:     in.Image,
		Notes:     in.Notes,
		CreatedAt: time.Now().UTC(),
	}
	id, err := s.create(ctx, card)
	if err != nil {
		return model.Card{}, err
	}
	card.ID = id
	return card, nil
}

// UpdateCard applies patch to a card owned by userID.
func (s *Service) UpdateCard(ctx context.Context, userID, cardID string, patch model.CardPatch) (model.Card, error) {
	patch = trimPatch(patch)
	if err := s.validate.Struct(patch); err != nil {
		return model.Card{}, validationError(err)
	}
	if patch.Image != nil {
		if err := s.checkImage(*patch.Image); err != nil {
			return model.Card{}, err
		}
	}

	card, err := s.ownedCard(ctx, userID, cardID)
	if err != nil {
		return model.Card{}, err
	}
	applyPatch(&card, patch)

	if err := s.replace(ctx, card); err != nil {
		return model.Card{}, err
	}
	return card, nil
}

// ToggleFavorite flips the favorite flag of a card owned by userID.
func (s *Service) ToggleFavorite(ctx context.Context, userID, cardID string) (model.Card, error) {
	card, err := s.ownedCard(ctx, userID, cardID)
	if err != nil {
		return model.Card{}, err
	}
	card.IsFavorite = !card.IsFavorite

	if err := s.replace(ctx, card); err != nil {
		return model.Card{}, err
	}
	return card, nil
}

// DeleteCard removes a card owned by userID.
func (s *Service) DeleteCard(ctx context.Context, userID, cardID string) error {
	if _, err := s.ownedCard(ctx, userID, cardID); err != nil {
		return err
	}
	defer s.invalidate()

	if err := s.store.Delete(ctx, cardID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("card %s: %w", cardID, ErrNotFound)
		}
		return fmt.Errorf("delete card: %w", err)
	}
	return nil
}

func (s *Service) ownedCard(ctx context.Context, userID, cardID string) (model.Card, error) {
	snap, err := s.load(ctx)
	if err != nil {
		return model.Card{}, err
	}
	for _, c := range snap.cards {
		if c.ID != cardID {
			continue
		}
		if c.UserID != userID {
			return model.Card{}, fmt.Errorf("%w: card belongs to another collector", ErrForbidden)
		}
		return c, nil
	}
	return model.Card{}, fmt.Errorf("card %s: %w", cardID, ErrNotFound)
}

// checkImage enforces the hard size limit on embedded images.
func (s *Service) checkImage(image string) error {
	if s.opts.ImageLimitKB <= 0 || !imageproc.IsDataURI(image) {
		return nil
	}
	if size := imageproc.EstimateKB(image); size > s.opts.ImageLimitKB {
		return fmt.Errorf("%w (%.1fKB > %.0fKB): use a smaller image or an image URL instead",
			ErrImageTooLarge, size, s.opts.ImageLimitKB)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Store access
// ---------------------------------------------------------------------------

// load returns the cached snapshot or lists the store.
func (s *Service) load(ctx context.Context) (*snapshot, error) {
	if snap, ok := s.cache.Get(snapshotKey); ok {
		return snap, nil
	}

	s.cacheMu.Lock()
	gen := s.generation
	s.cacheMu.Unlock()

	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	snap := &snapshot{}
	for _, doc := range docs {
		switch doc.Kind() {
		case model.KindUser:
			var u model.User
			if err := json.Unmarshal(doc.Body, &u); err != nil {
				s.log.Warn("skipping malformed user document", "id", doc.ID, "error", err)
				continue
			}
			u.ID = doc.ID
			snap.users = append(snap.users, u)
		case model.KindCard:
			var c model.Card
			if err := json.Unmarshal(doc.Body, &c); err != nil {
				s.log.Warn("skipping malformed card document", "id", doc.ID, "error", err)
				continue
			}
			c.ID = doc.ID
			snap.cards = append(snap.cards, c)
		}
	}
	sort.SliceStable(snap.cards, func(i, j int) bool {
		return snap.cards[i].CreatedAt.Before(snap.cards[j].CreatedAt)
	})

	// A write that finished while listing makes this snapshot stale.
	s.cacheMu.Lock()
	if gen == s.generation {
		s.cache.Add(snapshotKey, snap)
	}
	s.cacheMu.Unlock()
	return snap, nil
}

// invalidate drops the cached snapshot after a write.
func (s *Service) invalidate() {
	s.cacheMu.Lock()
	s.generation++
	s.cache.Purge()
	s.cacheMu.Unlock()
}

func (s *Service) create(ctx context.Context, doc any) (string, error) {
	body, err := s.marshal(doc)
	if err != nil {
		return "", err
	}
	defer s.invalidate()

	id, err := s.store.Create(ctx, body)
	if err != nil {
		return "", s.storeError(err, body)
	}
	return id, nil
}

func (s *Service) replace(ctx context.Context, card model.Card) error {
	id := card.ID
	card.ID = ""
	body, err := s.marshal(card)
	if err != nil {
		return err
	}
	defer s.invalidate()

	if err := s.store.Replace(ctx, id, body); err != nil {
		return s.storeError(err, body)
	}
	return nil
}

func (s *Service) marshal(doc any) (json.RawMessage, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	sizeKB := float64(len(body)) / 1024
	s.log.Debug("document payload", "size_kb", sizeKB)
	if s.opts.PayloadWarnKB > 0 && sizeKB > s.opts.PayloadWarnKB {
		s.log.Warn("large document payload", "size_kb", sizeKB, "limit_kb", s.opts.PayloadWarnKB)
	}
	return body, nil
}

func (s *Service) storeError(err error, body json.RawMessage) error {
	switch {
	case errors.Is(err, database.ErrTooLarge):
		return fmt.Errorf("%w (%.2f KB): the image is likely too big, use a smaller file or an image URL instead",
			ErrPayloadTooLarge, float64(len(body))/1024)
	case errors.Is(err, database.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	default:
		return fmt.Errorf("store document: %w", err)
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func trimInput(in model.CardInput) model.CardInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Game = strings.TrimSpace(in.Game)
	in.Set = strings.TrimSpace(in.Set)
	in.Grade = strings.TrimSpace(in.Grade)
	in.Image = strings.TrimSpace(in.Image)
	return in
}

func trimPatch(p model.CardPatch) model.CardPatch {
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		t := strings.TrimSpace(*s)
		return &t
	}
	p.Name = trim(p.Name)
	p.Game = trim(p.Game)
	p.Set = trim(p.Set)
	p.Grade = trim(p.Grade)
	p.Image = trim(p.Image)
	return p
}

func applyPatch(c *model.Card, p model.CardPatch) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&c.Name, p.Name)
	set(&c.Game, p.Game)
	set(&c.Set, p.Set)
	set(&c.Rarity, p.Rarity)
	set(&c.Condition, p.Condition)
	set(&c.Grade, p.Grade)
	set(&c.Image, p.Image)
	set(&c.Notes, p.Notes)
	if p.IsFavorite != nil {
		c.IsFavorite = *p.IsFavorite
	}
}
