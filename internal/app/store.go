package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/evanschultz/weekgrid/internal/domain"
)

// DefaultBlobKey names the blob the card mapping is persisted under.
const DefaultBlobKey = "weekgrid.cards"

// DefaultCardText seeds new cards.
const DefaultCardText = "New card"

// maxIDAttempts bounds regeneration when the id generator repeats itself.
const maxIDAttempts = 8

// IDGenerator returns unique identifiers for new cards.
type IDGenerator func() string

// StoreConfig holds configuration for the card store.
type StoreConfig struct {
	BlobKey     string
	Palette     domain.Palette
	DefaultText string
	Logger      Logger
}

// Store owns the card mapping and writes it through to the blob store after every mutation.
type Store struct {
	blobs       BlobStore
	idGen       IDGenerator
	key         string
	palette     domain.Palette
	defaultText string
	logger      Logger

	cards   map[string]domain.Card
	retired map[string]struct{}
	active  string
}

// OpenStore hydrates a store from the persisted blob, starting empty when none exists.
func OpenStore(ctx context.Context, blobs BlobStore, idGen IDGenerator, cfg StoreConfig) (*Store, error) {
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if idGen == nil {
		return nil, errors.New("id generator is required")
	}
	if strings.TrimSpace(cfg.BlobKey) == "" {
		cfg.BlobKey = DefaultBlobKey
	}
	if len(cfg.Palette) == 0 {
		cfg.Palette = domain.DefaultPalette
	}
	if cfg.DefaultText == "" {
		cfg.DefaultText = DefaultCardText
	}
	if cfg.Logger == nil {
		cfg.Logger = nopLogger{}
	}

	s := &Store{
		blobs:       blobs,
		idGen:       idGen,
		key:         cfg.BlobKey,
		palette:     cfg.Palette,
		defaultText: cfg.DefaultText,
		logger:      cfg.Logger,
		cards:       map[string]domain.Card{},
		retired:     map[string]struct{}{},
	}

	raw, err := blobs.Load(ctx, s.key)
	switch {
	case errors.Is(err, ErrNotFound):
		s.logger.Info("no persisted cards, starting empty", "key", s.key)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("load cards: %w", err)
	}
	snap, err := DecodeSnapshot(raw)
	if err != nil {
		return nil, err
	}
	remapped, err := snap.Validate(s.palette)
	if err != nil {
		return nil, fmt.Errorf("validate persisted cards: %w", err)
	}
	if remapped > 0 {
		s.logger.Warn("card colors outside palette reset to default", "count", remapped)
	}
	s.cards = snap.Cards
	s.logger.Info("cards hydrated", "key", s.key, "count", len(s.cards))
	return s, nil
}

// Palette returns the swatches cards may take.
func (s *Store) Palette() domain.Palette {
	return s.palette
}

// Cards returns every card ordered by day and start.
func (s *Store) Cards() []domain.Card {
	return s.Snapshot().Sorted()
}

// Len returns the number of cards.
func (s *Store) Len() int {
	return len(s.cards)
}

// Card returns one card.
func (s *Store) Card(id string) (domain.Card, bool) {
	card, ok := s.cards[id]
	return card, ok
}

// Snapshot returns a copy of the persisted mapping.
func (s *Store) Snapshot() Snapshot {
	out := Snapshot{Cards: make(map[string]domain.Card, len(s.cards))}
	for id, card := range s.cards {
		out.Cards[id] = card
	}
	return out
}

// Active returns the active card id, or "" when none is active.
func (s *Store) Active() string {
	return s.active
}

// SetActive marks one existing card active. An empty id clears the selection.
func (s *Store) SetActive(id string) bool {
	if id == "" {
		s.active = ""
		return true
	}
	if _, ok := s.cards[id]; !ok {
		return false
	}
	s.active = id
	return true
}

// Create places a new default card at a content cell and makes it active.
func (s *Store) Create(ctx context.Context, row, col int) (domain.Card, error) {
	if !domain.ValidSlotRow(row) || !domain.ValidColumn(col) {
		return domain.Card{}, domain.ErrInvalidCell
	}
	id, err := s.nextID()
	if err != nil {
		return domain.Card{}, err
	}
	card, err := domain.NewCard(domain.CardInput{
		ID:         id,
		Col:        col,
		TopRowFrac: float64(row - domain.FirstSlotRow),
		HeightFrac: 1,
		Text:       s.defaultText,
		Color:      s.palette.Default(),
	})
	if err != nil {
		return domain.Card{}, err
	}
	s.cards[card.ID] = card
	s.active = card.ID
	s.logger.Debug("card created", "id", card.ID, "col", card.Col, "top", card.TopRowFrac)
	return card, s.persist(ctx)
}

// Move places a card at a new column and top offset. Offsets are clamped into range.
func (s *Store) Move(ctx context.Context, id string, col int, topRowFrac float64) (domain.Card, error) {
	return s.mutate(ctx, id, "moved", func(card *domain.Card) error {
		return card.Move(col, domain.ClampTopRow(topRowFrac))
	})
}

// Resize sets a card height, never below half a row.
func (s *Store) Resize(ctx context.Context, id string, heightFrac float64) (domain.Card, error) {
	return s.mutate(ctx, id, "resized", func(card *domain.Card) error {
		if math.IsNaN(heightFrac) {
			return domain.ErrInvalidHeight
		}
		return card.Resize(math.Max(heightFrac, domain.MinHeightFrac))
	})
}

// SetColor recolors a card with one palette swatch.
func (s *Store) SetColor(ctx context.Context, id string, color domain.Color) (domain.Card, error) {
	return s.mutate(ctx, id, "recolored", func(card *domain.Card) error {
		if !s.palette.Contains(color) {
			return domain.ErrInvalidColor
		}
		card.Color = domain.NormalizeColor(color)
		return nil
	})
}

// SetText replaces a card's content.
func (s *Store) SetText(ctx context.Context, id string, text string) (domain.Card, error) {
	return s.mutate(ctx, id, "text updated", func(card *domain.Card) error {
		card.Text = text
		return nil
	})
}

// Delete removes a card, clearing the selection when it was active.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, ok := s.cards[id]; !ok {
		return ErrNotFound
	}
	delete(s.cards, id)
	s.retired[id] = struct{}{}
	if s.active == id {
		s.active = ""
	}
	s.logger.Debug("card deleted", "id", id)
	return s.persist(ctx)
}

// Copy duplicates a card half a row below itself and makes the copy active.
func (s *Store) Copy(ctx context.Context, id string) (domain.Card, error) {
	orig, ok := s.cards[id]
	if !ok {
		return domain.Card{}, ErrNotFound
	}
	newID, err := s.nextID()
	if err != nil {
		return domain.Card{}, err
	}
	dup, err := orig.Duplicate(newID)
	if err != nil {
		return domain.Card{}, err
	}
	s.cards[dup.ID] = dup
	s.active = dup.ID
	s.logger.Debug("card copied", "from", id, "id", dup.ID, "top", dup.TopRowFrac)
	return dup, s.persist(ctx)
}

// Replace swaps the whole mapping for a validated snapshot.
func (s *Store) Replace(ctx context.Context, snap Snapshot) error {
	if snap.Cards == nil {
		snap.Cards = map[string]domain.Card{}
	}
	if _, err := snap.Validate(s.palette); err != nil {
		return err
	}
	for id := range s.cards {
		if _, ok := snap.Cards[id]; !ok {
			s.retired[id] = struct{}{}
		}
	}
	s.cards = snap.Cards
	if _, ok := s.cards[s.active]; !ok {
		s.active = ""
	}
	s.logger.Info("cards replaced", "count", len(s.cards))
	return s.persist(ctx)
}

// mutate applies fn to a copy of one card and stores it when fn succeeds.
func (s *Store) mutate(ctx context.Context, id, verb string, fn func(*domain.Card) error) (domain.Card, error) {
	card, ok := s.cards[id]
	if !ok {
		return domain.Card{}, ErrNotFound
	}
	if err := fn(&card); err != nil {
		return domain.Card{}, err
	}
	s.cards[id] = card
	s.logger.Debug("card "+verb, "id", id, "col", card.Col, "top", card.TopRowFrac, "height", card.HeightFrac)
	return card, s.persist(ctx)
}

// persist writes the entire mapping. The in-memory state is kept when the write fails.
func (s *Store) persist(ctx context.Context) error {
	encoded, err := s.Snapshot().Encode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	if err := s.blobs.Save(ctx, s.key, encoded); err != nil {
		s.logger.Warn("card persistence failed", "key", s.key, "err", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// nextID draws an id that has never been used in this store.
func (s *Store) nextID() (string, error) {
	for range maxIDAttempts {
		id := strings.TrimSpace(s.idGen())
		if id == "" {
			continue
		}
		if _, used := s.cards[id]; used {
			continue
		}
		if _, used := s.retired[id]; used {
			continue
		}
		return id, nil
	}
	return "", domain.ErrInvalidID
}
