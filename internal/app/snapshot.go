package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/evanschultz/weekgrid/internal/domain"
)

// Snapshot is the persisted blob: every card keyed by id.
type Snapshot struct {
	Cards map[string]domain.Card `json:"cards"`
}

// DecodeSnapshot parses a persisted blob. An empty blob decodes to an empty snapshot.
func DecodeSnapshot(raw []byte) (Snapshot, error) {
	snap := Snapshot{Cards: map[string]domain.Card{}}
	if len(bytes.TrimSpace(raw)) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode cards json: %w", err)
	}
	if snap.Cards == nil {
		snap.Cards = map[string]domain.Card{}
	}
	return snap, nil
}

// Encode renders the snapshot as JSON.
func (s Snapshot) Encode() ([]byte, error) {
	if s.Cards == nil {
		s.Cards = map[string]domain.Card{}
	}
	encoded, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode cards json: %w", err)
	}
	return encoded, nil
}

// Validate checks every card against the grid invariants and maps colors
// outside palette onto the palette default. It returns the number of
// remapped colors.
func (s *Snapshot) Validate(palette domain.Palette) (int, error) {
	remapped := 0
	for key, card := range s.Cards {
		if strings.TrimSpace(card.ID) == "" {
			card.ID = key
		}
		if card.ID != key {
			return 0, fmt.Errorf("cards[%q].id mismatch: %q", key, card.ID)
		}
		if !palette.Contains(card.Color) {
			card.Color = palette.Default()
			remapped++
		}
		normalized, err := domain.NewCard(domain.CardInput{
			ID:         card.ID,
			Col:        card.Col,
			TopRowFrac: card.TopRowFrac,
			HeightFrac: card.HeightFrac,
			Text:       card.Text,
			Color:      card.Color,
		})
		if err != nil {
			return 0, fmt.Errorf("cards[%q]: %w", key, err)
		}
		s.Cards[key] = normalized
	}
	return remapped, nil
}

// Sorted returns the cards ordered by day, then start, then id.
func (s Snapshot) Sorted() []domain.Card {
	out := make([]domain.Card, 0, len(s.Cards))
	for _, card := range s.Cards {
		out = append(out, card)
	}
	sortCards(out)
	return out
}

func sortCards(cards []domain.Card) {
	sort.Slice(cards, func(i, j int) bool {
		if cards[i].Col != cards[j].Col {
			return cards[i].Col < cards[j].Col
		}
		if cards[i].TopRowFrac != cards[j].TopRowFrac {
			return cards[i].TopRowFrac < cards[j].TopRowFrac
		}
		return cards[i].ID < cards[j].ID
	})
}
