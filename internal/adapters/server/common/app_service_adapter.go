package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/evanschultz/weekgrid/internal/app"
	"github.com/evanschultz/weekgrid/internal/domain"
)

// AppServiceAdapter maps transport contracts onto an app.Store. Requests from
// concurrent transports are serialized because the store is single-threaded.
type AppServiceAdapter struct {
	mu    sync.Mutex
	store *app.Store
	title string
}

// NewAppServiceAdapter builds one common adapter over a card store.
func NewAppServiceAdapter(store *app.Store, agendaTitle string) *AppServiceAdapter {
	return &AppServiceAdapter{store: store, title: agendaTitle}
}

// ListCards returns every card ordered by day and start.
func (a *AppServiceAdapter) ListCards(context.Context) ([]Card, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	cards := a.store.Cards()
	out := make([]Card, 0, len(cards))
	for _, card := range cards {
		out = append(out, toCard(card))
	}
	return out, nil
}

// GetCard returns one card by id.
func (a *AppServiceAdapter) GetCard(_ context.Context, id string) (Card, error) {
	if err := a.ready(); err != nil {
		return Card{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	card, ok := a.store.Card(strings.TrimSpace(id))
	if !ok {
		return Card{}, fmt.Errorf("card %q: %w", id, ErrNotFound)
	}
	return toCard(card), nil
}

// CreateCard places a card, then applies optional text and color.
func (a *AppServiceAdapter) CreateCard(ctx context.Context, in CreateCardRequest) (Card, error) {
	if err := a.ready(); err != nil {
		return Card{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if in.Color != "" && !a.store.Palette().Contains(domain.Color(in.Color)) {
		return Card{}, mapAppError("create card", domain.ErrInvalidColor)
	}
	card, err := a.store.Create(ctx, in.Row, in.Col)
	if card.ID == "" {
		return Card{}, mapAppError("create card", err)
	}
	var persistErr error
	if err != nil {
		persistErr = err
	}
	if in.Text != "" {
		if card, err = a.store.SetText(ctx, card.ID, in.Text); err != nil {
			persistErr = err
		}
	}
	if in.Color != "" {
		if card, err = a.store.SetColor(ctx, card.ID, domain.Color(in.Color)); err != nil {
			persistErr = err
		}
	}
	return toCard(card), mapAppError("create card", persistErr)
}

// MoveCard moves one card. The top offset is clamped into range.
func (a *AppServiceAdapter) MoveCard(ctx context.Context, in MoveCardRequest) (Card, error) {
	if err := a.ready(); err != nil {
		return Card{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	card, err := a.store.Move(ctx, strings.TrimSpace(in.ID), in.Col, in.TopRowFrac)
	return toCardResult(card, mapAppError("move card", err))
}

// ResizeCard sets one card height, never below half a row.
func (a *AppServiceAdapter) ResizeCard(ctx context.Context, in ResizeCardRequest) (Card, error) {
	if err := a.ready(); err != nil {
		return Card{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	card, err := a.store.Resize(ctx, strings.TrimSpace(in.ID), in.HeightFrac)
	return toCardResult(card, mapAppError("resize card", err))
}

// UpdateCard patches text and color.
func (a *AppServiceAdapter) UpdateCard(ctx context.Context, in UpdateCardRequest) (Card, error) {
	if err := a.ready(); err != nil {
		return Card{}, err
	}
	if in.Text == nil && in.Color == nil {
		return Card{}, fmt.Errorf("update card: text or color is required: %w", ErrInvalidRequest)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	id := strings.TrimSpace(in.ID)
	card, ok := a.store.Card(id)
	if !ok {
		return Card{}, fmt.Errorf("update card %q: %w", id, ErrNotFound)
	}
	if in.Color != nil && !a.store.Palette().Contains(domain.Color(*in.Color)) {
		return Card{}, mapAppError("update card", domain.ErrInvalidColor)
	}
	var persistErr error
	var err error
	if in.Text != nil {
		if card, err = a.store.SetText(ctx, id, *in.Text); err != nil {
			persistErr = err
		}
	}
	if in.Color != nil {
		if card, err = a.store.SetColor(ctx, id, domain.Color(*in.Color)); err != nil {
			persistErr = err
		}
	}
	return toCard(card), mapAppError("update card", persistErr)
}

// DeleteCard removes one card.
func (a *AppServiceAdapter) DeleteCard(ctx context.Context, id string) error {
	if err := a.ready(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return mapAppError("delete card", a.store.Delete(ctx, strings.TrimSpace(id)))
}

// CopyCard duplicates one card half a row below itself.
func (a *AppServiceAdapter) CopyCard(ctx context.Context, id string) (Card, error) {
	if err := a.ready(); err != nil {
		return Card{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	card, err := a.store.Copy(ctx, strings.TrimSpace(id))
	return toCardResult(card, mapAppError("copy card", err))
}

// Palette returns the configured swatches in menu order.
func (a *AppServiceAdapter) Palette(context.Context) ([]string, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	palette := a.store.Palette()
	out := make([]string, 0, len(palette))
	for _, c := range palette {
		out = append(out, string(c))
	}
	return out, nil
}

// Agenda returns the week as markdown.
func (a *AppServiceAdapter) Agenda(context.Context) (string, error) {
	if err := a.ready(); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return app.AgendaMarkdown(a.title, a.store.Cards()), nil
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.store == nil {
		return errors.New("app service adapter is not configured")
	}
	return nil
}

// toCard converts a domain card into its transport view.
func toCard(card domain.Card) Card {
	return Card{
		ID:         card.ID,
		Col:        card.Col,
		Day:        domain.DayName(card.Col),
		TopRowFrac: card.TopRowFrac,
		HeightFrac: card.HeightFrac,
		Start:      domain.ClockLabel(card.TopRowFrac),
		End:        domain.ClockLabel(card.BottomRowFrac()),
		Text:       card.Text,
		Color:      string(card.Color),
	}
}

// toCardResult keeps the mutated card when only persistence failed.
func toCardResult(card domain.Card, err error) (Card, error) {
	if err != nil && !errors.Is(err, ErrNotSaved) {
		return Card{}, err
	}
	return toCard(card), err
}

// mapAppError maps app and domain errors into transport-visible sentinels.
func mapAppError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, app.ErrNotFound):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrNotFound, err))
	case errors.Is(err, app.ErrPersist):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrNotSaved, err))
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidColumn),
		errors.Is(err, domain.ErrInvalidTopRow),
		errors.Is(err, domain.ErrInvalidHeight),
		errors.Is(err, domain.ErrInvalidColor),
		errors.Is(err, domain.ErrInvalidCell):
		return fmt.Errorf("%s: %w", op, errors.Join(ErrInvalidRequest, err))
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
