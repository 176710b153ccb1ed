// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"
)

// ErrInvalidRequest reports malformed card input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrNotSaved reports a mutation that was applied in memory but could not be persisted.
var ErrNotSaved = errors.New("changes not saved")

// Card is the transport view of one schedule card.
type Card struct {
	ID         string  `json:"id"`
	Col        int     `json:"col"`
	Day        string  `json:"day"`
	TopRowFrac float64 `json:"top_row_frac"`
	HeightFrac float64 `json:"height_frac"`
	Start      string  `json:"start"`
	End        string  `json:"end"`
	Text       string  `json:"text"`
	Color      string  `json:"color"`
}

// CreateCardRequest places a new card at a content cell.
type CreateCardRequest struct {
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Text  string `json:"text,omitempty"`
	Color string `json:"color,omitempty"`
}

// MoveCardRequest moves one card to a column and top offset.
type MoveCardRequest struct {
	ID         string  `json:"-"`
	Col        int     `json:"col"`
	TopRowFrac float64 `json:"top_row_frac"`
}

// ResizeCardRequest sets one card height.
type ResizeCardRequest struct {
	ID         string  `json:"-"`
	HeightFrac float64 `json:"height_frac"`
}

// UpdateCardRequest patches text and/or color of one card. Nil fields are left unchanged.
type UpdateCardRequest struct {
	ID    string  `json:"-"`
	Text  *string `json:"text,omitempty"`
	Color *string `json:"color,omitempty"`
}

// CardService is the card surface shared by the HTTP and MCP transports.
type CardService interface {
	ListCards(ctx context.Context) ([]Card, error)
	GetCard(ctx context.Context, id string) (Card, error)
	CreateCard(ctx context.Context, in CreateCardRequest) (Card, error)
	MoveCard(ctx context.Context, in MoveCardRequest) (Card, error)
	ResizeCard(ctx context.Context, in ResizeCardRequest) (Card, error)
	UpdateCard(ctx context.Context, in UpdateCardRequest) (Card, error)
	DeleteCard(ctx context.Context, id string) error
	CopyCard(ctx context.Context, id string) (Card, error)
	Palette(ctx context.Context) ([]string, error)
	Agenda(ctx context.Context) (string, error)
}
