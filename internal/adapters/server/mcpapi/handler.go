// Package mcpapi exposes the card store as MCP tools over stateless streamable HTTP or stdio.
package mcpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/evanschultz/weekgrid/internal/adapters/server/common"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config captures MCP transport configuration.
type Config struct {
	ServerName    string
	ServerVersion string
	EndpointPath  string
}

// Handler wraps one stateless MCP streamable HTTP handler.
type Handler struct {
	httpHandler http.Handler
}

// NewServer builds the MCP server with every card tool registered.
func NewServer(cfg Config, cards common.CardService) (*mcpserver.MCPServer, error) {
	if cards == nil {
		return nil, fmt.Errorf("card service is required")
	}
	cfg = normalizeConfig(cfg)

	mcpSrv := mcpserver.NewMCPServer(
		cfg.ServerName,
		cfg.ServerVersion,
		mcpserver.WithToolCapabilities(false),
	)
	registerReadTools(mcpSrv, cards)
	registerCardTools(mcpSrv, cards)
	return mcpSrv, nil
}

// NewHandler builds one stateless MCP adapter serving the card tools.
func NewHandler(cfg Config, cards common.CardService) (*Handler, error) {
	mcpSrv, err := NewServer(cfg, cards)
	if err != nil {
		return nil, err
	}
	cfg = normalizeConfig(cfg)
	streamable := mcpserver.NewStreamableHTTPServer(
		mcpSrv,
		mcpserver.WithEndpointPath(cfg.EndpointPath),
		mcpserver.WithStateLess(true),
	)
	return &Handler{httpHandler: streamable}, nil
}

// ServeHTTP handles one MCP streamable HTTP request.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.httpHandler == nil {
		http.Error(w, "mcp handler unavailable", http.StatusServiceUnavailable)
		return
	}
	h.httpHandler.ServeHTTP(w, r)
}

// ServeStdio serves the card tools over newline-delimited JSON-RPC until ctx ends or in closes.
func ServeStdio(ctx context.Context, cfg Config, cards common.CardService, in io.Reader, out io.Writer) error {
	mcpSrv, err := NewServer(cfg, cards)
	if err != nil {
		return err
	}
	return mcpserver.NewStdioServer(mcpSrv).Listen(ctx, in, out)
}

// normalizeConfig applies deterministic defaults to MCP adapter config.
func normalizeConfig(cfg Config) Config {
	cfg.ServerName = strings.TrimSpace(cfg.ServerName)
	if cfg.ServerName == "" {
		cfg.ServerName = "weekgrid"
	}
	cfg.ServerVersion = strings.TrimSpace(cfg.ServerVersion)
	if cfg.ServerVersion == "" {
		cfg.ServerVersion = "dev"
	}
	cfg.EndpointPath = strings.TrimSpace(cfg.EndpointPath)
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/mcp"
	}
	if !strings.HasPrefix(cfg.EndpointPath, "/") {
		cfg.EndpointPath = "/" + cfg.EndpointPath
	}
	cfg.EndpointPath = "/" + strings.Trim(cfg.EndpointPath, "/")
	return cfg
}

// registerReadTools registers list, palette, and agenda tools.
func registerReadTools(srv *mcpserver.MCPServer, cards common.CardService) {
	srv.AddTool(
		mcp.NewTool(
			"weekgrid.list_cards",
			mcp.WithDescription("List every card on the weekly schedule ordered by day and start time."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			rows, err := cards.ListCards(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("list_cards", map[string]any{"cards": rows})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekgrid.get_palette",
			mcp.WithDescription("Return the eight card colors in menu order."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			palette, err := cards.Palette(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("get_palette", map[string]any{"palette": palette})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekgrid.agenda",
			mcp.WithDescription("Return the week as a markdown agenda grouped by day."),
		),
		func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			agenda, err := cards.Agenda(ctx)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return mcp.NewToolResultText(agenda), nil
		},
	)
}

// registerCardTools registers the card mutation tools.
func registerCardTools(srv *mcpserver.MCPServer, cards common.CardService) {
	srv.AddTool(
		mcp.NewTool(
			"weekgrid.create_card",
			mcp.WithDescription("Create a one-hour card at a content cell (row 1 = 07:00, col 1 = Monday)."),
			mcp.WithNumber("row", mcp.Required(), mcp.Description("Content row 1-12")),
			mcp.WithNumber("col", mcp.Required(), mcp.Description("Day column 1-5")),
			mcp.WithString("text", mcp.Description("Card text (defaults to the configured text)")),
			mcp.WithString("color", mcp.Description("Palette color, e.g. #4f86f7")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			row, err := req.RequireInt("row")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			col, err := req.RequireInt("col")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			card, err := cards.CreateCard(ctx, common.CreateCardRequest{
				Row:   row,
				Col:   col,
				Text:  req.GetString("text", ""),
				Color: req.GetString("color", ""),
			})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("create_card", card)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekgrid.move_card",
			mcp.WithDescription("Move a card to a day column and top offset in half-row units (clamped to 0-11.5)."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Card id")),
			mcp.WithNumber("col", mcp.Required(), mcp.Description("Day column 1-5")),
			mcp.WithNumber("top_row_frac", mcp.Required(), mcp.Description("Rows from 07:00")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			col, err := req.RequireInt("col")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			top, err := req.RequireFloat("top_row_frac")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			card, err := cards.MoveCard(ctx, common.MoveCardRequest{ID: id, Col: col, TopRowFrac: top})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("move_card", card)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekgrid.resize_card",
			mcp.WithDescription("Set a card height in rows (never below 0.5)."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Card id")),
			mcp.WithNumber("height_frac", mcp.Required(), mcp.Description("Height in rows")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			height, err := req.RequireFloat("height_frac")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			card, err := cards.ResizeCard(ctx, common.ResizeCardRequest{ID: id, HeightFrac: height})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("resize_card", card)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekgrid.set_card_color",
			mcp.WithDescription("Recolor a card with one palette color."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Card id")),
			mcp.WithString("color", mcp.Required(), mcp.Description("Palette color")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			color, err := req.RequireString("color")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			card, err := cards.UpdateCard(ctx, common.UpdateCardRequest{ID: id, Color: &color})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("set_card_color", card)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekgrid.set_card_text",
			mcp.WithDescription("Replace a card's text."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Card id")),
			mcp.WithString("text", mcp.Required(), mcp.Description("New text")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			text, err := req.RequireString("text")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			card, err := cards.UpdateCard(ctx, common.UpdateCardRequest{ID: id, Text: &text})
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("set_card_text", card)
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekgrid.delete_card",
			mcp.WithDescription("Delete a card."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Card id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			if err := cards.DeleteCard(ctx, id); err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("delete_card", map[string]any{"deleted": id})
		},
	)

	srv.AddTool(
		mcp.NewTool(
			"weekgrid.copy_card",
			mcp.WithDescription("Duplicate a card half a row below itself."),
			mcp.WithString("id", mcp.Required(), mcp.Description("Card id")),
		),
		func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			id, err := req.RequireString("id")
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			card, err := cards.CopyCard(ctx, id)
			if err != nil {
				return toolResultFromError(err), nil
			}
			return jsonResult("copy_card", card)
		},
	)
}

// jsonResult encodes one structured tool result.
func jsonResult(tool string, payload any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", tool, err)
	}
	return result, nil
}

// toolResultFromError maps service errors into MCP-visible tool errors.
func toolResultFromError(err error) *mcp.CallToolResult {
	switch {
	case err == nil:
		return mcp.NewToolResultError("unknown error")
	case errors.Is(err, common.ErrInvalidRequest):
		return mcp.NewToolResultError("invalid_request: " + err.Error())
	case errors.Is(err, common.ErrNotFound):
		return mcp.NewToolResultError("not_found: " + err.Error())
	case errors.Is(err, common.ErrNotSaved):
		return mcp.NewToolResultError("not_saved: " + err.Error())
	default:
		return mcp.NewToolResultError("internal_error: " + err.Error())
	}
}
