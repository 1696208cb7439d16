package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jmylchreest/colortrack/internal/session"
	"github.com/jmylchreest/colortrack/internal/store"
	"github.com/jmylchreest/colortrack/internal/swatch"
)

type extractResult struct {
	Status   session.Status  `json:"status"`
	Image    string          `json:"image"`
	Swatches []swatch.Swatch `json:"swatches"`
}

func (s *Server) extractPaletteHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("Invalid args"), nil
	}

	path, _ := args["path"].(string)
	if path = strings.TrimSpace(path); path == "" {
		return mcp.NewToolResultError("path cannot be empty"), nil
	}

	save := true
	if v, ok := args["save"].(bool); ok {
		save = v
	}

	img, err := s.loader.Load(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Load failed: %v", err)), nil
	}

	s.extractMu.Lock()
	defer s.extractMu.Unlock()

	opts := []session.SubmitOption{session.WithSource(path)}
	if !save {
		opts = append(opts, session.WithoutRecord())
	}

	state, err := s.machine.Wait(ctx, s.machine.Submit(ctx, img, opts...))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Extraction interrupted: %v", err)), nil
	}
	if state.Status == session.StatusFailed {
		return mcp.NewToolResultError(fmt.Sprintf("Extraction failed: %s", state.Error)), nil
	}

	return jsonResult(extractResult{Status: state.Status, Image: path, Swatches: state.Swatches})
}

func (s *Server) listSessionsHandler(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions, err := s.history.List(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("List failed: %v", err)), nil
	}
	if len(sessions) == 0 {
		return mcp.NewToolResultText("No sessions recorded."), nil
	}
	return jsonResult(sessions)
}

func (s *Server) deleteSessionHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("Invalid args"), nil
	}

	id, err := intArg(args, "id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.history.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Session %d not found", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Delete failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Session %d deleted.", id)), nil
}

func (s *Server) listFavoritesHandler(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	favs := s.favorites.List()
	if len(favs) == 0 {
		return mcp.NewToolResultText("No favourites saved."), nil
	}
	return jsonResult(favs)
}

func (s *Server) toggleFavoriteHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("Invalid args"), nil
	}

	sessionID, err := intArg(args, "session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rank, err := intArg(args, "rank")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	recorded, err := s.history.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("Session %d not found", sessionID)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Lookup failed: %v", err)), nil
	}

	sw, err := recorded.SwatchAt(int(rank))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	added, err := s.favorites.Toggle(ctx, sw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Toggle failed: %v", err)), nil
	}

	if added {
		return mcp.NewToolResultText(fmt.Sprintf("%s added to favourites.", sw.Hex)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s removed from favourites.", sw.Hex)), nil
}

func (s *Server) removeFavoriteHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return mcp.NewToolResultError("Invalid args"), nil
	}

	hex, _ := args["hex"].(string)
	removed, err := s.favorites.Remove(ctx, hex)
	if err != nil {
		if errors.Is(err, store.ErrFavoriteNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("No favourite with colour %s", hex)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("Remove failed: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Removed %d favourite(s).", removed)), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Encode failed: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// intArg reads a whole-number argument. JSON numbers arrive as float64.
func intArg(args map[string]any, name string) (int64, error) {
	switch v := args[name].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("%s must be a whole number", name)
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a number", name)
		}
		return n, nil
	case nil:
		return 0, fmt.Errorf("%s is required", name)
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
}
