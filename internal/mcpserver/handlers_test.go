package mcpserver

import (
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/jmylchreest/colortrack/internal/colour"
	"github.com/jmylchreest/colortrack/internal/db"
	"github.com/jmylchreest/colortrack/internal/favorites"
	"github.com/jmylchreest/colortrack/internal/history"
	"github.com/jmylchreest/colortrack/internal/session"
	"github.com/jmylchreest/colortrack/internal/store"
)

type fixture struct {
	server  *Server
	history *history.Service
	machine *session.Machine
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx := context.Background()
	dir := t.TempDir()

	database, err := db.Bootstrap(ctx, filepath.Join(dir, "colortrack.db"), nil)
	if err != nil {
		t.Fatalf("Bootstrap() error: %v", err)
	}

	hist, err := history.NewService(history.Options{
		Sessions:     store.NewSessionRepository(database),
		ImageDir:     filepath.Join(dir, "images"),
		DeleteImages: true,
	})
	if err != nil {
		t.Fatalf("history.NewService() error: %v", err)
	}

	favRepo := store.NewFavoriteRepository(database)
	favs, err := favorites.NewService(ctx, favRepo, nil)
	if err != nil {
		t.Fatalf("favorites.NewService() error: %v", err)
	}

	pipeline, err := session.NewPipeline(colour.ExtractorConfig{Algorithm: colour.AlgorithmKMeans, ColorCount: 4})
	if err != nil {
		t.Fatalf("NewPipeline() error: %v", err)
	}
	machine := session.NewMachine(session.Options{Ranker: pipeline, Recorder: hist})

	srv, err := New(Options{Machine: machine, History: hist, Favorites: favs, Version: "test"})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	t.Cleanup(func() {
		machine.Close()
		favs.Close()
		favRepo.Close()
		database.Close()
	})

	return &fixture{server: srv, history: hist, machine: machine, dir: dir}
}

func (f *fixture) writeImage(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := color.RGBA{R: 255, A: 255}
			if x == 3 {
				c = color.RGBA{B: 255, A: 255}
			}
			img.SetRGBA(x, y, c)
		}
	}

	path := filepath.Join(f.dir, "input.png")
	file, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		t.Fatal(err)
	}
	return path
}

func call(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()

	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want mcp.TextContent", result.Content[0])
	}
	return text.Text
}

func TestNewRequiresServices(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("New() accepted empty options")
	}
}

func TestMCPServerBuilds(t *testing.T) {
	f := newFixture(t)
	if f.server.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
}

func TestExtractPalette(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.server.extractPaletteHandler(ctx, call(map[string]any{"path": f.writeImage(t)}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("tool error: %s", resultText(t, result))
	}

	var got extractResult
	if err := json.Unmarshal([]byte(resultText(t, result)), &got); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if got.Status != session.StatusReady || len(got.Swatches) != 2 {
		t.Fatalf("result = %+v", got)
	}
	if got.Swatches[0].Hex != "#FF0000" || got.Swatches[0].Share != 0.75 {
		t.Errorf("top swatch = %+v", got.Swatches[0])
	}

	f.machine.Flush()
	sessions, err := f.history.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("history has %d sessions, want 1", len(sessions))
	}
}

func TestExtractPaletteWithoutSave(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.server.extractPaletteHandler(ctx, call(map[string]any{"path": f.writeImage(t), "save": false}))
	if err != nil || result.IsError {
		t.Fatalf("extract failed: %v", err)
	}

	f.machine.Flush()
	sessions, err := f.history.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("history has %d sessions, want 0", len(sessions))
	}
}

func TestExtractPaletteErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  mcp.CallToolRequest
	}{
		{name: "invalid args", req: mcp.CallToolRequest{}},
		{name: "empty path", req: call(map[string]any{"path": "  "})},
		{name: "missing file", req: call(map[string]any{"path": filepath.Join(f.dir, "missing.png")})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := f.server.extractPaletteHandler(ctx, tt.req)
			if err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if !result.IsError {
				t.Errorf("expected tool error, got %s", resultText(t, result))
			}
		})
	}
}

func TestSessionTools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	result, err := f.server.listSessionsHandler(ctx, call(nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if text := resultText(t, result); text != "No sessions recorded." {
		t.Errorf("empty list = %q", text)
	}

	if _, err := f.server.extractPaletteHandler(ctx, call(map[string]any{"path": f.writeImage(t)})); err != nil {
		t.Fatal(err)
	}
	f.machine.Flush()

	result, err = f.server.listSessionsHandler(ctx, call(nil))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var sessions []store.Session
	if err := json.Unmarshal([]byte(resultText(t, result)), &sessions); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("listed %d sessions, want 1", len(sessions))
	}

	result, err = f.server.deleteSessionHandler(ctx, call(map[string]any{"id": float64(sessions[0].ID)}))
	if err != nil || result.IsError {
		t.Fatalf("delete failed: %v %s", err, resultText(t, result))
	}

	result, err = f.server.deleteSessionHandler(ctx, call(map[string]any{"id": float64(sessions[0].ID)}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), "not found") {
		t.Errorf("second delete = %s", resultText(t, result))
	}
}

func TestFavoriteTools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.server.extractPaletteHandler(ctx, call(map[string]any{"path": f.writeImage(t)})); err != nil {
		t.Fatal(err)
	}
	f.machine.Flush()

	sessions, err := f.history.List(ctx)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("List() = %v, %v", sessions, err)
	}
	id := float64(sessions[0].ID)

	result, err := f.server.toggleFavoriteHandler(ctx, call(map[string]any{"session_id": id, "rank": float64(1)}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if text := resultText(t, result); text != "#FF0000 added to favourites." {
		t.Errorf("first toggle = %q", text)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		result, err = f.server.listFavoritesHandler(ctx, call(nil))
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if strings.Contains(resultText(t, result), "#FF0000") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("favourite never listed: %s", resultText(t, result))
		}
		time.Sleep(5 * time.Millisecond)
	}

	result, err = f.server.toggleFavoriteHandler(ctx, call(map[string]any{"session_id": id, "rank": float64(1)}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if text := resultText(t, result); text != "#FF0000 removed from favourites." {
		t.Errorf("second toggle = %q", text)
	}

	result, err = f.server.toggleFavoriteHandler(ctx, call(map[string]any{"session_id": id, "rank": float64(9)}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Error("out of range rank should fail")
	}

	result, err = f.server.removeFavoriteHandler(ctx, call(map[string]any{"hex": "#FF0000"}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Errorf("removing an absent favourite = %s", resultText(t, result))
	}
}

func TestIntArg(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int64
		wantErr bool
	}{
		{name: "float", value: float64(3), want: 3},
		{name: "int", value: 4, want: 4},
		{name: "string", value: " 5 ", want: 5},
		{name: "fraction", value: 1.5, wantErr: true},
		{name: "missing", value: nil, wantErr: true},
		{name: "bool", value: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := intArg(map[string]any{"n": tt.value}, "n")
			if (err != nil) != tt.wantErr {
				t.Fatalf("intArg() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("intArg() = %d, want %d", got, tt.want)
			}
		})
	}
}
