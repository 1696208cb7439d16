// Package mcpserver exposes colortrack as Model Context Protocol tools.
package mcpserver

import (
	"errors"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jmylchreest/colortrack/internal/favorites"
	"github.com/jmylchreest/colortrack/internal/history"
	imgutil "github.com/jmylchreest/colortrack/internal/image"
	"github.com/jmylchreest/colortrack/internal/logging"
	"github.com/jmylchreest/colortrack/internal/session"
)

// Name is the server name announced to clients.
const Name = "colortrack"

// Options configures a Server.
type Options struct {
	Machine   *session.Machine
	History   *history.Service
	Favorites *favorites.Service
	Loader    imgutil.Loader
	Version   string
	Logger    hclog.Logger
}

// Server holds the services behind the tools.
type Server struct {
	machine   *session.Machine
	history   *history.Service
	favorites *favorites.Service
	loader    imgutil.Loader
	version   string
	logger    hclog.Logger

	// extractMu keeps concurrent extract_palette calls from superseding
	// each other on the shared machine.
	extractMu sync.Mutex
}

// New validates opts and creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Machine == nil || opts.History == nil || opts.Favorites == nil {
		return nil, errors.New("machine, history and favorites are required")
	}

	loader := opts.Loader
	if loader == nil {
		loader = imgutil.NewFileLoader()
	}

	return &Server{
		machine:   opts.Machine,
		history:   opts.History,
		favorites: opts.Favorites,
		loader:    loader,
		version:   opts.Version,
		logger:    logging.OrNull(opts.Logger).Named("mcp"),
	}, nil
}

// MCPServer builds the MCP server with every tool registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(Name, s.version)

	srv.AddTool(mcp.NewTool("extract_palette",
		mcp.WithDescription("Extracts the dominant colours of an image file or URL, ranked by share, and records the session in history."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Image file path or http(s) URL")),
		mcp.WithBoolean("save", mcp.Description("Record the session in history (default true)")),
	), s.extractPaletteHandler)

	srv.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("Lists recorded extraction sessions in the order they were created."),
	), s.listSessionsHandler)

	srv.AddTool(mcp.NewTool("delete_session",
		mcp.WithDescription("Deletes a recorded session by ID."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Session ID")),
	), s.deleteSessionHandler)

	srv.AddTool(mcp.NewTool("list_favorites",
		mcp.WithDescription("Lists favourite swatches."),
	), s.listFavoritesHandler)

	srv.AddTool(mcp.NewTool("toggle_favorite",
		mcp.WithDescription("Adds a session swatch to favourites, or removes it when it is already a favourite."),
		mcp.WithNumber("session_id", mcp.Required(), mcp.Description("Session ID")),
		mcp.WithNumber("rank", mcp.Required(), mcp.Description("1-based rank of the swatch within the session")),
	), s.toggleFavoriteHandler)

	srv.AddTool(mcp.NewTool("remove_favorite",
		mcp.WithDescription("Removes every favourite with the given hex colour."),
		mcp.WithString("hex", mcp.Required(), mcp.Description("Colour as #RRGGBB")),
	), s.removeFavoriteHandler)

	return srv
}

// ServeStdio serves the tools over stdin and stdout until the client
// disconnects.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving MCP over stdio", "version", s.version)
	return server.ServeStdio(s.MCPServer())
}
