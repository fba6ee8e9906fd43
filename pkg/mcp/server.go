package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/rulebook/pkg/catalog"
	"github.com/macropower/rulebook/pkg/manager"
	"github.com/macropower/rulebook/pkg/version"
)

var errNoCatalog = errors.New("no catalog loaded")

// Backend provides payloads and workspace state to the [Server].
// [*manager.Manager] implements it.
type Backend interface {
	Payload(ctx context.Context, snap *catalog.Snapshot, name string) ([]byte, error)
	Status(ctx context.Context, root string, snap *catalog.Snapshot) (*manager.Status, error)
}

// Server implements the MCP server for rulebook.
type Server struct {
	backend Backend
	server  *mcp.Server
	tracer  trace.Tracer
	snap    atomic.Pointer[catalog.Snapshot]
	address string
}

// NewServer creates a new MCP server serving snap. An empty address serves
// over stdio; otherwise streamable HTTP is served on address.
func NewServer(address string, backend Backend, snap *catalog.Snapshot) *Server {
	impl := &mcp.Implementation{
		Name:    name,
		Version: version.GetVersion(),
	}

	s := &Server{
		address: address,
		backend: backend,
		server:  mcp.NewServer(impl, &mcp.ServerOptions{Instructions: instructions}),
		tracer:  otel.Tracer("mcp"),
	}

	s.SetCatalog(snap)
	s.registerTools()

	return s
}

// SetCatalog replaces the served catalog. Calls in flight keep the
// snapshot they started with.
func (s *Server) SetCatalog(snap *catalog.Snapshot) {
	s.snap.Store(snap)
}

// Catalog returns the served catalog, or nil.
func (s *Server) Catalog() *catalog.Snapshot {
	return s.snap.Load()
}

// Watch reloads the catalog at path whenever it changes, until ctx is done.
func (s *Server) Watch(ctx context.Context, path string) error {
	w, err := catalog.NewWatcher(path, s.SetCatalog)
	if err != nil {
		return fmt.Errorf("watch catalog: %w", err)
	}

	go func() {
		defer func() {
			err := w.Close()
			if err != nil {
				slog.ErrorContext(ctx, "close catalog watcher", slog.Any("err", err))
			}
		}()

		w.Run(ctx)
	}()

	return nil
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_rules",
		Description: "List rules in the catalog. All arguments are optional and combine with AND.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"category": {
					Type:        "string",
					Description: "Only rules in this category, e.g. aws, python, terraform.",
				},
				"tag": {
					Type:        "string",
					Description: "Only rules carrying this tag.",
				},
				"query": {
					Type:        "string",
					Description: "Fuzzy match against rule names, titles and tags.",
				},
				"filter": {
					Type:        "string",
					Description: "CEL expression over 'rule', e.g. \"rule.category == 'aws' && 'lambda' in rule.tags\".",
				},
			},
		},
	}, WithTracing(s.tracer, s.handleListRules))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_rule",
		Description: "Get the metadata and full text of a rule. You MUST use a name from the list_rules output EXACTLY.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name": {
					Type:        "string",
					Description: "The name of the rule.",
				},
			},
			Required: []string{"name"},
		},
	}, WithTracing(s.tracer, s.handleGetRule))

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_installed",
		Description: "List the rules installed in a workspace, with their catalog status.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path": {
					Type:        "string",
					Description: "The workspace root directory.",
				},
			},
			Required: []string{"path"},
		},
	}, WithTracing(s.tracer, s.handleListInstalled))
}

// Server returns the underlying MCP server.
func (s *Server) Server() *mcp.Server {
	return s.server
}

// Serve runs the MCP server until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	slog.InfoContext(ctx, "starting MCP server", slog.String("address", s.address))

	if s.address == "" {
		err := s.serveStdio(ctx)
		if err != nil {
			return fmt.Errorf("serve stdio: %w", err)
		}

		return nil
	}

	err := s.serveHTTP(ctx)
	if err != nil {
		return fmt.Errorf("serve HTTP: %w", err)
	}

	return nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.server
	}, nil)

	server := &http.Server{
		Addr:    s.address,
		Handler: handler,

		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		err := server.Shutdown(shutdownCtx)
		if err != nil {
			slog.ErrorContext(ctx, "shutdown MCP server", slog.Any("err", err))
		}
	}()

	err := server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}

func (s *Server) serveStdio(ctx context.Context) error {
	t := mcp.NewLoggingTransport(mcp.NewStdioTransport(), os.Stderr)

	err := s.server.Run(ctx, t)
	if err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}

	return nil
}
