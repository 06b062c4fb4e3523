// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Inkwell pages to LLM tooling via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/inkwell/internal/apperr"
	"github.com/starford/inkwell/internal/notebook"
)

const dumpFormatURI = "inkwell://dump-format"

// Server wraps the MCP server with Inkwell tools.
type Server struct {
	mcp *server.MCPServer
	nb  *notebook.Service
}

// New creates a new MCP server with all Inkwell tools registered.
func New(nb *notebook.Service) *Server {
	s := &Server{nb: nb}

	s.mcp = server.NewMCPServer(
		"Inkwell",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_documents",
		mcp.WithDescription("List every document that has stored pages."),
	), s.listDocuments)

	s.mcp.AddTool(mcp.NewTool("list_pages",
		mcp.WithDescription("List the stored page numbers of a document."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Document name")),
	), s.listPages)

	s.mcp.AddTool(mcp.NewTool("read_page",
		mcp.WithDescription("Read the strokes and links of one page as JSON."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Document name")),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("Page number, from 0")),
	), s.readPage)

	s.mcp.AddTool(mcp.NewTool("move_page",
		mcp.WithDescription("Move a page to another position or document. "+
			"Page numbers stay contiguous in both documents; within one document "+
			"a forward move lands just before the page that was at to_page."),
		mcp.WithString("from_document", mcp.Required(), mcp.Description("Source document")),
		mcp.WithNumber("from_page", mcp.Required(), mcp.Description("Source page")),
		mcp.WithString("to_document", mcp.Required(), mcp.Description("Destination document")),
		mcp.WithNumber("to_page", mcp.Required(), mcp.Description("Destination page")),
	), s.movePage)

	s.mcp.AddTool(mcp.NewTool("find_link",
		mcp.WithDescription("Find the link under a point of the resident page."),
		mcp.WithNumber("x", mcp.Required(), mcp.Description("X in page pixels")),
		mcp.WithNumber("y", mcp.Required(), mcp.Description("Y in page pixels")),
	), s.findLink)

	s.mcp.AddTool(mcp.NewTool("export_page",
		mcp.WithDescription("Export a page as a JSON dump and a PNG image into the export directory. "+
			"The dump format is described by the get_dump_format tool or the "+dumpFormatURI+" resource."),
		mcp.WithString("document", mcp.Required(), mcp.Description("Document name")),
		mcp.WithNumber("page", mcp.Required(), mcp.Description("Page number, from 0")),
	), s.exportPage)

	s.mcp.AddTool(mcp.NewTool("repair",
		mcp.WithDescription("Renumber pages of documents whose numbering has gaps. "+
			"Intentionally blank pages are collapsed."),
	), s.repair)

	s.mcp.AddTool(mcp.NewTool("get_dump_format",
		mcp.WithDescription("Returns the page dump format contract."),
	), s.getDumpFormat)

	s.mcp.AddResource(
		mcp.NewResource(dumpFormatURI, "Page Dump Format",
			mcp.WithResourceDescription("JSON format of exported and importable page dumps."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readDumpFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

// toolError renders err for the model. Expected conditions get a short
// message; anything else is passed through.
func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError("not found")
	case errors.Is(err, apperr.ErrNotResident):
		return mcp.NewToolResultError("no page is loaded")
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

func jsonResult(v any) *mcp.CallToolResult {
	out, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(out))
}

func (s *Server) listDocuments(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docs, err := s.nb.Documents(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if len(docs) == 0 {
		return mcp.NewToolResultText("no documents"), nil
	}
	return mcp.NewToolResultText(strings.Join(docs, "\n")), nil
}

func (s *Server) listPages(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	pages, err := s.nb.Pages(ctx, doc)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(pages), nil
}

func (s *Server) readPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := req.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p, err := s.nb.ReadPage(ctx, doc, page)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(p), nil
}

func (s *Server) movePage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fromDoc, err := req.RequireString("from_document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	fromPage, err := req.RequireInt("from_page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	toDoc, err := req.RequireString("to_document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	toPage, err := req.RequireInt("to_page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.nb.Move(ctx, fromDoc, fromPage, toDoc, toPage); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("moved: %s:%d -> %s:%d", fromDoc, fromPage, toDoc, toPage)), nil
}

func (s *Server) findLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	x, err := req.RequireInt("x")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	y, err := req.RequireInt("y")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	l, err := s.nb.FindLink(ctx, x, y)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(l), nil
}

func (s *Server) exportPage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := req.RequireString("document")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	page, err := req.RequireInt("page")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.nb.Export(ctx, doc, page)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(res), nil
}

func (s *Server) repair(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fixed, err := s.nb.Repair(ctx)
	if err != nil {
		return toolError(err), nil
	}
	if len(fixed) == 0 {
		return mcp.NewToolResultText("page numbering is contiguous"), nil
	}
	return mcp.NewToolResultText("repaired: " + strings.Join(fixed, ", ")), nil
}

func (s *Server) getDumpFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(DumpFormatContract), nil
}

func (s *Server) readDumpFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      dumpFormatURI,
			MIMEType: "text/markdown",
			Text:     DumpFormatContract,
		},
	}, nil
}
