package internal

import (
	"context"
	"log/slog"

	"github.com/starford/inkwell/internal/mcpserver"
	"github.com/starford/inkwell/internal/models"
	"github.com/starford/inkwell/internal/notebook"
)

// RunMCP serves the MCP tools over stdio until stdin closes. Logs must go to
// stderr, see WithLogOutput.
func RunMCP(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts, nil)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.checkConsistency(ctx)
	if err := rt.loadHome(ctx); err != nil {
		return err
	}

	rt.logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.nb).ServeStdio()
}

// Repair renumbers documents with gapped page numbering and returns their
// names.
func Repair(ctx context.Context, opts ...Option) ([]string, error) {
	rt, err := setup(opts, nil)
	if err != nil {
		return nil, err
	}
	defer rt.close()

	fixed, err := rt.nb.Repair(ctx)
	if err != nil {
		return nil, err
	}
	rt.logger.Info("repair finished", slog.Any("documents", fixed))
	return fixed, nil
}

// Move relocates one page. The source page is made resident first.
func Move(ctx context.Context, from, to models.PageKey, opts ...Option) error {
	rt, err := setup(opts, nil)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := rt.nb.Load(ctx, from.Document, from.Page); err != nil {
		return err
	}
	return rt.nb.Move(ctx, from.Document, from.Page, to.Document, to.Page)
}

// Export writes one page to the export directory.
func Export(ctx context.Context, key models.PageKey, opts ...Option) (notebook.ExportResult, error) {
	rt, err := setup(opts, nil)
	if err != nil {
		return notebook.ExportResult{}, err
	}
	defer rt.close()

	return rt.nb.Export(ctx, key.Document, key.Page)
}
