package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/inkwell/internal"
	"github.com/starford/inkwell/internal/models"
	pkgconfig "github.com/starford/inkwell/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}

	return nil
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
}

func repair(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	fixed, err := internal.Repair(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	if len(fixed) == 0 {
		fmt.Println("page numbering is contiguous")
		return nil
	}
	fmt.Println("repaired:", strings.Join(fixed, ", "))
	return nil
}

func move(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 4 {
		return fmt.Errorf("move: want 4 arguments, got %d", cmd.Args().Len())
	}
	from, err := pageKey(cmd.Args().Get(0), cmd.Args().Get(1))
	if err != nil {
		return err
	}
	to, err := pageKey(cmd.Args().Get(2), cmd.Args().Get(3))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Move(ctx, from, to, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr)); err != nil {
		return err
	}
	fmt.Printf("moved %s:%d to %s:%d\n", from.Document, from.Page, to.Document, to.Page)
	return nil
}

func export(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return fmt.Errorf("export: want 2 arguments, got %d", cmd.Args().Len())
	}
	key, err := pageKey(cmd.Args().Get(0), cmd.Args().Get(1))
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	res, err := internal.Export(ctx, key, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	fmt.Println(res.Dump)
	fmt.Println(res.Image)
	return nil
}

func pageKey(doc, page string) (models.PageKey, error) {
	n, err := strconv.Atoi(page)
	if err != nil || n < 0 {
		return models.PageKey{}, fmt.Errorf("invalid page number %q", page)
	}
	if doc == "" {
		return models.PageKey{}, fmt.Errorf("document name is empty")
	}
	return models.PageKey{Document: doc, Page: n}, nil
}

func main() {
	cmd := &cli.Command{
		Name:   "inkwell",
		Usage:  "Handwritten notebook store with spatial page index, page moves and dump import/export",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and inbox watcher",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: mcp,
			},
			{
				Name:   "repair",
				Usage:  "Renumber documents whose page numbering has gaps",
				Action: repair,
			},
			{
				Name:      "move",
				Usage:     "Move a page to another position or document",
				ArgsUsage: "<from-doc> <from-page> <to-doc> <to-page>",
				Action:    move,
			},
			{
				Name:      "export",
				Usage:     "Write a page as JSON dump and PNG into the export directory",
				ArgsUsage: "<doc> <page>",
				Action:    export,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
