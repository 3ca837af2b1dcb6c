package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/atlas/internal"
	pkgconfig "github.com/starford/atlas/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if p := cmd.String("charts"); p != "" {
		cfg.Charts.Path = p
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

// queryOptions turns --find/--search (or a raw --fragment) into options.
func queryOptions(cmd *cli.Command, cfg *internal.Config) []internal.Option {
	fragment := cmd.String("fragment")
	if fragment == "" && (cmd.String("find") != "" || cmd.String("search") != "") {
		fragment = internal.EncodeQuery(cfg, cmd.String("find"), cmd.String("search"))
	}
	siteURL := cmd.String("url")
	if siteURL == "" {
		siteURL = cfg.Search.SiteURL
	}
	if cmd.Bool("local") {
		siteURL = ""
	}
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithFragment(fragment),
		internal.WithSiteURL(siteURL),
	}
}

func searchCmd(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := append(queryOptions(cmd, cfg), internal.WithSubmit(cmd.Bool("first")))
	return internal.RunSearch(ctx, opts...)
}

func tuiCmd(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunTUI(ctx, queryOptions(cmd, cfg)...)
}

func mcpCmd(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "find", Aliases: []string{"f"}, Usage: "Chart name pattern"},
		&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "Chart text pattern, or \".\" to list names"},
		&cli.StringFlag{Name: "fragment", Usage: "Query in URL fragment form, e.g. \"find=ops&search=deploy\""},
		&cli.StringFlag{
			Name:    "url",
			Usage:   "Site to fetch /site.json from (defaults to search.site_url)",
			Sources: cli.EnvVars("ATLAS_SITE_URL"),
		},
		&cli.BoolFlag{Name: "local", Usage: "Read the charts root directly instead of a running site"},
	}
}

func main() {
	cmd := &cli.Command{
		Name:   "atlas",
		Usage:  "Chart wiki server with incremental regular expression search",
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
			&cli.StringFlag{
				Name:    "charts",
				Usage:   "Charts root directory (overrides charts.path)",
				Sources: cli.EnvVars("ATLAS_CHARTS_PATH"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the site, its search page and API",
				Action: serve,
			},
			{
				Name:  "search",
				Usage: "Run one search and print the matching charts",
				Flags: append(queryFlags(),
					&cli.BoolFlag{Name: "first", Usage: "Print only the first candidate's link"},
				),
				Action: searchCmd,
			},
			{
				Name:   "tui",
				Usage:  "Search charts interactively in the terminal",
				Flags:  queryFlags(),
				Action: tuiCmd,
			},
			{
				Name:   "mcp",
				Usage:  "Serve chart tools over MCP on stdin/stdout",
				Action: mcpCmd,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
