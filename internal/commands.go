package internal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/starford/atlas/internal/logging"
	"github.com/starford/atlas/internal/mcpserver"
	"github.com/starford/atlas/internal/search"
	"github.com/starford/atlas/internal/site"
	"github.com/starford/atlas/internal/tui"
)

// cliLogger logs to stderr, or to the configured log file, so stdout stays
// free for results and the MCP transport.
func cliLogger(cfg *Config) (*slog.Logger, func() error, error) {
	lc := cfg.App.Logging()
	if lc.FilePath != "" {
		return logging.Setup(lc)
	}
	logger := logging.New(os.Stderr, lc.Level)
	slog.SetDefault(logger)
	return logger, func() error { return nil }, nil
}

// loader returns the dataset source: the site at app.siteURL, or the charts
// root itself when no URL is set.
func (app *application) loader(logger *slog.Logger) tui.Loader {
	if app.siteURL != "" {
		return site.NewClient(app.siteURL, nil, site.WithMaxBytes(app.config.Search.MaxDatasetBytes())).Fetch
	}
	return func(context.Context) (*site.Dataset, error) {
		store, builder, err := openCharts(app.config, logger)
		if err != nil {
			return nil, err
		}
		snap, err := site.LoadLocal(store, builder, logger)
		if err != nil {
			return nil, err
		}
		return snap.Dataset, nil
	}
}

// EncodeQuery returns the URL fragment of a name and body pattern under the
// configured layout.
func EncodeQuery(cfg *Config, find, text string) string {
	layout := cfg.Search.ParsedLayout()
	return search.EncodeFragment(layout.Normalize(search.Query{Find: find, Search: text}), layout)
}

// RunSearch evaluates the query in the configured fragment once and prints
// the result.
func RunSearch(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger, closeLog, err := cliLogger(app.config)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck

	out := app.out
	if out == nil {
		out = os.Stdout
	}

	ds, err := app.loader(logger)(ctx)
	if err != nil {
		return fmt.Errorf("load dataset: %w", err)
	}

	layout := app.config.Search.ParsedLayout()
	res := search.Evaluate(ds, search.ParseFragment(app.fragment, layout))

	if app.submit {
		href, ok := search.Submit(res)
		if !ok {
			return fmt.Errorf("no matching chart")
		}
		_, err := fmt.Fprintln(out, href)
		return err
	}
	return printResult(out, res)
}

func printResult(w io.Writer, res *search.Result) error {
	if res.Mode == search.ModeNone {
		return nil
	}
	if res.Prefix != nil {
		fmt.Fprintf(w, "(Alternately, shall we %s for that? %s)\n\n", res.Prefix.Text, res.Prefix.Href)
	}
	fmt.Fprintln(w, "Matching Charts")
	if len(res.Matches) == 0 {
		_, err := fmt.Fprintln(w, "  None")
		return err
	}
	for _, m := range res.Matches {
		fmt.Fprintf(w, "  %s\t%s\n", m.Href, m.Title)
		for _, sn := range m.Snippets {
			fmt.Fprintf(w, "      ...%s%s%s\n", sn.Prefix, sn.Hit, sn.Suffix)
		}
	}
	return nil
}

// RunTUI runs the terminal search widget and prints the chosen chart link.
func RunTUI(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger, closeLog, err := cliLogger(app.config)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck

	href, err := tui.Run(ctx, tui.Options{
		Layout:   app.config.Search.ParsedLayout(),
		Fragment: app.fragment,
		Loader:   app.loader(logger),
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if href == "" {
		return nil
	}
	out := app.out
	if out == nil {
		out = os.Stdout
	}
	_, err = fmt.Fprintln(out, app.siteURL+href)
	return err
}

// RunMCP serves the MCP tools on stdin/stdout.
func RunMCP(_ context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger, closeLog, err := cliLogger(app.config)
	if err != nil {
		return err
	}
	defer closeLog() //nolint:errcheck

	rt, err := bootstrap(app, logger)
	if err != nil {
		return err
	}
	defer rt.db.Close()

	logger.Info("MCP server starting", slog.String("charts_path", app.config.Charts.Path))
	return mcpserver.New(rt.svc, app.config.Search.ParsedLayout()).ServeStdio()
}
