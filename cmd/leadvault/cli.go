package main

import (
	"bufio"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/leadvault/internal/config"
	"github.com/hpungsan/leadvault/internal/errors"
	"github.com/hpungsan/leadvault/internal/lead"
	"github.com/hpungsan/leadvault/internal/storage"
	"github.com/hpungsan/leadvault/internal/store"
	"github.com/hpungsan/leadvault/internal/ui"
	"github.com/hpungsan/leadvault/internal/watch"
	"github.com/hpungsan/leadvault/internal/web"
)

// appEnv carries what commands need once storage is open.
type appEnv struct {
	store  *store.Store
	home   string
	logger *slog.Logger
	now    func() time.Time
}

func (e *appEnv) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

// newCLIApp creates the CLI application with all commands.
// env may be nil when only help or version output is needed.
func newCLIApp(env *appEnv) *cli.App {
	app := &cli.App{
		Name:    "leadvault",
		Usage:   "Local lead tracker",
		Version: Version,
		Commands: []*cli.Command{
			addCmd(env),
			captureCmd(env),
			starCmd(env),
			removeCmd(env),
			clearCmd(env),
			listCmd(env),
			showCmd(env),
			linkCmd(env),
			metricsCmd(env),
			exportCmd(env),
			importCmd(env),
			serveCmd(env),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// addCmd creates the add command.
func addCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Save a lead",
		ArgsUsage: "<name> <url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "stage", Aliases: []string{"s"}, Value: string(lead.DefaultStage), Usage: "Stage: prospect|contacted|in-progress|won"},
			&cli.StringFlag{Name: "tags", Aliases: []string{"t"}, Usage: "Comma-separated tags"},
			&cli.StringFlag{Name: "note", Aliases: []string{"n"}, Usage: "Note (Markdown)"},
		},
		Action: func(c *cli.Context) error {
			output, err := env.store.Create(c.Context, store.CreateInput{
				Name:  c.Args().Get(0),
				URL:   c.Args().Get(1),
				Stage: c.String("stage"),
				Tags:  c.String("tags"),
				Note:  c.String("note"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// captureCmd creates the capture command.
func captureCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "capture",
		Usage:     "Save a link named after its page title",
		ArgsUsage: "<url>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Usage: "Use this title instead of fetching the page"},
		},
		Action: func(c *cli.Context) error {
			output, err := env.store.Capture(c.Context, store.CaptureInput{
				URL:   c.Args().First(),
				Title: c.String("title"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// starCmd creates the star command.
func starCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "star",
		Usage:     "Toggle the starred flag of a lead",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			output, err := env.store.ToggleStar(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// removeCmd creates the remove command.
func removeCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Remove a lead",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Do not ask for confirmation"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			// Report a stale id before asking
			if _, err := env.store.Get(id); err != nil {
				return outputError(err)
			}
			if !c.Bool("yes") && !confirm(c, "Remove this lead?") {
				return outputError(errors.NewConfirmationRequired("remove"))
			}
			output, err := env.store.Remove(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			fmt.Fprintln(c.App.ErrWriter, ui.Success("Lead removed"))
			return outputJSON(c, output)
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every saved lead",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Do not ask for confirmation"},
		},
		Action: func(c *cli.Context) error {
			// Nothing to confirm on an empty vault
			if env.store.Len() == 0 {
				return outputJSON(c, &store.ClearOutput{Cleared: 0})
			}
			if !c.Bool("yes") && !confirm(c, "Clear all saved leads?") {
				return outputError(errors.NewConfirmationRequired("clear"))
			}
			output, err := env.store.ClearAll(c.Context)
			if err != nil {
				return outputError(err)
			}
			fmt.Fprintln(c.App.ErrWriter, ui.Success("Lead vault cleared"))
			return outputJSON(c, output)
		},
	}
}

// listCmd creates the list command.
func listCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List leads, most recent first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Value: string(lead.FilterAll), Usage: "all|starred|prospect|contacted|in-progress|won"},
			&cli.StringFlag{Name: "search", Aliases: []string{"q"}, Usage: "Match name, link or tags"},
			&cli.BoolFlag{Name: "pretty", Aliases: []string{"p"}, Usage: "Human-readable output"},
		},
		Action: func(c *cli.Context) error {
			output, err := env.store.View(store.ViewInput{
				Filter: c.String("filter"),
				Search: c.String("search"),
			})
			if err != nil {
				return outputError(err)
			}
			if c.Bool("pretty") {
				w := c.App.Writer
				fmt.Fprint(w, ui.FormatMetrics(output.Metrics))
				fmt.Fprint(w, ui.Separator())
				fmt.Fprint(w, ui.FormatLeadList(output.Leads, env.clock()))
				return nil
			}
			return outputJSON(c, output)
		},
	}
}

// showCmd creates the show command.
func showCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show one lead with its note",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Output JSON"},
		},
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			output, err := env.store.Get(id)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(c, output)
			}
			fmt.Fprint(c.App.Writer, ui.FormatLeadHeader(*output, env.clock()))
			fmt.Fprint(c.App.Writer, ui.FormatNote(output.Note))
			return nil
		},
	}
}

// linkCmd creates the link command.
func linkCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "link",
		Usage:     "Print the link of a lead (pipe it to your clipboard tool)",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			id, err := requireID(c)
			if err != nil {
				return err
			}
			output, err := env.store.Get(id)
			if err != nil {
				return outputError(err)
			}
			fmt.Fprintln(c.App.Writer, output.URL)
			return nil
		},
	}
}

// metricsCmd creates the metrics command.
func metricsCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "metrics",
		Usage: "Show total, starred and last-week counts",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "pretty", Aliases: []string{"p"}, Usage: "Human-readable output"},
		},
		Action: func(c *cli.Context) error {
			m := env.store.Metrics()
			if c.Bool("pretty") {
				fmt.Fprint(c.App.Writer, ui.FormatMetrics(m))
				return nil
			}
			return outputJSON(c, m)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export leads to JSONL or YAML",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Output file (.jsonl, .yaml or .yml; default: exports dir)"},
			&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Usage: "Only export leads matching this filter"},
			&cli.StringFlag{Name: "search", Aliases: []string{"q"}, Usage: "Only export leads matching this search"},
		},
		Action: func(c *cli.Context) error {
			output, err := env.store.Export(c.Context, store.ExportInput{
				Path:   c.String("path"),
				Filter: c.String("filter"),
				Search: c.String("search"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import leads from JSONL, a JSON array or YAML",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Input file (or pass it as the first argument)"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: string(store.ImportModeSkip), Usage: "Existing ids: skip|replace"},
		},
		Action: func(c *cli.Context) error {
			path := c.String("path")
			if path == "" {
				path = c.Args().First()
			}
			if path == "" {
				return outputError(errors.NewInvalidRequest("path is required"))
			}
			output, err := env.store.Import(c.Context, store.ImportInput{
				Path: path,
				Mode: store.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *appEnv) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Usage: "Interface to listen on (default from config)"},
			&cli.IntFlag{Name: "port", Usage: "Port to listen on (default from config)"},
			&cli.BoolFlag{Name: "watch", Aliases: []string{"w"}, Usage: "Reload when another process changes the vault"},
		},
		Action: func(c *cli.Context) error {
			cfg := env.store.Config()
			bind := cfg.WebBind
			if c.IsSet("bind") {
				bind = c.String("bind")
			}
			port := cfg.WebPort
			if c.IsSet("port") {
				port = c.Int("port")
			}
			if port < 1 || port > 65535 {
				return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid port %d", port)))
			}

			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			if c.Bool("watch") {
				w, err := startWatcher(ctx, env)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				defer w.Stop()
			}

			srv := web.NewServer(env.store, web.Options{
				Version: Version,
				Bind:    bind,
				Port:    port,
				Logger:  env.logger,
			})
			return web.Run(ctx, srv, env.logger)
		},
	}
}

// startWatcher watches the backend's data path and reloads the store on change.
func startWatcher(ctx context.Context, env *appEnv) (*watch.Watcher, error) {
	cfg := env.store.Config()
	dataPath := storage.DataPath(cfg, env.home)

	dir, match := filepath.Dir(dataPath), watch.MatchPrefix(filepath.Base(dataPath))
	if env.store.Backend().Name() != config.BackendSQLite {
		dir, match = dataPath, watch.MatchAll
	}

	w, err := watch.New(dir, match, env.store, watch.Options{Logger: env.logger})
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return nil, err
	}
	return w, nil
}

// Helper functions

// outputJSON writes v to the app's writer as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var lErr *errors.LeadError
	if stderrors.As(err, &lErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", lErr.Code, lErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// reportError writes err to w behind the CLI's error marker.
func reportError(w io.Writer, err error) {
	fmt.Fprintln(w, ui.Error(err.Error()))
}

// requireID returns the first positional argument or an INVALID_REQUEST exit error.
func requireID(c *cli.Context) (string, error) {
	id := strings.TrimSpace(c.Args().First())
	if id == "" {
		return "", outputError(errors.NewInvalidRequest("id is required"))
	}
	return id, nil
}

// confirm asks question on the error writer and reads a y/yes answer from the app's reader.
func confirm(c *cli.Context, question string) bool {
	fmt.Fprintf(c.App.ErrWriter, "%s [y/N] ", question)
	answer, err := bufio.NewReader(readerOf(c)).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

func readerOf(c *cli.Context) io.Reader {
	if c.App.Reader != nil {
		return c.App.Reader
	}
	return strings.NewReader("")
}
