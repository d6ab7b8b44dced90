package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/smn/internal/config"
	"github.com/hpungsan/smn/internal/errors"
	"github.com/hpungsan/smn/internal/note"
	"github.com/hpungsan/smn/internal/ops"
	"github.com/hpungsan/smn/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config) *cli.App {
	app := &cli.App{
		Name:    "smn",
		Usage:   "Saved network notes, ranked and archived",
		Version: Version,
		Commands: []*cli.Command{
			saveCmd(db),
			getCmd(db),
			listCmd(db),
			voteCmd(db, "upvote", "Add one upvote to a note", ops.Upvote),
			voteCmd(db, "downvote", "Remove one upvote from a note (never below zero)", ops.Downvote),
			moveCmd(db),
			annotateCmd(db),
			removeCmd(db),
			clearCmd(db),
			collectionsCmd(db),
			exportCmd(db, cfg),
			importCmd(db, cfg),
			historyCmd(db),
			lintCmd(),
			serveCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// saveRequest is the JSON document save reads: either a bare event or an
// event wrapped with its author profile.
type saveRequest struct {
	Event    *note.Event   `json:"event"`
	Metadata note.Metadata `json:"metadata"`
}

// parseSaveRequest accepts {"event": {...}, "metadata": {...}} or a bare
// event object.
func parseSaveRequest(data []byte) (note.Event, note.Metadata, error) {
	var wrapped saveRequest
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return note.Event{}, nil, fmt.Errorf("invalid event JSON: %w", err)
	}
	if wrapped.Event != nil {
		return *wrapped.Event, wrapped.Metadata, nil
	}

	var e note.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return note.Event{}, nil, fmt.Errorf("invalid event JSON: %w", err)
	}
	return e, nil, nil
}

// saveCmd creates the save command.
func saveCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "save",
		Usage: "Save an event as a note (reads event JSON from --file or stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Usage: "Read event JSON from this file"},
			&cli.StringFlag{Name: "collection", Aliases: []string{"c"}, Usage: "Collection (default: Default)"},
			&cli.StringFlag{Name: "thoughts", Aliases: []string{"t"}, Usage: "Annotation"},
			&cli.StringFlag{Name: "metadata", Usage: "Author profile JSON, e.g. '{\"name\":\"alice\"}'"},
		},
		Action: func(c *cli.Context) error {
			var data []byte
			if path := c.String("file"); path != "" {
				b, err := os.ReadFile(path)
				if err != nil {
					return outputError(errors.NewFileNotFound(path))
				}
				data = b
			} else {
				if !hasPipedInput(c.App.Reader) {
					return outputError(errors.NewInvalidRequest("event JSON must be piped via stdin or given with --file"))
				}
				b, err := readInput(c.App.Reader)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				data = b
			}
			if len(bytes.TrimSpace(data)) == 0 {
				return outputError(errors.NewInvalidRequest("event JSON is required"))
			}

			event, metadata, err := parseSaveRequest(data)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}
			if raw := c.String("metadata"); raw != "" {
				if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
					return outputError(errors.NewInvalidRequest("metadata must be a JSON object"))
				}
			}

			input := ops.SaveInput{
				Event:      event,
				Metadata:   metadata,
				Collection: c.String("collection"),
			}
			if c.IsSet("thoughts") {
				thoughts := c.String("thoughts")
				input.Thoughts = &thoughts
			}

			output, err := ops.Save(db, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// getCmd creates the get command.
func getCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get a note by event id",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Get(db, ops.GetInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// listCmd creates the list command.
func listCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List notes ranked by upvotes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "collection", Aliases: []string{"c"}, Usage: "Only this collection"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Skip first N results"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(db, ops.ListInput{
				Collection: c.String("collection"),
				Limit:      c.Int("limit"),
				Offset:     c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// voteCmd creates the upvote and downvote commands.
func voteCmd(db *sql.DB, name, usage string, vote func(*sql.DB, string) (*ops.VoteOutput, error)) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := vote(db, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// moveCmd creates the move command.
func moveCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "move",
		Usage:     "File a note under another collection",
		ArgsUsage: "<id> <collection>",
		Action: func(c *cli.Context) error {
			output, err := ops.Move(db, ops.MoveInput{
				ID:         c.Args().Get(0),
				Collection: c.Args().Get(1),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// annotateCmd creates the annotate command.
func annotateCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "annotate",
		Usage:     "Set a note's thoughts (blank clears them)",
		ArgsUsage: "<id> [thoughts]",
		Action: func(c *cli.Context) error {
			thoughts := strings.Join(c.Args().Tail(), " ")
			output, err := ops.Annotate(db, ops.AnnotateInput{
				ID:       c.Args().First(),
				Thoughts: thoughts,
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// removeCmd creates the remove command.
func removeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "remove",
		Usage:     "Delete a note",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.Remove(db, c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Delete every note and collection except Default",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Confirm"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return outputError(errors.NewInvalidRequest("clear deletes every note; pass --yes to confirm"))
			}
			output, err := ops.Clear(db)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// collectionsCmd creates the collections command and its subcommands.
func collectionsCmd(db *sql.DB) *cli.Command {
	list := func(c *cli.Context) error {
		output, err := ops.ListCollections(db)
		if err != nil {
			return outputError(err)
		}
		return outputJSON(c, output)
	}

	return &cli.Command{
		Name:   "collections",
		Usage:  "Manage collections",
		Action: list,
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List collections with note counts",
				Action: list,
			},
			{
				Name:      "create",
				Usage:     "Register a collection",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					output, err := ops.CreateCollection(db, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:      "rename",
				Usage:     "Rename a collection; its notes follow",
				ArgsUsage: "<from> <to>",
				Action: func(c *cli.Context) error {
					output, err := ops.RenameCollection(db, ops.RenameCollectionInput{
						From: c.Args().Get(0),
						To:   c.Args().Get(1),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a collection, moving its notes to Default",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					output, err := ops.DeleteCollection(db, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c, output)
				},
			},
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export every collection to a zip archive",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output .zip path (default: ~/.smn/exports/<prefix>-export-YYYY-MM-DD.zip)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, db, cfg, ops.ExportInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import notes from a zip archive",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Archive .zip path"},
			&cli.BoolFlag{Name: "overwrite", Usage: "Replace notes whose id already exists"},
			&cli.BoolFlag{Name: "merge-collections", Value: true, Usage: "Register the archive's collections"},
			&cli.StringSliceFlag{Name: "include", Aliases: []string{"i"}, Usage: "Only entries matching this glob (repeatable), e.g. Work/**"},
		},
		Action: func(c *cli.Context) error {
			merge := c.Bool("merge-collections")
			output, err := ops.Import(c.Context, db, cfg, ops.ImportInput{
				Path:             c.String("path"),
				Overwrite:        c.Bool("overwrite"),
				MergeCollections: &merge,
				Include:          c.StringSlice("include"),
			})
			if err != nil {
				// A failed import still prints what it found.
				if output != nil {
					_ = outputJSON(c, output)
				}
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List recent imports",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum runs"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.History(db, c.Int("limit"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c, output)
		},
	}
}

// lintCmd creates the lint command.
func lintCmd() *cli.Command {
	return &cli.Command{
		Name:      "lint",
		Usage:     "Check an archive note document (reads the file argument or stdin)",
		ArgsUsage: "[file]",
		Action: func(c *cli.Context) error {
			var data []byte
			if path := c.Args().First(); path != "" {
				b, err := os.ReadFile(path)
				if err != nil {
					return outputError(errors.NewFileNotFound(path))
				}
				data = b
			} else {
				b, err := readInput(c.App.Reader)
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				data = b
			}

			output, err := ops.Lint(ops.LintInput{Document: string(data)})
			if err != nil {
				return outputError(err)
			}
			if err := outputJSON(c, output); err != nil {
				return err
			}
			if !output.Valid {
				return cli.Exit("document does not match the archive note layout", 1)
			}
			return nil
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8420, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(db, cfg, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv)
		},
	}
}

// Helper functions

// outputJSON writes result to the app's writer as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var sErr *errors.SMNError
	if stderrors.As(err, &sErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// hasPipedInput reports whether r has data to read. Only a terminal stdin
// counts as empty.
func hasPipedInput(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return r != nil
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readInput reads all of r.
func readInput(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, nil
	}
	return io.ReadAll(r)
}
