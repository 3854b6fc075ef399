// Command query answers searches against a search index file without
// starting the server.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/meghashyamc/docindex/db/searchdb"
	"github.com/meghashyamc/docindex/db/termindex"
	"github.com/meghashyamc/docindex/logger"
	"github.com/meghashyamc/docindex/metrics"
	"github.com/meghashyamc/docindex/payload"
	"github.com/meghashyamc/docindex/services/index"
	"github.com/meghashyamc/docindex/services/search"
	"github.com/urfave/cli"
)

const appName = "docindex-query"

func main() {
	godotenv.Load()

	if err := makeApp(os.Stdout).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// snapshotHolder serves a single snapshot loaded at startup.
type snapshotHolder struct {
	snapshot *payload.Snapshot
}

func (h snapshotHolder) Current() (*payload.Snapshot, error) {
	return h.snapshot, nil
}

func makeApp(out io.Writer) *cli.App {
	app := cli.NewApp()
	app.Name = appName
	app.Usage = "query a documentation search index"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "index",
			Value:  "",
			EnvVar: "PAYLOAD_PATH",
			Usage:  "The searchindex.js file or a directory containing it",
		},
		cli.StringFlag{
			Name:   "log-level",
			Value:  "error",
			EnvVar: "LOG_LEVEL",
			Usage:  "The log level (debug, info, warn, error)",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:      "search",
			Usage:     "rank pages and objects matching a query",
			ArgsUsage: "<query>",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "mode", Value: string(termindex.ModeAnd), Usage: "and (every term) or or (any term)"},
				cli.BoolFlag{Name: "partial", Usage: "match terms that contain a query word"},
				cli.IntFlag{Name: "limit", Value: search.DefaultLimit, Usage: "The maximum number of pages"},
				cli.IntFlag{Name: "offset", Value: 0, Usage: "The number of pages to skip"},
			},
			Action: withService(out, runSearch),
		},
		{
			Name:      "term",
			Usage:     "list the pages a single term occurs on",
			ArgsUsage: "<term>",
			Action: withService(out, func(appCtx *cli.Context, service *search.Service) (any, error) {
				term, err := requireArg(appCtx, "term")
				if err != nil {
					return nil, err
				}
				return service.Lookup(term)
			}),
		},
		{
			Name:      "object",
			Usage:     "resolve an object by its full name",
			ArgsUsage: "<fullname>",
			Action: withService(out, func(appCtx *cli.Context, service *search.Service) (any, error) {
				name, err := requireArg(appCtx, "fullname")
				if err != nil {
					return nil, err
				}
				return service.Object(name)
			}),
		},
		{
			Name:      "document",
			Usage:     "show a page and the objects defined on it",
			ArgsUsage: "<id>",
			Action: withService(out, func(appCtx *cli.Context, service *search.Service) (any, error) {
				arg, err := requireArg(appCtx, "id")
				if err != nil {
					return nil, err
				}
				id, err := strconv.Atoi(arg)
				if err != nil {
					return nil, fmt.Errorf("document id must be an integer: %w", err)
				}
				return service.Document(id)
			}),
		},
		{
			Name:      "suggest",
			Usage:     "complete a page title or object name",
			ArgsUsage: "<prefix>",
			Flags: []cli.Flag{
				cli.IntFlag{Name: "limit", Value: 10, Usage: "The maximum number of suggestions"},
			},
			Action: withService(out, func(appCtx *cli.Context, service *search.Service) (any, error) {
				prefix, err := requireArg(appCtx, "prefix")
				if err != nil {
					return nil, err
				}
				return service.Suggest(prefix, appCtx.Int("limit"))
			}),
		},
		{
			Name:  "stats",
			Usage: "print index statistics",
			Action: withService(out, func(_ *cli.Context, service *search.Service) (any, error) {
				return service.Stats()
			}),
		},
	}
	return app
}

func runSearch(appCtx *cli.Context, service *search.Service) (any, error) {
	if appCtx.NArg() == 0 {
		return nil, errors.New("missing <query> argument")
	}
	query := strings.Join(appCtx.Args(), " ")
	mode, err := termindex.ParseMode(appCtx.String("mode"))
	if err != nil {
		return nil, err
	}

	return service.Search(context.Background(), search.Request{
		Query:   query,
		Mode:    mode,
		Partial: appCtx.Bool("partial"),
		Limit:   appCtx.Int("limit"),
		Offset:  appCtx.Int("offset"),
	})
}

type commandFunc func(appCtx *cli.Context, service *search.Service) (any, error)

// withService loads the index named by --index and prints the command's
// result as JSON.
func withService(out io.Writer, fn commandFunc) cli.ActionFunc {
	return func(appCtx *cli.Context) error {
		log := logger.New(appCtx.GlobalString("log-level"))

		path := appCtx.GlobalString("index")
		if path == "" {
			return errors.New("the search index must be specified with --index")
		}

		payloadPath, err := index.DiscoverPayload(log, path)
		if err != nil {
			return err
		}
		snapshot, err := payload.Load(payloadPath)
		if err != nil {
			return err
		}

		suggestDB := searchdb.New(log)
		defer suggestDB.Close()
		if err := suggestDB.Rebuild(searchdb.NewEntries(snapshot.Index)); err != nil {
			return err
		}

		service := search.New(log, snapshotHolder{snapshot: snapshot}, suggestDB, search.NewNoopCache(), metrics.New())
		result, err := fn(appCtx, service)
		if err != nil {
			return err
		}

		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}
}

func requireArg(appCtx *cli.Context, name string) (string, error) {
	if appCtx.NArg() == 0 {
		return "", fmt.Errorf("missing <%s> argument", name)
	}
	return appCtx.Args().First(), nil
}
