package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aluiziolira/go-bookshare/assets"
	"github.com/aluiziolira/go-bookshare/client"
	"github.com/aluiziolira/go-bookshare/models"
	"github.com/aluiziolira/go-bookshare/output"
	"github.com/aluiziolira/go-bookshare/query"
	"github.com/aluiziolira/go-bookshare/screens"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const formatText = "text"

var resourceNames = []string{"books", "authors", "categories"}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "search", Aliases: []string{"s"}, Usage: "text shown in the search bar"},
		&cli.IntFlag{Name: "chip", Usage: "index of the selected filter chip"},
	}
}

func dataFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "data",
			Aliases:  []string{"d"},
			Usage:    "JSON `PAYLOAD`; unknown fields are rejected",
			Required: true,
		},
	}
}

func commands(f appFactory) []*cli.Command {
	return []*cli.Command{
		{
			Name:   "home",
			Usage:  "show featured books, new authors and popular categories",
			Action: f.withApp(runHome),
		},
		{
			Name:   "books",
			Usage:  "list every book",
			Flags:  filterFlags(),
			Action: f.withApp(runBooks),
		},
		{
			Name:   "authors",
			Usage:  "list every author",
			Flags:  filterFlags(),
			Action: f.withApp(runAuthors),
		},
		{
			Name:   "categories",
			Usage:  "list every category",
			Action: f.withApp(runCategories),
		},
		{
			Name:      "get",
			Usage:     "show one entity",
			ArgsUsage: "RESOURCE ID",
			Action:    f.withApp(runGet),
		},
		{
			Name:      "create",
			Usage:     "create an entity",
			ArgsUsage: "RESOURCE",
			Flags:     dataFlags(),
			Action:    f.withApp(runCreate),
		},
		{
			Name:      "update",
			Usage:     "replace an entity",
			ArgsUsage: "RESOURCE ID",
			Flags:     dataFlags(),
			Action:    f.withApp(runUpdate),
		},
		{
			Name:      "delete",
			Usage:     "delete an entity",
			ArgsUsage: "RESOURCE ID",
			Action:    f.withApp(runDelete),
		},
		{
			Name:   "images",
			Usage:  "check that book covers and author photos are reachable",
			Action: f.withApp(runImages),
		},
	}
}

func runHome(c *cli.Context, a *app) error {
	if a.cfg.OutputFormat != formatText {
		return fmt.Errorf("home only supports text output")
	}
	home := screens.NewHome(a.cache, a.client.Books, a.client.Authors, a.renderer)
	return screens.Run(c.Context, a.cache, home, c.App.Writer, progressWriter(c))
}

func runBooks(c *cli.Context, a *app) error {
	if a.cfg.OutputFormat != formatText {
		return exportList(c, a, a.client.Books)
	}
	books := screens.NewBooks(a.cache, a.client.Books, a.renderer)
	books.Filters = filtersFromFlags(c)
	return screens.Run(c.Context, a.cache, books, c.App.Writer, progressWriter(c))
}

func runAuthors(c *cli.Context, a *app) error {
	if a.cfg.OutputFormat != formatText {
		return exportList(c, a, a.client.Authors)
	}
	authors := screens.NewAuthors(a.cache, a.client.Authors, a.renderer)
	authors.Filters = filtersFromFlags(c)
	return screens.Run(c.Context, a.cache, authors, c.App.Writer, progressWriter(c))
}

func runCategories(c *cli.Context, a *app) error {
	if a.cfg.OutputFormat != formatText {
		return exportList(c, a, a.client.Categories)
	}
	res := a.client.Categories
	snap := query.Query(c.Context, a.cache, res.Name(), res.List)
	if snap.Status == query.StatusError {
		fmt.Fprintln(c.App.Writer, "Failed to load categories.")
		return snap.Err
	}
	if err := settled(c.Context, snap); err != nil {
		return err
	}
	return emit(a, c.App.Writer, snap.Data, a.renderer.CategoryCard)
}

func runGet(c *cli.Context, a *app) error {
	ops, id, err := resourceAndID(c, a)
	if err != nil {
		return err
	}
	return ops.get(c.Context, c.App.Writer, id)
}

func runCreate(c *cli.Context, a *app) error {
	if c.NArg() != 1 {
		return fmt.Errorf("usage: create RESOURCE --data JSON")
	}
	ops, err := lookupResource(a, c.Args().Get(0))
	if err != nil {
		return err
	}
	return ops.create(c.Context, c.App.Writer, c.String("data"))
}

func runUpdate(c *cli.Context, a *app) error {
	ops, id, err := resourceAndID(c, a)
	if err != nil {
		return err
	}
	return ops.update(c.Context, c.App.Writer, id, c.String("data"))
}

func runDelete(c *cli.Context, a *app) error {
	ops, id, err := resourceAndID(c, a)
	if err != nil {
		return err
	}
	return ops.delete(c.Context, c.App.Writer, id)
}

func runImages(c *cli.Context, a *app) error {
	var (
		books   []models.Book
		authors []models.Author
	)
	g, ctx := errgroup.WithContext(c.Context)
	g.Go(func() error {
		snap := query.Query(ctx, a.cache, a.client.Books.Name(), a.client.Books.List)
		books = snap.Data
		return settled(ctx, snap)
	})
	g.Go(func() error {
		snap := query.Query(ctx, a.cache, a.client.Authors.Name(), a.client.Authors.List)
		authors = snap.Data
		return settled(ctx, snap)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	origin := a.cfg.ImageOrigin()
	urls := make([]string, 0, len(books)+len(authors))
	for _, b := range books {
		urls = append(urls, b.ImageURL(origin))
	}
	for _, au := range authors {
		urls = append(urls, au.ImageURL(origin))
	}

	report, err := a.prober.Check(c.Context, urls)
	if err != nil {
		return fmt.Errorf("probe images: %w", err)
	}

	if a.cfg.OutputFormat == formatText {
		for _, res := range report.Results {
			fmt.Fprintln(c.App.Writer, probeLine(res))
		}
	} else if err := export(a, c.App.Writer, report.Results); err != nil {
		return err
	}

	if broken := len(report.Broken()); broken > 0 {
		return fmt.Errorf("%d of %d images unreachable", broken, len(report.Results))
	}
	return nil
}

func probeLine(res assets.Result) string {
	if res.OK() {
		return fmt.Sprintf("ok      %d  %s", res.StatusCode, res.URL)
	}
	return fmt.Sprintf("broken  %d  %s (%s)", res.StatusCode, res.URL, res.Kind)
}

// resourceOps binds one resource's operations to the app so commands can
// dispatch on the resource name.
type resourceOps struct {
	get    func(ctx context.Context, w io.Writer, id string) error
	create func(ctx context.Context, w io.Writer, data string) error
	update func(ctx context.Context, w io.Writer, id, data string) error
	delete func(ctx context.Context, w io.Writer, id string) error
}

func lookupResource(a *app, name string) (resourceOps, error) {
	switch name {
	case "books":
		return newResourceOps(a, a.client.Books, a.renderer.BookCard), nil
	case "authors":
		return newResourceOps(a, a.client.Authors, a.renderer.AuthorCard), nil
	case "categories":
		return newResourceOps(a, a.client.Categories, a.renderer.CategoryCard), nil
	default:
		return resourceOps{}, fmt.Errorf("unknown resource %q (want one of %s)", name, strings.Join(resourceNames, ", "))
	}
}

func resourceAndID(c *cli.Context, a *app) (resourceOps, string, error) {
	if c.NArg() != 2 {
		return resourceOps{}, "", fmt.Errorf("usage: %s RESOURCE ID", c.Command.Name)
	}
	ops, err := lookupResource(a, c.Args().Get(0))
	if err != nil {
		return resourceOps{}, "", err
	}
	id := c.Args().Get(1)
	if strings.TrimSpace(id) == "" {
		return resourceOps{}, "", fmt.Errorf("id cannot be empty")
	}
	return ops, id, nil
}

func newResourceOps[T output.Record, P any](a *app, res *client.Resource[T, P], card func(T) []string) resourceOps {
	return resourceOps{
		get: func(ctx context.Context, w io.Writer, id string) error {
			snap := query.Query(ctx, a.cache, res.ItemKey(id), func(ctx context.Context) (T, error) {
				return res.Get(ctx, id)
			})
			if err := settled(ctx, snap); err != nil {
				if client.IsNotFound(err) {
					return fmt.Errorf("%s %q not found", strings.TrimSuffix(res.Name(), "s"), id)
				}
				return err
			}
			return emit(a, w, []T{snap.Data}, card)
		},
		create: func(ctx context.Context, w io.Writer, data string) error {
			payload, err := decodeInput[P](data, true)
			if err != nil {
				return err
			}
			created, err := res.Create(ctx, payload)
			if err != nil {
				return err
			}
			a.cache.Invalidate(res.Name())
			slog.Info("created", slog.String("resource", res.Name()))
			if unidentified(created) {
				_, err := fmt.Fprintf(w, "created %s\n", res.Name())
				return err
			}
			return emit(a, w, []T{created}, card)
		},
		update: func(ctx context.Context, w io.Writer, id, data string) error {
			payload, err := decodeInput[P](data, false)
			if err != nil {
				return err
			}
			updated, err := res.Update(ctx, id, payload)
			if err != nil {
				return err
			}
			a.cache.Invalidate(res.Name(), res.ItemKey(id))
			slog.Info("updated", slog.String("resource", res.Name()), slog.String("id", id))
			if unidentified(updated) {
				_, err := fmt.Fprintf(w, "updated %s/%s\n", res.Name(), id)
				return err
			}
			return emit(a, w, []T{updated}, card)
		},
		delete: func(ctx context.Context, w io.Writer, id string) error {
			if err := res.Delete(ctx, id); err != nil {
				return err
			}
			a.cache.Invalidate(res.Name())
			a.cache.Remove(res.ItemKey(id))
			fmt.Fprintf(w, "deleted %s\n", res.ItemKey(id))
			return nil
		},
	}
}

type validator interface {
	Validate(create bool) error
}

func decodeInput[P any](data string, create bool) (P, error) {
	var payload P
	dec := json.NewDecoder(strings.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return payload, fmt.Errorf("decode --data: %w", err)
	}
	if dec.More() {
		return payload, fmt.Errorf("decode --data: unexpected data after the JSON object")
	}
	if v, ok := any(payload).(validator); ok {
		if err := v.Validate(create); err != nil {
			return payload, fmt.Errorf("invalid --data: %w", err)
		}
	}
	return payload, nil
}

func exportList[T output.Record, P any](c *cli.Context, a *app, res *client.Resource[T, P]) error {
	snap := query.Query(c.Context, a.cache, res.Name(), res.List)
	if err := settled(c.Context, snap); err != nil {
		return err
	}
	return export(a, c.App.Writer, snap.Data)
}

// emit writes items as text cards or in the configured export format.
// unidentified reports a record decoded from an empty reply body. The id is
// always the first CSV column.
func unidentified[T output.Record](v T) bool {
	rec := v.CSVRecord()
	return len(rec) == 0 || rec[0] == ""
}

func emit[T output.Record](a *app, w io.Writer, items []T, card func(T) []string) error {
	if a.cfg.OutputFormat != formatText {
		return export(a, w, items)
	}
	for _, item := range items {
		for _, line := range card(item) {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
	}
	return nil
}

func export[T output.Record](a *app, w io.Writer, items []T) error {
	dst, err := output.Open(a.cfg.OutputFile, w)
	if err != nil {
		return err
	}
	writer, err := output.New[T](a.cfg.OutputFormat, dst)
	if err != nil {
		dst.Close()
		return err
	}
	if err := writer.Write(items); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}
	if a.cfg.OutputFile != "" {
		slog.Info("export written", slog.String("file", a.cfg.OutputFile), slog.Int("records", len(items)))
	}
	return nil
}

// settled turns a snapshot into an error: the fetch error, or ctx's error
// when the caller stopped waiting first.
func settled[T any](ctx context.Context, snap query.Snapshot[T]) error {
	switch snap.Status {
	case query.StatusSuccess:
		return nil
	case query.StatusError:
		return snap.Err
	default:
		if err := ctx.Err(); err != nil {
			return err
		}
		return errors.New("query did not settle")
	}
}

func filtersFromFlags(c *cli.Context) screens.Filters {
	return screens.Filters{Search: c.String("search"), Active: c.Int("chip")}
}

// progressWriter returns where the loading frame goes: the error stream
// when it is a terminal, nowhere otherwise.
func progressWriter(c *cli.Context) io.Writer {
	if isTerminal(c.App.ErrWriter) {
		return c.App.ErrWriter
	}
	return nil
}
