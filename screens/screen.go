// Package screens composes cached queries and components into the Home,
// Books and Authors views. Screens own no data: they read whatever the query
// cache holds for their keys.
package screens

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aluiziolira/go-bookshare/components"
	"github.com/aluiziolira/go-bookshare/query"
	"golang.org/x/sync/errgroup"
)

// Screen is a view over one or more cache keys.
type Screen interface {
	Title() string
	// Keys lists the cache keys the screen reads.
	Keys() []string
	// Mount starts fetching the screen's data without waiting for it.
	Mount(ctx context.Context)
	Render(w io.Writer) error
}

// Lister fetches a whole collection. Name is used as the cache key.
type Lister[T any] interface {
	Name() string
	List(ctx context.Context) ([]T, error)
}

const loadingText = "Loading..."

// Run mounts s, renders a loading frame to progress while any key is still
// loading, waits for every key to settle and renders the final frame to out.
// progress may be nil.
func Run(ctx context.Context, cache *query.Cache, s Screen, out, progress io.Writer) error {
	keys := s.Keys()
	subs := make([]<-chan struct{}, len(keys))
	for i, key := range keys {
		ch, unsubscribe := cache.Subscribe(key)
		defer unsubscribe()
		subs[i] = ch
	}

	s.Mount(ctx)

	if progress != nil && !allSettled(cache, keys) {
		if err := s.Render(progress); err != nil {
			return fmt.Errorf("render loading frame: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		ch := subs[i]
		g.Go(func() error {
			return waitSettled(gctx, cache, key, ch)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Debug("screen settled", slog.String("screen", s.Title()), slog.Int("keys", len(keys)))
	return s.Render(out)
}

func allSettled(cache *query.Cache, keys []string) bool {
	for _, key := range keys {
		if !cache.Settled(key) {
			return false
		}
	}
	return true
}

func waitSettled(ctx context.Context, cache *query.Cache, key string, changed <-chan struct{}) error {
	for !cache.Settled(key) {
		select {
		case <-changed:
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", key, ctx.Err())
		}
	}
	return nil
}

// section renders one data section as exactly one of three branches: the
// loading indicator, the failure text, or up to limit items. limit <= 0
// renders every item.
func section[T any](w *bufio.Writer, snap query.Snapshot[[]T], resource string, limit int, card func(T) []string) {
	switch snap.Status {
	case query.StatusLoading:
		fmt.Fprintln(w, loadingText)
	case query.StatusError:
		fmt.Fprintf(w, "Failed to load %s.\n", resource)
	default:
		items := snap.Data
		if limit > 0 && len(items) > limit {
			items = items[:limit]
		}
		if len(items) == 0 {
			fmt.Fprintf(w, "No %s yet.\n", resource)
			return
		}
		for _, item := range items {
			for _, line := range card(item) {
				fmt.Fprintln(w, line)
			}
		}
	}
}

func header(w *bufio.Writer, title string) {
	fmt.Fprintln(w, components.Header(title))
	fmt.Fprintln(w)
}
