package screens

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/aluiziolira/go-bookshare/components"
	"github.com/aluiziolira/go-bookshare/models"
	"github.com/aluiziolira/go-bookshare/query"
)

// Filters is the ephemeral search state of a list screen. It is shown in
// the search bar and chip row but does not narrow the list.
type Filters struct {
	Search string
	// Active is the index of the selected chip; out of range selects the
	// first one.
	Active int
}

func (f Filters) chips(labels []components.Chip) []components.Chip {
	active := f.Active
	if active < 0 || active >= len(labels) {
		active = 0
	}
	chips := make([]components.Chip, len(labels))
	copy(chips, labels)
	for i := range chips {
		chips[i].Active = i == active
	}
	return chips
}

// listScreen is a header, a search bar, a chip row and the full collection.
type listScreen[T any] struct {
	title       string
	resource    string
	placeholder string
	chipLabels  []components.Chip

	cache  *query.Cache
	source Lister[T]
	card   func(T) []string

	Filters
}

func (s *listScreen[T]) Title() string { return s.title }

func (s *listScreen[T]) Keys() []string { return []string{s.source.Name()} }

func (s *listScreen[T]) Mount(_ context.Context) {
	query.Prefetch(s.cache, s.source.Name(), s.source.List)
}

func (s *listScreen[T]) Render(w io.Writer) error {
	bw := bufio.NewWriter(w)
	header(bw, s.title)
	fmt.Fprintln(bw, components.SearchBar(s.Search, s.placeholder))
	fmt.Fprintln(bw, components.FilterChips(s.chips(s.chipLabels)))
	fmt.Fprintln(bw)

	snap := query.Peek[[]T](s.cache, s.source.Name())
	section(bw, snap, s.resource, 0, s.card)
	return bw.Flush()
}

// Books lists every book with full cards.
type Books struct {
	*listScreen[models.Book]
}

func NewBooks(cache *query.Cache, source Lister[models.Book], renderer components.Renderer) *Books {
	return &Books{&listScreen[models.Book]{
		title:       "Books",
		resource:    "books",
		placeholder: "Search by title or keyword...",
		chipLabels: []components.Chip{
			{Label: "All Books"},
			{Label: "Category", Dropdown: true},
			{Label: "Sort by", Dropdown: true},
		},
		cache:  cache,
		source: source,
		card:   renderer.BookCard,
	}}
}

// Authors lists every author with full cards.
type Authors struct {
	*listScreen[models.Author]
}

func NewAuthors(cache *query.Cache, source Lister[models.Author], renderer components.Renderer) *Authors {
	return &Authors{&listScreen[models.Author]{
		title:       "Authors",
		resource:    "authors",
		placeholder: "Search authors...",
		chipLabels: []components.Chip{
			{Label: "All Authors"},
			{Label: "Country", Dropdown: true},
			{Label: "Sort by", Dropdown: true},
		},
		cache:  cache,
		source: source,
		card:   renderer.AuthorCard,
	}}
}
