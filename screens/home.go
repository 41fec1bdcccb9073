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

const (
	// FeaturedBooksLimit caps the Featured Books carousel.
	FeaturedBooksLimit = 4
	// NewAuthorsLimit caps the New Authors carousel.
	NewAuthorsLimit = 5
)

// PopularCategories is the fixed category row on the Home screen.
var PopularCategories = []models.BookCategory{
	{Name: "Fiction", Background: "rgba(99,102,241,0.1)", Color: "#6366F1"},
	{Name: "Mystery", Background: "rgba(245,158,11,0.1)", Color: "#F59E0B"},
	{Name: "Sci-Fi", Background: "rgba(236,72,153,0.1)", Color: "#EC4899"},
	{Name: "Romance", Background: "#ffe4e6", Color: "#db2777"},
	{Name: "Biography", Background: "#dbeafe", Color: "#2563eb"},
	{Name: "Self-Help", Background: "#bbf7d0", Color: "#16a34a"},
	{Name: "Fantasy", Background: "#ede9fe", Color: "#7c3aed"},
}

// Home is the landing screen: a hero banner, featured books, new authors,
// popular categories and a closing prompt to add a book.
type Home struct {
	cache    *query.Cache
	books    Lister[models.Book]
	authors  Lister[models.Author]
	renderer components.Renderer
}

func NewHome(cache *query.Cache, books Lister[models.Book], authors Lister[models.Author], renderer components.Renderer) *Home {
	return &Home{cache: cache, books: books, authors: authors, renderer: renderer}
}

func (h *Home) Title() string { return "BookShare" }

func (h *Home) Keys() []string {
	return []string{h.books.Name(), h.authors.Name()}
}

func (h *Home) Mount(_ context.Context) {
	query.Prefetch(h.cache, h.books.Name(), h.books.List)
	query.Prefetch(h.cache, h.authors.Name(), h.authors.List)
}

func (h *Home) Render(w io.Writer) error {
	bw := bufio.NewWriter(w)
	header(bw, h.Title())

	fmt.Fprintln(bw, "Discover & Share Books")
	fmt.Fprintln(bw, "Connect with readers and find your next favorite book")
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, components.SectionHeader("Featured Books", "See All"))
	books := query.Peek[[]models.Book](h.cache, h.books.Name())
	section(bw, books, "books", FeaturedBooksLimit, h.renderer.CompactBookCard)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, components.SectionHeader("New Authors", "See All"))
	authors := query.Peek[[]models.Author](h.cache, h.authors.Name())
	section(bw, authors, "authors", NewAuthorsLimit, h.renderer.CompactAuthorCard)
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, components.SectionHeader("Popular Categories", "All"))
	fmt.Fprintln(bw, h.renderer.CategoryPills(PopularCategories))
	fmt.Fprintln(bw)

	for _, line := range components.CallToAction(
		"Have a great book to share?",
		"Help grow our community by adding your favorite books",
		"Add Your Book",
	) {
		fmt.Fprintln(bw, line)
	}

	return bw.Flush()
}
