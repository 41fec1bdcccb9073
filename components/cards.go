package components

import (
	"fmt"
	"strings"

	"github.com/aluiziolira/go-bookshare/models"
	"github.com/muesli/termenv"
)

// Renderer turns entities into lines of text.
type Renderer struct {
	// ImageOrigin resolves relative image paths. Empty hides image lines.
	ImageOrigin string
	// Color enables ANSI colors derived from the entities' color tokens.
	Color bool
	// Profile is the terminal's color capability. The zero value is
	// TrueColor.
	Profile termenv.Profile
}

// BookCard renders the full book row used by the Books screen.
func (r Renderer) BookCard(b models.Book) []string {
	title := r.titleWithBadge(b)
	if b.Bookmarked {
		title += "  [bookmarked]"
	}
	lines := []string{title}
	if b.Author.Name != "" {
		lines = append(lines, "  by "+b.Author.Name)
	}
	if len(b.Categories) > 0 {
		lines = append(lines, "  "+r.CategoryPills(b.Categories))
	}
	lines = append(lines, "  "+RatingLine(b.Rating, b.Reviews))
	if url := r.imageURL(b.Image); url != "" {
		lines = append(lines, "  cover: "+url)
	}
	return lines
}

// CompactBookCard renders the short form used in the Home carousel.
func (r Renderer) CompactBookCard(b models.Book) []string {
	lines := []string{r.titleWithBadge(b)}
	if b.Author.Name != "" {
		lines = append(lines, "  "+b.Author.Name)
	}
	return lines
}

func (r Renderer) titleWithBadge(b models.Book) string {
	if strings.TrimSpace(b.Badge) == "" {
		return b.Title
	}
	return b.Title + "  " + r.paint("("+b.Badge+")", BadgeTextColor, orDefault(b.BadgeColor, DefaultBadgeColor))
}

// AuthorCard renders the author row used by the Authors screen.
func (r Renderer) AuthorCard(a models.Author) []string {
	name := r.paint(a.Name, orDefault(a.BorderColor, DefaultBorderColor), "")
	lines := []string{name, "  " + authorMeta(a)}
	if url := r.imageURL(a.Image); url != "" {
		lines = append(lines, "  photo: "+url)
	}
	return lines
}

// CompactAuthorCard renders the short form used in the Home carousel.
func (r Renderer) CompactAuthorCard(a models.Author) []string {
	lines := []string{r.paint(a.Name, orDefault(a.BorderColor, DefaultBorderColor), "")}
	if a.Country != "" {
		lines = append(lines, "  "+a.Country)
	}
	return lines
}

// CategoryPills renders categories as a row of tags.
func (r Renderer) CategoryPills(categories []models.BookCategory) string {
	pills := make([]string, 0, len(categories))
	for _, c := range categories {
		pill := "[" + c.Name + "]"
		pills = append(pills, r.paint(pill,
			orDefault(c.Color, DefaultCategoryColor),
			orDefault(c.Background, DefaultCategoryBackground),
		))
	}
	return strings.Join(pills, " ")
}

// CategoryCard renders a catalog category as a single pill.
func (r Renderer) CategoryCard(c models.Category) []string {
	return []string{r.CategoryPills([]models.BookCategory{c.Tag()})}
}

// RatingLine renders stars followed by the numeric rating and review count.
func RatingLine(rating float64, reviews int) string {
	return fmt.Sprintf("%s %.1f • %s", RenderStars(rating), ClampRating(rating), plural(reviews, "review"))
}

func authorMeta(a models.Author) string {
	count := plural(int(a.BookCount), "book")
	if a.Country == "" {
		return count
	}
	return a.Country + " • " + count
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func (r Renderer) imageURL(image string) string {
	if r.ImageOrigin == "" {
		return ""
	}
	return models.ResolveImage(r.ImageOrigin, image)
}
