// Package components renders catalog entities as terminal text. Renderers
// are stateless: the same input always produces the same lines.
package components

import (
	"math"
	"strings"
)

// MaxRating is the top of the rating scale and the number of stars drawn.
const MaxRating = 5

// Star is the fill of one rating star.
type Star int

const (
	StarEmpty Star = iota
	StarHalf
	StarFull
)

// Glyph returns the character drawn for the star.
func (s Star) Glyph() string {
	switch s {
	case StarFull:
		return "★"
	case StarHalf:
		return "½"
	default:
		return "☆"
	}
}

// ClampRating bounds a rating to [0, MaxRating]. NaN counts as 0.
func ClampRating(rating float64) float64 {
	if math.IsNaN(rating) || rating < 0 {
		return 0
	}
	if rating > MaxRating {
		return MaxRating
	}
	return rating
}

// Stars returns the fill of each star for rating. Position i (1-based) is
// full when rating >= i, half when rating >= i-0.5, empty otherwise.
func Stars(rating float64) [MaxRating]Star {
	rating = ClampRating(rating)
	var stars [MaxRating]Star
	for i := 1; i <= MaxRating; i++ {
		switch {
		case rating >= float64(i):
			stars[i-1] = StarFull
		case rating >= float64(i)-0.5:
			stars[i-1] = StarHalf
		default:
			stars[i-1] = StarEmpty
		}
	}
	return stars
}

// RenderStars draws the five stars for rating.
func RenderStars(rating float64) string {
	var b strings.Builder
	for _, s := range Stars(rating) {
		b.WriteString(s.Glyph())
	}
	return b.String()
}
