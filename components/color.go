package components

import (
	"strings"
)

// Default presentation tokens used when the backend omits them.
const (
	DefaultCategoryBackground = "#ede9fe"
	DefaultCategoryColor      = "#6366F1"
	DefaultBorderColor        = "#6366F1"
	DefaultBadgeColor         = "#6366F1"
	BadgeTextColor            = "#ffffff"
)

// paint styles text with the fg and bg tokens, converted down to the
// renderer's color profile. Tokens the profile cannot parse, such as rgba()
// values, are left uncolored.
func (r Renderer) paint(text, fg, bg string) string {
	if !r.Color {
		return text
	}
	style := r.Profile.String(text)
	if c := r.Profile.Color(strings.TrimSpace(fg)); c != nil {
		style = style.Foreground(c)
	}
	if c := r.Profile.Color(strings.TrimSpace(bg)); c != nil {
		style = style.Background(c)
	}
	return style.String()
}

func orDefault(token, fallback string) string {
	if strings.TrimSpace(token) == "" {
		return fallback
	}
	return token
}
