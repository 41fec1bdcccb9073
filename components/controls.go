package components

import "strings"

// Chip is one entry of a filter chip row.
type Chip struct {
	Label    string
	Active   bool
	Dropdown bool
}

// FilterChips renders a chip row. The active chip is marked with [x].
func FilterChips(chips []Chip) string {
	parts := make([]string, 0, len(chips))
	for _, c := range chips {
		mark := "[ ]"
		if c.Active {
			mark = "[x]"
		}
		label := c.Label
		if c.Dropdown {
			label += " ▾"
		}
		parts = append(parts, mark+" "+label)
	}
	return strings.Join(parts, "  ")
}

// SearchBar renders the search input, showing placeholder when value is
// empty.
func SearchBar(value, placeholder string) string {
	if placeholder == "" {
		placeholder = "Search..."
	}
	if strings.TrimSpace(value) == "" {
		return "Search: (" + placeholder + ")"
	}
	return "Search: " + value
}

// SectionHeader renders a section title with an optional action label.
func SectionHeader(title, action string) string {
	if action == "" {
		return "== " + title + " =="
	}
	return "== " + title + " ==  " + action + " >"
}

// Header renders a screen title bar.
func Header(title string) string {
	return title + "\n" + strings.Repeat("=", len([]rune(title)))
}

// CallToAction renders a prompt block: a title, a subtitle and a button.
func CallToAction(title, subtitle, button string) []string {
	return []string{title, subtitle, "[+ " + button + "]"}
}
