package models

import (
	"fmt"
	"math"
	"strings"
)

// Validate checks a book payload before it is sent. Creating requires a
// title and an author; updates only check the fields they carry.
func (in BookInput) Validate(create bool) error {
	if create && blank(in.Title) {
		return fmt.Errorf("book missing title")
	}
	if create && blank(in.Author) {
		return fmt.Errorf("book missing author")
	}
	if !create && in.Title != nil && blank(in.Title) {
		return fmt.Errorf("book title cannot be empty")
	}
	if in.Rating != nil {
		if r := *in.Rating; math.IsNaN(r) || r < 0 || r > 5 {
			return fmt.Errorf("book rating %v outside [0, 5]", r)
		}
	}
	if in.Reviews != nil && *in.Reviews < 0 {
		return fmt.Errorf("book reviews cannot be negative")
	}
	for i, c := range in.Categories {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("book category %d missing name", i)
		}
	}
	return nil
}

// Validate checks an author payload before it is sent.
func (in AuthorInput) Validate(create bool) error {
	if (create || in.Name != nil) && blank(in.Name) {
		return fmt.Errorf("author missing name")
	}
	return nil
}

// Validate checks a category payload before it is sent.
func (in CategoryInput) Validate(create bool) error {
	if (create || in.Name != nil) && blank(in.Name) {
		return fmt.Errorf("category missing name")
	}
	return nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}
