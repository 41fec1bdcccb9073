// Package models defines the catalog entities exchanged with the backend.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ID identifies an entity. The backend may send it as a string or a number,
// under "id" or "_id".
type ID string

// UnmarshalJSON accepts string and numeric identifiers.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// BookCategory is a category tag attached to a book.
type BookCategory struct {
	Name       string `json:"name"`
	Background string `json:"bg,omitempty"`
	Color      string `json:"color,omitempty"`
}

// UnmarshalJSON accepts either a bare category name or a full object.
func (c *BookCategory) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*c = BookCategory{Name: name}
		return nil
	}
	type alias BookCategory
	var aux alias
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*c = BookCategory(aux)
	return nil
}

// AuthorRef is a book's author: a plain name, or a reference to an Author
// record when the backend populates it.
type AuthorRef struct {
	ID   ID     `json:"id,omitempty"`
	Name string `json:"name"`
}

// UnmarshalJSON accepts either a name string or an author object.
func (a *AuthorRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*a = AuthorRef{Name: name}
		return nil
	}
	var aux struct {
		ID      ID     `json:"id"`
		MongoID ID     `json:"_id"`
		Name    string `json:"name"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	a.ID = aux.ID
	if a.ID == "" {
		a.ID = aux.MongoID
	}
	a.Name = aux.Name
	return nil
}

// MarshalJSON writes a bare name unless the reference carries an id.
func (a AuthorRef) MarshalJSON() ([]byte, error) {
	if a.ID == "" {
		return json.Marshal(a.Name)
	}
	type alias AuthorRef
	return json.Marshal(alias(a))
}

// Book represents a catalog book.
type Book struct {
	ID         ID             `json:"id"`
	Title      string         `json:"title"`
	Author     AuthorRef      `json:"author"`
	Image      string         `json:"image"`
	Categories []BookCategory `json:"categories"`
	Rating     float64        `json:"rating"`
	Reviews    int            `json:"reviews"`
	Bookmarked bool           `json:"bookmarked"`
	// Badge is an optional short label such as "New" or "Bestseller".
	Badge      string         `json:"badge,omitempty"`
	BadgeColor string         `json:"badgeColor,omitempty"`
}

// UnmarshalJSON fills ID from "_id" when "id" is absent.
func (b *Book) UnmarshalJSON(data []byte) error {
	type alias Book
	aux := struct {
		*alias
		MongoID ID `json:"_id"`
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if b.ID == "" {
		b.ID = aux.MongoID
	}
	return nil
}

// CategoryNames returns the names of the book's categories in order.
func (b Book) CategoryNames() []string {
	names := make([]string, 0, len(b.Categories))
	for _, c := range b.Categories {
		names = append(names, c.Name)
	}
	return names
}

// CSVHeader lists the columns written by CSVRecord.
func (Book) CSVHeader() []string {
	return []string{"id", "title", "author", "image", "categories", "rating", "reviews", "bookmarked", "badge"}
}

// CSVRecord flattens the book into one CSV row.
func (b Book) CSVRecord() []string {
	return []string{
		string(b.ID),
		b.Title,
		b.Author.Name,
		b.Image,
		strings.Join(b.CategoryNames(), "|"),
		strconv.FormatFloat(b.Rating, 'f', -1, 64),
		strconv.Itoa(b.Reviews),
		strconv.FormatBool(b.Bookmarked),
		b.Badge,
	}
}

// BookInput is the payload for creating or updating a book. Nil fields are
// omitted so partial updates pass through untouched.
type BookInput struct {
	Title      *string        `json:"title,omitempty"`
	Author     *string        `json:"author,omitempty"`
	Image      *string        `json:"image,omitempty"`
	Categories []BookCategory `json:"categories,omitempty"`
	Rating     *float64       `json:"rating,omitempty"`
	Reviews    *int           `json:"reviews,omitempty"`
	Bookmarked *bool          `json:"bookmarked,omitempty"`
}
