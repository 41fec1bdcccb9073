package models

import "encoding/json"

// Category is a standalone catalog category. It has no identity beyond its
// name for display purposes; ID is kept for the CRUD routes.
type Category struct {
	ID         ID     `json:"id"`
	Name       string `json:"name"`
	Background string `json:"bg,omitempty"`
	Color      string `json:"color,omitempty"`
}

// UnmarshalJSON fills ID from "_id" when "id" is absent.
func (c *Category) UnmarshalJSON(data []byte) error {
	type alias Category
	aux := struct {
		*alias
		MongoID ID `json:"_id"`
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.ID == "" {
		c.ID = aux.MongoID
	}
	return nil
}

// Tag converts the category to the form embedded in books.
func (c Category) Tag() BookCategory {
	return BookCategory{Name: c.Name, Background: c.Background, Color: c.Color}
}

// CSVHeader lists the columns written by CSVRecord.
func (Category) CSVHeader() []string {
	return []string{"id", "name", "bg", "color"}
}

// CSVRecord flattens the category into one CSV row.
func (c Category) CSVRecord() []string {
	return []string{string(c.ID), c.Name, c.Background, c.Color}
}

// CategoryInput is the payload for creating or updating a category.
type CategoryInput struct {
	Name       *string `json:"name,omitempty"`
	Background *string `json:"bg,omitempty"`
	Color      *string `json:"color,omitempty"`
}
