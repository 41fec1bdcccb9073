package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// BookCount is the number of books credited to an author. The backend sends
// either a number or the list of books itself.
type BookCount int

// UnmarshalJSON accepts a number, an array (its length is used) or null.
func (n *BookCount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*n = 0
		return nil
	}
	if data[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*n = BookCount(len(items))
		return nil
	}
	var count float64
	if err := json.Unmarshal(data, &count); err != nil {
		return fmt.Errorf("books must be a number or a list: %w", err)
	}
	if count < 0 {
		count = 0
	}
	*n = BookCount(count)
	return nil
}

// Author represents a catalog author.
type Author struct {
	ID          ID        `json:"id"`
	Name        string    `json:"name"`
	Country     string    `json:"country"`
	Image       string    `json:"image"`
	BorderColor string    `json:"borderColor,omitempty"`
	BookCount   BookCount `json:"books"`
}

// UnmarshalJSON fills ID from "_id" when "id" is absent.
func (a *Author) UnmarshalJSON(data []byte) error {
	type alias Author
	aux := struct {
		*alias
		MongoID ID `json:"_id"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = aux.MongoID
	}
	return nil
}

// CSVHeader lists the columns written by CSVRecord.
func (Author) CSVHeader() []string {
	return []string{"id", "name", "country", "image", "border_color", "books"}
}

// CSVRecord flattens the author into one CSV row.
func (a Author) CSVRecord() []string {
	return []string{
		string(a.ID),
		a.Name,
		a.Country,
		a.Image,
		a.BorderColor,
		strconv.Itoa(int(a.BookCount)),
	}
}

// AuthorInput is the payload for creating or updating an author.
type AuthorInput struct {
	Name        *string `json:"name,omitempty"`
	Country     *string `json:"country,omitempty"`
	Image       *string `json:"image,omitempty"`
	BorderColor *string `json:"borderColor,omitempty"`
}
