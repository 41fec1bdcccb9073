package models

import (
	"math"
	"testing"
)

func ptr[T any](v T) *T { return &v }

func TestBookInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   BookInput
		create  bool
		wantErr bool
	}{
		{
			name:   "valid create",
			input:  BookInput{Title: ptr("Dune"), Author: ptr("Frank Herbert"), Rating: ptr(4.5)},
			create: true,
		},
		{
			name:    "create missing title",
			input:   BookInput{Author: ptr("Frank Herbert")},
			create:  true,
			wantErr: true,
		},
		{
			name:    "create missing author",
			input:   BookInput{Title: ptr("Dune")},
			create:  true,
			wantErr: true,
		},
		{
			name:  "partial update",
			input: BookInput{Bookmarked: ptr(true)},
		},
		{
			name:    "update blank title",
			input:   BookInput{Title: ptr("  ")},
			wantErr: true,
		},
		{
			name:    "rating above scale",
			input:   BookInput{Rating: ptr(5.5)},
			wantErr: true,
		},
		{
			name:    "rating nan",
			input:   BookInput{Rating: ptr(math.NaN())},
			wantErr: true,
		},
		{
			name:    "negative reviews",
			input:   BookInput{Reviews: ptr(-1)},
			wantErr: true,
		},
		{
			name:    "unnamed category",
			input:   BookInput{Categories: []BookCategory{{Color: "#fff"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate(tt.create)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthorAndCategoryInputValidate(t *testing.T) {
	if err := (AuthorInput{}).Validate(true); err == nil {
		t.Fatalf("author create without name should fail")
	}
	if err := (AuthorInput{Country: ptr("UK")}).Validate(false); err != nil {
		t.Fatalf("author partial update: %v", err)
	}
	if err := (CategoryInput{Name: ptr("")}).Validate(false); err == nil {
		t.Fatalf("category update with empty name should fail")
	}
	if err := (CategoryInput{Name: ptr("Fantasy")}).Validate(true); err != nil {
		t.Fatalf("category create: %v", err)
	}
}
