package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/circulation/internal/errors"
)

type bookInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Author      string `json:"author" validate:"required,max=100"`
	ISBN        string `json:"isbn" validate:"len=13,digits"`
	TotalCopies int    `json:"total_copies" validate:"gt=0"`
}

type cardInput struct {
	PatronID string `json:"patron_id" validate:"patronid"`
}

var bookMessages = Messages{
	"title.required":  "Title is required.",
	"title.max":       "Title must be less than 200 characters.",
	"author.required": "Author is required.",
	"isbn.len":        "ISBN must be exactly 13 digits.",
	"isbn.digits":     "ISBN must be exactly 13 digits.",
}

func TestValidate_Valid(t *testing.T) {
	v := New()
	err := v.ValidateWithMessages(bookInput{
		Title:       "Dune",
		Author:      "Frank Herbert",
		ISBN:        "9780441172719",
		TotalCopies: 2,
	}, bookMessages)
	assert.NoError(t, err)
}

func TestValidate_FirstFieldWins(t *testing.T) {
	v := New()
	err := v.ValidateWithMessages(bookInput{ISBN: "123"}, bookMessages)
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, domainerrors.CodeValidation, domainErr.Code)
	assert.Equal(t, "Title is required.", domainErr.Message)

	details, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "Author is required.", details["author"])
	assert.Equal(t, "ISBN must be exactly 13 digits.", details["isbn"])
	assert.Equal(t, "total_copies must be greater than 0", details["total_copies"])
}

func TestValidate_Messages(t *testing.T) {
	v := New()

	tests := []struct {
		name  string
		input bookInput
		want  string
	}{
		{
			name:  "title too long",
			input: bookInput{Title: strings.Repeat("a", 201), Author: "A", ISBN: "1234567890123", TotalCopies: 1},
			want:  "Title must be less than 200 characters.",
		},
		{
			name:  "isbn with letters",
			input: bookInput{Title: "T", Author: "A", ISBN: "12345678901ab", TotalCopies: 1},
			want:  "ISBN must be exactly 13 digits.",
		},
		{
			name:  "isbn with sign",
			input: bookInput{Title: "T", Author: "A", ISBN: "+123456789012", TotalCopies: 1},
			want:  "ISBN must be exactly 13 digits.",
		},
		{
			name:  "unmapped rule falls back",
			input: bookInput{Title: "T", Author: strings.Repeat("a", 101), ISBN: "1234567890123", TotalCopies: 1},
			want:  "author must not exceed 100 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateWithMessages(tt.input, bookMessages)
			require.Error(t, err)
			assert.Equal(t, tt.want, errMessage(err))
		})
	}
}

func TestValidate_TitleAtLimit(t *testing.T) {
	v := New()
	err := v.Validate(bookInput{
		Title:       strings.Repeat("é", 200),
		Author:      "A",
		ISBN:        "1234567890123",
		TotalCopies: 1,
	})
	assert.NoError(t, err)
}

func TestValidate_PatronID(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(cardInput{PatronID: "123456"}))

	err := v.Validate(cardInput{PatronID: "12A456"})
	require.Error(t, err)
	assert.Equal(t, "patron_id must be exactly 6 digits", errMessage(err))
}

// errMessage returns the human-readable Message of a domain error.
func errMessage(err error) string {
	var de *domainerrors.Error
	if domainerrors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
