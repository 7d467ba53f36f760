// Package search provides full-text discovery over the catalog using Bleve.
package search

import (
	"strconv"

	"github.com/listenupapp/circulation/internal/domain"
)

// Document is the indexed form of a book.
type Document struct {
	ID        string
	Title     string
	Author    string
	ISBN      string
	CreatedAt int64 // Unix seconds
}

// BookToDocument converts a catalog book to its index document.
func BookToDocument(b *domain.Book) *Document {
	return &Document{
		ID:        DocumentID(b.ID),
		Title:     b.Title,
		Author:    b.Author,
		ISBN:      b.ISBN,
		CreatedAt: b.CreatedAt.Unix(),
	}
}

// DocumentID is the index key for a book ID.
func DocumentID(bookID int64) string {
	return strconv.FormatInt(bookID, 10)
}

// ToMap converts the document to field names matching the mapping.
func (d *Document) ToMap() map[string]any {
	return map[string]any{
		"title":      d.Title,
		"author":     d.Author,
		"isbn":       d.ISBN,
		"created_at": float64(d.CreatedAt),
	}
}
