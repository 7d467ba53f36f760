package store

import (
	"context"

	"github.com/listenupapp/circulation/internal/domain"
)

// SearchIndexer keeps a full-text index in sync with catalog changes.
type SearchIndexer interface {
	IndexBook(ctx context.Context, book *domain.Book) error
}
