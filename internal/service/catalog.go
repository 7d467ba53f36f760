package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/cases"

	"github.com/listenupapp/circulation/internal/domain"
	domainerrors "github.com/listenupapp/circulation/internal/errors"
	"github.com/listenupapp/circulation/internal/search"
	"github.com/listenupapp/circulation/internal/store"
	"github.com/listenupapp/circulation/internal/validation"
)

// Discover limits.
const (
	DefaultDiscoverLimit = 20
	MaxDiscoverLimit     = 100
)

const (
	msgDuplicateISBN  = "A book with this ISBN already exists."
	msgAddBookDBError = "Database error occurred while adding the book."
	msgCatalogDBError = "Database error occurred while reading the catalog."
	msgISBNLength     = "ISBN must be exactly 13 digits."
	msgCopiesPositive = "Total copies must be a positive integer."
	msgTitleRequired  = "Title is required."
	msgAuthorRequired = "Author is required."
	msgTitleTooLong   = "Title must be less than 200 characters."
	msgAuthorTooLong  = "Author must be less than 100 characters."
)

// addBookMessages maps validator failures to catalog messages.
var addBookMessages = validation.Messages{
	"title.required":  msgTitleRequired,
	"title.max":       msgTitleTooLong,
	"author.required": msgAuthorRequired,
	"author.max":      msgAuthorTooLong,
	"isbn.len":        msgISBNLength,
	"isbn.digits":     msgISBNLength,
	"total_copies.gt": msgCopiesPositive,
}

// AddBookRequest describes a new catalog entry.
// Fields are validated in declaration order.
type AddBookRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Author      string `json:"author" validate:"required,max=100"`
	ISBN        string `json:"isbn" validate:"len=13,digits"`
	TotalCopies int    `json:"total_copies" validate:"gt=0"`
}

// Receipt confirms a successful catalog or circulation operation.
type Receipt struct {
	Message string               `json:"message"`
	Book    *domain.Book         `json:"book"`
	Record  *domain.BorrowRecord `json:"record,omitempty"`
}

// Discoverer is the full-text index behind Discover.
type Discoverer interface {
	store.SearchIndexer
	IndexBooks(ctx context.Context, books []*domain.Book) error
	Search(ctx context.Context, text string, limit int) ([]search.Hit, error)
	DocumentCount() (uint64, error)
}

// CatalogService manages the book catalog.
type CatalogService struct {
	store     store.Store
	validator *validation.Validator
	index     Discoverer
	clock     Clock
	logger    *slog.Logger
}

// NewCatalogService creates a catalog service. index may be nil, in which
// case Discover falls back to substring matching.
func NewCatalogService(s store.Store, v *validation.Validator, index Discoverer, logger *slog.Logger) *CatalogService {
	if v == nil {
		v = validation.New()
	}
	return &CatalogService{
		store:     s,
		validator: v,
		index:     index,
		logger:    defaultLogger(logger),
	}
}

// SetClock overrides the clock used for creation timestamps.
func (s *CatalogService) SetClock(c Clock) {
	s.clock = c
}

// AddBook validates and stores a new book with every copy available.
func (s *CatalogService) AddBook(ctx context.Context, req AddBookRequest) (*Receipt, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)

	if err := s.validator.ValidateWithMessages(req, addBookMessages); err != nil {
		return nil, err
	}

	book := &domain.Book{
		Title:           req.Title,
		Author:          req.Author,
		ISBN:            req.ISBN,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
		CreatedAt:       s.clock.now().UTC(),
	}

	if err := s.store.CreateBook(ctx, book); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists(msgDuplicateISBN)
		}
		s.logger.Error("failed to add book", "isbn", req.ISBN, "error", err)
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, msgAddBookDBError)
	}

	if s.index != nil {
		if err := s.index.IndexBook(ctx, book); err != nil {
			s.logger.Warn("failed to index book", "book_id", book.ID, "error", err)
		}
	}

	s.logger.Info("book added", "book_id", book.ID, "isbn", book.ISBN, "copies", book.TotalCopies)

	return &Receipt{
		Message: fmt.Sprintf(`Book "%s" has been successfully added to the catalog.`, book.Title),
		Book:    book,
	}, nil
}

// GetBook returns a single book.
func (s *CatalogService) GetBook(ctx context.Context, bookID int64) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, bookID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFound(msgBookNotFound)
	}
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, msgCatalogDBError)
	}
	return book, nil
}

// ListBooks returns the catalog ordered by title.
func (s *CatalogService) ListBooks(ctx context.Context) ([]*domain.Book, error) {
	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, msgCatalogDBError)
	}
	return books, nil
}

// Search matches term against one catalog field. Title and author match
// case-insensitive substrings; isbn matches exactly. A blank term or unknown
// kind matches nothing.
func (s *CatalogService) Search(ctx context.Context, term string, kind domain.SearchType) ([]*domain.Book, error) {
	term = strings.TrimSpace(term)
	if term == "" || !kind.Valid() {
		return []*domain.Book{}, nil
	}

	if kind == domain.SearchByISBN {
		book, err := s.store.GetBookByISBN(ctx, term)
		if errors.Is(err, store.ErrNotFound) {
			return []*domain.Book{}, nil
		}
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, msgCatalogDBError)
		}
		return []*domain.Book{book}, nil
	}

	books, err := s.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	needle := fold.String(term)
	results := make([]*domain.Book, 0)
	for _, b := range books {
		field := b.Title
		if kind == domain.SearchByAuthor {
			field = b.Author
		}
		if strings.Contains(fold.String(field), needle) {
			results = append(results, b)
		}
	}
	return results, nil
}

// Discover ranks books by relevance to query across title and author.
// limit is clamped to 1..MaxDiscoverLimit, with zero meaning the default.
func (s *CatalogService) Discover(ctx context.Context, query string, limit int) ([]*domain.Book, error) {
	switch {
	case limit <= 0:
		limit = DefaultDiscoverLimit
	case limit > MaxDiscoverLimit:
		limit = MaxDiscoverLimit
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []*domain.Book{}, nil
	}

	if s.index == nil {
		return s.discoverBySubstring(ctx, query, limit)
	}

	hits, err := s.index.Search(ctx, query, limit)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "Search failed.")
	}
	if len(hits) == 0 {
		return []*domain.Book{}, nil
	}

	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.BookID)
	}
	books, err := s.store.GetBooksByIDs(ctx, ids)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, msgCatalogDBError)
	}

	byID := make(map[int64]*domain.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}
	ranked := make([]*domain.Book, 0, len(books))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			ranked = append(ranked, b)
		}
	}
	return ranked, nil
}

func (s *CatalogService) discoverBySubstring(ctx context.Context, query string, limit int) ([]*domain.Book, error) {
	books, err := s.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	fold := cases.Fold()
	needle := fold.String(query)
	results := make([]*domain.Book, 0)
	for _, b := range books {
		if strings.Contains(fold.String(b.Title), needle) || strings.Contains(fold.String(b.Author), needle) {
			results = append(results, b)
			if len(results) == limit {
				break
			}
		}
	}
	return results, nil
}

// ReindexIfNeeded fills an empty search index from the store. It returns the
// number of books indexed.
func (s *CatalogService) ReindexIfNeeded(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, nil
	}

	docs, err := s.index.DocumentCount()
	if err != nil {
		return 0, fmt.Errorf("count indexed documents: %w", err)
	}
	if docs > 0 {
		return 0, nil
	}

	books, err := s.store.ListBooks(ctx)
	if err != nil {
		return 0, fmt.Errorf("list books: %w", err)
	}
	if len(books) == 0 {
		return 0, nil
	}

	s.logger.Info("search index is empty, reindexing catalog", "books", len(books))
	if err := s.index.IndexBooks(ctx, books); err != nil {
		return 0, fmt.Errorf("index books: %w", err)
	}
	return len(books), nil
}
