package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/circulation/internal/domain"
	"github.com/listenupapp/circulation/internal/service"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns every book in the catalog, ordered by title",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addBook",
		Method:        http.MethodPost,
		Path:          "/api/v1/books",
		Summary:       "Add book",
		Description:   "Adds a book to the catalog with all copies available",
		Tags:          []string{"Books"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/search",
		Summary:     "Search books",
		Description: "Matches a term against title or author (case-insensitive substring) or ISBN (exact)",
		Tags:        []string{"Books"},
	}, s.handleSearchBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "discoverBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/discover",
		Summary:     "Discover books",
		Description: "Ranked full-text search across title and author",
		Tags:        []string{"Books"},
	}, s.handleDiscoverBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBook",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}",
		Summary:     "Get book",
		Description: "Returns a book by ID",
		Tags:        []string{"Books"},
	}, s.handleGetBook)
}

// === DTOs ===

// BookListOutput wraps a list of books.
type BookListOutput struct {
	Body []*domain.Book
}

// BookOutput wraps a single book.
type BookOutput struct {
	Body *domain.Book
}

// AddBookInput contains parameters for adding a book.
type AddBookInput struct {
	Body struct {
		Title       string `json:"title" doc:"Book title, at most 200 characters"`
		Author      string `json:"author" doc:"Author name, at most 100 characters"`
		ISBN        string `json:"isbn" doc:"13-digit ISBN"`
		TotalCopies int    `json:"total_copies" doc:"Number of copies owned"`
	}
}

// ReceiptOutput wraps a catalog or circulation receipt.
type ReceiptOutput struct {
	Body *service.Receipt
}

// SearchBooksInput contains parameters for a field search.
type SearchBooksInput struct {
	Query string `query:"q" doc:"Search term"`
	Type  string `query:"type" default:"title" doc:"Field to match: title, author or isbn"`
}

// DiscoverBooksInput contains parameters for a ranked search.
type DiscoverBooksInput struct {
	Query string `query:"q" doc:"Free-text query"`
	Limit int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum results, 0 for the default"`
}

// BookIDInput identifies a book by path.
type BookIDInput struct {
	ID int64 `path:"id" doc:"Book ID"`
}

// === Handlers ===

func (s *Server) handleListBooks(ctx context.Context, _ *struct{}) (*BookListOutput, error) {
	books, err := s.services.Catalog.ListBooks(ctx)
	if err != nil {
		return nil, err
	}
	return &BookListOutput{Body: books}, nil
}

func (s *Server) handleAddBook(ctx context.Context, input *AddBookInput) (*ReceiptOutput, error) {
	receipt, err := s.services.Catalog.AddBook(ctx, service.AddBookRequest{
		Title:       input.Body.Title,
		Author:      input.Body.Author,
		ISBN:        input.Body.ISBN,
		TotalCopies: input.Body.TotalCopies,
	})
	if err != nil {
		return nil, err
	}
	return &ReceiptOutput{Body: receipt}, nil
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*BookListOutput, error) {
	books, err := s.services.Catalog.Search(ctx, input.Query, domain.SearchType(input.Type))
	if err != nil {
		return nil, err
	}
	return &BookListOutput{Body: books}, nil
}

func (s *Server) handleDiscoverBooks(ctx context.Context, input *DiscoverBooksInput) (*BookListOutput, error) {
	books, err := s.services.Catalog.Discover(ctx, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	return &BookListOutput{Body: books}, nil
}

func (s *Server) handleGetBook(ctx context.Context, input *BookIDInput) (*BookOutput, error) {
	book, err := s.services.Catalog.GetBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: book}, nil
}
