package domain

// SearchType selects which catalog field a search term is matched against.
type SearchType string

// Supported search types.
const (
	SearchByTitle  SearchType = "title"
	SearchByAuthor SearchType = "author"
	SearchByISBN   SearchType = "isbn"
)

// Valid reports whether t is a supported search type.
func (t SearchType) Valid() bool {
	switch t {
	case SearchByTitle, SearchByAuthor, SearchByISBN:
		return true
	default:
		return false
	}
}
