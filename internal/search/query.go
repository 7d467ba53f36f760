package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/listenupapp/circulation/internal/domain"
)

// Hit is one ranked match.
type Hit struct {
	BookID int64   `json:"book_id"`
	Score  float64 `json:"score"`
	Title  string  `json:"title"`
	Author string  `json:"author"`
}

// Search returns up to limit books matching text, best first.
// Blank text matches nothing.
func (c *CatalogIndex) Search(ctx context.Context, text string, limit int) ([]Hit, error) {
	text = strings.TrimSpace(text)
	if text == "" || limit <= 0 {
		return []Hit{}, nil
	}

	req := bleve.NewSearchRequestOptions(buildQuery(text), limit, 0, false)
	req.SortBy([]string{"-_score", "_id"})
	req.Fields = []string{"title", "author"}

	c.mu.RLock()
	defer c.mu.RUnlock()

	result, err := c.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		bookID, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			c.logger.Warn("skipping search hit with malformed id", "id", h.ID)
			continue
		}
		hit := Hit{BookID: bookID, Score: h.Score}
		if t, ok := h.Fields["title"].(string); ok {
			hit.Title = t
		}
		if a, ok := h.Fields["author"].(string); ok {
			hit.Author = a
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// buildQuery matches the title most strongly, then author, with a typo
// tolerant and prefix fallback on the title. A full ISBN also matches exactly.
func buildQuery(text string) query.Query {
	titleMatch := bleve.NewMatchQuery(text)
	titleMatch.SetField("title")
	titleMatch.SetBoost(3.0)

	authorMatch := bleve.NewMatchQuery(text)
	authorMatch.SetField("author")
	authorMatch.SetBoost(2.0)

	queries := []query.Query{titleMatch, authorMatch}

	fuzzy := bleve.NewFuzzyQuery(strings.ToLower(text))
	fuzzy.SetFuzziness(1)
	fuzzy.SetField("title")
	fuzzy.SetBoost(0.8)
	queries = append(queries, fuzzy)

	if len(text) >= 2 {
		prefix := bleve.NewPrefixQuery(strings.ToLower(text))
		prefix.SetField("title")
		prefix.SetBoost(0.5)
		queries = append(queries, prefix)
	}

	if len(text) == domain.ISBNLength && domain.IsDigits(text) {
		isbn := bleve.NewTermQuery(text)
		isbn.SetField("isbn")
		isbn.SetBoost(5.0)
		queries = append(queries, isbn)
	}

	return bleve.NewDisjunctionQuery(queries...)
}
