package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSplitCatalogFlag(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		rest    []string
		catalog string
	}{
		{"none", []string{"--db-path", "x.db"}, []string{"--db-path", "x.db"}, ""},
		{"separate", []string{"--catalog", "books.yaml", "--env", "test"}, []string{"--env", "test"}, "books.yaml"},
		{"single dash", []string{"-catalog", "books.yaml"}, nil, "books.yaml"},
		{"equals", []string{"--catalog=books.yaml", "--port", "9000"}, []string{"--port", "9000"}, "books.yaml"},
		{"dangling", []string{"--catalog"}, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rest, catalog := splitCatalogFlag(tt.args)
			assert.Equal(t, tt.rest, rest)
			assert.Equal(t, tt.catalog, catalog)
		})
	}
}

func TestDefaultCatalogParses(t *testing.T) {
	var catalog catalogFile
	require.NoError(t, yaml.Unmarshal(defaultCatalog, &catalog))
	require.NotEmpty(t, catalog.Books)

	seen := make(map[string]bool)
	for _, b := range catalog.Books {
		assert.Len(t, b.ISBN, 13, b.Title)
		assert.Positive(t, b.Copies, b.Title)
		assert.False(t, seen[b.ISBN], "duplicate isbn %s", b.ISBN)
		seen[b.ISBN] = true
	}
}
