package internal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHashURL(t *testing.T) {
	assert.Equal(t, "100680ad546ce6a577f42f52df33b4cfdca756859e664b8d7de329b150d09ce9",
		HashURL("https://example.com"))
}

func TestHashURLIsStable(t *testing.T) {
	urls := []string{"https://example.com", "https://example.com/", "http://example.com?q=1"}
	seen := make(map[string]string)
	for _, u := range urls {
		h := HashURL(u)
		assert.Equal(t, h, HashURL(u))
		assert.Len(t, h, 64)
		seen[h] = u
	}
	assert.Len(t, seen, len(urls))
}
