package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exact", Truncate("exact", 5))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	// Rune-safe: multi-byte characters are never split.
	assert.Equal(t, "héll...", Truncate("héllo world", 4))
	assert.Equal(t, "", Truncate("", 5))
}

func TestSortedKeys(t *testing.T) {
	keys := SortedKeys(map[string]any{"b": 1, "a": 2, "c": 3})
	assert.Equal(t, []string{"a", "b", "c"}, keys)
	assert.Empty(t, SortedKeys(nil))
}
