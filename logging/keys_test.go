package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortedKeys(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, sortedKeys(map[string]int{"c": 3, "a": 1, "b": 2}))
	assert.Equal(t, []int{1, 5}, sortedKeys(map[int]bool{5: true, 1: false}))
	assert.Empty(t, sortedKeys(Fields{}))
}
