package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecentlyUsedEvictsOldest(t *testing.T) {
	r := NewRecentlyUsed(5)

	for i := 1; i <= 6; i++ {
		r.Add(fmt.Sprintf("ref-%d", i))
	}

	assert.Equal(t, 5, r.Len())
	assert.False(t, r.Has("ref-1"))
	for i := 2; i <= 6; i++ {
		assert.True(t, r.Has(fmt.Sprintf("ref-%d", i)))
	}
}

func TestRecentlyUsedIgnoresDuplicates(t *testing.T) {
	r := NewRecentlyUsed(3)

	r.Add("a")
	r.Add("b")
	r.Add("a")
	r.Add("a")

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"a", "b"}, r.Values())
}

func TestRecentlyUsedIgnoresEmpty(t *testing.T) {
	r := NewRecentlyUsed(3)
	r.Add("")
	assert.Equal(t, 0, r.Len())
}

func TestRecentlyUsedDefaultLimit(t *testing.T) {
	r := NewRecentlyUsed(0)
	for i := 0; i < 10; i++ {
		r.Add(fmt.Sprintf("ref-%d", i))
	}
	assert.Equal(t, 5, r.Len())
}
