package aeris

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeaderAddKeepsExistingValues(t *testing.T) {
	h := NewHeader()
	h.Add("X-Foo", "1")
	h.Add("X-Foo", "2")
	assert.Equal(t, []string{"1", "2"}, h.Values("X-Foo"))
}

func TestHeaderSetReplacesExistingValues(t *testing.T) {
	h := NewHeader()
	h.Add("X-Foo", "1")
	h.Add("X-Foo", "2")
	h.Set("X-Foo", "3")
	assert.Equal(t, []string{"3"}, h.Values("X-Foo"))
}

func TestHeaderGetIsCaseInsensitiveAndReturnsFirst(t *testing.T) {
	h := NewHeader()
	h.Add("Content-Type", "text/plain")
	h.Add("content-type", "text/html")
	assert.Equal(t, "text/plain", h.Get("CONTENT-TYPE"))
}

func TestHeaderDeleteRemovesAllMatchingFields(t *testing.T) {
	h := NewHeader()
	h.Add("X-Foo", "1")
	h.Add("X-Bar", "2")
	h.Add("x-foo", "3")
	h.Delete("X-Foo")
	assert.False(t, h.Has("X-Foo"))
	assert.True(t, h.Has("X-Bar"))
}

func TestHeaderHasAndCount(t *testing.T) {
	h := NewHeader()
	h.Add("X-Foo", "1")
	h.Add("X-Foo", "2")
	assert.True(t, h.Has("x-foo"))
	assert.Equal(t, 2, h.Count("X-Foo"))
	assert.Equal(t, 0, h.Count("X-Missing"))
}

func TestHeaderCloneIsIndependentOfSource(t *testing.T) {
	h := NewHeader()
	h.Add("X-Foo", "1")

	clone := h.Clone()
	clone.Add("X-Foo", "2")

	assert.Equal(t, []string{"1"}, h.Values("X-Foo"))
	assert.Equal(t, []string{"1", "2"}, clone.Values("X-Foo"))
}
