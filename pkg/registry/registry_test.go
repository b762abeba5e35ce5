package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegisterAndLookup(t *testing.T) {
	r := New[int]()
	r.Register("a", 1)

	v, ok := r.Lookup("a")
	require := assert.New(t)
	require.True(ok)
	require.Equal(1, v)
}

func TestLookup_MissingReturnsFalse(t *testing.T) {
	r := New[int]()
	_, ok := r.Lookup("missing")
	assert.False(t, ok)
}

func TestUnregister(t *testing.T) {
	r := New[int]()
	r.Register("a", 1)
	r.Unregister("a")
	_, ok := r.Lookup("a")
	assert.False(t, ok)
}

func TestLen(t *testing.T) {
	r := New[string]()
	assert.Equal(t, 0, r.Len())
	r.Register("a", "x")
	r.Register("b", "y")
	assert.Equal(t, 2, r.Len())
}

func TestEach(t *testing.T) {
	r := New[int]()
	r.Register("a", 1)
	r.Register("b", 2)

	sum := 0
	r.Each(func(id string, handle int) { sum += handle })
	assert.Equal(t, 3, sum)
}

func TestIds(t *testing.T) {
	r := New[int]()
	r.Register("a", 1)
	r.Register("b", 2)
	ids := r.Ids()
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestRegister_OverwritesExisting(t *testing.T) {
	r := New[int]()
	r.Register("a", 1)
	r.Register("a", 2)
	v, ok := r.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}
