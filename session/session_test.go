package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSessionIsDirtyFree(t *testing.T) {
	s := New(NewID())
	assert.True(t, s.IsNew())
	assert.False(t, s.Dirty())
}

func TestSetMarksDirty(t *testing.T) {
	s := New("id")
	s.Set("userId", "abc")
	assert.True(t, s.Dirty())

	v, ok := s.Get("userId")
	assert.True(t, ok)
	assert.Equal(t, "abc", v)
}

func TestDeleteMarksDirtyOnlyWhenPresent(t *testing.T) {
	s := New("id")
	s.Delete("missing")
	assert.False(t, s.Dirty())

	s.Set("k", "v")
	s.dirty = false
	s.Delete("k")
	assert.True(t, s.Dirty())
}

func TestDataReturnsIndependentCopy(t *testing.T) {
	s := New("id")
	s.Set("k", "v")
	copy := s.Data()
	copy["k"] = "mutated"

	v, _ := s.Get("k")
	assert.Equal(t, "v", v)
}

func TestDestroyClearsData(t *testing.T) {
	s := New("id")
	s.Set("k", "v")
	s.Destroy()

	assert.True(t, s.Destroyed())
	_, ok := s.Get("k")
	assert.False(t, ok)
}

func TestLoadHydratesFromStoreData(t *testing.T) {
	s := Load("id", Data{"a": 1}, false)
	assert.False(t, s.IsNew())
	v, ok := s.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}
