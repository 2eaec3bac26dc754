package kiln

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeRepo struct{ name string }

type closingResource struct {
	closed bool
	err    error
}

func (c *closingResource) Close() error {
	c.closed = true
	return c.err
}

func TestProvideAndResolveRoundTrip(t *testing.T) {
	d := NewDI()
	Provide[*fakeRepo](d, &fakeRepo{name: "users"})

	got, ok := Resolve[*fakeRepo](d)
	assert.True(t, ok)
	assert.Equal(t, "users", got.name)
}

func TestResolveMissingTypeReturnsZeroValueAndFalse(t *testing.T) {
	d := NewDI()
	got, ok := Resolve[*fakeRepo](d)
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestMustResolvePanicsWhenMissing(t *testing.T) {
	d := NewDI()
	assert.Panics(t, func() {
		MustResolve[*fakeRepo](d)
	})
}

func TestMustResolveReturnsValueWhenPresent(t *testing.T) {
	d := NewDI()
	Provide[*fakeRepo](d, &fakeRepo{name: "orders"})
	got := MustResolve[*fakeRepo](d)
	assert.Equal(t, "orders", got.name)
}

func TestDisposeClosesCloserValues(t *testing.T) {
	d := NewDI()
	res := &closingResource{}
	Provide[*closingResource](d, res)
	Provide[*fakeRepo](d, &fakeRepo{name: "untouched"})

	errs := d.Dispose()
	assert.True(t, res.closed)
	assert.Empty(t, errs)
}

func TestDisposeReportsCloseErrors(t *testing.T) {
	d := NewDI()
	type namedCloser struct{ *closingResource }
	failing := &namedCloser{&closingResource{err: errors.New("disk full")}}
	Provide[*namedCloser](d, failing)

	errs := d.Dispose()
	assert.Len(t, errs, 1)
	assert.True(t, failing.closed)
}
