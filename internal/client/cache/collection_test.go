package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	ID     string
	Status string
}

func newCollection(ttl time.Duration) *Collection[item] {
	return New(func(i item) string { return i.ID }, ttl)
}

func TestCollection_EmptyIsNeverNil(t *testing.T) {
	c := newCollection(0)
	assert.NotNil(t, c.Items())
	assert.Len(t, c.Items(), 0)
	assert.False(t, c.Fresh())
}

func TestCollection_StaleFetchIsDiscarded(t *testing.T) {
	c := newCollection(0)

	older := c.BeginFetch()
	newer := c.BeginFetch()

	require.True(t, c.ApplyFetch(newer, []item{{ID: "b"}, {ID: "a"}}))
	assert.False(t, c.ApplyFetch(older, []item{{ID: "a"}}))
	assert.Equal(t, []item{{ID: "b"}, {ID: "a"}}, c.Items())
}

func TestCollection_MutationInvalidatesInFlightFetch(t *testing.T) {
	c := newCollection(0)
	token := c.BeginFetch()

	c.Put(c.BeginMutation(), item{ID: "new"})
	assert.False(t, c.ApplyFetch(token, []item{}), "list fetched before the insert must not hide it")
	assert.Equal(t, []item{{ID: "new"}}, c.Items())
}

func TestCollection_LastWriterBySequence(t *testing.T) {
	c := newCollection(0)
	c.ApplyFetch(c.BeginFetch(), []item{{ID: "k", Status: "active"}})

	first := c.BeginMutation()
	second := c.BeginMutation()

	require.True(t, c.Put(second, item{ID: "k", Status: "revoked"}))
	// The first mutation's response arrives late and must not win.
	assert.False(t, c.Put(first, item{ID: "k", Status: "active"}))

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "revoked", got.Status)

	// The same sequence may write again, which is how rollback works.
	assert.True(t, c.Put(second, item{ID: "k", Status: "active"}))
}

func TestCollection_PutPrependsNewAndReplacesExisting(t *testing.T) {
	c := newCollection(0)
	c.ApplyFetch(c.BeginFetch(), []item{{ID: "a"}})

	c.Put(c.BeginMutation(), item{ID: "b"})
	c.Put(c.BeginMutation(), item{ID: "a", Status: "x"})

	assert.Equal(t, []item{{ID: "b"}, {ID: "a", Status: "x"}}, c.Items())

	c.Remove(c.BeginMutation(), "b")
	assert.Equal(t, []item{{ID: "a", Status: "x"}}, c.Items())
	assert.Equal(t, 1, c.RemoveWhere(c.BeginMutation(), func(i item) bool { return i.Status == "x" }))
	assert.Empty(t, c.Items())
}

func TestCollection_TTLAndInvalidate(t *testing.T) {
	now := time.Unix(1000, 0)
	c := newCollection(time.Minute)
	c.now = func() time.Time { return now }

	c.ApplyFetch(c.BeginFetch(), []item{{ID: "a"}})
	assert.True(t, c.Fresh())

	now = now.Add(2 * time.Minute)
	assert.False(t, c.Fresh())

	c.ApplyFetch(c.BeginFetch(), nil)
	assert.True(t, c.Fresh())
	assert.NotNil(t, c.Items())
	c.Invalidate()
	assert.False(t, c.Fresh())
}

func TestCollection_ClosedIgnoresWrites(t *testing.T) {
	c := newCollection(0)
	token := c.BeginFetch()
	c.Close()

	assert.False(t, c.ApplyFetch(token, []item{{ID: "a"}}))
	assert.False(t, c.Put(c.BeginMutation(), item{ID: "a"}))
	assert.Empty(t, c.Items())
}

func TestGuard(t *testing.T) {
	var g Guard
	done, err := g.Begin("create")
	require.NoError(t, err)
	assert.True(t, g.Active("create"))

	_, err = g.Begin("create")
	assert.ErrorIs(t, err, ErrMutationInFlight)

	_, err = g.Begin("delete")
	assert.NoError(t, err)

	done()
	assert.False(t, g.Active("create"))
}
