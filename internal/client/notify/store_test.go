package notify

import (
	"math/rand"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countUnread(s State) int {
	n := 0
	for _, item := range s.Notifications {
		if !item.Read {
			n++
		}
	}
	return n
}

func TestStore_AddPrependsAndDefaults(t *testing.T) {
	s := New()
	first := s.Add(Notification{Title: "one"})
	second := s.Add(Notification{Title: "two", Type: TypeSuccess})

	st := s.Get()
	require.Len(t, st.Notifications, 2)
	assert.Equal(t, second, st.Notifications[0].ID)
	assert.Equal(t, first, st.Notifications[1].ID)
	assert.Equal(t, TypeInfo, st.Notifications[1].Type)
	assert.False(t, st.Notifications[0].CreatedAt.IsZero())
	assert.Equal(t, 2, s.UnreadCount())
}

func TestStore_UnreadCountTracksEveryMutation(t *testing.T) {
	s := New()
	rng := rand.New(rand.NewSource(7))
	var ids []string

	for i := 0; i < 200; i++ {
		switch op := rng.Intn(5); {
		case op == 0 || len(ids) == 0:
			ids = append(ids, s.Add(Notification{ID: "n" + strconv.Itoa(i), Title: "t"}))
		case op == 1:
			s.MarkAsRead(ids[rng.Intn(len(ids))])
		case op == 2:
			s.Remove(ids[rng.Intn(len(ids))])
		case op == 3:
			s.MarkAsRead("absent")
		default:
			if rng.Intn(10) == 0 {
				s.MarkAllAsRead()
			}
		}
		st := s.Get()
		assert.Equal(t, countUnread(st), st.UnreadCount(), "step %d", i)
	}
}

func TestStore_ReadIsOneWay(t *testing.T) {
	s := New()
	id := s.Add(Notification{Title: "a"})
	s.MarkAsRead(id)
	s.MarkAsRead(id)
	assert.True(t, s.Get().Notifications[0].Read)
	assert.Equal(t, 0, s.UnreadCount())

	s.Remove(id)
	s.MarkAsRead(id)
	assert.Empty(t, s.Get().Notifications)
}

func TestStore_ClearAll(t *testing.T) {
	s := New()
	s.Add(Notification{Title: "a"})
	s.Add(Notification{Title: "b"})
	s.ClearAll()

	st := s.Get()
	assert.NotNil(t, st.Notifications)
	assert.Empty(t, st.Notifications)
	assert.Equal(t, 0, st.UnreadCount())
}

func TestStore_SubscribeAndIndependentInstances(t *testing.T) {
	a, b := New(), New()

	var seen []int
	cancel := a.Subscribe(func(st State) { seen = append(seen, st.UnreadCount()) })
	a.Toast(TypeError, "Failed", "boom")
	a.Toast(TypeSuccess, "Saved", "")
	cancel()
	a.ClearAll()

	assert.Equal(t, []int{1, 2}, seen)
	assert.Empty(t, b.Get().Notifications)
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	s := New()
	s.Add(Notification{Title: "a"})
	st := s.Get()
	st.Notifications[0].Read = true

	assert.Equal(t, 1, s.UnreadCount())
}
