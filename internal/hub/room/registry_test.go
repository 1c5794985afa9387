package room

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin_IdempotentMembership(t *testing.T) {
	r := NewRegistry()
	r.Join("general", 1)
	r.Join("general", 1)
	members := r.Members("general")
	assert.Equal(t, []int64{1}, members)
}

func TestJoin_CreatesRoomLazily(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Exists("general"))
	r.Join("general", 1)
	assert.True(t, r.Exists("general"))
}

func TestLeave_RemovesMember(t *testing.T) {
	r := NewRegistry()
	r.Join("general", 1)
	r.Leave("general", 1)
	assert.False(t, r.IsMember("general", 1))
}

func TestPurge_RemovesFromAllRooms(t *testing.T) {
	r := NewRegistry()
	r.Join("a", 1)
	r.Join("b", 1)
	r.Join("b", 2)
	r.Purge(1)
	assert.False(t, r.IsMember("a", 1))
	assert.False(t, r.IsMember("b", 1))
	assert.True(t, r.IsMember("b", 2))
}

func TestConcurrentJoinLeave(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := int64(0); i < 100; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			r.Join("general", id)
			r.Leave("general", id)
		}(i)
	}
	wg.Wait()
	assert.Empty(t, r.Members("general"))
}
