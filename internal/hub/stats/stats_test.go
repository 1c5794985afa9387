package stats

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot_CountersAccumulate(t *testing.T) {
	s := New()
	s.IncConnection(1)
	s.IncConnection(2)
	s.IncMessage()
	s.IncMessage()
	s.IncMessage()
	s.IncRoomCreated()

	snap := s.Snapshot()
	assert.EqualValues(t, 2, snap.TotalConnections)
	assert.EqualValues(t, 2, snap.ActiveConnections)
	assert.EqualValues(t, 3, snap.TotalMessages)
	assert.EqualValues(t, 1, snap.TotalRoomsCreated)
}

func TestSnapshot_ConcurrentIncrements(t *testing.T) {
	s := New()
	var wg sync.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.IncMessage()
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 200, s.Snapshot().TotalMessages)
}
