package sequence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequencerIsMonotonic(t *testing.T) {
	s := New(0)
	assert.Equal(t, uint64(1), s.Next())
	assert.Equal(t, uint64(2), s.Next())
}

func TestSequencerResumesAfterStart(t *testing.T) {
	s := New(42)
	assert.Equal(t, uint64(43), s.Next())
}

func TestSequencerConcurrentNextIsUnique(t *testing.T) {
	s := New(0)
	const workers, per = 8, 1000

	var (
		mu   sync.Mutex
		seen = make(map[uint64]struct{}, workers*per)
		wg   sync.WaitGroup
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]uint64, 0, per)
			for j := 0; j < per; j++ {
				local = append(local, s.Next())
			}
			mu.Lock()
			for _, v := range local {
				seen[v] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*per)
	assert.Equal(t, uint64(workers*per+1), s.Next())
}
