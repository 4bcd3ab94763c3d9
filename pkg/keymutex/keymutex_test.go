package keymutex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockSerializesSameKey(t *testing.T) {
	km := New()

	const workers = 20
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("user-1")
			defer km.Unlock("user-1")
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, counter)
}

func TestIndependentKeysDoNotBlock(t *testing.T) {
	km := New()

	km.Lock("a")
	defer km.Unlock("a")

	acquired := make(chan struct{})
	go func() {
		km.Lock("b")
		defer km.Unlock("b")
		close(acquired)
	}()

	// Must complete while "a" is still held.
	<-acquired
}

func TestEntriesAreReclaimed(t *testing.T) {
	km := New()

	km.Lock("a")
	km.Unlock("a")
	km.Lock("b")
	km.Unlock("b")

	km.mu.Lock()
	defer km.mu.Unlock()
	assert.Empty(t, km.entries)
}
