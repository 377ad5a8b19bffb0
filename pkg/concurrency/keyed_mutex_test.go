package concurrency_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tbelfort/falcon-ai-sub003/pkg/concurrency"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := concurrency.NewKeyedMutex()
	var order []int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			km.Lock("issue-1")
			defer km.Unlock("issue-1")
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, order, 5)
}

func TestKeyedMutex_IndependentKeysDoNotBlockEachOther(t *testing.T) {
	km := concurrency.NewKeyedMutex()
	km.Lock("issue-1")
	defer km.Unlock("issue-1")

	done := make(chan struct{})
	go func() {
		km.Lock("issue-2")
		km.Unlock("issue-2")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked unexpectedly")
	}
}
