package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_FIFO(t *testing.T) {
	q := New[int]()
	assert.True(t, q.IsEmpty())

	for i := 0; i < 5; i++ {
		q.Enqueue(i)
	}
	assert.Equal(t, 5, q.Len())

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 0, head)

	for i := 0; i < 5; i++ {
		v, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}
	_, ok = q.Dequeue()
	assert.False(t, ok)
	_, ok = q.Peek()
	assert.False(t, ok)
}

func TestQueue_PopWaitsForEnqueue(t *testing.T) {
	q := New[string]()

	got := make(chan string, 1)
	go func() {
		v, err := q.Pop(context.Background())
		if err == nil {
			got <- v
		}
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before anything was enqueued")
	case <-time.After(20 * time.Millisecond):
	}

	q.Enqueue("chunk")
	select {
	case v := <-got:
		assert.Equal(t, "chunk", v)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Enqueue")
	}
}

func TestQueue_PopHonoursContext(t *testing.T) {
	q := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_ConcurrentProducersKeepPerProducerOrder(t *testing.T) {
	q := New[[2]int]()
	const producers, per = 4, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				q.Enqueue([2]int{p, i})
			}
		}(p)
	}
	wg.Wait()

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}
	for n := 0; n < producers*per; n++ {
		v, err := q.Pop(context.Background())
		require.NoError(t, err)
		assert.Equal(t, last[v[0]]+1, v[1])
		last[v[0]] = v[1]
	}
	assert.True(t, q.IsEmpty())
}
