package businessflow

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionGuard(t *testing.T) {
	g := NewTransitionGuard()

	release, ok := g.tryAcquire("campaign:1")
	require.True(t, ok)
	assert.True(t, g.held("campaign:1"))

	_, ok = g.tryAcquire("campaign:1")
	assert.False(t, ok, "held key must be refused")

	other, ok := g.tryAcquire("campaign:2")
	require.True(t, ok, "different keys do not contend")
	other()

	release()
	release()
	assert.False(t, g.held("campaign:1"))

	again, ok := g.tryAcquire("campaign:1")
	require.True(t, ok)
	again()
}

func TestTransitionGuardConcurrent(t *testing.T) {
	g := NewTransitionGuard()
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	hold := make(chan struct{})

	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if release, ok := g.tryAcquire("campaign:9"); ok {
				wins.Add(1)
				<-hold
				release()
			}
		}()
	}
	close(start)

	require.Eventually(t, func() bool { return g.held("campaign:9") }, testWait, testTick)
	close(hold)
	wg.Wait()

	assert.GreaterOrEqual(t, wins.Load(), int32(1))
	assert.False(t, g.held("campaign:9"))
}
