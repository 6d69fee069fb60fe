package businessflow

import "sync"

// TransitionGuard admits one in-flight transition per key. A second request
// for a held key is refused, never queued. The campaign and payment flows
// share one guard so both serialize on campaign:<id>.
type TransitionGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewTransitionGuard creates an empty guard
func NewTransitionGuard() *TransitionGuard {
	return &TransitionGuard{inFlight: make(map[string]struct{})}
}

// tryAcquire claims key and returns its release func, or false if key is busy
func (g *TransitionGuard) tryAcquire(key string) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return nil, false
	}
	g.inFlight[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, key)
			g.mu.Unlock()
		})
	}, true
}

// held reports whether key is currently claimed
func (g *TransitionGuard) held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.inFlight[key]
	return busy
}
