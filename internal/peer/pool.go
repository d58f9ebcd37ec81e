package peer

import (
	"sync"
)

// Pool queues peers learned from announces. A peer address is queued at
// most once for the lifetime of the pool, even after it was popped.
type Pool struct {
	mu   sync.Mutex
	q    []Peer
	seen map[string]struct{}
}

func NewPool(cap int) *Pool {
	return &Pool{q: make([]Peer, 0, cap), seen: make(map[string]struct{})}
}

// PushMany queues the peers not seen before and reports how many were new.
func (p *Pool) PushMany(list []Peer) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	added := 0
	for _, pr := range list {
		if _, ok := p.seen[pr.Addr]; ok {
			continue
		}
		p.seen[pr.Addr] = struct{}{}
		p.q = append(p.q, pr)
		added++
	}

	return added
}

func (p *Pool) Pop() (Peer, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.q) == 0 {
		return Peer{}, false
	}
	pr := p.q[0]
	p.q = p.q[1:]
	return pr, true
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.q)
}

// Seen is the number of distinct peers ever pushed.
func (p *Pool) Seen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}
