// ABOUTME: Background goroutine that services all active streams
// ABOUTME: Ticks on a fixed interval, drops streams whose process reports done
package output

import (
	"context"
	"sync"
	"time"
)

// pumpInterval is the refill cadence. Each ring buffer holds 0.125s of
// audio, so a 50ms sweep keeps well ahead of the hardware.
const pumpInterval = 50 * time.Millisecond

// pump owns the set of active streams and refills them from one
// goroutine. Registration is idempotent; removal blocks until the
// stream is out of the sweep.
type pump struct {
	mu      sync.Mutex
	streams []*streamSound

	cancel context.CancelFunc
	done   chan struct{}
}

func newPump() *pump {
	return &pump{}
}

// start launches the pump goroutine. Called once per device Init.
func (p *pump) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
}

// stop cancels the goroutine and waits for it to exit
func (p *pump) stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
}

func (p *pump) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(pumpInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep()
		}
	}
}

// sweep services every registered stream, keeping only the ones that
// still have audio in flight
func (p *pump) sweep() {
	p.mu.Lock()
	defer p.mu.Unlock()
	keep := p.streams[:0]
	for _, s := range p.streams {
		if s.process() {
			keep = append(keep, s)
		}
	}
	for i := len(keep); i < len(p.streams); i++ {
		p.streams[i] = nil
	}
	p.streams = keep
}

// add registers a stream. Adding a stream twice is a no-op.
func (p *pump) add(s *streamSound) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cur := range p.streams {
		if cur == s {
			return
		}
	}
	p.streams = append(p.streams, s)
}

// removeAll clears the registry during device teardown
func (p *pump) removeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.streams = nil
}

// remove deregisters a stream. Returns only after any in-flight sweep
// has finished with it.
func (p *pump) remove(s *streamSound) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, cur := range p.streams {
		if cur == s {
			p.streams = append(p.streams[:i], p.streams[i+1:]...)
			return
		}
	}
}
