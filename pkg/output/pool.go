// ABOUTME: Fixed-size pool of free hardware voices
// ABOUTME: Checkout on play, return exactly once on stop or close
package output

import "github.com/chorus-audio/chorus-go/internal/driver"

// voicePool holds the free voice handles. It is touched only from the
// caller's thread; the pump never allocates or releases voices.
type voicePool struct {
	free []driver.VoiceID
}

// acquire checks out a voice, reporting false when the pool is empty.
// It never blocks or queues.
func (p *voicePool) acquire() (driver.VoiceID, bool) {
	if len(p.free) == 0 {
		return 0, false
	}
	v := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return v, true
}

// release returns a voice to the pool. Callers guarantee at-most-once
// release per checkout.
func (p *voicePool) release(v driver.VoiceID) {
	p.free = append(p.free, v)
}

func (p *voicePool) size() int {
	return len(p.free)
}

func (p *voicePool) clear() []driver.VoiceID {
	all := p.free
	p.free = nil
	return all
}
