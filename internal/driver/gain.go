// ABOUTME: Software positional math shared by the playback backends
// ABOUTME: Linear-clamped distance attenuation and listener-frame panning
package driver

import "math"

// listener holds the global listening position and orientation in device
// coordinates
type listener struct {
	pos [3]float32
	at  [3]float32
	up  [3]float32
}

func defaultListener() listener {
	return listener{
		at: [3]float32{0, 0, -1},
		up: [3]float32{0, 1, 0},
	}
}

// attenuate applies the linear clamped distance model:
// gain *= 1 - rolloff * (clamp(d, ref, max) - ref) / (max - ref)
func attenuate(gain float32, distance, ref, max, rolloff float32) float32 {
	if max <= ref || rolloff == 0 {
		return gain
	}
	d := distance
	if d < ref {
		d = ref
	}
	if d > max {
		d = max
	}
	att := 1 - rolloff*(d-ref)/(max-ref)
	if att < 0 {
		att = 0
	}
	return gain * att
}

// effectiveGain computes the gain of a voice after distance attenuation.
// Listener-relative voices attenuate against the origin.
func effectiveGain(p Params, l listener) float32 {
	rel := relativePosition(p, l)
	dist := float32(math.Sqrt(float64(dot(rel, rel))))
	return attenuate(p.Gain, dist, p.RefDistance, p.MaxDistance, p.Rolloff)
}

// pan computes the stereo pan of a voice in [-1, 1] from its position in
// the listener frame. Listener-relative voices pan by their own x.
func pan(p Params, l listener) float32 {
	rel := relativePosition(p, l)

	var x float32
	if p.Relative {
		x = rel[0]
	} else {
		right := cross(l.at, l.up)
		x = dot(rel, right)
	}

	dist := float32(math.Sqrt(float64(dot(rel, rel))))
	if dist < 1e-6 {
		return 0
	}
	v := x / dist
	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return v
}

func relativePosition(p Params, l listener) [3]float32 {
	if p.Relative {
		return p.Position
	}
	return [3]float32{
		p.Position[0] - l.pos[0],
		p.Position[1] - l.pos[1],
		p.Position[2] - l.pos[2],
	}
}

func dot(a, b [3]float32) float32 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross(a, b [3]float32) [3]float32 {
	return [3]float32{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// panGains converts a pan position to constant-power left/right gains
func panGains(pan float32) (left, right float32) {
	angle := (float64(pan) + 1) * math.Pi / 4
	return float32(math.Cos(angle)), float32(math.Sin(angle))
}
