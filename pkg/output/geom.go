// ABOUTME: World-space vectors and the engine-to-device axis remap
// ABOUTME: Engine (x, y, z) maps to device (x, z, -y)
package output

// Vec3 is a position or direction in engine world coordinates
type Vec3 [3]float32

// deviceVec remaps an engine world vector to device coordinates. The
// engine is right-handed with z up; the device is left-handed with y up,
// so (x, y, z) becomes (x, z, -y). Applied at every position and
// orientation call.
func deviceVec(v Vec3) [3]float32 {
	return [3]float32{v[0], v[2], -v[1]}
}
