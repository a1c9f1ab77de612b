package audio

import "math"

// silenceFloor is the linear volume below which output is muted outright.
const silenceFloor = 0.01

// volumeToPower maps linear 0..1 volume onto beep's base-2 exponent.
// 1 is unity gain, 0.5 is -1 (half amplitude).
func volumeToPower(vol float64) float64 {
	if vol <= silenceFloor {
		return -10
	}
	return math.Log2(vol)
}
