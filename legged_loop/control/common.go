package control

import "math"

// ClampFloat clamps value between min and max
func ClampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// WrapAngle maps a into (-pi, pi].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}

// AngleDiff is the shortest signed rotation taking from to to.
func AngleDiff(to, from float64) float64 {
	return WrapAngle(to - from)
}

// BoolToFloat is 1 for true, 0 for false.
func BoolToFloat(b bool) float64 {
	if b {
		return 1.0
	}
	return 0.0
}
