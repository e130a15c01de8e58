package geom

// RoundMode selects how ISqrt rounds a non-square input.
type RoundMode int

const (
	RoundFloor RoundMode = iota
	RoundNearest
	RoundCeiling
)

// ISqrt is an exact integer square root. Negative inputs return 0.
func ISqrt(number int, mode RoundMode) int {
	if number <= 0 {
		return 0
	}

	// Newton iteration from an upper bound converges to floor(sqrt(n)).
	x := number
	y := (x + 1) / 2
	for y < x {
		x = y
		y = (x + number/x) / 2
	}

	switch mode {
	case RoundCeiling:
		if x*x < number {
			x++
		}
	case RoundNearest:
		// x*x <= n < (x+1)^2; round up when n is past the midpoint x^2 + x.
		if number-x*x > x {
			x++
		}
	}
	return x
}

// Abs returns the absolute value of v.
func Abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
