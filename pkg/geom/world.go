package geom

import (
	"fmt"
	"math"
)

// WPos is a position in world units. One rectangular cell is 1024 units wide.
type WPos struct {
	X, Y, Z int
}

// WVec is an offset in world units.
type WVec struct {
	X, Y, Z int
}

// WDist is a length in world units.
type WDist struct {
	Length int
}

// WAngle is an angle in 1/1024ths of a full turn.
type WAngle struct {
	Angle int
}

// WRot is an orientation built from roll, pitch and yaw.
type WRot struct {
	Roll, Pitch, Yaw WAngle
}

// Common world values.
var (
	WPosZero = WPos{}
	WVecZero = WVec{}
	WRotNone = WRot{}
)

// NewWAngle normalises a into [0, 1024).
func NewWAngle(a int) WAngle {
	a %= 1024
	if a < 0 {
		a += 1024
	}
	return WAngle{Angle: a}
}

// NewWRot builds a rotation from raw angle values.
func NewWRot(roll, pitch, yaw int) WRot {
	return WRot{Roll: NewWAngle(roll), Pitch: NewWAngle(pitch), Yaw: NewWAngle(yaw)}
}

// Sub returns the vector from o to p.
func (p WPos) Sub(o WPos) WVec { return WVec{p.X - o.X, p.Y - o.Y, p.Z - o.Z} }

// Add offsets the position by v.
func (p WPos) Add(v WVec) WPos { return WPos{p.X + v.X, p.Y + v.Y, p.Z + v.Z} }

// SubVec offsets the position by -v.
func (p WPos) SubVec(v WVec) WPos { return WPos{p.X - v.X, p.Y - v.Y, p.Z - v.Z} }

func (p WPos) String() string { return fmt.Sprintf("%d,%d,%d", p.X, p.Y, p.Z) }

// Add sums two vectors.
func (v WVec) Add(o WVec) WVec { return WVec{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// LengthSquared is the squared 3D length.
func (v WVec) LengthSquared() int { return v.X*v.X + v.Y*v.Y + v.Z*v.Z }

// HorizontalLengthSquared ignores the Z component.
func (v WVec) HorizontalLengthSquared() int { return v.X*v.X + v.Y*v.Y }

// Length is the 3D length rounded down.
func (v WVec) Length() int { return ISqrt(v.LengthSquared(), RoundFloor) }

// Yaw is the facing of the vector in the horizontal plane. North is -Y.
func (v WVec) Yaw() WAngle {
	if v.LengthSquared() == 0 {
		return WAngle{}
	}
	a := ArcTan(-v.Y, v.X)
	return NewWAngle(a.Angle - 256)
}

func (v WVec) String() string { return fmt.Sprintf("%d,%d,%d", v.X, v.Y, v.Z) }

// ArcTan returns the angle of (x, y) measured counter-clockwise from +x.
func ArcTan(y, x int) WAngle {
	if x == 0 && y == 0 {
		return WAngle{}
	}
	rad := math.Atan2(float64(y), float64(x))
	return NewWAngle(int(math.Round(rad * 512 / math.Pi)))
}

func (d WDist) String() string { return fmt.Sprintf("%d", d.Length) }

func (a WAngle) String() string { return fmt.Sprintf("%d", a.Angle) }

func (r WRot) String() string { return fmt.Sprintf("%s,%s,%s", r.Roll, r.Pitch, r.Yaw) }
