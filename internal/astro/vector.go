package astro

import (
	"math"
)

// Vector is a cartesian 3-vector.
type Vector [3]float64

// UnitVector returns the direction of the equatorial position (ra, dec), both
// in degrees.
func UnitVector(ra, dec float64) Vector {
	a, d := radians(ra), radians(dec)
	return Vector{
		math.Cos(d) * math.Cos(a),
		math.Cos(d) * math.Sin(a),
		math.Sin(d),
	}
}

func (v Vector) Add(o Vector) Vector {
	return Vector{v[0] + o[0], v[1] + o[1], v[2] + o[2]}
}

func (v Vector) Sub(o Vector) Vector {
	return Vector{v[0] - o[0], v[1] - o[1], v[2] - o[2]}
}

func (v Vector) Scale(s float64) Vector {
	return Vector{v[0] * s, v[1] * s, v[2] * s}
}

func (v Vector) Dot(o Vector) float64 {
	return v[0]*o[0] + v[1]*o[1] + v[2]*o[2]
}

func (v Vector) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// RotateX rotates v by angle radians about the x axis.
func (v Vector) RotateX(angle float64) Vector {
	s, c := math.Sincos(angle)
	return Vector{v[0], c*v[1] - s*v[2], s*v[1] + c*v[2]}
}

// RotateZ rotates v by angle radians about the z axis.
func (v Vector) RotateZ(angle float64) Vector {
	s, c := math.Sincos(angle)
	return Vector{c*v[0] - s*v[1], s*v[0] + c*v[1], v[2]}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
