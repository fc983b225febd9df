package model

import (
	"fmt"
	"math"
)

// RecordID is the zero-based index of a record in the primary data file.
// It is stable only as long as the data file is not modified.
type RecordID uint32

// ShapeKind describes the geometry family stored in a data file.
type ShapeKind uint8

const (
	// KindNull marks a file without geometries.
	KindNull ShapeKind = 0
	// KindPoint marks single point geometries (degenerate envelopes).
	KindPoint ShapeKind = 1
	// KindLine marks line strings.
	KindLine ShapeKind = 3
	// KindPolygon marks polygons.
	KindPolygon ShapeKind = 5
	// KindMultiPoint marks point collections.
	KindMultiPoint ShapeKind = 8
)

// IsPoint reports whether records of this kind have degenerate envelopes.
func (k ShapeKind) IsPoint() bool {
	return k == KindPoint
}

// Ordinates returns the number of float64 values needed to store one
// record envelope of this kind.
func (k ShapeKind) Ordinates() int {
	if k.IsPoint() {
		return 2
	}
	return 4
}

func (k ShapeKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindPoint:
		return "point"
	case KindLine:
		return "line"
	case KindPolygon:
		return "polygon"
	case KindMultiPoint:
		return "multipoint"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Envelope is an axis-aligned bounding box.
//
// The zero value is NOT the null envelope; use NullEnvelope. A null envelope
// has no extent, intersects nothing and absorbs into any union.
type Envelope struct {
	MinX, MinY, MaxX, MaxY float64
}

// NullEnvelope returns an envelope without extent.
func NullEnvelope() Envelope {
	return Envelope{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
}

// NewEnvelope builds an envelope from two corners in any order.
func NewEnvelope(x1, y1, x2, y2 float64) Envelope {
	return Envelope{
		MinX: math.Min(x1, x2),
		MinY: math.Min(y1, y2),
		MaxX: math.Max(x1, x2),
		MaxY: math.Max(y1, y2),
	}
}

// PointEnvelope returns the degenerate envelope of a single coordinate.
func PointEnvelope(x, y float64) Envelope {
	return Envelope{MinX: x, MinY: y, MaxX: x, MaxY: y}
}

// IsNull reports whether e has no extent.
func (e Envelope) IsNull() bool {
	return e.MinX > e.MaxX || e.MinY > e.MaxY || math.IsNaN(e.MinX) || math.IsNaN(e.MinY) ||
		math.IsNaN(e.MaxX) || math.IsNaN(e.MaxY)
}

// IsPoint reports whether e collapses to a single coordinate.
func (e Envelope) IsPoint() bool {
	return !e.IsNull() && e.MinX == e.MaxX && e.MinY == e.MaxY
}

// Width returns the extent along x (0 for null envelopes).
func (e Envelope) Width() float64 {
	if e.IsNull() {
		return 0
	}
	return e.MaxX - e.MinX
}

// Height returns the extent along y (0 for null envelopes).
func (e Envelope) Height() float64 {
	if e.IsNull() {
		return 0
	}
	return e.MaxY - e.MinY
}

// Center returns the midpoint of e on both axes.
func (e Envelope) Center() (x, y float64) {
	return (e.MinX + e.MaxX) / 2, (e.MinY + e.MaxY) / 2
}

// Intersects reports whether e and o share at least one point.
// Boundaries are inclusive.
func (e Envelope) Intersects(o Envelope) bool {
	if e.IsNull() || o.IsNull() {
		return false
	}
	return o.MinX <= e.MaxX && o.MaxX >= e.MinX && o.MinY <= e.MaxY && o.MaxY >= e.MinY
}

// Contains reports whether o lies entirely within e.
// A null o is never contained.
func (e Envelope) Contains(o Envelope) bool {
	if e.IsNull() || o.IsNull() {
		return false
	}
	return o.MinX >= e.MinX && o.MaxX <= e.MaxX && o.MinY >= e.MinY && o.MaxY <= e.MaxY
}

// Union returns the smallest envelope covering both e and o.
func (e Envelope) Union(o Envelope) Envelope {
	if e.IsNull() {
		return o
	}
	if o.IsNull() {
		return e
	}
	return Envelope{
		MinX: math.Min(e.MinX, o.MinX),
		MinY: math.Min(e.MinY, o.MinY),
		MaxX: math.Max(e.MaxX, o.MaxX),
		MaxY: math.Max(e.MaxY, o.MaxY),
	}
}

// ExpandToInclude grows e in place to cover o.
func (e *Envelope) ExpandToInclude(o Envelope) {
	*e = e.Union(o)
}

// Quadrant returns the i-th quadrant of e split at its midpoint.
// Quadrants are numbered 0=SW, 1=SE, 2=NW, 3=NE.
func (e Envelope) Quadrant(i int) Envelope {
	cx, cy := e.Center()
	switch i {
	case 0:
		return Envelope{MinX: e.MinX, MinY: e.MinY, MaxX: cx, MaxY: cy}
	case 1:
		return Envelope{MinX: cx, MinY: e.MinY, MaxX: e.MaxX, MaxY: cy}
	case 2:
		return Envelope{MinX: e.MinX, MinY: cy, MaxX: cx, MaxY: e.MaxY}
	default:
		return Envelope{MinX: cx, MinY: cy, MaxX: e.MaxX, MaxY: e.MaxY}
	}
}

func (e Envelope) String() string {
	if e.IsNull() {
		return "Env[null]"
	}
	return fmt.Sprintf("Env[%g : %g, %g : %g]", e.MinX, e.MaxX, e.MinY, e.MaxY)
}
