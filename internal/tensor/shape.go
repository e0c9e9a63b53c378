package tensor

import (
	"fmt"
	"slices"
)

// Shape lists tensor dimensions, outermost first. An empty Shape is a scalar.
type Shape []int

// NumElements returns the product of the dimensions (1 for a scalar).
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate rejects zero or negative dimensions.
func (s Shape) Validate() error {
	if i := slices.IndexFunc(s, func(d int) bool { return d <= 0 }); i >= 0 {
		return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, s[i])
	}
	return nil
}

// Equal reports whether both shapes have the same dimensions.
func (s Shape) Equal(other Shape) bool {
	return slices.Equal(s, other)
}

// Clone returns a copy of the shape that shares no memory with s.
func (s Shape) Clone() Shape {
	return append(Shape(make([]int, 0, len(s))), s...)
}

// ComputeStrides returns row-major strides in elements.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}
	return strides
}

// dimFromRight returns dimension i counted from the last axis, or 1 when
// the shape has fewer axes.
func (s Shape) dimFromRight(i int) int {
	if i >= len(s) {
		return 1
	}
	return s[len(s)-1-i]
}

// BroadcastShapes applies NumPy broadcasting to a and b.
//
// Dimensions are matched from the last axis; a pair is compatible when the
// sizes are equal or one of them is 1. The boolean reports whether either
// operand has to be expanded.
//
//	(1, 3, 1, 1) + (1, 3, 8, 8) → (1, 3, 8, 8), true
//	(3, 5) + (3, 5)             → (3, 5), false
//	(3, 4) + (3, 5)             → error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	n := max(len(a), len(b))
	out := make(Shape, n)
	expand := len(a) != len(b)

	for i := range n {
		da, db := a.dimFromRight(i), b.dimFromRight(i)
		switch {
		case da == db:
			out[n-1-i] = da
		case da == 1:
			out[n-1-i] = db
			expand = true
		case db == 1:
			out[n-1-i] = da
			expand = true
		default:
			return nil, false, fmt.Errorf("shapes %v and %v do not broadcast: axis %d has %d vs %d",
				a, b, n-1-i, da, db)
		}
	}
	return out, expand, nil
}
