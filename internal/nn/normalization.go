package nn

import (
	"fmt"

	"github.com/born-ml/stylize/internal/tensor"
)

// Normalization subtracts a per-channel mean and divides by a per-channel
// standard deviation: (x - mean[c]) / std[c].
//
// It is stateless: the same input always yields the same output.
type Normalization[B tensor.Backend] struct {
	mean *tensor.Tensor[float32, B] // [1, C, 1, 1]
	std  *tensor.Tensor[float32, B] // [1, C, 1, 1]
}

// NewNormalization creates a Normalization for len(mean) channels.
//
// Panics if mean and std differ in length or std has a zero entry.
func NewNormalization[B tensor.Backend](mean, std []float32, backend B) *Normalization[B] {
	if len(mean) == 0 || len(mean) != len(std) {
		panic(fmt.Sprintf("normalization: mean has %d values, std has %d", len(mean), len(std)))
	}
	for c, s := range std {
		if s == 0 {
			panic(fmt.Sprintf("normalization: std[%d] is zero", c))
		}
	}

	shape := tensor.Shape{1, len(mean), 1, 1}
	m, err := tensor.FromSlice(append([]float32(nil), mean...), shape, backend)
	if err != nil {
		panic(fmt.Sprintf("normalization: %v", err))
	}
	s, err := tensor.FromSlice(append([]float32(nil), std...), shape, backend)
	if err != nil {
		panic(fmt.Sprintf("normalization: %v", err))
	}

	return &Normalization[B]{mean: m, std: s}
}

// Forward normalizes an [N, C, H, W] image.
func (n *Normalization[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if s := input.Shape(); len(s) != 4 || s[1] != n.mean.Shape()[1] {
		panic(fmt.Sprintf("normalization: expected [N,%d,H,W] input, got %v", n.mean.Shape()[1], s))
	}
	return input.Sub(n.mean).Div(n.std)
}

// Parameters returns an empty slice.
func (n *Normalization[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a human-readable representation.
func (n *Normalization[B]) String() string {
	return fmt.Sprintf("Normalization(mean=%v, std=%v)", n.mean.Data(), n.std.Data())
}
