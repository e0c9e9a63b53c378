package nn

import (
	"github.com/born-ml/stylize/internal/tensor"
)

// ReLU is a Rectified Linear Unit activation module.
//
// Applies the element-wise function: f(x) = max(0, x)
//
// An in-place ReLU additionally overwrites its input tensor with the
// result, as pretrained feature networks commonly configure it. Anything
// still holding the input (a captured activation, for instance) then sees
// the rectified values.
//
// Example:
//
//	relu := nn.NewReLU[Backend]()
//	output := relu.Forward(input) // All negative values become 0
type ReLU[B tensor.Backend] struct {
	inplace bool
}

// NewReLU creates a new non-in-place ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// NewInPlaceReLU creates a ReLU that also rewrites its input.
func NewInPlaceReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{inplace: true}
}

// InPlace reports whether the module overwrites its input.
func (r *ReLU[B]) InPlace() bool {
	return r.inplace
}

// Forward applies ReLU activation: f(x) = max(0, x).
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	backend := input.Backend()
	resultRaw := backend.ReLU(input.Raw())

	if r.inplace {
		copy(input.Raw().Data(), resultRaw.Data())
	}

	return tensor.New[float32, B](resultRaw, backend)
}

// Parameters returns an empty slice (ReLU has no parameters).
func (r *ReLU[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a human-readable representation.
func (r *ReLU[B]) String() string {
	if r.inplace {
		return "ReLU(inplace=true)"
	}
	return "ReLU()"
}
