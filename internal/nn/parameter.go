package nn

import (
	"github.com/born-ml/stylize/internal/tensor"
)

// Parameter is a tensor that receives a gradient from a backward pass.
//
// Layer weights are parameters, and so is the image being optimized:
// the optimizer updates whatever parameters it is handed in place.
//
// Example:
//
//	img := nn.NewParameter("image", imageTensor)
//	opt := optim.NewLBFGS([]*nn.Parameter[B]{img}, optim.LBFGSConfig{}, backend)
//
//	// After a backward pass
//	grad := img.Grad()
type Parameter[B tensor.Backend] struct {
	name   string                     // Parameter name (e.g., "features.0.weight", "image")
	tensor *tensor.Tensor[float32, B] // The parameter tensor
	grad   *tensor.Tensor[float32, B] // Gradient tensor, nil until set
}

// NewParameter creates a new parameter around an initialized tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Grad returns the gradient tensor.
//
// Returns nil if no gradient has been stored since the last ZeroGrad.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient tensor.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}
