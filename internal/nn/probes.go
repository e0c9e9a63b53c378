package nn

import (
	"fmt"

	"github.com/born-ml/stylize/internal/tensor"
)

// ContentLoss is a transparent probe: Forward returns its input unchanged
// and stores mean((input - target)^2) as the current loss.
//
// The target is a detached copy taken at construction and never mutated.
type ContentLoss[B tensor.Backend] struct {
	target *tensor.Tensor[float32, B]
	loss   *tensor.Tensor[float32, B]
	mse    *MSELoss[B]
}

// NewContentLoss creates a probe comparing against a copy of target.
//
// The caller should compute target with gradient recording disabled.
func NewContentLoss[B tensor.Backend](target *tensor.Tensor[float32, B]) *ContentLoss[B] {
	return &ContentLoss[B]{
		target: target.Clone(),
		mse:    NewMSELoss[B](),
	}
}

// Forward refreshes the loss and passes the input through.
func (c *ContentLoss[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !input.Shape().Equal(c.target.Shape()) {
		panic(fmt.Sprintf("content_loss: input %v does not match target %v", input.Shape(), c.target.Shape()))
	}
	c.loss = c.mse.Forward(input, c.target)
	return input
}

// Loss returns the scalar loss of the latest forward pass, or nil before the first one.
func (c *ContentLoss[B]) Loss() *tensor.Tensor[float32, B] {
	return c.loss
}

// Target returns the captured feature map.
func (c *ContentLoss[B]) Target() *tensor.Tensor[float32, B] {
	return c.target
}

// Parameters returns an empty slice.
func (c *ContentLoss[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a human-readable representation.
func (c *ContentLoss[B]) String() string {
	return fmt.Sprintf("ContentLoss(target=%v)", c.target.Shape())
}

// StyleLoss is a transparent probe comparing Gram matrices:
// Forward returns its input unchanged and stores
// mean((Gram(input) - Gram(target))^2) as the current loss.
type StyleLoss[B tensor.Backend] struct {
	target *tensor.Tensor[float32, B] // Gram matrix of the style features
	loss   *tensor.Tensor[float32, B]
	mse    *MSELoss[B]
}

// NewStyleLoss creates a probe whose target is the Gram matrix of features.
//
// The caller should compute features with gradient recording disabled.
func NewStyleLoss[B tensor.Backend](features *tensor.Tensor[float32, B]) *StyleLoss[B] {
	return &StyleLoss[B]{
		target: GramMatrix(features).Clone(),
		mse:    NewMSELoss[B](),
	}
}

// Forward refreshes the loss and passes the input through.
func (s *StyleLoss[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	s.loss = s.mse.Forward(GramMatrix(input), s.target)
	return input
}

// Loss returns the scalar loss of the latest forward pass, or nil before the first one.
func (s *StyleLoss[B]) Loss() *tensor.Tensor[float32, B] {
	return s.loss
}

// Target returns the target Gram matrix.
func (s *StyleLoss[B]) Target() *tensor.Tensor[float32, B] {
	return s.target
}

// Parameters returns an empty slice.
func (s *StyleLoss[B]) Parameters() []*Parameter[B] {
	return nil
}

// String returns a human-readable representation.
func (s *StyleLoss[B]) String() string {
	return fmt.Sprintf("StyleLoss(gram=%v)", s.target.Shape())
}
