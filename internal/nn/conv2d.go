package nn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/stylize/internal/tensor"
)

// Conv2D is a 2D convolutional layer.
//
// Applies a 2D convolution over an input signal composed of several input planes.
//
// Input shape: [batch, in_channels, height, width]
// Output shape: [batch, out_channels, out_height, out_width]
//
// Where:
//
//	out_height = (height + 2*padding - kernel_h) / stride + 1
//	out_width = (width + 2*padding - kernel_w) / stride + 1
//
// Weights are initialized with Xavier; biases start at zero.
//
// Example:
//
//	// 3x3 convolution, 3 -> 64 channels, same padding
//	conv := nn.NewConv2D(3, 64, 3, 3, 1, 1, true, rng, backend)
//	output := conv.Forward(input) // [N, 64, H, W]
type Conv2D[B tensor.Backend] struct {
	inChannels  int
	outChannels int
	kernelSize  [2]int
	stride      int
	padding     int
	useBias     bool

	weight *Parameter[B] // [out_channels, in_channels, kernel_h, kernel_w]
	bias   *Parameter[B] // [out_channels] or nil

	backend B
}

// NewConv2D creates a new Conv2D layer with freshly initialized weights.
//
// Parameters:
//   - inChannels: Number of input channels
//   - outChannels: Number of output channels (filters)
//   - kernelH, kernelW: Kernel dimensions
//   - stride: Stride for convolution (same for height and width)
//   - padding: Zero-padding added to both sides (same for height and width)
//   - useBias: Whether to add learnable bias
//   - rng: Source of randomness for the weights
//   - backend: Computation backend
func NewConv2D[B tensor.Backend](
	inChannels, outChannels int,
	kernelH, kernelW int,
	stride, padding int,
	useBias bool,
	rng *rand.Rand,
	backend B,
) *Conv2D[B] {
	if inChannels <= 0 || outChannels <= 0 {
		panic(fmt.Sprintf("conv2d: invalid channels in=%d, out=%d", inChannels, outChannels))
	}
	if kernelH <= 0 || kernelW <= 0 {
		panic(fmt.Sprintf("conv2d: invalid kernel size h=%d, w=%d", kernelH, kernelW))
	}

	weightShape := tensor.Shape{outChannels, inChannels, kernelH, kernelW}
	fanIn := inChannels * kernelH * kernelW
	fanOut := outChannels * kernelH * kernelW
	weight := Xavier(fanIn, fanOut, weightShape, rng, backend)

	var bias *tensor.Tensor[float32, B]
	if useBias {
		bias = Zeros(tensor.Shape{outChannels}, backend)
	}

	c, err := NewConv2DWithWeights(weight, bias, stride, padding, backend)
	if err != nil {
		panic(err)
	}
	return c
}

// NewConv2DWithWeights creates a Conv2D layer around existing tensors,
// typically read from a weights file. bias may be nil.
func NewConv2DWithWeights[B tensor.Backend](
	weight, bias *tensor.Tensor[float32, B],
	stride, padding int,
	backend B,
) (*Conv2D[B], error) {
	ws := weight.Shape()
	if len(ws) != 4 {
		return nil, fmt.Errorf("conv2d: weight must be 4D [out,in,kh,kw], got %v", ws)
	}
	if stride <= 0 {
		return nil, fmt.Errorf("conv2d: invalid stride %d", stride)
	}
	if padding < 0 {
		return nil, fmt.Errorf("conv2d: invalid padding %d", padding)
	}

	c := &Conv2D[B]{
		inChannels:  ws[1],
		outChannels: ws[0],
		kernelSize:  [2]int{ws[2], ws[3]},
		stride:      stride,
		padding:     padding,
		weight:      NewParameter("conv2d.weight", weight),
		backend:     backend,
	}

	if bias != nil {
		if !bias.Shape().Equal(tensor.Shape{ws[0]}) {
			return nil, fmt.Errorf("conv2d: bias shape %v, want [%d]", bias.Shape(), ws[0])
		}
		c.useBias = true
		c.bias = NewParameter("conv2d.bias", bias)
	}

	return c, nil
}

// Forward computes the convolution, adding the bias per output channel.
func (c *Conv2D[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("conv2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}
	if inputShape[1] != c.inChannels {
		panic(fmt.Sprintf("conv2d: input channels %d != expected %d", inputShape[1], c.inChannels))
	}

	outputRaw := c.backend.Conv2D(
		input.Raw(),
		c.weight.Tensor().Raw(),
		c.stride,
		c.padding,
	)
	output := tensor.New[float32, B](outputRaw, c.backend)

	if c.useBias {
		// [out_channels] -> [1, out_channels, 1, 1] for broadcasting
		output = output.Add(c.bias.Tensor().Reshape(1, c.outChannels, 1, 1))
	}

	return output
}

// Parameters returns the weight and, if present, the bias.
func (c *Conv2D[B]) Parameters() []*Parameter[B] {
	if c.useBias {
		return []*Parameter[B]{c.weight, c.bias}
	}
	return []*Parameter[B]{c.weight}
}

// String returns a human-readable representation.
func (c *Conv2D[B]) String() string {
	return fmt.Sprintf("Conv2D(in_channels=%d, out_channels=%d, kernel_size=(%d, %d), stride=%d, padding=%d, bias=%v)",
		c.inChannels, c.outChannels,
		c.kernelSize[0], c.kernelSize[1],
		c.stride, c.padding, c.useBias)
}

// Weight returns the kernel parameter.
func (c *Conv2D[B]) Weight() *Parameter[B] {
	return c.weight
}

// Bias returns the bias parameter, or nil.
func (c *Conv2D[B]) Bias() *Parameter[B] {
	return c.bias
}

// OutChannels returns the number of output channels.
func (c *Conv2D[B]) OutChannels() int {
	return c.outChannels
}

// InChannels returns the number of input channels.
func (c *Conv2D[B]) InChannels() int {
	return c.inChannels
}

// KernelSize returns the kernel dimensions [height, width].
func (c *Conv2D[B]) KernelSize() [2]int {
	return c.kernelSize
}

// Stride returns the stride value.
func (c *Conv2D[B]) Stride() int {
	return c.stride
}

// Padding returns the padding value.
func (c *Conv2D[B]) Padding() int {
	return c.padding
}
