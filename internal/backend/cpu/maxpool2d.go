package cpu

import (
	"fmt"

	"github.com/born-ml/stylize/internal/tensor"
)

// MaxPool2D performs 2D max pooling.
//
// Input shape:  [batch, channels, height, width]
// Output shape: [batch, channels, out_height, out_width]
//
// Where:
//
//	out_height = (height - kernelSize) / stride + 1
//	out_width = (width - kernelSize) / stride + 1
//
// Example (2x2 pool, stride=2):
//
//	Input: [[1,2,3,4],    Output: [[6,8],
//	        [5,6,7,8],             [14,16]]
//	        [9,10,11,12],
//	        [13,14,15,16]]
func (cpu *CPUBackend) MaxPool2D(input *tensor.RawTensor, kernelSize, stride int) *tensor.RawTensor {
	inputShape := input.Shape()
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("maxpool2d: expected 4D input [N,C,H,W], got %dD", len(inputShape)))
	}

	N, C, H, W := inputShape[0], inputShape[1], inputShape[2], inputShape[3]

	if kernelSize <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid kernel size %d", kernelSize))
	}
	if stride <= 0 {
		panic(fmt.Sprintf("maxpool2d: invalid stride %d", stride))
	}
	if kernelSize > H || kernelSize > W {
		panic(fmt.Sprintf("maxpool2d: kernel size %d too large for input %dx%d", kernelSize, H, W))
	}

	HOut := (H-kernelSize)/stride + 1
	WOut := (W-kernelSize)/stride + 1

	output, err := tensor.NewRaw(tensor.Shape{N, C, HOut, WOut}, input.DType(), cpu.Device())
	if err != nil {
		panic(fmt.Sprintf("maxpool2d: failed to create output: %v", err))
	}

	switch input.DType() {
	case tensor.Float32:
		maxpool2d(output.AsFloat32(), input.AsFloat32(), N*C, H, W, HOut, WOut, kernelSize, stride)
	case tensor.Float64:
		maxpool2d(output.AsFloat64(), input.AsFloat64(), N*C, H, W, HOut, WOut, kernelSize, stride)
	default:
		panic(fmt.Sprintf("maxpool2d: unsupported dtype %v", input.DType()))
	}

	return output
}

// maxpool2d pools planes independently; planes = N*C.
func maxpool2d[T tensor.DType](out, in []T, planes, H, W, HOut, WOut, kernelSize, stride int) {
	outIdx := 0
	for p := 0; p < planes; p++ {
		plane := in[p*H*W : (p+1)*H*W]
		for oh := 0; oh < HOut; oh++ {
			for ow := 0; ow < WOut; ow++ {
				hStart, wStart := oh*stride, ow*stride
				best := plane[hStart*W+wStart]
				for kh := 0; kh < kernelSize; kh++ {
					row := (hStart + kh) * W
					for kw := 0; kw < kernelSize; kw++ {
						if v := plane[row+wStart+kw]; v > best {
							best = v
						}
					}
				}
				out[outIdx] = best
				outIdx++
			}
		}
	}
}
