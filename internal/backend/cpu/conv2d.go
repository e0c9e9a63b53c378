package cpu

import (
	"fmt"

	"github.com/born-ml/stylize/internal/tensor"
)

// convGeometry holds the dimensions shared by the forward and backward kernels.
type convGeometry struct {
	N, CIn, H, W    int
	COut, KH, KW    int
	HOut, WOut      int
	stride, padding int
}

// colRows is the height of the im2col matrix: C_in * K_h * K_w.
func (g convGeometry) colRows() int { return g.CIn * g.KH * g.KW }

// colCols is the width of the im2col matrix: H_out * W_out.
func (g convGeometry) colCols() int { return g.HOut * g.WOut }

// newConvGeometry validates shapes and derives output dimensions.
func newConvGeometry(op string, inputShape, kernelShape tensor.Shape, stride, padding int) convGeometry {
	if len(inputShape) != 4 {
		panic(fmt.Sprintf("%s: input must be 4D [N,C,H,W], got %dD", op, len(inputShape)))
	}
	if len(kernelShape) != 4 {
		panic(fmt.Sprintf("%s: kernel must be 4D [C_out,C_in,K_h,K_w], got %dD", op, len(kernelShape)))
	}
	if stride <= 0 || padding < 0 {
		panic(fmt.Sprintf("%s: invalid stride %d or padding %d", op, stride, padding))
	}

	g := convGeometry{
		N: inputShape[0], CIn: inputShape[1], H: inputShape[2], W: inputShape[3],
		COut: kernelShape[0], KH: kernelShape[2], KW: kernelShape[3],
		stride: stride, padding: padding,
	}
	if kernelShape[1] != g.CIn {
		panic(fmt.Sprintf("%s: input channels %d != kernel channels %d", op, g.CIn, kernelShape[1]))
	}

	// out = (in + 2*padding - k) / stride + 1
	g.HOut = (g.H+2*padding-g.KH)/stride + 1
	g.WOut = (g.W+2*padding-g.KW)/stride + 1
	if g.HOut <= 0 || g.WOut <= 0 {
		panic(fmt.Sprintf("%s: invalid output dimensions: out_h=%d, out_w=%d (check stride/padding)", op, g.HOut, g.WOut))
	}
	return g
}

// Conv2D performs 2D convolution using the im2col algorithm.
//
// Input shape: [batch, in_channels, height, width]
// Kernel shape: [out_channels, in_channels, kernel_h, kernel_w]
// Output shape: [batch, out_channels, out_h, out_w]
//
// Algorithm, per image in the batch:
//  1. Unfold input patches into a [C_in*K_h*K_w, H_out*W_out] column matrix (im2col)
//  2. View the kernel as a [C_out, C_in*K_h*K_w] matrix
//  3. GEMM writes [C_out, H_out*W_out] straight into the NCHW output slice
//
// Reference: "High Performance Convolutional Neural Networks for Document Processing"
// (Chellapilla et al., 2006).
func (cpu *CPUBackend) Conv2D(input, kernel *tensor.RawTensor, stride, padding int) *tensor.RawTensor {
	g := newConvGeometry("conv2d", input.Shape(), kernel.Shape(), stride, padding)

	output, err := tensor.NewRaw(tensor.Shape{g.N, g.COut, g.HOut, g.WOut}, input.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("conv2d: failed to create output tensor: %v", err))
	}

	switch input.DType() {
	case tensor.Float32:
		conv2dForward(output.AsFloat32(), input.AsFloat32(), kernel.AsFloat32(), g)
	case tensor.Float64:
		conv2dForward(output.AsFloat64(), input.AsFloat64(), kernel.AsFloat64(), g)
	default:
		panic(fmt.Sprintf("conv2d: unsupported dtype %s", input.DType()))
	}

	return output
}

func conv2dForward[T tensor.DType](out, in, kernel []T, g convGeometry) {
	rows, cols := g.colRows(), g.colCols()
	colBuf := make([]T, rows*cols)
	inSize := g.CIn * g.H * g.W
	outSize := g.COut * cols

	for n := 0; n < g.N; n++ {
		im2col(colBuf, in[n*inSize:(n+1)*inSize], g)
		gemm(false, false, g.COut, cols, rows, 1, kernel, colBuf, 0, out[n*outSize:(n+1)*outSize])
	}
}

// im2col unfolds one [C, H, W] image into cols laid out as
// [(c*K_h + kh)*K_w + kw, oh*W_out + ow]. Padded positions are zero.
func im2col[T tensor.DType](cols, img []T, g convGeometry) {
	hw := g.colCols()
	for c := 0; c < g.CIn; c++ {
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				row := ((c*g.KH+kh)*g.KW + kw) * hw
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					base := row + oh*g.WOut
					if h < 0 || h >= g.H {
						for ow := 0; ow < g.WOut; ow++ {
							cols[base+ow] = 0
						}
						continue
					}
					src := (c*g.H + h) * g.W
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						if w < 0 || w >= g.W {
							cols[base+ow] = 0
						} else {
							cols[base+ow] = img[src+w]
						}
					}
				}
			}
		}
	}
}

// col2im is the adjoint of im2col: it scatter-adds cols back into img.
// img must be zeroed by the caller.
func col2im[T tensor.DType](img, cols []T, g convGeometry) {
	hw := g.colCols()
	for c := 0; c < g.CIn; c++ {
		for kh := 0; kh < g.KH; kh++ {
			for kw := 0; kw < g.KW; kw++ {
				row := ((c*g.KH+kh)*g.KW + kw) * hw
				for oh := 0; oh < g.HOut; oh++ {
					h := oh*g.stride - g.padding + kh
					if h < 0 || h >= g.H {
						continue
					}
					base := row + oh*g.WOut
					dst := (c*g.H + h) * g.W
					for ow := 0; ow < g.WOut; ow++ {
						w := ow*g.stride - g.padding + kw
						if w >= 0 && w < g.W {
							img[dst+w] += cols[base+ow]
						}
					}
				}
			}
		}
	}
}
