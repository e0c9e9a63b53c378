package optim

import (
	"math"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/born-ml/stylize/internal/nn"
	"github.com/born-ml/stylize/internal/tensor"
)

// flatParams views a parameter list as one vector, in parameter order.
type flatParams[B tensor.Backend] struct {
	params []*nn.Parameter[B]
	numel  int
}

func newFlatParams[B tensor.Backend](params []*nn.Parameter[B]) flatParams[B] {
	f := flatParams[B]{params: params}
	for _, p := range params {
		f.numel += p.Tensor().NumElements()
	}
	return f
}

// gradient concatenates all gradients; a missing gradient counts as zeros.
func (f flatParams[B]) gradient() []float32 {
	flat := make([]float32, f.numel)
	offset := 0
	for _, p := range f.params {
		n := p.Tensor().NumElements()
		if g := getGradient(p); g != nil {
			copy(flat[offset:offset+n], g)
		}
		offset += n
	}
	return flat
}

// addScaled performs params += alpha * direction.
func (f flatParams[B]) addScaled(alpha float32, direction []float32) {
	offset := 0
	for _, p := range f.params {
		data := p.Tensor().Data()
		n := len(data)
		blas32.Axpy(alpha, vec(direction[offset:offset+n]), vec(data))
		offset += n
	}
}

func (f flatParams[B]) snapshot() []float32 {
	flat := make([]float32, f.numel)
	offset := 0
	for _, p := range f.params {
		offset += copy(flat[offset:], p.Tensor().Data())
	}
	return flat
}

func (f flatParams[B]) restore(flat []float32) {
	offset := 0
	for _, p := range f.params {
		offset += copy(p.Tensor().Data(), flat[offset:])
	}
}

func vec(data []float32) blas32.Vector {
	return blas32.Vector{N: len(data), Data: data, Inc: 1}
}

func dot(x, y []float32) float64 {
	return float64(blas32.Dot(vec(x), vec(y)))
}

// absMax returns max |x_i|, or 0 for an empty vector.
func absMax(x []float32) float64 {
	if len(x) == 0 {
		return 0
	}
	return math.Abs(float64(x[blas32.Iamax(vec(x))]))
}

func absSum(x []float32) float64 {
	return float64(blas32.Asum(vec(x)))
}

// axpy performs y += alpha * x.
func axpy(alpha float64, x, y []float32) {
	blas32.Axpy(float32(alpha), vec(x), vec(y))
}

// scaled returns alpha * x as a new vector.
func scaled(alpha float64, x []float32) []float32 {
	out := append([]float32(nil), x...)
	blas32.Scal(float32(alpha), vec(out))
	return out
}
