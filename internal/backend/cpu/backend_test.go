package cpu

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/stylize/internal/tensor"
)

func rawFrom32(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(raw.AsFloat32(), data)
	return raw
}

func randRaw64(t *testing.T, rng *rand.Rand, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.NewRaw(shape, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	for i := range raw.AsFloat64() {
		raw.AsFloat64()[i] = rng.Float64()*2 - 1
	}
	return raw
}

func TestBinaryOpsSameShape(t *testing.T) {
	backend := New()
	a := rawFrom32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := rawFrom32(t, []float32{2, 2, 2, 2}, tensor.Shape{2, 2})

	assert.Equal(t, []float32{3, 4, 5, 6}, backend.Add(a, b).AsFloat32())
	assert.Equal(t, []float32{-1, 0, 1, 2}, backend.Sub(a, b).AsFloat32())
	assert.Equal(t, []float32{2, 4, 6, 8}, backend.Mul(a, b).AsFloat32())
	assert.Equal(t, []float32{0.5, 1, 1.5, 2}, backend.Div(a, b).AsFloat32())

	// Operands are never modified.
	assert.Equal(t, []float32{1, 2, 3, 4}, a.AsFloat32())
}

func TestBinaryOpsChannelBroadcast(t *testing.T) {
	backend := New()
	x := rawFrom32(t, []float32{
		1, 1, 1, 1, // channel 0
		2, 2, 2, 2, // channel 1
	}, tensor.Shape{1, 2, 2, 2})
	mean := rawFrom32(t, []float32{1, 0.5}, tensor.Shape{1, 2, 1, 1})

	got := backend.Sub(x, mean)
	assert.Equal(t, tensor.Shape{1, 2, 2, 2}, got.Shape())
	assert.Equal(t, []float32{0, 0, 0, 0, 1.5, 1.5, 1.5, 1.5}, got.AsFloat32())
}

func TestBinaryOpsIncompatiblePanics(t *testing.T) {
	backend := New()
	a := rawFrom32(t, []float32{1, 2, 3}, tensor.Shape{3})
	b := rawFrom32(t, []float32{1, 2}, tensor.Shape{2})
	assert.PanicsWithValue(t,
		"add: shapes [3] and [2] do not broadcast: axis 0 has 3 vs 2",
		func() { backend.Add(a, b) })
}

func TestMatMul(t *testing.T) {
	backend := New()
	a := rawFrom32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := rawFrom32(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	c := backend.MatMul(a, b)
	assert.Equal(t, tensor.Shape{2, 2}, c.Shape())
	assert.Equal(t, []float32{58, 64, 139, 154}, c.AsFloat32())

	assert.Panics(t, func() { backend.MatMul(a, a) })
}

func TestGemmTransposed(t *testing.T) {
	// a stored 3x2, used as aᵀ (2x3); b stored 2x3 used as bᵀ (3x2).
	a := []float64{1, 4, 2, 5, 3, 6}
	b := []float64{7, 9, 11, 8, 10, 12}
	c := []float64{1, 1, 1, 1}
	gemm(true, true, 2, 2, 3, 1, a, b, 1, c)
	assert.Equal(t, []float64{59, 65, 140, 155}, c)
}

func TestReshapeCopies(t *testing.T) {
	backend := New()
	x := rawFrom32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{1, 2, 3})
	y := backend.Reshape(x, tensor.Shape{2, 3})
	assert.Equal(t, tensor.Shape{2, 3}, y.Shape())
	x.AsFloat32()[0] = 100
	assert.Equal(t, float32(1), y.AsFloat32()[0])

	assert.Panics(t, func() { backend.Reshape(x, tensor.Shape{4}) })
}

func TestTranspose(t *testing.T) {
	backend := New()
	x := rawFrom32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	y := backend.Transpose(x)
	assert.Equal(t, tensor.Shape{3, 2}, y.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, y.AsFloat32())

	z := rawFrom32(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, tensor.Shape{2, 2, 2})
	p := backend.Transpose(z, 2, 0, 1)
	assert.Equal(t, []float32{0, 2, 4, 6, 1, 3, 5, 7}, p.AsFloat32())

	assert.Panics(t, func() { backend.Transpose(z, 0, 0, 1) })
}

func TestExpand(t *testing.T) {
	backend := New()
	x := rawFrom32(t, []float32{1, 2}, tensor.Shape{2, 1})
	y := backend.Expand(x, tensor.Shape{2, 3})
	assert.Equal(t, []float32{1, 1, 1, 2, 2, 2}, y.AsFloat32())

	s := rawFrom32(t, []float32{5}, tensor.Shape{})
	assert.Equal(t, []float32{5, 5, 5}, backend.Expand(s, tensor.Shape{3}).AsFloat32())

	assert.Panics(t, func() { backend.Expand(x, tensor.Shape{3, 3}) })
}

func TestSumAndSumDim(t *testing.T) {
	backend := New()
	x := rawFrom32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	total := backend.Sum(x)
	assert.Empty(t, total.Shape())
	assert.Equal(t, float32(21), total.AsFloat32()[0])

	rows := backend.SumDim(x, 1, false)
	assert.Equal(t, tensor.Shape{2}, rows.Shape())
	assert.Equal(t, []float32{6, 15}, rows.AsFloat32())

	cols := backend.SumDim(x, 0, true)
	assert.Equal(t, tensor.Shape{1, 3}, cols.Shape())
	assert.Equal(t, []float32{5, 7, 9}, cols.AsFloat32())

	last := backend.SumDim(x, -1, true)
	assert.Equal(t, tensor.Shape{2, 1}, last.Shape())
}

func TestScalarOps(t *testing.T) {
	backend := New()
	x := rawFrom32(t, []float32{1, -2, 3}, tensor.Shape{3})
	assert.Equal(t, []float32{2, -4, 6}, backend.MulScalar(x, float32(2)).AsFloat32())
	assert.Equal(t, []float32{1.5, -1.5, 3.5}, backend.AddScalar(x, 0.5).AsFloat32())
	assert.Equal(t, []float32{3, -6, 9}, backend.MulScalar(x, 3).AsFloat32())
	assert.Panics(t, func() { backend.MulScalar(x, "2") })
}

func TestReLU(t *testing.T) {
	backend := New()
	x := rawFrom32(t, []float32{-1, 0, 2, -0.5}, tensor.Shape{4})
	y := backend.ReLU(x)
	assert.Equal(t, []float32{0, 0, 2, 0}, y.AsFloat32())
	assert.NotSame(t, x, y)
}

func TestConv2DBasicForward(t *testing.T) {
	backend := New()

	// 1 2 3
	// 4 5 6
	// 7 8 9
	input := rawFrom32(t, []float32{1, 2, 3, 4, 5, 6, 7, 8, 9}, tensor.Shape{1, 1, 3, 3})
	// 1 0
	// 0 1
	kernel := rawFrom32(t, []float32{1, 0, 0, 1}, tensor.Shape{1, 1, 2, 2})

	output := backend.Conv2D(input, kernel, 1, 0)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, output.Shape())
	assert.Equal(t, []float32{6, 8, 12, 14}, output.AsFloat32())
}

func TestConv2DPaddingKeepsSize(t *testing.T) {
	backend := New()
	input := rawFrom32(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	ones := rawFrom32(t, []float32{1, 1, 1, 1, 1, 1, 1, 1, 1}, tensor.Shape{1, 1, 3, 3})

	// Each output is the sum of the whole 2x2 image because every 3x3
	// window covers it.
	output := backend.Conv2D(input, ones, 1, 1)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, output.Shape())
	assert.Equal(t, []float32{10, 10, 10, 10}, output.AsFloat32())
}

// naiveConv2D is a direct six-loop reference.
func naiveConv2D(in, k []float64, n, cin, h, w, cout, kh, kw, stride, pad int) ([]float64, int, int) {
	hout := (h+2*pad-kh)/stride + 1
	wout := (w+2*pad-kw)/stride + 1
	out := make([]float64, n*cout*hout*wout)
	for b := 0; b < n; b++ {
		for co := 0; co < cout; co++ {
			for oh := 0; oh < hout; oh++ {
				for ow := 0; ow < wout; ow++ {
					var s float64
					for ci := 0; ci < cin; ci++ {
						for i := 0; i < kh; i++ {
							for j := 0; j < kw; j++ {
								y, x := oh*stride-pad+i, ow*stride-pad+j
								if y < 0 || y >= h || x < 0 || x >= w {
									continue
								}
								s += in[((b*cin+ci)*h+y)*w+x] * k[((co*cin+ci)*kh+i)*kw+j]
							}
						}
					}
					out[((b*cout+co)*hout+oh)*wout+ow] = s
				}
			}
		}
	}
	return out, hout, wout
}

func TestConv2DMatchesNaive(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewSource(3))

	for _, tc := range []struct{ stride, pad int }{{1, 0}, {1, 1}, {2, 1}} {
		input := randRaw64(t, rng, tensor.Shape{2, 3, 5, 6})
		kernel := randRaw64(t, rng, tensor.Shape{4, 3, 3, 3})

		got := backend.Conv2D(input, kernel, tc.stride, tc.pad)
		want, hout, wout := naiveConv2D(input.AsFloat64(), kernel.AsFloat64(), 2, 3, 5, 6, 4, 3, 3, tc.stride, tc.pad)

		require.Equal(t, tensor.Shape{2, 4, hout, wout}, got.Shape())
		assert.InDeltaSlice(t, want, got.AsFloat64(), 1e-9, "stride=%d pad=%d", tc.stride, tc.pad)
	}
}

// weightedConvSum evaluates Σ conv(x, k) ⊙ g, whose gradients are the
// backward kernels with grad = g.
func weightedConvSum(backend *CPUBackend, x, k, g *tensor.RawTensor, stride, pad int) float64 {
	out := backend.Conv2D(x, k, stride, pad).AsFloat64()
	var s float64
	for i, v := range out {
		s += v * g.AsFloat64()[i]
	}
	return s
}

func TestConv2DBackwardFiniteDifference(t *testing.T) {
	backend := New()
	rng := rand.New(rand.NewSource(11))
	const eps = 1e-6

	for _, tc := range []struct{ stride, pad int }{{1, 1}, {2, 0}} {
		x := randRaw64(t, rng, tensor.Shape{1, 2, 5, 5})
		k := randRaw64(t, rng, tensor.Shape{3, 2, 3, 3})
		out := backend.Conv2D(x, k, tc.stride, tc.pad)
		g := randRaw64(t, rng, out.Shape())

		dx := backend.Conv2DInputBackward(x, k, g, tc.stride, tc.pad)
		dk := backend.Conv2DKernelBackward(x, k, g, tc.stride, tc.pad)
		require.Equal(t, x.Shape(), dx.Shape())
		require.Equal(t, k.Shape(), dk.Shape())

		check := func(name string, p, grad *tensor.RawTensor) {
			data := p.AsFloat64()
			for i := range data {
				orig := data[i]
				data[i] = orig + eps
				plus := weightedConvSum(backend, x, k, g, tc.stride, tc.pad)
				data[i] = orig - eps
				minus := weightedConvSum(backend, x, k, g, tc.stride, tc.pad)
				data[i] = orig
				numeric := (plus - minus) / (2 * eps)
				if math.Abs(numeric-grad.AsFloat64()[i]) > 1e-5 {
					t.Fatalf("%s[%d] stride=%d pad=%d: analytic %v, numeric %v",
						name, i, tc.stride, tc.pad, grad.AsFloat64()[i], numeric)
				}
			}
		}
		check("input", x, dx)
		check("kernel", k, dk)
	}
}

func TestConv2DShapeErrors(t *testing.T) {
	backend := New()
	input := rawFrom32(t, make([]float32, 12), tensor.Shape{1, 3, 2, 2})
	kernel := rawFrom32(t, make([]float32, 8), tensor.Shape{1, 2, 2, 2})
	assert.Panics(t, func() { backend.Conv2D(input, kernel, 1, 0) })

	big := rawFrom32(t, make([]float32, 75), tensor.Shape{1, 3, 5, 5})
	assert.Panics(t, func() { backend.Conv2D(input, big, 1, 0) })
}

func TestMaxPool2D(t *testing.T) {
	backend := New()
	data := make([]float32, 16)
	for i := range data {
		data[i] = float32(i + 1)
	}
	input := rawFrom32(t, data, tensor.Shape{1, 1, 4, 4})

	output := backend.MaxPool2D(input, 2, 2)
	assert.Equal(t, tensor.Shape{1, 1, 2, 2}, output.Shape())
	assert.Equal(t, []float32{6, 8, 14, 16}, output.AsFloat32())

	assert.Panics(t, func() { backend.MaxPool2D(input, 5, 1) })
}

func TestMaxPool2DBackwardRoutesToMax(t *testing.T) {
	backend := New()
	input := rawFrom32(t, []float32{1, 2, 3, 4}, tensor.Shape{1, 1, 2, 2})
	grad := rawFrom32(t, []float32{7}, tensor.Shape{1, 1, 1, 1})

	inputGrad := backend.MaxPool2DBackward(input, grad, []int{3}, 2, 2)
	assert.Equal(t, []float32{0, 0, 0, 7}, inputGrad.AsFloat32())

	assert.Panics(t, func() { backend.MaxPool2DBackward(input, grad, []int{0, 1}, 2, 2) })
}
