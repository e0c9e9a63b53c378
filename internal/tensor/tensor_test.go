package tensor

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// deviceBackend satisfies Backend for tests that only allocate.
// Calling any compute method panics on the nil embedded interface.
type deviceBackend struct {
	Backend
}

func (deviceBackend) Device() Device { return CPU }
func (deviceBackend) Name() string   { return "test" }

func TestDataTypeSize(t *testing.T) {
	assert.Equal(t, 4, Float32.Size())
	assert.Equal(t, 8, Float64.Size())
	assert.Equal(t, "float32", Float32.String())
	assert.Equal(t, "float64", Float64.String())
}

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1},
		{Shape{5}, 5},
		{Shape{1, 3, 8, 8}, 192},
	}
	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("%v.NumElements() = %d, want %d", tt.shape, got, tt.want)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	assert.NoError(t, Shape{1, 3, 4, 4}.Validate())
	assert.Error(t, Shape{1, 0, 4}.Validate())
	assert.Error(t, Shape{-2}.Validate())
}

func TestComputeStrides(t *testing.T) {
	assert.Equal(t, []int{48, 16, 4, 1}, Shape{2, 3, 4, 4}.ComputeStrides())
	assert.Empty(t, Shape{}.ComputeStrides())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Shape
		want      Shape
		broadcast bool
		wantErr   bool
	}{
		{"equal", Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false, false},
		{"channel constant", Shape{1, 3, 8, 8}, Shape{1, 3, 1, 1}, Shape{1, 3, 8, 8}, true, false},
		{"scalar", Shape{2, 2}, Shape{}, Shape{2, 2}, true, false},
		{"incompatible", Shape{3, 4}, Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v", got)
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}
}

func TestRawCloneIsDeep(t *testing.T) {
	raw, err := NewRaw(Shape{2, 2}, Float32, CPU)
	require.NoError(t, err)
	raw.AsFloat32()[0] = 7

	clone := raw.Clone()
	clone.AsFloat32()[0] = 1

	assert.Equal(t, float32(7), raw.AsFloat32()[0])
	assert.NotSame(t, raw, clone)
}

func TestRawWithShapeSharesBuffer(t *testing.T) {
	raw, err := NewRaw(Shape{1, 3, 2, 2}, Float32, CPU)
	require.NoError(t, err)

	view, err := raw.WithShape(Shape{3, 4})
	require.NoError(t, err)
	view.AsFloat32()[5] = 2.5
	assert.Equal(t, float32(2.5), raw.AsFloat32()[5])
	assert.Equal(t, []int{4, 1}, view.Strides())

	_, err = raw.WithShape(Shape{5})
	assert.Error(t, err)
}

func TestRawDTypeMismatchPanics(t *testing.T) {
	raw, err := NewRaw(Shape{2}, Float64, CPU)
	require.NoError(t, err)
	assert.Panics(t, func() { raw.AsFloat32() })
}

func TestFromSlice(t *testing.T) {
	b := deviceBackend{}
	x, err := FromSlice([]float32{1, 2, 3, 4, 5, 6}, Shape{2, 3}, b)
	require.NoError(t, err)
	assert.Equal(t, float32(6), x.At(1, 2))

	x.Set(9, 0, 1)
	assert.Equal(t, []float32{1, 9, 3, 4, 5, 6}, x.Data())

	_, err = FromSlice([]float32{1, 2}, Shape{3}, b)
	assert.Error(t, err)
}

func TestAtOutOfBoundsPanics(t *testing.T) {
	x := Zeros[float32](Shape{2, 2}, deviceBackend{})
	assert.Panics(t, func() { x.At(2, 0) })
	assert.Panics(t, func() { x.At(0) })
}

func TestItem(t *testing.T) {
	x := Full[float64](Shape{}, 3.5, deviceBackend{})
	assert.Equal(t, 3.5, x.Item())
	assert.Panics(t, func() { Zeros[float64](Shape{2}, deviceBackend{}).Item() })
}

func TestClampInPlace(t *testing.T) {
	x, err := FromSlice([]float32{-0.5, 0, 0.25, 1, 1.75}, Shape{5}, deviceBackend{})
	require.NoError(t, err)
	raw := x.Raw()

	x.ClampInPlace(0, 1)

	assert.Equal(t, []float32{0, 0, 0.25, 1, 1}, x.Data())
	assert.Same(t, raw, x.Raw(), "clamp must not replace the buffer")
}

func TestCopyFrom(t *testing.T) {
	b := deviceBackend{}
	dst := Zeros[float32](Shape{2, 2}, b)
	src := Full[float32](Shape{4}, 0.5, b)
	dst.CopyFrom(src)
	assert.Equal(t, []float32{0.5, 0.5, 0.5, 0.5}, dst.Data())
	assert.Panics(t, func() { dst.CopyFrom(Zeros[float32](Shape{3}, b)) })
}

func TestCloneDropsGradient(t *testing.T) {
	b := deviceBackend{}
	x := Ones[float32](Shape{3}, b)
	x.SetGrad(Ones[float32](Shape{3}, b))

	c := x.Clone()
	assert.Nil(t, c.Grad())
	c.Data()[0] = 5
	assert.Equal(t, float32(1), x.Data()[0])

	d := x.Detach()
	assert.Same(t, x.Raw(), d.Raw())
	assert.Nil(t, d.Grad())
}

func TestRandnSeeded(t *testing.T) {
	b := deviceBackend{}
	a := Randn[float32](Shape{1000}, rand.New(rand.NewSource(1)), b)
	c := Randn[float32](Shape{1000}, rand.New(rand.NewSource(1)), b)
	assert.Equal(t, a.Data(), c.Data())

	var sum, sq float64
	for _, v := range a.Data() {
		sum += float64(v)
		sq += float64(v) * float64(v)
	}
	mean := sum / 1000
	std := math.Sqrt(sq/1000 - mean*mean)
	assert.InDelta(t, 0, mean, 0.15)
	assert.InDelta(t, 1, std, 0.15)
}

func TestRandRange(t *testing.T) {
	x := Rand[float64](Shape{1, 3, 8, 8}, rand.New(rand.NewSource(7)), deviceBackend{})
	for _, v := range x.Data() {
		if v < 0 || v >= 1 {
			t.Fatalf("Rand produced %v outside [0,1)", v)
		}
	}
}
