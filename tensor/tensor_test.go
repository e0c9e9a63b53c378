// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/stylize/backend/cpu"
	"github.com/born-ml/stylize/tensor"
)

func TestBackendInterface(_ *testing.T) {
	var _ tensor.Backend = cpu.New()
}

func TestRawTensorAPI(t *testing.T) {
	raw, err := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)

	assert.True(t, raw.Shape().Equal(tensor.Shape{2, 3}))
	assert.Equal(t, tensor.Float32, raw.DType())
	assert.Equal(t, tensor.CPU, raw.Device())
	assert.Equal(t, 6, raw.NumElements())
	assert.Equal(t, 24, raw.ByteSize())

	clone := raw.Clone()
	clone.AsFloat32()[0] = 1
	assert.Equal(t, float32(0), raw.AsFloat32()[0])
}

func TestCreationFunctions(t *testing.T) {
	backend := cpu.New()

	assert.Equal(t, []float32{0, 0}, tensor.Zeros[float32](tensor.Shape{2}, backend).Data())
	assert.Equal(t, []float64{1, 1}, tensor.Ones[float64](tensor.Shape{2}, backend).Data())
	assert.Equal(t, []float32{2.5, 2.5}, tensor.Full[float32](tensor.Shape{2}, 2.5, backend).Data())

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)
	assert.Equal(t, float32(3), x.At(1, 0))

	_, err = tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{2, 2}, backend)
	assert.Error(t, err)

	a := tensor.Randn[float32](tensor.Shape{16}, rand.New(rand.NewSource(7)), backend)
	b := tensor.Randn[float32](tensor.Shape{16}, rand.New(rand.NewSource(7)), backend)
	assert.Equal(t, a.Data(), b.Data())

	for _, v := range tensor.Rand[float32](tensor.Shape{64}, rand.New(rand.NewSource(1)), backend).Data() {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestDataTypeConstants(t *testing.T) {
	assert.Equal(t, 4, tensor.Float32.Size())
	assert.Equal(t, 8, tensor.Float64.Size())
	assert.Equal(t, "CPU", tensor.CPU.String())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name    string
		a, b    tensor.Shape
		want    tensor.Shape
		wantErr bool
	}{
		{"same", tensor.Shape{2, 3}, tensor.Shape{2, 3}, tensor.Shape{2, 3}, false},
		{"channel constants", tensor.Shape{1, 3, 1, 1}, tensor.Shape{1, 3, 8, 8}, tensor.Shape{1, 3, 8, 8}, false},
		{"rank extension", tensor.Shape{4}, tensor.Shape{3, 4}, tensor.Shape{3, 4}, false},
		{"incompatible", tensor.Shape{2, 3}, tensor.Shape{3, 2}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := tensor.BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v", got)
		})
	}
}
