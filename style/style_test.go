// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package style_test

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/stylize/autodiff"
	"github.com/born-ml/stylize/backend/cpu"
	"github.com/born-ml/stylize/loader"
	"github.com/born-ml/stylize/style"
	"github.com/born-ml/stylize/tensor"
)

func TestDefaultModelConfig(t *testing.T) {
	cfg := style.DefaultModelConfig()
	assert.Equal(t, []string{"conv_4"}, cfg.ContentLayers)
	assert.Len(t, cfg.StyleLayers, 5)
}

func TestPublicRun(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layers, err := loader.RandomFeatures("vgg11", backend, 1)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(2))
	content := tensor.Rand[float32](tensor.Shape{1, 3, 16, 16}, rng, backend)
	styleImg := tensor.Rand[float32](tensor.Shape{1, 3, 16, 16}, rng, backend)

	cfg := style.DefaultModelConfig()
	cfg.ContentLayers = []string{"conv_2"}
	cfg.StyleLayers = []string{"conv_1", "conv_2"}
	model, err := style.BuildModel(layers, cfg, styleImg, content, backend)
	require.NoError(t, err)

	res, err := style.NewDriver(model, style.Options{Steps: 3, ExactSteps: true, StyleWeight: 1e6, ContentWeight: 1}, backend, nil).
		Run(context.Background(), content)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Evaluations)

	path := filepath.Join(t.TempDir(), "out.png")
	require.NoError(t, style.SaveImage(res.Image, path))
	loaded, err := style.LoadImage(path, 16, 16, backend)
	require.NoError(t, err)
	assert.Equal(t, res.Image.Shape(), loaded.Shape())
}

func TestPublicErrors(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layers, err := loader.RandomFeatures("vgg11", backend, 1)
	require.NoError(t, err)

	a := tensor.Zeros[float32](tensor.Shape{1, 3, 8, 8}, backend)
	b := tensor.Zeros[float32](tensor.Shape{1, 3, 16, 16}, backend)
	_, err = style.BuildModel(layers, style.DefaultModelConfig(), a, b, backend)
	assert.ErrorIs(t, err, style.ErrShapeMismatch)
}
