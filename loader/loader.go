// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader reads pretrained feature networks from safetensors files.
//
//	reader, err := loader.NewSafeTensorsReader("vgg19.safetensors")
//	if err != nil {
//	    return err
//	}
//	defer reader.Close()
//
//	layers, err := loader.BuildFeatures("vgg19", reader, backend)
//
// Tensor names follow torchvision's features.{index}.{weight,bias,...}.
package loader

import (
	"io"

	"github.com/born-ml/stylize/internal/loader"
	"github.com/born-ml/stylize/nn"
	"github.com/born-ml/stylize/tensor"
)

// ErrUnknownArch is returned for an architecture without a known layout.
var ErrUnknownArch = loader.ErrUnknownArch

// SafeTensorsReader reads tensors from a safetensors file.
type SafeTensorsReader = loader.SafeTensorsReader

// TensorSource yields float32 tensors by name.
type TensorSource = loader.TensorSource

// NewSafeTensorsReader opens path and validates its header.
func NewSafeTensorsReader(path string) (*SafeTensorsReader, error) {
	return loader.NewSafeTensorsReader(path)
}

// WriteSafeTensors writes tensors and metadata to path.
func WriteSafeTensors(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	return loader.WriteSafeTensors(path, tensors, metadata)
}

// EncodeSafeTensors writes the safetensors encoding of tensors to w.
func EncodeSafeTensors(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	return loader.EncodeSafeTensors(w, tensors, metadata)
}

// Architectures lists the supported network names.
func Architectures() []string {
	return loader.Architectures()
}

// BuildFeatures loads the feature layers of arch from src.
func BuildFeatures[B tensor.Backend](arch string, src TensorSource, backend B) ([]nn.Module[B], error) {
	return loader.BuildFeatures(arch, src, backend)
}

// RandomFeatures builds arch with seeded random weights.
func RandomFeatures[B tensor.Backend](arch string, backend B, seed int64) ([]nn.Module[B], error) {
	return loader.RandomFeatures(arch, backend, seed)
}

// FeatureStateDict names the tensors of layers the way BuildFeatures reads them.
func FeatureStateDict[B tensor.Backend](layers []nn.Module[B]) map[string]*tensor.RawTensor {
	return loader.FeatureStateDict(layers)
}
