// Package loader reads pretrained feature networks from SafeTensors files.
//
// This package implements:
//   - SafeTensors: Reader and writer for the Hugging Face weight format
//   - VGG: The torchvision vgg11/13/16/19 feature layouts, with and
//     without batch normalization
//
// Weights are addressed by torchvision's state dict names, so a file
// exported from torchvision.models.vgg19(...).features loads as is:
//
//	reader, err := loader.NewSafeTensorsReader("vgg19.safetensors")
//	if err != nil {
//	    return err
//	}
//	defer reader.Close()
//
//	layers, err := loader.BuildFeatures("vgg19", reader, backend)
//
// Only F32 and F64 tensors are loaded; F64 is narrowed to float32.
package loader
