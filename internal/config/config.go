// Package config holds the settings of one style transfer run.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/born-ml/stylize/internal/optim"
	"github.com/born-ml/stylize/internal/style"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Initial image choices.
const (
	InitContent = "content"
	InitNoise   = "noise"
)

// Run is the full configuration of a style transfer run.
type Run struct {
	ContentImage   string `yaml:"content_image"`
	StyleImage     string `yaml:"style_image"`
	OutputTemplate string `yaml:"output"` // "{}" is replaced by the evaluation count

	Weights string `yaml:"weights"` // SafeTensors file; empty means random weights
	Arch    string `yaml:"arch"`

	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	Steps      int  `yaml:"steps"`
	ExactSteps bool `yaml:"exact_steps"` // run exactly Steps closure evaluations

	StyleWeight   float64  `yaml:"style_weight"`
	ContentWeight float64  `yaml:"content_weight"`
	ContentLayers []string `yaml:"content_layers"`
	StyleLayers   []string `yaml:"style_layers"`

	Mean []float32 `yaml:"mean"`
	Std  []float32 `yaml:"std"`

	CheckpointEvery int    `yaml:"checkpoint_every"`
	Init            string `yaml:"init"`
	Seed            int64  `yaml:"seed"`

	Optimizer   string  `yaml:"optimizer"`
	LR          float32 `yaml:"lr"` // 0 selects the optimizer's default
	LineSearch  string  `yaml:"line_search"`
	HistorySize int     `yaml:"history_size"`
	MaxIter     int     `yaml:"max_iter"`
}

// Default returns the configuration of the classic VGG19 run.
func Default() Run {
	return Run{
		ContentImage:    "contents/charlton6.jpg",
		StyleImage:      "styles/picasso.jpg",
		OutputTemplate:  "outputs/output_{}.jpg",
		Arch:            "vgg19",
		Width:           512,
		Height:          512,
		Steps:           300,
		StyleWeight:     1e6,
		ContentWeight:   1,
		ContentLayers:   []string{"conv_4"},
		StyleLayers:     []string{"conv_1", "conv_2", "conv_3", "conv_4", "conv_5"},
		Mean:            []float32{0.485, 0.456, 0.406},
		Std:             []float32{0.229, 0.224, 0.225},
		CheckpointEvery: 50,
		Init:            InitContent,
		Optimizer:       style.OptimizerLBFGS,
		HistorySize:     100,
		MaxIter:         20,
	}
}

// Load reads a YAML file over the defaults. Keys absent from the file keep
// their default values; unknown keys are an error.
func Load(path string) (Run, error) {
	cfg := Default()

	//nolint:gosec // G304: config path comes from the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every problem with the configuration at once.
// Each returned error wraps ErrInvalid.
func (r Run) Validate() error {
	var err error
	invalid := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if r.ContentImage == "" {
		invalid("content image is required")
	}
	if r.StyleImage == "" {
		invalid("style image is required")
	}
	if r.OutputTemplate == "" {
		invalid("output template is required")
	}
	if r.Width <= 0 || r.Height <= 0 {
		invalid("image size must be positive, got %dx%d", r.Width, r.Height)
	}
	if r.Steps < 0 {
		invalid("steps must be non-negative, got %d", r.Steps)
	}
	if r.StyleWeight < 0 || r.ContentWeight < 0 {
		invalid("weights must be non-negative, got style=%g content=%g", r.StyleWeight, r.ContentWeight)
	}
	if len(r.ContentLayers) == 0 && len(r.StyleLayers) == 0 {
		invalid("at least one content or style layer is required")
	}
	if len(r.Mean) != 3 || len(r.Std) != 3 {
		invalid("mean and std need 3 values each, got %d and %d", len(r.Mean), len(r.Std))
	}
	if slices.Contains(r.Std, 0) {
		invalid("std must not contain zero")
	}
	if r.CheckpointEvery <= 0 {
		invalid("checkpoint interval must be positive, got %d", r.CheckpointEvery)
	}
	if r.Init != InitContent && r.Init != InitNoise {
		invalid("init must be %q or %q, got %q", InitContent, InitNoise, r.Init)
	}
	switch r.Optimizer {
	case style.OptimizerLBFGS, style.OptimizerAdam, style.OptimizerSGD:
	default:
		invalid("unknown optimizer %q", r.Optimizer)
	}
	if r.LR < 0 {
		invalid("learning rate must be non-negative, got %g", r.LR)
	}
	if r.LineSearch != optim.LineSearchNone && r.LineSearch != optim.LineSearchStrongWolfe {
		invalid("unknown line search %q", r.LineSearch)
	}
	if r.HistorySize <= 0 || r.MaxIter <= 0 {
		invalid("history size and max iterations must be positive, got %d and %d", r.HistorySize, r.MaxIter)
	}

	return err
}
