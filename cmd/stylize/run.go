package main

import (
	"fmt"
	"math/rand"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/born-ml/stylize/internal/autodiff"
	"github.com/born-ml/stylize/internal/backend/cpu"
	"github.com/born-ml/stylize/internal/config"
	"github.com/born-ml/stylize/internal/imageio"
	"github.com/born-ml/stylize/internal/loader"
	"github.com/born-ml/stylize/internal/nn"
	"github.com/born-ml/stylize/internal/style"
	"github.com/born-ml/stylize/internal/tensor"
)

type runBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: flagConfig, Aliases: []string{"c"}, Usage: "load run configuration from `FILE`"},
		&cli.StringFlag{Name: "content", Usage: "content image `FILE`"},
		&cli.StringFlag{Name: "style", Usage: "style image `FILE`"},
		&cli.StringFlag{Name: "output", Usage: "output template; {} is replaced by the evaluation count"},
		&cli.StringFlag{Name: "weights", Usage: "safetensors `FILE` with pretrained features; random weights if empty"},
		&cli.StringFlag{Name: flagArch, Usage: "network architecture"},
		&cli.IntFlag{Name: "width"},
		&cli.IntFlag{Name: "height"},
		&cli.IntFlag{Name: "steps", Usage: "closure evaluations"},
		&cli.BoolFlag{Name: "exact-steps", Usage: "run exactly --steps evaluations"},
		&cli.Float64Flag{Name: "style-weight"},
		&cli.Float64Flag{Name: "content-weight"},
		&cli.StringSliceFlag{Name: "content-layers"},
		&cli.StringSliceFlag{Name: "style-layers"},
		&cli.IntFlag{Name: "checkpoint-every"},
		&cli.StringFlag{Name: "init", Usage: "initial image: content or noise"},
		&cli.Int64Flag{Name: flagSeed},
		&cli.StringFlag{Name: "optimizer", Usage: "lbfgs, adam or sgd"},
		&cli.Float64Flag{Name: "lr"},
		&cli.StringFlag{Name: "line-search", Usage: "empty or strong_wolfe"},
		&cli.IntFlag{Name: "history-size"},
		&cli.IntFlag{Name: "max-iter"},
	}
}

// loadConfig reads --config over the defaults, then applies explicitly set flags.
func loadConfig(c *cli.Context) (config.Run, error) {
	cfg := config.Default()
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	setString := func(name string, dst *string) {
		if c.IsSet(name) {
			*dst = c.String(name)
		}
	}
	setInt := func(name string, dst *int) {
		if c.IsSet(name) {
			*dst = c.Int(name)
		}
	}
	setFloat := func(name string, dst *float64) {
		if c.IsSet(name) {
			*dst = c.Float64(name)
		}
	}
	setSlice := func(name string, dst *[]string) {
		if c.IsSet(name) {
			*dst = c.StringSlice(name)
		}
	}

	setString("content", &cfg.ContentImage)
	setString("style", &cfg.StyleImage)
	setString("output", &cfg.OutputTemplate)
	setString("weights", &cfg.Weights)
	setString(flagArch, &cfg.Arch)
	setInt("width", &cfg.Width)
	setInt("height", &cfg.Height)
	setInt("steps", &cfg.Steps)
	setFloat("style-weight", &cfg.StyleWeight)
	setFloat("content-weight", &cfg.ContentWeight)
	setSlice("content-layers", &cfg.ContentLayers)
	setSlice("style-layers", &cfg.StyleLayers)
	setInt("checkpoint-every", &cfg.CheckpointEvery)
	setString("init", &cfg.Init)
	setString("optimizer", &cfg.Optimizer)
	setString("line-search", &cfg.LineSearch)
	setInt("history-size", &cfg.HistorySize)
	setInt("max-iter", &cfg.MaxIter)
	if c.IsSet("exact-steps") {
		cfg.ExactSteps = c.Bool("exact-steps")
	}
	if c.IsSet(flagSeed) {
		cfg.Seed = c.Int64(flagSeed)
	}
	if c.IsSet("lr") {
		cfg.LR = float32(c.Float64("lr"))
	}

	return cfg, cfg.Validate()
}

func runAction(c *cli.Context, logger *zap.SugaredLogger) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	backend := autodiff.New(cpu.New())

	contentImg, err := imageio.Load(cfg.ContentImage, cfg.Width, cfg.Height, backend)
	if err != nil {
		return err
	}
	styleImg, err := imageio.Load(cfg.StyleImage, cfg.Width, cfg.Height, backend)
	if err != nil {
		return err
	}

	layers, err := features(cfg, backend, logger)
	if err != nil {
		return err
	}

	model, err := style.BuildModel(layers, style.ModelConfig{
		Mean:          cfg.Mean,
		Std:           cfg.Std,
		ContentLayers: cfg.ContentLayers,
		StyleLayers:   cfg.StyleLayers,
	}, styleImg, contentImg, backend)
	if err != nil {
		return err
	}
	logger.Debugw("assembled model", "stages", model.Names())

	input := contentImg
	if cfg.Init == config.InitNoise {
		//nolint:gosec // G404: reproducible noise, not security-sensitive
		input = tensor.Randn[float32](contentImg.Shape(), rand.New(rand.NewSource(cfg.Seed)), backend)
	}

	driver := style.NewDriver(model, style.Options{
		Steps:           cfg.Steps,
		ExactSteps:      cfg.ExactSteps,
		StyleWeight:     float32(cfg.StyleWeight),
		ContentWeight:   float32(cfg.ContentWeight),
		CheckpointEvery: cfg.CheckpointEvery,
		OutputTemplate:  cfg.OutputTemplate,
		Optimizer: style.OptimizerConfig{
			Kind:        cfg.Optimizer,
			LR:          cfg.LR,
			LineSearch:  cfg.LineSearch,
			HistorySize: cfg.HistorySize,
			MaxIter:     cfg.MaxIter,
		},
	}, backend, logger)

	logger.Infow("optimizing", "steps", cfg.Steps, "optimizer", cfg.Optimizer,
		"size", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height))
	res, runErr := driver.Run(c.Context, input)
	if res == nil {
		return runErr
	}

	final := imageio.CheckpointPath(cfg.OutputTemplate, "final")
	if err := imageio.Save(res.Image, final); err != nil {
		return multierr.Append(runErr, err)
	}
	logger.Infow("done",
		"output", final,
		"evaluations", res.Evaluations,
		"style_loss", res.Scores.Style,
		"content_loss", res.Scores.Content)
	return runErr
}

func features(cfg config.Run, backend runBackend, logger *zap.SugaredLogger) (layers []nn.Module[runBackend], err error) {
	if cfg.Weights == "" {
		logger.Warnw("no weights given, using random features", "arch", cfg.Arch, "seed", cfg.Seed)
		return loader.RandomFeatures(cfg.Arch, backend, cfg.Seed)
	}

	reader, err := loader.NewSafeTensorsReader(cfg.Weights)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, reader.Close())
	}()
	return loader.BuildFeatures(cfg.Arch, reader, backend)
}
