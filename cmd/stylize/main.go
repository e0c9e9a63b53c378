// Package main provides the stylize CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/born-ml/stylize/internal/backend/cpu"
	"github.com/born-ml/stylize/internal/loader"
	"github.com/born-ml/stylize/internal/logging"
	"github.com/born-ml/stylize/internal/nn"
	"github.com/born-ml/stylize/internal/style"
	"github.com/born-ml/stylize/internal/tensor"
)

const version = "v0.1.0"

const (
	flagConfig = "config"
	flagDebug  = "debug"
	flagArch   = "arch"
	flagSeed   = "seed"
	flagOut    = "out"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := newApp(os.Stdout).RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "stylize:", err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.App {
	logger := zap.NewNop().Sugar()

	return &cli.App{
		Name:        "stylize",
		Usage:       "neural style transfer",
		Writer:      out,
		HideVersion: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			l, err := logging.New("stylize", c.Bool(flagDebug))
			if err != nil {
				return err
			}
			logger = l
			return nil
		},
		After: func(*cli.Context) error {
			// Sync fails on terminals that do not support fsync.
			_ = logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "transfer the style of one image onto another",
				UsageText: "stylize run [--config FILE] [flags]",
				Flags:     runFlags(),
				Action: func(c *cli.Context) error {
					return runAction(c, logger)
				},
			},
			{
				Name:  "layers",
				Usage: "print the named pipeline stages of an architecture",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagArch, Value: "vgg19", Usage: "one of " + fmt.Sprint(loader.Architectures())},
				},
				Action: layersAction,
			},
			{
				Name:  "export-weights",
				Usage: "write randomly initialized weights as a safetensors file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: flagArch, Value: "vgg19"},
					&cli.Int64Flag{Name: flagSeed, Value: 1},
					&cli.StringFlag{Name: flagOut, Required: true, Usage: "destination `FILE`"},
				},
				Action: func(c *cli.Context) error {
					return exportAction(c, logger)
				},
			},
			{
				Name:  "version",
				Usage: "print the version",
				Action: func(c *cli.Context) error {
					_, err := fmt.Fprintf(c.App.Writer, "stylize %s\n", version)
					return err
				},
			},
		},
	}
}

func layersAction(c *cli.Context) error {
	layers, err := loader.RandomFeatures(c.String(flagArch), cpu.New(), 0)
	if err != nil {
		return err
	}
	names, err := style.LayerNames(layers)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintln(w, style.NormalizationName)
	for i, name := range names {
		fmt.Fprintf(w, "%-8s %v\n", name, describe(layers[i]))
	}
	return nil
}

func describe[B tensor.Backend](m nn.Module[B]) string {
	if s, ok := m.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%T", m)
}

func exportAction(c *cli.Context, logger *zap.SugaredLogger) error {
	arch := c.String(flagArch)
	layers, err := loader.RandomFeatures(arch, cpu.New(), c.Int64(flagSeed))
	if err != nil {
		return err
	}

	state := loader.FeatureStateDict(layers)
	meta := map[string]string{"arch": arch, "seed": fmt.Sprint(c.Int64(flagSeed))}
	if err := loader.WriteSafeTensors(c.String(flagOut), state, meta); err != nil {
		return err
	}
	logger.Infow("wrote weights", "path", c.String(flagOut), "arch", arch, "tensors", len(state))
	return nil
}
