package style

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/born-ml/stylize/internal/autodiff"
	"github.com/born-ml/stylize/internal/imageio"
	"github.com/born-ml/stylize/internal/nn"
	"github.com/born-ml/stylize/internal/tensor"
)

// DefaultCheckpointEvery is the checkpoint interval in closure evaluations.
const DefaultCheckpointEvery = 50

// Options configures a Driver.
type Options struct {
	// Steps bounds the number of closure evaluations. By default the loop
	// keeps stepping while the count is <= Steps, so at least one optimizer
	// step always runs and a step may overshoot the bound.
	Steps int

	// ExactSteps runs exactly Steps closure evaluations: the loop continues
	// while the count is < Steps and each step's evaluation budget is
	// capped to what remains. Optimizers without a budget (Adam, SGD)
	// evaluate once per step, which is exact anyway.
	ExactSteps bool

	StyleWeight   float32
	ContentWeight float32

	// CheckpointEvery is the checkpoint interval (default 50).
	CheckpointEvery int

	// OutputTemplate names checkpoint files; "{}" is replaced by the
	// evaluation count. Empty disables checkpoint files but not the
	// progress log lines.
	OutputTemplate string

	Optimizer OptimizerConfig
}

// Result is the outcome of a run.
type Result[B tensor.Backend] struct {
	Image       *tensor.Tensor[float32, B] // clamped to [0, 1]
	Evaluations int                        // closure evaluations
	Steps       int                        // optimizer steps
	Scores      Scores                     // weighted losses of the last evaluation
	Checkpoints []string                   // files written, in order
}

// Evaluation describes one closure evaluation.
type Evaluation[B tensor.Backend] struct {
	Run    int
	Image  *tensor.Tensor[float32, B] // clamped image the losses were measured on
	Scores Scores                     // weighted
}

var errNoGradient = errors.New("no gradient reached the image")

type evalBudgeter interface {
	SetEvalBudget(n int)
}

// Driver optimizes the pixels of an image against an assembled Model.
type Driver[B autodiff.BackwardCapable] struct {
	model   *Model[B]
	opts    Options
	backend B
	logger  *zap.SugaredLogger
	observe func(Evaluation[B])
}

// NewDriver creates a driver. A nil logger discards progress lines.
func NewDriver[B autodiff.BackwardCapable](model *Model[B], opts Options, backend B, logger *zap.SugaredLogger) *Driver[B] {
	if opts.CheckpointEvery <= 0 {
		opts.CheckpointEvery = DefaultCheckpointEvery
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Driver[B]{
		model:   model,
		opts:    opts,
		backend: backend,
		logger:  logger,
	}
}

// Observe registers fn to be called after every closure evaluation.
func (d *Driver[B]) Observe(fn func(Evaluation[B])) {
	d.observe = fn
}

// Run optimizes a copy of input and returns it with the run statistics.
//
// ctx is checked between optimizer steps. On cancellation the partial
// result is returned together with ctx.Err().
func (d *Driver[B]) Run(ctx context.Context, input *tensor.Tensor[float32, B]) (*Result[B], error) {
	if !input.Shape().Equal(d.model.inputShape) {
		return nil, fmt.Errorf("%w: input %v, model %v", ErrShapeMismatch, input.Shape(), d.model.inputShape)
	}

	img := input.Clone()
	param := nn.NewParameter("image", img)
	optimizer, err := NewOptimizer([]*nn.Parameter[B]{param}, d.opts.Optimizer, d.backend)
	if err != nil {
		return nil, err
	}

	res := &Result[B]{Image: img}
	tape := d.backend.GetTape()

	closure := func() (float32, error) {
		img.ClampInPlace(0, 1)
		optimizer.ZeroGrad()

		tape.Clear()
		tape.StartRecording()
		defer tape.StopRecording()

		d.model.Forward(img)
		styleScore, contentScore := d.model.objective(d.opts.StyleWeight, d.opts.ContentWeight)
		total := styleScore.Add(contentScore)

		grads := autodiff.Backward(total, d.backend)
		grad, ok := grads[img.Raw()]
		if !ok {
			return 0, errNoGradient
		}
		param.SetGrad(tensor.New[float32](grad, d.backend))

		res.Evaluations++
		res.Scores = Scores{Style: styleScore.Item(), Content: contentScore.Item()}

		if res.Evaluations%d.opts.CheckpointEvery == 0 {
			d.logger.Infow("progress",
				"run", res.Evaluations,
				"style_loss", res.Scores.Style,
				"content_loss", res.Scores.Content)
			if err := d.checkpoint(img, res); err != nil {
				return 0, err
			}
		}
		if d.observe != nil {
			d.observe(Evaluation[B]{Run: res.Evaluations, Image: img, Scores: res.Scores})
		}
		return total.Item(), nil
	}

	budgeter, _ := optimizer.(evalBudgeter)
	for d.more(res.Evaluations) {
		if err := ctx.Err(); err != nil {
			img.ClampInPlace(0, 1)
			return res, err
		}
		if d.opts.ExactSteps && budgeter != nil {
			budgeter.SetEvalBudget(d.opts.Steps - res.Evaluations)
		}
		if _, err := optimizer.Step(closure); err != nil {
			return res, fmt.Errorf("step %d: %w", res.Steps+1, err)
		}
		res.Steps++
	}

	img.ClampInPlace(0, 1)
	d.logger.Debugw("finished", "evaluations", res.Evaluations, "steps", res.Steps)
	return res, nil
}

func (d *Driver[B]) more(run int) bool {
	if d.opts.ExactSteps {
		return run < d.opts.Steps
	}
	return run <= d.opts.Steps
}

func (d *Driver[B]) checkpoint(img *tensor.Tensor[float32, B], res *Result[B]) error {
	if d.opts.OutputTemplate == "" {
		return nil
	}
	path := imageio.EvalPath(d.opts.OutputTemplate, res.Evaluations)
	if err := imageio.Save(img, path); err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	res.Checkpoints = append(res.Checkpoints, path)
	return nil
}
