// Package train drives a sequence-to-sequence model over a parallel corpus.
// The model itself is supplied by the caller.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/pdevine/tensor"

	"github.com/jmorganca/seqprep/batch"
	"github.com/jmorganca/seqprep/corpus"
	"github.com/jmorganca/seqprep/logutil"
	"github.com/jmorganca/seqprep/sequence"
	"github.com/jmorganca/seqprep/vocab"
)

// Step is one batch as the model sees it: dense [rows, cols] int32 tensors.
// DecoderInput is Target shifted right behind <GO>.
type Step struct {
	Source       *tensor.Dense
	DecoderInput *tensor.Dense
	Target       *tensor.Dense

	SourceLengths []int32
	TargetLengths []int32

	LearningRate float32
}

type Model interface {
	// Step runs one optimizer update and returns the training loss.
	Step(ctx context.Context, step Step) (float32, error)
	// Loss evaluates step without updating parameters.
	Loss(ctx context.Context, step Step) (float32, error)
	// Infer returns [rows][steps][vocab] logits for a [rows, cols] source.
	Infer(ctx context.Context, source *tensor.Dense, lengths []int32) ([][][]float64, error)
}

type Progress struct {
	Epoch, Epochs  int
	Batch, Batches int
	Loss           float32
	ValidationLoss float32
	Validated      bool
}

func (p Progress) String() string {
	s := fmt.Sprintf("Epoch %3d/%d Batch %4d/%d - Loss: %6.3f", p.Epoch, p.Epochs, p.Batch, p.Batches, p.Loss)
	if p.Validated {
		s += fmt.Sprintf("  - Validation loss: %6.3f", p.ValidationLoss)
	}

	return s
}

type pair struct {
	sources, targets [][]int32
}

type Trainer struct {
	ID     uuid.UUID
	Config Config

	Source *vocab.Vocabulary
	Target *vocab.Vocabulary

	// Report, if set, is called after every training step.
	Report func(Progress)

	model        Model
	train, valid pair
}

// New builds both vocabularies over the whole corpus and holds out the first
// BatchSize examples for validation.
func New(model Model, c *corpus.Corpus, cfg Config) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Trainer{
		ID:     uuid.New(),
		Config: cfg,
		Source: vocab.Build(c.Source),
		Target: vocab.Build(c.Target),
		model:  model,
	}

	valid, train := c.Split(cfg.BatchSize)
	t.valid = pair{
		sources: sequence.EncodeSources(valid.Source, t.Source),
		targets: sequence.EncodeTargets(valid.Target, t.Target),
	}
	t.train = pair{
		sources: sequence.EncodeSources(train.Source, t.Source),
		targets: sequence.EncodeTargets(train.Target, t.Target),
	}

	slog.Debug("trainer ready", "run", t.ID,
		"source_vocab", t.Source.Size(), "target_vocab", t.Target.Size(),
		"train", len(t.train.sources), "valid", len(t.valid.sources))
	return t, nil
}

func (t *Trainer) step(b batch.Batch) Step {
	return Step{
		Source:        b.Source.Tensor(),
		DecoderInput:  batch.ShiftForTraining(b.Target, t.Target.Special(vocab.SpecialGO)).Tensor(),
		Target:        b.Target.Tensor(),
		SourceLengths: b.SourceLengths,
		TargetLengths: b.TargetLengths,
		LearningRate:  t.Config.LearningRate,
	}
}

// validation returns the first full batch of held out examples.
func (t *Trainer) validation() (Step, bool, error) {
	it, err := batch.New(t.valid.targets, t.valid.sources, t.Config.Options(t.Source, t.Target))
	if err != nil {
		return Step{}, false, err
	}

	if !it.Next() {
		return Step{}, false, nil
	}

	return t.step(it.Batch()), true, nil
}

func (t *Trainer) Run(ctx context.Context) error {
	valid, ok, err := t.validation()
	if err != nil {
		return err
	}

	if !ok {
		slog.Warn("not enough examples for a validation batch", "run", t.ID, "batch_size", t.Config.BatchSize)
	}

	for epoch := 1; epoch <= t.Config.Epochs; epoch++ {
		it, err := batch.New(t.train.targets, t.train.sources, t.Config.Options(t.Source, t.Target))
		if err != nil {
			return err
		}

		batches := it.Len()
		err = each(ctx, it, t.Config.Workers, func(b batch.Batch) error {
			logutil.Trace("batch", "epoch", epoch, "index", b.Index, "source", b.Source.Cols(), "target", b.Target.Cols())

			loss, err := t.model.Step(ctx, t.step(b))
			if err != nil {
				return fmt.Errorf("epoch %d batch %d: %w", epoch, b.Index, err)
			}

			p := Progress{Epoch: epoch, Epochs: t.Config.Epochs, Batch: b.Index, Batches: batches, Loss: loss}
			if ok && b.Index > 0 && b.Index%t.Config.DisplayStep == 0 {
				p.ValidationLoss, err = t.model.Loss(ctx, valid)
				if err != nil {
					return fmt.Errorf("validation: %w", err)
				}

				p.Validated = true
				slog.Info(p.String(), "run", t.ID)
			}

			if t.Report != nil {
				t.Report(p)
			}

			return nil
		})
		if err != nil {
			return err
		}
	}

	slog.Info("training finished", "run", t.ID, "epochs", t.Config.Epochs)
	return nil
}

func each(ctx context.Context, it *batch.Iterator, workers int, fn func(batch.Batch) error) error {
	if workers > 1 {
		batches, err := batch.Collect(ctx, it, workers)
		if err != nil {
			return err
		}

		for _, b := range batches {
			if err := ctx.Err(); err != nil {
				return err
			}

			if err := fn(b); err != nil {
				return err
			}
		}

		return nil
	}

	for it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := fn(it.Batch()); err != nil {
			return err
		}
	}

	return nil
}

var errNoOutput = errors.New("model returned no rows")

// Predict summarizes line. The prompt is padded to PromptLength and
// replicated to fill a batch, since the model expects BatchSize rows. Row 0
// of the output is decoded greedily.
func (t *Trainer) Predict(ctx context.Context, line string) ([]string, error) {
	ids := sequence.PadSource(line, t.Source, t.Config.PromptLength)

	source := make(batch.Matrix, t.Config.BatchSize)
	lengths := make([]int32, t.Config.BatchSize)
	for i := range source {
		source[i] = slices.Clone(ids)
		lengths[i] = int32(len(ids))
	}

	logits, err := t.model.Infer(ctx, source.Tensor(), lengths)
	if err != nil {
		return nil, err
	}

	if len(logits) == 0 {
		return nil, errNoOutput
	}

	return sequence.Decode(sequence.Greedy(logits[0]), t.Target)
}
