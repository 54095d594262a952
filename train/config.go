package train

import (
	"errors"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/jmorganca/seqprep/batch"
	"github.com/jmorganca/seqprep/vocab"
)

var ErrInvalidConfig = errors.New("invalid training config")

type Config struct {
	Epochs       int     `mapstructure:"epochs"`
	BatchSize    int     `mapstructure:"batch_size"`
	DisplayStep  int     `mapstructure:"display_step"`
	LearningRate float32 `mapstructure:"learning_rate"`

	// Workers above one builds each epoch's batches concurrently.
	Workers int `mapstructure:"workers"`

	KeepRemainder bool `mapstructure:"keep_remainder"`
	TrueLengths   bool `mapstructure:"true_lengths"`

	// PromptLength pads Predict prompts with <PAD> up to this many ids.
	PromptLength int `mapstructure:"prompt_length"`
}

func DefaultConfig() Config {
	return Config{
		Epochs:       10,
		BatchSize:    128,
		DisplayStep:  20,
		LearningRate: 0.001,
		Workers:      1,
	}
}

// DecodeConfig overlays m onto base. Values may be strings, as they are when
// they come from key=value flags.
func DecodeConfig(base Config, m map[string]any) (Config, error) {
	cfg := base
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return base, err
	}

	if err := decoder.Decode(m); err != nil {
		return base, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.Epochs <= 0:
		return fmt.Errorf("%w: epochs must be positive, got %d", ErrInvalidConfig, c.Epochs)
	case c.BatchSize <= 0:
		return fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	case c.DisplayStep <= 0:
		return fmt.Errorf("%w: display_step must be positive, got %d", ErrInvalidConfig, c.DisplayStep)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning_rate must be positive, got %g", ErrInvalidConfig, c.LearningRate)
	case c.PromptLength < 0:
		return fmt.Errorf("%w: prompt_length must not be negative, got %d", ErrInvalidConfig, c.PromptLength)
	}

	return nil
}

// Options returns the batching options for a source and target vocabulary.
func (c Config) Options(source, target *vocab.Vocabulary) batch.Options {
	opts := batch.Options{
		Size:      c.BatchSize,
		SourcePad: source.Special(vocab.SpecialPAD),
		TargetPad: target.Special(vocab.SpecialPAD),
	}

	if c.KeepRemainder {
		opts.Remainder = batch.RemainderKeep
	}

	if c.TrueLengths {
		opts.Lengths = batch.LengthsTrue
	}

	return opts
}
