package cmd

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmorganca/seqprep/batch"
	"github.com/jmorganca/seqprep/corpus"
	"github.com/jmorganca/seqprep/envconfig"
	"github.com/jmorganca/seqprep/progress"
	"github.com/jmorganca/seqprep/sequence"
	"github.com/jmorganca/seqprep/train"
	"github.com/jmorganca/seqprep/vocab"
)

func showProgress(cmd *cobra.Command) bool {
	quiet, _ := cmd.Flags().GetBool("quiet")
	return !quiet && term.IsTerminal(int(os.Stderr.Fd()))
}

func loadCorpus(cmd *cobra.Command, sourcePath, targetPath string) (*corpus.Corpus, error) {
	if showProgress(cmd) {
		p := progress.NewProgress(os.Stderr)
		p.Add(progress.NewSpinner("loading corpus"))
		defer p.Stop()
	}

	return corpus.Load(sourcePath, targetPath)
}

// parseSettings turns key=value pairs into a map for train.DecodeConfig.
func parseSettings(pairs []string) (map[string]any, error) {
	m := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid setting %q, expected key=value", pair)
		}

		m[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}

	return m, nil
}

// batchesSettings are the --set keys the batches command reads.
var batchesSettings = []string{"batch_size", "epochs", "workers", "keep_remainder", "true_lengths"}

func batchesConfig(cmd *cobra.Command) (train.Config, error) {
	cfg := train.DefaultConfig()
	cfg.BatchSize = envconfig.BatchSize
	cfg.Workers = envconfig.Workers

	if n, _ := cmd.Flags().GetInt("batch-size"); n != 0 {
		cfg.BatchSize = n
	}

	cfg.Epochs, _ = cmd.Flags().GetInt("epochs")
	cfg.KeepRemainder, _ = cmd.Flags().GetBool("keep-remainder")
	cfg.TrueLengths, _ = cmd.Flags().GetBool("true-lengths")

	sets, _ := cmd.Flags().GetStringSlice("set")
	m, err := parseSettings(sets)
	if err != nil {
		return cfg, err
	}

	for k := range m {
		if !slices.Contains(batchesSettings, k) {
			return cfg, fmt.Errorf("%w: batches does not use %q, expected one of %s",
				train.ErrInvalidConfig, k, strings.Join(batchesSettings, ", "))
		}
	}

	return train.DecodeConfig(cfg, m)
}

func BatchesHandler(cmd *cobra.Command, args []string) error {
	cfg, err := batchesConfig(cmd)
	if err != nil {
		return err
	}

	c, err := loadCorpus(cmd, args[0], args[1])
	if err != nil {
		return err
	}

	source, target := vocab.Build(c.Source), vocab.Build(c.Target)
	sources := sequence.EncodeSources(c.Source, source)
	targets := sequence.EncodeTargets(c.Target, target)
	rows, perEpoch, examples, err := batchShapes(cmd, cfg, cfg.Options(source, target), targets, sources, target.Special(vocab.SpecialGO))
	if err != nil {
		return err
	}

	table := newTable(cmd.OutOrStdout(), "BATCH", "ROWS", "SOURCE", "TARGET", "DECODER INPUT")
	table.AppendBulk(rows)
	table.Render()

	fmt.Fprintf(cmd.OutOrStdout(), "\n%d batches per epoch, %d of %d examples used, source vocab %d, target vocab %d\n",
		perEpoch, examples, c.Len(), source.Size(), target.Size())
	return nil
}

// batchShapes runs every epoch through the batch builder and returns the
// first epoch's per batch shapes as table rows.
func batchShapes(cmd *cobra.Command, cfg train.Config, opts batch.Options, targets, sources [][]int32, goID int32) (rows [][]string, perEpoch, examples int, err error) {
	var p *progress.Progress
	if showProgress(cmd) {
		p = progress.NewProgress(os.Stderr)
		defer p.Stop()
	}

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		it, err := batch.New(targets, sources, opts)
		if err != nil {
			return nil, 0, 0, err
		}

		perEpoch = it.Len()

		var bar *progress.Bar
		if p != nil {
			bar = progress.NewBar(fmt.Sprintf("epoch %d/%d", epoch, cfg.Epochs), int64(it.Len()), 0)
			p.Add(bar)
		}

		batches, err := batch.Collect(cmd.Context(), it, cfg.Workers)
		if err != nil {
			return nil, 0, 0, err
		}

		for _, b := range batches {
			decoderInput := batch.ShiftForTraining(b.Target, goID)
			if epoch == 1 {
				examples += b.Rows()
				rows = append(rows, []string{
					strconv.Itoa(b.Index),
					strconv.Itoa(b.Rows()),
					fmt.Sprintf("%dx%d", b.Source.Rows(), b.Source.Cols()),
					fmt.Sprintf("%dx%d", b.Target.Rows(), b.Target.Cols()),
					fmt.Sprintf("%dx%d", decoderInput.Rows(), decoderInput.Cols()),
				})
			}

			if bar != nil {
				bar.Set(int64(b.Index + 1))
			}
		}
	}

	return rows, perEpoch, examples, nil
}
