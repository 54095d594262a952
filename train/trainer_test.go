package train

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/pdevine/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmorganca/seqprep/batch"
	"github.com/jmorganca/seqprep/corpus"
	"github.com/jmorganca/seqprep/vocab"
)

// seenStep is a Step read back into matrices.
type seenStep struct {
	Source       batch.Matrix
	DecoderInput batch.Matrix
	Target       batch.Matrix

	SourceLengths []int32
	TargetLengths []int32

	LearningRate float32
}

type fakeModel struct {
	mu     sync.Mutex
	steps  []seenStep
	losses int
	err    error

	logits  [][][]float64
	sources []batch.Matrix
	lengths [][]int32
	// scribble makes Infer overwrite the first id of its input.
	scribble bool
}

func matrix(d *tensor.Dense) batch.Matrix {
	shape := d.Shape()
	data := d.Data().([]int32)

	m := make(batch.Matrix, shape[0])
	for i := range m {
		m[i] = slices.Clone(data[i*shape[1] : (i+1)*shape[1]])
	}

	return m
}

func (m *fakeModel) Step(_ context.Context, s Step) (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}

	m.steps = append(m.steps, seenStep{
		Source:        matrix(s.Source),
		DecoderInput:  matrix(s.DecoderInput),
		Target:        matrix(s.Target),
		SourceLengths: s.SourceLengths,
		TargetLengths: s.TargetLengths,
		LearningRate:  s.LearningRate,
	})
	return 1 / float32(len(m.steps)), nil
}

func (m *fakeModel) Loss(_ context.Context, s Step) (float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.losses++
	return 0.5, nil
}

func (m *fakeModel) Infer(_ context.Context, source *tensor.Dense, lengths []int32) ([][][]float64, error) {
	if rows := source.Shape()[0]; rows != len(lengths) {
		return nil, fmt.Errorf("%d rows but %d lengths", rows, len(lengths))
	}

	if m.scribble {
		if err := source.SetAt(int32(-1), 0, 0); err != nil {
			return nil, err
		}
	}

	m.sources = append(m.sources, matrix(source))
	m.lengths = append(m.lengths, lengths)
	return m.logits, nil
}

// oneHot builds [steps][size] logits whose argmax at each step is ids[step].
func oneHot(size int, ids ...int32) [][]float64 {
	logits := make([][]float64, len(ids))
	for i, id := range ids {
		logits[i] = make([]float64, size)
		for j := range logits[i] {
			logits[i][j] = -float64(j)
		}
		logits[i][id] = 10
	}

	return logits
}

func testCorpus(t *testing.T, n int) *corpus.Corpus {
	t.Helper()

	var sources, targets []string
	for i := range n {
		sources = append(sources, strings.Repeat(fmt.Sprintf("s%d ", i%3), i%4+1))
		targets = append(targets, strings.Repeat(fmt.Sprintf("t%d ", i%5), i%3+1))
	}

	c, err := corpus.Parse(strings.Join(sources, "\n"), strings.Join(targets, "\n"))
	require.NoError(t, err)
	return c
}

func TestRun(t *testing.T) {
	m := &fakeModel{}
	cfg := DefaultConfig()
	cfg.Epochs = 2
	cfg.BatchSize = 2
	cfg.DisplayStep = 1

	tr, err := New(m, testCorpus(t, 11), cfg)
	require.NoError(t, err)

	var reports []Progress
	tr.Report = func(p Progress) { reports = append(reports, p) }
	require.NoError(t, tr.Run(context.Background()))

	// 9 training examples, 4 full batches per epoch
	require.Len(t, m.steps, 8)
	require.Len(t, reports, 8)
	assert.Equal(t, 6, m.losses)

	goID := tr.Target.Special(vocab.SpecialGO)
	for _, s := range m.steps {
		require.Equal(t, 2, s.Source.Rows())
		require.Equal(t, s.Target.Rows(), s.DecoderInput.Rows())
		require.Equal(t, s.Target.Cols(), s.DecoderInput.Cols())
		assert.Equal(t, goID, s.DecoderInput[0][0])
		assert.Equal(t, s.Target[1][:s.Target.Cols()-1], s.DecoderInput[1][1:])
		assert.Equal(t, []int32{int32(s.Target.Cols()), int32(s.Target.Cols())}, s.TargetLengths)
		assert.Equal(t, float32(0.001), s.LearningRate)
	}

	assert.False(t, reports[0].Validated)
	assert.True(t, reports[1].Validated)
	assert.Equal(t, Progress{Epoch: 2, Epochs: 2, Batch: 3, Batches: 4, Loss: 0.125, ValidationLoss: 0.5, Validated: true}, reports[7])
}

func TestRunWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Epochs = 1
	cfg.BatchSize = 3

	sequential := &fakeModel{}
	tr, err := New(sequential, testCorpus(t, 40), cfg)
	require.NoError(t, err)
	require.NoError(t, tr.Run(context.Background()))

	cfg.Workers = 4
	parallel := &fakeModel{}
	tr, err = New(parallel, testCorpus(t, 40), cfg)
	require.NoError(t, err)
	require.NoError(t, tr.Run(context.Background()))

	require.Len(t, parallel.steps, 12)
	assert.Equal(t, sequential.steps, parallel.steps)
}

func TestRunModelError(t *testing.T) {
	boom := errors.New("boom")
	cfg := DefaultConfig()
	cfg.BatchSize = 2

	tr, err := New(&fakeModel{err: boom}, testCorpus(t, 6), cfg)
	require.NoError(t, err)
	assert.ErrorIs(t, tr.Run(context.Background()), boom)
}

func TestRunCanceled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BatchSize = 2

	m := &fakeModel{}
	tr, err := New(m, testCorpus(t, 6), cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tr.Run(ctx), context.Canceled)
	assert.Empty(t, m.steps)
}

func TestRunNoValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Epochs = 1
	cfg.DisplayStep = 1

	m := &fakeModel{}
	tr, err := New(m, testCorpus(t, 5), cfg)
	require.NoError(t, err)
	require.NoError(t, tr.Run(context.Background()))
	assert.Empty(t, m.steps)
	assert.Zero(t, m.losses)
}

func TestPredict(t *testing.T) {
	c, err := corpus.Parse("a b\nb c", "b a\nc b")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.BatchSize = 1

	m := &fakeModel{}
	tr, err := New(m, c, cfg)
	require.NoError(t, err)

	tv := tr.Target
	m.logits = [][][]float64{
		oneHot(tv.Size(), tv.Encode("c"), tv.Encode("a"), tv.Special(vocab.SpecialEOS), tv.Special(vocab.SpecialPAD)),
	}

	got, err := tr.Predict(context.Background(), "a unknown b")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "<EOS>"}, got)

	sv := tr.Source
	assert.Equal(t, batch.Matrix{{sv.Encode("a"), sv.Special(vocab.SpecialUNK), sv.Encode("b")}}, m.sources[0])
	assert.Equal(t, []int32{3}, m.lengths[0])

	m.logits = nil
	_, err = tr.Predict(context.Background(), "a")
	assert.ErrorIs(t, err, errNoOutput)
}

func TestPredictPrompt(t *testing.T) {
	c, err := corpus.Parse("a b\nb c\nc a", "b a\nc b\na c")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.BatchSize = 3
	cfg.PromptLength = 5

	m := &fakeModel{scribble: true}
	tr, err := New(m, c, cfg)
	require.NoError(t, err)

	tv := tr.Target
	m.logits = [][][]float64{oneHot(tv.Size(), tv.Encode("b"), tv.Special(vocab.SpecialEOS))}

	got, err := tr.Predict(context.Background(), "c b")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "<EOS>"}, got)

	sv := tr.Source
	pad := sv.Special(vocab.SpecialPAD)
	want := []int32{sv.Encode("c"), sv.Encode("b"), pad, pad, pad}

	// the model overwrote row 0 of its input; the other rows are untouched
	rows := m.sources[0]
	require.Len(t, rows, 3)
	assert.Equal(t, int32(-1), rows[0][0])
	assert.Equal(t, want, []int32(rows[1]))
	assert.Equal(t, want, []int32(rows[2]))
	assert.Equal(t, []int32{5, 5, 5}, m.lengths[0])
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := DecodeConfig(DefaultConfig(), map[string]any{
		"batch_size":     "64",
		"epochs":         3,
		"learning_rate":  "0.01",
		"keep_remainder": "true",
	})
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.BatchSize)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, float32(0.01), cfg.LearningRate)
	assert.True(t, cfg.KeepRemainder)
	assert.Equal(t, 20, cfg.DisplayStep)

	opts := cfg.Options(vocab.Build(nil), vocab.Build(nil))
	assert.Equal(t, batch.RemainderKeep, opts.Remainder)
	assert.Equal(t, batch.LengthsPadded, opts.Lengths)

	_, err = DecodeConfig(DefaultConfig(), map[string]any{"rnn_size": 50})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = DecodeConfig(DefaultConfig(), map[string]any{"epochs": "0"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = DecodeConfig(DefaultConfig(), map[string]any{"prompt_length": "-1"})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestProgressString(t *testing.T) {
	p := Progress{Epoch: 1, Epochs: 10, Batch: 20, Batches: 50, Loss: 2.5}
	assert.Equal(t, "Epoch   1/10 Batch   20/50 - Loss:  2.500", p.String())

	p.Validated, p.ValidationLoss = true, 3
	assert.Equal(t, "Epoch   1/10 Batch   20/50 - Loss:  2.500  - Validation loss:  3.000", p.String())
}
