// Package batch groups encoded sequences into padded, fixed size batches and
// prepares the decoder input used for teacher forcing.
package batch

import (
	"errors"
	"fmt"
	"log/slog"
)

var ErrInvalidArgument = errors.New("invalid argument")

// RemainderPolicy controls what happens to the examples left over after the
// last full batch.
type RemainderPolicy int

const (
	// RemainderDrop discards the leftover examples.
	RemainderDrop RemainderPolicy = iota
	// RemainderKeep emits them as one short final batch.
	RemainderKeep
)

// LengthPolicy controls the per row lengths recorded with each batch.
type LengthPolicy int

const (
	// LengthsPadded records the padded width of the batch for every row.
	LengthsPadded LengthPolicy = iota
	// LengthsTrue records each row's length before padding.
	LengthsTrue
)

type Options struct {
	Size      int
	SourcePad int32
	TargetPad int32
	Remainder RemainderPolicy
	Lengths   LengthPolicy
}

type Batch struct {
	Index int

	Source Matrix
	Target Matrix

	SourceLengths []int32
	TargetLengths []int32
}

func (b Batch) Rows() int {
	return b.Source.Rows()
}

// Iterator yields the batches of a pair of parallel corpora in slice order.
// It cannot be rewound; call New again for another pass.
type Iterator struct {
	targets, sources [][]int32
	opts             Options

	n       int
	next    int
	current Batch
}

func New(targets, sources [][]int32, opts Options) (*Iterator, error) {
	if opts.Size <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidArgument, opts.Size)
	}

	if len(targets) != len(sources) {
		return nil, fmt.Errorf("%w: %d targets but %d sources", ErrInvalidArgument, len(targets), len(sources))
	}

	n := len(sources) / opts.Size
	if rem := len(sources) % opts.Size; rem > 0 {
		switch opts.Remainder {
		case RemainderKeep:
			n++
		default:
			slog.Debug("dropping examples after last full batch", "examples", rem, "size", opts.Size)
		}
	}

	return &Iterator{
		targets: targets,
		sources: sources,
		opts:    opts,
		n:       n,
	}, nil
}

// Len is the total number of batches the iterator emits.
func (it *Iterator) Len() int {
	return it.n
}

func (it *Iterator) Next() bool {
	if it.next >= it.n {
		it.current = Batch{}
		return false
	}

	it.current = it.build(it.next)
	it.next++
	return true
}

// Batch returns the batch produced by the last call to Next.
func (it *Iterator) Batch() Batch {
	return it.current
}

func (it *Iterator) build(i int) Batch {
	start := i * it.opts.Size
	end := min(start+it.opts.Size, len(it.sources))

	source, sourceLengths := pad(it.sources[start:end], it.opts.SourcePad)
	target, targetLengths := pad(it.targets[start:end], it.opts.TargetPad)
	if it.opts.Lengths == LengthsPadded {
		sourceLengths = fill(len(sourceLengths), source.Cols())
		targetLengths = fill(len(targetLengths), target.Cols())
	}

	return Batch{
		Index:         i,
		Source:        source,
		Target:        target,
		SourceLengths: sourceLengths,
		TargetLengths: targetLengths,
	}
}

// pad copies seqs into a matrix as wide as the longest of them and returns
// the unpadded length of each row.
func pad(seqs [][]int32, id int32) (Matrix, []int32) {
	var width int
	for _, seq := range seqs {
		width = max(width, len(seq))
	}

	m := make(Matrix, len(seqs))
	lengths := make([]int32, len(seqs))
	for i, seq := range seqs {
		row := make([]int32, width)
		n := copy(row, seq)
		for j := n; j < width; j++ {
			row[j] = id
		}

		m[i] = row
		lengths[i] = int32(n)
	}

	return m, lengths
}

func fill(n, value int) []int32 {
	s := make([]int32, n)
	for i := range s {
		s[i] = int32(value)
	}

	return s
}
