// Package sequence converts between lines of whitespace separated tokens and
// the integer id sequences a model consumes or emits.
package sequence

import (
	"strings"

	"github.com/jmorganca/seqprep/vocab"
)

// EncodeSource maps each token of line through v. Unknown tokens become <UNK>.
func EncodeSource(line string, v *vocab.Vocabulary) []int32 {
	fields := strings.Fields(line)
	ids := make([]int32, len(fields))
	for i, token := range fields {
		ids[i] = v.Encode(token)
	}

	return ids
}

// EncodeTarget is EncodeSource followed by <EOS>, even for an empty line.
func EncodeTarget(line string, v *vocab.Vocabulary) []int32 {
	fields := strings.Fields(line)
	ids := make([]int32, len(fields), len(fields)+1)
	for i, token := range fields {
		ids[i] = v.Encode(token)
	}

	return append(ids, v.Special(vocab.SpecialEOS))
}

func EncodeSources(lines []string, v *vocab.Vocabulary) [][]int32 {
	seqs := make([][]int32, len(lines))
	for i, line := range lines {
		seqs[i] = EncodeSource(line, v)
	}

	return seqs
}

func EncodeTargets(lines []string, v *vocab.Vocabulary) [][]int32 {
	seqs := make([][]int32, len(lines))
	for i, line := range lines {
		seqs[i] = EncodeTarget(line, v)
	}

	return seqs
}

// PadSource encodes an inference prompt and right pads it with <PAD> up to
// length. Longer prompts are returned unpadded.
func PadSource(line string, v *vocab.Vocabulary, length int) []int32 {
	ids := EncodeSource(line, v)
	for len(ids) < length {
		ids = append(ids, v.Special(vocab.SpecialPAD))
	}

	return ids
}
