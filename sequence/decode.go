package sequence

import (
	"iter"

	"gonum.org/v1/gonum/floats"

	"github.com/jmorganca/seqprep/vocab"
)

// Decode maps ids back to tokens, skipping <PAD>. It does not stop at <EOS>;
// anything the model emitted after it is rendered too.
func Decode(ids []int32, v *vocab.Vocabulary) ([]string, error) {
	tokens := make([]string, 0, len(ids))
	for token, err := range Tokens(ids, v) {
		if err != nil {
			return nil, err
		}

		tokens = append(tokens, token)
	}

	return tokens, nil
}

// Tokens is the lazy form of Decode. Iteration stops after the first error.
func Tokens(ids []int32, v *vocab.Vocabulary) iter.Seq2[string, error] {
	pad := v.Special(vocab.SpecialPAD)
	return func(yield func(string, error) bool) {
		for _, id := range ids {
			if id == pad {
				continue
			}

			token, err := v.Decode(id)
			if !yield(token, err) || err != nil {
				return
			}
		}
	}
}

// Greedy picks the highest scoring id at each step of a [steps][vocab] logit
// matrix. Ties resolve to the lowest id.
func Greedy(logits [][]float64) []int32 {
	ids := make([]int32, 0, len(logits))
	for _, step := range logits {
		if len(step) == 0 {
			continue
		}

		ids = append(ids, int32(floats.MaxIdx(step)))
	}

	return ids
}
