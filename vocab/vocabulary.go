package vocab

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emirpasic/gods/sets/linkedhashset"
)

type Special int32

const (
	SpecialPAD Special = iota
	SpecialUNK
	SpecialGO
	SpecialEOS
)

var specials = []string{"<PAD>", "<UNK>", "<GO>", "<EOS>"}

func (s Special) String() string {
	if s < 0 || int(s) >= len(specials) {
		return fmt.Sprintf("Special(%d)", int32(s))
	}
	return specials[s]
}

var (
	ErrOutOfRange        = errors.New("token id out of range")
	ErrInvalidVocabulary = errors.New("invalid vocabulary")
)

// Vocabulary maps tokens to dense ids. It is never mutated after Build or
// Read returns, so it may be shared between goroutines.
type Vocabulary struct {
	values []string
	ids    map[string]int32
}

// Build collects the distinct whitespace separated tokens of lines. Ids 0-3
// are the specials; the rest are assigned in first-seen order.
func Build(lines []string) *Vocabulary {
	set := linkedhashset.New()
	for _, line := range lines {
		for _, token := range strings.Fields(line) {
			set.Add(token)
		}
	}

	values := make([]string, 0, len(specials)+set.Size())
	values = append(values, specials...)
	for _, token := range set.Values() {
		values = append(values, token.(string))
	}

	v, _ := newVocabulary(values, true)
	return v
}

func newVocabulary(values []string, skipDuplicates bool) (*Vocabulary, error) {
	v := &Vocabulary{
		values: make([]string, 0, len(values)),
		ids:    make(map[string]int32, len(values)),
	}

	for _, value := range values {
		if _, ok := v.ids[value]; ok {
			if skipDuplicates {
				continue
			}
			return nil, fmt.Errorf("%w: duplicate token %q", ErrInvalidVocabulary, value)
		}

		v.ids[value] = int32(len(v.values))
		v.values = append(v.values, value)
	}

	return v, nil
}

// Encode returns the id of token, or the <UNK> id when the token is unknown.
func (v *Vocabulary) Encode(token string) int32 {
	if id, ok := v.ids[token]; ok {
		return id
	}

	return int32(SpecialUNK)
}

// Lookup is like Encode but reports whether the token was present.
func (v *Vocabulary) Lookup(token string) (int32, bool) {
	id, ok := v.ids[token]
	return id, ok
}

func (v *Vocabulary) Decode(id int32) (string, error) {
	if id < 0 || int(id) >= len(v.values) {
		return "", fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, id, len(v.values))
	}

	return v.values[id], nil
}

func (v *Vocabulary) Special(s Special) int32 {
	return int32(s)
}

func (v *Vocabulary) Is(id int32, s Special) bool {
	return id == int32(s)
}

func (v *Vocabulary) Size() int {
	return len(v.values)
}

// Values returns the tokens in id order.
func (v *Vocabulary) Values() []string {
	return append([]string(nil), v.values...)
}

// Specials returns the reserved tokens in id order.
func Specials() []string {
	return append([]string(nil), specials...)
}
