package sequence

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/jmorganca/seqprep/vocab"
)

func TestEncodeSource(t *testing.T) {
	v := vocab.Build([]string{"a b", "b c"})

	got := EncodeSource("a b c", v)
	want := []int32{v.Encode("a"), v.Encode("b"), v.Encode("c")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if got := EncodeSource("", v); len(got) != 0 {
		t.Errorf("expected empty sequence, got %v", got)
	}

	got = EncodeSource("a novel", v)
	want = []int32{v.Encode("a"), v.Special(vocab.SpecialUNK)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("unknown token mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeTarget(t *testing.T) {
	v := vocab.Build([]string{"b a", "c b"})
	eos := v.Special(vocab.SpecialEOS)

	for _, line := range []string{"b a", "c b", "", "  ", "a a a a", "b unseen"} {
		t.Run(line, func(t *testing.T) {
			got := EncodeTarget(line, v)
			if n := len(strings.Fields(line)) + 1; len(got) != n {
				t.Fatalf("expected %d ids, got %d", n, len(got))
			}

			if got[len(got)-1] != eos {
				t.Errorf("expected last id %d, got %d", eos, got[len(got)-1])
			}
		})
	}
}

func TestEncodeCorpus(t *testing.T) {
	v := vocab.Build([]string{"x y"})
	lines := []string{"x", "y x", ""}

	sources := EncodeSources(lines, v)
	targets := EncodeTargets(lines, v)
	if len(sources) != len(lines) || len(targets) != len(lines) {
		t.Fatalf("expected %d sequences, got %d and %d", len(lines), len(sources), len(targets))
	}

	for i := range lines {
		if len(targets[i]) != len(sources[i])+1 {
			t.Errorf("line %d: target %v is not source %v plus eos", i, targets[i], sources[i])
		}
	}
}

func TestPadSource(t *testing.T) {
	v := vocab.Build([]string{"x y"})
	pad := v.Special(vocab.SpecialPAD)

	got := PadSource("x q", v, 4)
	want := []int32{v.Encode("x"), v.Special(vocab.SpecialUNK), pad, pad}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	if got := PadSource("x y x", v, 2); len(got) != 3 {
		t.Errorf("expected unpadded prompt of 3 ids, got %v", got)
	}
}

func TestDecode(t *testing.T) {
	v := vocab.Build([]string{"b a", "c b"})
	pad := v.Special(vocab.SpecialPAD)
	eos := v.Special(vocab.SpecialEOS)

	cases := []struct {
		name string
		ids  []int32
		want []string
	}{
		{"strips pad", []int32{v.Encode("b"), v.Encode("a"), pad}, []string{"b", "a"}},
		{"keeps eos", []int32{v.Encode("b"), eos, pad, pad}, []string{"b", "<EOS>"}},
		{"continues past eos", []int32{v.Encode("c"), eos, v.Encode("a")}, []string{"c", "<EOS>", "a"}},
		{"interior pad", []int32{pad, v.Encode("a"), pad, v.Encode("c")}, []string{"a", "c"}},
		{"all pad", []int32{pad, pad}, []string{}},
		{"empty", nil, []string{}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.ids, v)
			if err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeOutOfRange(t *testing.T) {
	v := vocab.Build([]string{"a"})
	if _, err := Decode([]int32{4, 99}, v); err == nil {
		t.Fatal("expected error")
	}

	var n int
	for _, err := range Tokens([]int32{4, 99, 4}, v) {
		n++
		if err != nil {
			break
		}
	}

	if n != 2 {
		t.Errorf("expected iteration to stop at the bad id, saw %d items", n)
	}
}

func TestRoundTrip(t *testing.T) {
	lines := []string{
		"temperature time 6-21 min 33 mean 40 max 45",
		"skyCover time 6-21 mode-bucket-0-100-4 0-25",
	}

	v := vocab.Build(lines)
	for _, line := range lines {
		ids := PadSource(line, v, 20)
		got, err := Decode(ids, v)
		if err != nil {
			t.Fatal(err)
		}

		if diff := cmp.Diff(strings.Fields(line), got); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestGreedy(t *testing.T) {
	logits := [][]float64{
		{0.1, 0.7, 0.2},
		{0.5, 0.5, 0.0},
		{},
		{-3, -2, -1},
	}

	if diff := cmp.Diff([]int32{1, 0, 2}, Greedy(logits)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
