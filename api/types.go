package api

import (
	"fmt"
	"net/http"
	"strings"
)

// Side selects the source (feature) or target (summary) vocabulary.
type Side string

const (
	SideSource Side = "source"
	SideTarget Side = "target"
)

type StatusError struct {
	StatusCode   int
	ErrorMessage string `json:"error"`
}

func (e StatusError) Error() string {
	if e.ErrorMessage == "" {
		return fmt.Sprintf("%d %v", e.StatusCode, strings.ToLower(http.StatusText(e.StatusCode)))
	}
	return e.ErrorMessage
}

type EncodeRequest struct {
	Side Side   `json:"side"`
	Text string `json:"text"`
}

type EncodeResponse struct {
	IDs []int32 `json:"ids"`
}

type DecodeRequest struct {
	Side Side    `json:"side"`
	IDs  []int32 `json:"ids"`
}

type DecodeResponse struct {
	Tokens []string `json:"tokens"`
	Text   string   `json:"text"`
}

type BatchesRequest struct {
	Sources []string `json:"sources"`
	Targets []string `json:"targets"`

	BatchSize     int  `json:"batch_size"`
	KeepRemainder bool `json:"keep_remainder,omitempty"`
	TrueLengths   bool `json:"true_lengths,omitempty"`
}

type Batch struct {
	Source       [][]int32 `json:"source"`
	Target       [][]int32 `json:"target"`
	DecoderInput [][]int32 `json:"decoder_input"`

	SourceLengths []int32 `json:"source_lengths"`
	TargetLengths []int32 `json:"target_lengths"`
}

type BatchesResponse struct {
	Batches []Batch `json:"batches"`
}

type VocabResponse struct {
	Side     Side     `json:"side"`
	Size     int      `json:"size"`
	Specials []string `json:"specials"`
}

type VersionResponse struct {
	Version string `json:"version"`
}
