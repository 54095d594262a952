// Package corpus loads parallel source and target text, one example per line.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrMismatchedLines = errors.New("source and target line counts differ")

// Corpus holds two parallel line slices; Source[i] pairs with Target[i].
type Corpus struct {
	Source []string
	Target []string
}

// Parse splits both blobs on newlines. A trailing newline yields a trailing
// empty example, the same as splitting the raw text would.
func Parse(source, target string) (*Corpus, error) {
	c := &Corpus{
		Source: strings.Split(source, "\n"),
		Target: strings.Split(target, "\n"),
	}

	if len(c.Source) != len(c.Target) {
		return nil, fmt.Errorf("%w: %d source, %d target", ErrMismatchedLines, len(c.Source), len(c.Target))
	}

	return c, nil
}

func Load(sourcePath, targetPath string) (*Corpus, error) {
	source, err := os.ReadFile(sourcePath)
	if err != nil {
		return nil, err
	}

	target, err := os.ReadFile(targetPath)
	if err != nil {
		return nil, err
	}

	c, err := Parse(string(source), string(target))
	if err != nil {
		return nil, fmt.Errorf("%s, %s: %w", sourcePath, targetPath, err)
	}

	return c, nil
}

func (c *Corpus) Len() int {
	return len(c.Source)
}

// Split holds out the first n examples. n is clamped to [0, Len()].
func (c *Corpus) Split(n int) (valid, train *Corpus) {
	n = min(max(n, 0), c.Len())
	return &Corpus{Source: c.Source[:n], Target: c.Target[:n]},
		&Corpus{Source: c.Source[n:], Target: c.Target[n:]}
}

type SideStats struct {
	Tokens    int
	MaxTokens int
}

type Stats struct {
	Lines  int
	Source SideStats
	Target SideStats
}

func (c *Corpus) Stats() Stats {
	return Stats{
		Lines:  c.Len(),
		Source: sideStats(c.Source),
		Target: sideStats(c.Target),
	}
}

func sideStats(lines []string) SideStats {
	var s SideStats
	for _, line := range lines {
		n := len(strings.Fields(line))
		s.Tokens += n
		s.MaxTokens = max(s.MaxTokens, n)
	}

	return s
}
