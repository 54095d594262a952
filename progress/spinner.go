package progress

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

type Spinner struct {
	message string

	parts []string

	value   atomic.Int32
	stopped atomic.Bool
}

func NewSpinner(message string) *Spinner {
	s := &Spinner{
		message: message,
		parts: []string{
			"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏",
		},
	}
	go s.start()
	return s
}

func (s *Spinner) String() string {
	var sb strings.Builder
	if len(s.message) > 0 {
		fmt.Fprintf(&sb, "%s ", strings.TrimSpace(s.message))
	}

	if !s.stopped.Load() {
		sb.WriteString(s.parts[s.value.Load()])
		sb.WriteString(" ")
	}

	return sb.String()
}

func (s *Spinner) start() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		if s.stopped.Load() {
			return
		}

		s.value.Store((s.value.Load() + 1) % int32(len(s.parts)))
	}
}

func (s *Spinner) Stop() {
	s.stopped.Store(true)
}
