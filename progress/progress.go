package progress

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	defaultTermWidth  = 80
	defaultTermHeight = 24
)

type State interface {
	String() string
}

// Progress redraws its states in place on a terminal every 100ms.
type Progress struct {
	mu sync.Mutex
	// buffer output to minimize flickering on all terminals
	w *bufio.Writer

	pos int

	ticker *time.Ticker
	closed bool
	states []State

	done     chan struct{}
	stopOnce sync.Once
}

func NewProgress(w io.Writer) *Progress {
	p := &Progress{w: bufio.NewWriter(w), done: make(chan struct{})}
	go p.start()
	return p
}

func (p *Progress) stop() bool {
	p.mu.Lock()
	for _, state := range p.states {
		if spinner, ok := state.(*Spinner); ok {
			spinner.Stop()
		}
	}

	ticker := p.ticker
	p.ticker = nil
	p.closed = true
	p.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		p.render()
		return true
	}

	return false
}

// Stop ends rendering and restores the cursor. Only the first call has any
// effect.
func (p *Progress) Stop() bool {
	var stopped bool
	p.stopOnce.Do(func() {
		close(p.done)
		stopped = p.stop()

		p.mu.Lock()
		defer p.mu.Unlock()
		if stopped {
			fmt.Fprintln(p.w)
		}

		// show cursor
		fmt.Fprint(p.w, "\033[?25h")
		p.w.Flush()
	})

	return stopped
}

func (p *Progress) Add(state State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.states = append(p.states, state)
}

func (p *Progress) render() {
	_, termHeight, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil {
		termHeight = defaultTermHeight
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for range p.pos - 1 {
		fmt.Fprint(p.w, "\033[A")
	}

	fmt.Fprint(p.w, "\033[1G")

	// render progress lines
	maxHeight := min(len(p.states), termHeight)
	for i := len(p.states) - maxHeight; i < len(p.states); i++ {
		fmt.Fprint(p.w, p.states[i].String(), "\033[K")
		if i < len(p.states)-1 {
			fmt.Fprint(p.w, "\n")
		}
	}

	p.pos = len(p.states)
	p.w.Flush()
}

func (p *Progress) start() {
	ticker := time.NewTicker(100 * time.Millisecond)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		ticker.Stop()
		return
	}

	p.ticker = ticker
	// hide cursor
	fmt.Fprint(p.w, "\033[?25l")
	p.mu.Unlock()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.render()
		}
	}
}
