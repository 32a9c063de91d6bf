package display

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// SpinnerStyle defines the visual style of a spinner
type SpinnerStyle struct {
	Frames []string
	Delay  time.Duration
}

var (
	dotsSpinner = SpinnerStyle{
		Frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		Delay:  80 * time.Millisecond,
	}
	lineSpinner = SpinnerStyle{
		Frames: []string{"-", "\\", "|", "/"},
		Delay:  100 * time.Millisecond,
	}
)

// Spinner animates a single status line while a long operation runs
type Spinner struct {
	message string
	style   SpinnerStyle
	writer  io.Writer
	colors  *ColorSystem
	active  bool
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
}

// StartSpinner starts a spinner, or returns an inert one when progress output
// is disabled
func (s *Service) StartSpinner(message string) *Spinner {
	style := lineSpinner
	if s.icons.IsUnicodeSupported() {
		style = dotsSpinner
	}
	sp := &Spinner{message: message, style: style, writer: s.config.ErrWriter, colors: s.colors}
	if s.config.IsProgressEnabled() {
		sp.start()
	}
	return sp
}

func (sp *Spinner) start() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.active {
		return
	}
	sp.active = true
	sp.stopCh = make(chan struct{})
	sp.doneCh = make(chan struct{})
	go sp.animate()
}

// Stop ends the animation and clears the line
func (sp *Spinner) Stop() {
	sp.mu.Lock()
	if !sp.active {
		sp.mu.Unlock()
		return
	}
	sp.active = false
	close(sp.stopCh)
	sp.mu.Unlock()

	<-sp.doneCh
	fmt.Fprint(sp.writer, "\r\033[K")
}

func (sp *Spinner) animate() {
	defer close(sp.doneCh)

	ticker := time.NewTicker(sp.style.Delay)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-sp.stopCh:
			return
		case <-ticker.C:
			sp.mu.Lock()
			message := sp.message
			sp.mu.Unlock()

			glyph := sp.style.Frames[frame%len(sp.style.Frames)]
			fmt.Fprintf(sp.writer, "\r\033[K%s %s", sp.colors.Colorize(glyph, sp.colors.Theme().Primary), message)
		}
	}
}
