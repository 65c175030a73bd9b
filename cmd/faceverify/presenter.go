package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/goliatone/go-faceverify/core"
)

const progressBarWidth = 30

var scanningTips = []string{
	"Hold the device at eye level.",
	"Make sure your face is evenly lit.",
	"Remove glasses, hats and face coverings.",
	"Keep still until the scan completes.",
}

type uiEventKind int

const (
	uiTips uiEventKind = iota
	uiOutcome
)

type uiEvent struct {
	kind        uiEventKind
	acknowledge func()
	outcome     core.Outcome
}

// consolePresenter renders orchestrator output to a terminal. Tips and
// outcomes are forwarded to the CLI loop through events so the loop can
// read stdin without blocking the orchestrator.
type consolePresenter struct {
	mu      sync.Mutex
	out     io.Writer
	events  chan uiEvent
	showing bool
}

func newConsolePresenter(out io.Writer) *consolePresenter {
	return &consolePresenter{out: out, events: make(chan uiEvent, 16)}
}

func (p *consolePresenter) ShowProgress(progress core.Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.showing = true
	fmt.Fprintf(p.out, "\r%s", renderProgress(progress))
}

func (p *consolePresenter) HideProgress() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.showing {
		return
	}
	p.showing = false
	fmt.Fprint(p.out, "\r\033[K")
}

func (p *consolePresenter) ShowWarning(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "warning: %s\n", message)
}

func (p *consolePresenter) ShowScanningTips(acknowledge func()) {
	p.mu.Lock()
	fmt.Fprintln(p.out, "Before scanning:")
	for _, tip := range scanningTips {
		fmt.Fprintf(p.out, "  - %s\n", tip)
	}
	fmt.Fprintln(p.out, "Press Enter when ready.")
	p.mu.Unlock()
	p.emit(uiEvent{kind: uiTips, acknowledge: acknowledge})
}

func (p *consolePresenter) ShowSuccess(outcome core.Outcome) {
	p.mu.Lock()
	fmt.Fprintf(p.out, "%s: verification passed (%s)\n", outcome.Title, outcome.AttemptID)
	p.mu.Unlock()
	p.emit(uiEvent{kind: uiOutcome, outcome: outcome})
}

func (p *consolePresenter) ShowResult(outcome core.Outcome) {
	p.mu.Lock()
	line := outcome.Title
	if msg := strings.TrimSpace(outcome.Message); msg != "" {
		line += ": " + msg
	}
	if outcome.FeedbackCode != "" {
		line += fmt.Sprintf(" [%s]", outcome.FeedbackCode)
	}
	fmt.Fprintln(p.out, line)
	p.mu.Unlock()
	p.emit(uiEvent{kind: uiOutcome, outcome: outcome})
}

func (p *consolePresenter) Events() <-chan uiEvent {
	return p.events
}

// emit drops the event when the CLI loop has stopped listening.
func (p *consolePresenter) emit(ev uiEvent) {
	select {
	case p.events <- ev:
	default:
	}
}

func renderProgress(progress core.Progress) string {
	fraction := progress.Fraction
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * progressBarWidth)
	bar := strings.Repeat("#", filled) + strings.Repeat(" ", progressBarWidth-filled)
	line := fmt.Sprintf("[%s] %3d%%", bar, int(fraction*100))
	if msg := strings.TrimSpace(progress.Message); msg != "" {
		line += " " + msg
	}
	return line
}

var _ core.Presenter = (*consolePresenter)(nil)
