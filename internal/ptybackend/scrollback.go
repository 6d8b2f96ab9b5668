package ptybackend

import (
	"bytes"
	"strings"
	"sync"

	"github.com/vito/midterm"
)

// paneRows/paneCols size the live virtual-terminal screen that PTY bytes are
// fed into. Lines that scroll off the top are captured into history rather
// than discarded.
const (
	paneRows        = 200
	paneCols        = 200
	maxHistoryLines = 4000
)

// scrollback feeds raw child bytes into a midterm virtual terminal so
// capture can read back fully-rendered lines (CR overwrites, cursor moves,
// and SGR formatting already resolved) instead of re-deriving them from a
// byte ring buffer. Lines scrolled off the visible screen are retained, up
// to maxHistoryLines, so capture still sees output from before the screen
// filled.
type scrollback struct {
	mu      sync.Mutex
	term    *midterm.Terminal
	history []string
}

func newScrollback() *scrollback {
	term := midterm.NewTerminal(paneRows, paneCols)
	sb := &scrollback{term: term}
	term.OnScrollback(func(line midterm.Line) {
		sb.history = append(sb.history, line.Display())
		if len(sb.history) > maxHistoryLines {
			trim := len(sb.history) - maxHistoryLines
			sb.history = sb.history[trim:]
		}
	})
	return sb
}

func (s *scrollback) Write(p []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.term.Write(p)
}

// Capture returns the last `lines` lines (default 200 when lines <= 0) of
// scrollback, each already rendered (ANSI preserved) by the virtual
// terminal. Callers choose whether to strip via the terminal package.
func (s *scrollback) Capture(lines int) string {
	if lines <= 0 {
		lines = paneRows
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]string, 0, len(s.history)+len(s.term.Content))
	all = append(all, s.history...)
	for row := range s.term.Content {
		var buf bytes.Buffer
		s.term.RenderLine(&buf, row)
		all = append(all, buf.String())
	}
	if len(all) > lines {
		all = all[len(all)-lines:]
	}
	return strings.Join(all, "\n")
}
