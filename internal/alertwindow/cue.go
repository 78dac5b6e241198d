package alertwindow

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// Cue is the audio side effect of an alert going active. Play restarts
// the cue from the beginning each time it is called.
type Cue interface {
	Play()
	Stop()
}

// TerminalBell is the default cue: it rings the terminal bell.
type TerminalBell struct {
	W io.Writer
}

// Play rings the bell.
func (b TerminalBell) Play() {
	w := b.W
	if w == nil {
		w = os.Stdout
	}
	fmt.Fprint(w, "\a")
}

// Stop is a no-op; the bell has no sustained playback.
func (b TerminalBell) Stop() {}

// Gate is the one-way operator-interaction latch. Host platforms refuse
// audio playback until the operator has interacted once; until Engage
// is called the machine enters the visual active state silently. The
// latch never resets for the session.
type Gate struct {
	engaged atomic.Bool
}

// Engage latches the gate open.
func (g *Gate) Engage() {
	g.engaged.Store(true)
}

// Engaged reports whether the operator has interacted.
func (g *Gate) Engaged() bool {
	return g.engaged.Load()
}
