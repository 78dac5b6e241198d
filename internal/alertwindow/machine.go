// Package alertwindow turns each delivered threat alert into a bounded
// "active" window with audio and visual side effects. The machine is
// the sole writer of the window state; everything else observes
// snapshots.
package alertwindow

import (
	"sync"
	"time"

	"alertmesh/internal/logger"
	"alertmesh/pkg/models"
)

// DefaultWindow is how long a delivered alert stays active with no
// further deliveries.
const DefaultWindow = 6 * time.Second

// Snapshot is a read-only view of the window state.
type Snapshot struct {
	Alert     *models.ThreatAlert
	ExpiresAt time.Time
	Active    bool
}

// Machine is the alert lifecycle state machine: Idle, or Active with a
// pending reversion timer. Every delivery replaces the current alert
// and restarts the timer, so the most recent delivery always wins
// regardless of broker ordering.
type Machine struct {
	window time.Duration
	cue    Cue
	gate   *Gate

	mu        sync.Mutex
	current   *models.ThreatAlert
	expiresAt time.Time
	timer     *time.Timer
	gen       uint64
	notify    func(Snapshot)
}

// New creates an idle machine. A zero window falls back to
// DefaultWindow.
func New(window time.Duration, cue Cue, gate *Gate) *Machine {
	if window <= 0 {
		window = DefaultWindow
	}
	if gate == nil {
		gate = &Gate{}
	}
	return &Machine{window: window, cue: cue, gate: gate}
}

// SetNotify registers an observer called after every state change.
// Must be set before deliveries start.
func (m *Machine) SetNotify(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notify = fn
}

// Gate returns the machine's operator-interaction latch.
func (m *Machine) Gate() *Gate {
	return m.gate
}

// Deliver feeds one alert into the machine. Any pending reversion timer
// is cancelled first so only the newest alert's timer governs the
// transition back to idle.
func (m *Machine) Deliver(alert *models.ThreatAlert) {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen
	m.current = alert
	m.expiresAt = time.Now().Add(m.window)
	m.timer = time.AfterFunc(m.window, func() { m.expire(gen) })
	notify := m.notify
	snap := m.snapshotLocked()
	m.mu.Unlock()

	logger.Infof("Alert active: file=%s window=%s", alert.FileName, m.window)
	if m.cue != nil && m.gate.Engaged() {
		m.cue.Play()
	}
	if notify != nil {
		notify(snap)
	}
}

// expire reverts to idle unless a newer delivery superseded this timer.
func (m *Machine) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.expiresAt = time.Time{}
	m.timer = nil
	notify := m.notify
	snap := m.snapshotLocked()
	m.mu.Unlock()

	logger.Debugf("Alert window expired, back to idle")
	if notify != nil {
		notify(snap)
	}
}

// Snapshot returns the current window state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		Alert:     m.current,
		ExpiresAt: m.expiresAt,
		Active:    m.current != nil,
	}
}

// Close cancels any pending timer and stops the cue.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.gen++
	m.current = nil
	m.expiresAt = time.Time{}
	m.mu.Unlock()

	if m.cue != nil {
		m.cue.Stop()
	}
}
