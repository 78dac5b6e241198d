// Package dashboard runs a headless dashboard session: it subscribes
// to the alert fan-out through the shared connection manager, feeds
// deliveries into the alert window machine, and keeps the reconciled
// plot series current against the fetched history.
package dashboard

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"alertmesh/internal/alertwindow"
	"alertmesh/internal/broker"
	"alertmesh/internal/connmgr"
	"alertmesh/internal/history"
	"alertmesh/internal/logger"
	"alertmesh/internal/reconcile"
	"alertmesh/pkg/models"
)

// Config configures the session.
type Config struct {
	FeedInterval    time.Duration
	PlotWidth       float64
	PlotHeight      float64
	FallbackEntropy float64
}

func (cfg *Config) applyDefaults() {
	if cfg.FeedInterval <= 0 {
		cfg.FeedInterval = 900 * time.Millisecond
	}
	if cfg.PlotWidth <= 0 {
		cfg.PlotWidth = 100
	}
	if cfg.PlotHeight <= 0 {
		cfg.PlotHeight = 100
	}
	if cfg.FallbackEntropy <= 0 {
		cfg.FallbackEntropy = reconcile.FallbackEntropy
	}
}

// Session is one live dashboard client.
type Session struct {
	cfg     Config
	conns   *connmgr.Manager
	machine *alertwindow.Machine
	hist    *history.Client

	mu      sync.Mutex
	samples []models.HistorySample
}

// NewSession wires a session. hist may be nil when no history endpoint
// is configured; the plot then carries live spikes only.
func NewSession(cfg Config, conns *connmgr.Manager, machine *alertwindow.Machine, hist *history.Client) *Session {
	cfg.applyDefaults()
	return &Session{
		cfg:     cfg,
		conns:   conns,
		machine: machine,
		hist:    hist,
	}
}

// Engage latches the operator-interaction gate and pulls the history
// for the first time. Safe to call more than once.
func (s *Session) Engage(ctx context.Context) {
	s.machine.Gate().Engage()
	if err := s.RefreshHistory(ctx); err != nil {
		logger.Warnf("History refresh failed: %v", err)
	}
}

// RefreshHistory refetches the persisted series.
func (s *Session) RefreshHistory(ctx context.Context) error {
	if s.hist == nil {
		return nil
	}
	samples, err := s.hist.Fetch(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.samples = samples
	s.mu.Unlock()
	return nil
}

// Series derives the current reconciled series. The stored history is
// never mutated; an idle machine yields exactly the history.
func (s *Session) Series() reconcile.Series {
	snap := s.machine.Snapshot()
	s.mu.Lock()
	samples := s.samples
	s.mu.Unlock()
	return reconcile.Merge(samples, snap.Alert, s.cfg.FallbackEntropy, time.Now())
}

// Run subscribes and blocks emitting the activity feed until ctx is
// cancelled. The subscription is released on return; the shared broker
// connection stays open.
func (s *Session) Run(ctx context.Context) error {
	unsubscribe, err := s.conns.SubscribeToEvent(ctx, broker.TopicCriticalAlert, broker.EventThreatDetected, s.onThreat)
	if err != nil {
		return err
	}
	defer unsubscribe()

	ticker := time.NewTicker(s.cfg.FeedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.feedLine()
		}
	}
}

// onThreat handles one delivered alert. Every delivery counts as a
// fresh alert; the machine's last-write-wins transition absorbs
// duplicates and reordering.
func (s *Session) onThreat(payload map[string]interface{}) {
	alert := decodeAlert(payload)
	logger.Infof("Telemetry inbound: %s", alert.FileName)
	s.machine.Deliver(alert)
}

func (s *Session) feedLine() {
	snap := s.machine.Snapshot()
	if snap.Active {
		logger.Warnf("CRITICAL ENTROPY ACTIVE: %s (score %.2f, expires %s)",
			snap.Alert.FileName,
			snap.Alert.SpikeEntropy(s.cfg.FallbackEntropy),
			snap.ExpiresAt.Format("15:04:05"))
	} else {
		logger.Debugf("Integrity check pass")
	}

	pts := reconcile.MapSeries(s.Series(), s.cfg.PlotWidth, s.cfg.PlotHeight)
	logger.Debugf("Plot: %d points", len(pts))
}

// decodeAlert converts a delivered payload into a ThreatAlert. Unknown
// fields are dropped; a payload that fails to decode still produces an
// (empty) alert, since delivery itself is the signal.
func decodeAlert(payload map[string]interface{}) *models.ThreatAlert {
	var alert models.ThreatAlert
	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Warnf("Failed to re-encode alert payload: %v", err)
		return &alert
	}
	if err := json.Unmarshal(raw, &alert); err != nil {
		logger.Warnf("Failed to decode alert payload: %v", err)
	}
	return &alert
}
