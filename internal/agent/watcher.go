// Package agent watches a directory for high-entropy writes and
// reports unauthorized ones to the ingestion gateway.
package agent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"alertmesh/internal/logger"
)

// StatusDetected marks agent-side detections; the gateway overrides it
// before fan-out.
const StatusDetected = "DETECTED"

// Config configures the detection agent.
type Config struct {
	WatchDir         string
	EntropyThreshold float64
	AuthorizedPrefix string
	HexDumpBytes     int
	MachineID        string
}

// Watcher flags suspicious writes in a watched directory.
type Watcher struct {
	cfg    Config
	uplink *Uplink
	fs     *fsnotify.Watcher
}

// NewWatcher creates a watcher over cfg.WatchDir.
func NewWatcher(cfg Config, uplink *Uplink) (*Watcher, error) {
	if cfg.WatchDir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}
	if cfg.EntropyThreshold <= 0 {
		cfg.EntropyThreshold = 7.5
	}
	if cfg.HexDumpBytes <= 0 {
		cfg.HexDumpBytes = 64
	}
	if cfg.MachineID == "" {
		cfg.MachineID = "node-" + uuid.NewString()
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	if err := fs.Add(cfg.WatchDir); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch %s: %w", cfg.WatchDir, err)
	}

	return &Watcher{cfg: cfg, uplink: uplink, fs: fs}, nil
}

// MachineID returns the effective node identifier.
func (w *Watcher) MachineID() string {
	return w.cfg.MachineID
}

// Run blocks processing filesystem events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	logger.Infof("Agent watching %s (threshold %.2f, node %s)", w.cfg.WatchDir, w.cfg.EntropyThreshold, w.cfg.MachineID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.inspect(ctx, ev.Name)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("Watcher error: %v", err)
		}
	}
}

// inspect scores one file and uplinks it when it looks like
// unauthorized encryption.
func (w *Watcher) inspect(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		// File may already be gone or be a directory.
		logger.Debugf("Skipping %s: %v", path, err)
		return
	}

	score := ShannonEntropy(data)
	if score <= w.cfg.EntropyThreshold {
		return
	}

	name := filepath.Base(path)
	logger.Warnf("High entropy detected: %s [%.4f]", name, score)

	if w.cfg.AuthorizedPrefix != "" && bytes.HasPrefix(data, []byte(w.cfg.AuthorizedPrefix)) {
		logger.Infof("Authorized vault operation: %s", name)
		return
	}

	det := Detection{
		MachineID:    w.cfg.MachineID,
		FileName:     name,
		EntropyScore: score,
		HexDump:      HexDump(data, w.cfg.HexDumpBytes),
		Status:       StatusDetected,
		Timestamp:    time.Now().UnixMilli(),
	}
	if err := w.uplink.Send(ctx, det); err != nil {
		logger.Errorf("Uplink failed for %s: %v", name, err)
		return
	}
	logger.Infof("Telemetry uplinked: %s", name)
}

// Close stops the filesystem watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
