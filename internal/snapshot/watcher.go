// Package snapshot provides a host-side fsnotify watcher that keeps an
// in-memory trust.Snapshot and revocation list current by reloading
// them from disk on write. This is host plumbing, not core kernel
// logic (spec §9 "Revocation and trust snapshot" fixes these as
// read-only inputs assembled by the caller); the lease manager only
// ever sees the immutable trust.Snapshot/trust.RevocationView values
// this package hands it at the instant of evaluation.
package snapshot

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ssbking/personal-digital-authority/pkg/trust"
)

// Watcher holds the current trust snapshot and revocation list,
// refreshed from two JSON files whenever fsnotify reports a write.
type Watcher struct {
	mu             sync.RWMutex
	watcher        *fsnotify.Watcher
	snapshotPath   string
	revocationPath string
	current        trust.Snapshot
	revoked        trust.StaticRevocationList
	stopCh         chan struct{}
	doneCh         chan struct{}
	started        bool
}

// New constructs a Watcher. It performs an initial synchronous load
// before returning so the first Snapshot()/Revocation() call never
// observes a zero value.
func New(snapshotPath, revocationPath string) (*Watcher, error) {
	w := &Watcher{
		snapshotPath:   snapshotPath,
		revocationPath: revocationPath,
		stopCh:         make(chan struct{}),
		doneCh:         make(chan struct{}),
	}

	if err := w.reloadSnapshot(); err != nil {
		return nil, err
	}
	if err := w.reloadRevocation(); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.watcher = fw

	if err := fw.Add(snapshotPath); err != nil {
		fw.Close()
		return nil, err
	}
	if err := fw.Add(revocationPath); err != nil {
		fw.Close()
		return nil, err
	}

	return w, nil
}

// Start begins watching for file changes in a background goroutine.
// Non-blocking.
func (w *Watcher) Start() {
	w.started = true
	go w.run()
}

// Stop terminates the background goroutine and releases the
// underlying fsnotify watcher.
func (w *Watcher) Stop() {
	close(w.stopCh)
	if w.started {
		<-w.doneCh
	}
	w.watcher.Close()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	debounce := time.NewTicker(200 * time.Millisecond)
	defer debounce.Stop()

	var pendingSnapshot, pendingRevocation bool

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			switch event.Name {
			case w.snapshotPath:
				pendingSnapshot = true
			case w.revocationPath:
				pendingRevocation = true
			}

		case <-w.watcher.Errors:
			// Host-side observability only; the core never logs.

		case <-debounce.C:
			if pendingSnapshot {
				w.reloadSnapshot()
				pendingSnapshot = false
			}
			if pendingRevocation {
				w.reloadRevocation()
				pendingRevocation = false
			}
		}
	}
}

type snapshotFile struct {
	TrustScore      float64 `json:"trust_score"`
	MinimumRequired float64 `json:"minimum_required"`
}

func (w *Watcher) reloadSnapshot() error {
	data, err := os.ReadFile(w.snapshotPath)
	if err != nil {
		return err
	}
	var sf snapshotFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return err
	}
	w.mu.Lock()
	w.current = trust.Snapshot{TrustScore: sf.TrustScore, MinimumRequired: sf.MinimumRequired}
	w.mu.Unlock()
	return nil
}

func (w *Watcher) reloadRevocation() error {
	data, err := os.ReadFile(w.revocationPath)
	if err != nil {
		return err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	w.mu.Lock()
	w.revoked = trust.NewStaticRevocationList(ids...)
	w.mu.Unlock()
	return nil
}

// Snapshot returns the current trust snapshot, read-only, consumed at
// the instant of lease evaluation (spec §4.3, §5 "Shared resources").
func (w *Watcher) Snapshot() trust.Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Revocation returns the current revocation view.
func (w *Watcher) Revocation() trust.RevocationView {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.revoked
}
