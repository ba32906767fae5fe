package avatarsdk

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/avatarlink/avatar-sdk-go/internal/metrics"
	"github.com/avatarlink/avatar-sdk-go/session"
)

// sessionRegistry owns the session managers a client has created, keyed by
// session id. It is the sole lifetime authority for managers: removal always
// closes the manager (disconnect + handler clear).
// Thread-safe via sync.RWMutex.
type sessionRegistry struct {
	mu       sync.RWMutex
	managers map[string]*session.Manager
	log      zerolog.Logger
}

func newSessionRegistry(log zerolog.Logger) *sessionRegistry {
	return &sessionRegistry{
		managers: make(map[string]*session.Manager),
		log:      log,
	}
}

// insert registers a manager. An existing manager for the same session id is
// closed and replaced.
func (r *sessionRegistry) insert(manager *session.Manager) {
	r.mu.Lock()
	prev := r.managers[manager.ID()]
	r.managers[manager.ID()] = manager
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
	} else {
		metrics.RecordSessionCreated()
	}
}

// get returns the manager for a session id.
func (r *sessionRegistry) get(id string) (*session.Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	manager, ok := r.managers[id]
	return manager, ok
}

// remove closes and deletes the manager for a session id. Unknown ids are a
// no-op.
func (r *sessionRegistry) remove(id string) {
	r.mu.Lock()
	manager, ok := r.managers[id]
	delete(r.managers, id)
	r.mu.Unlock()

	if !ok {
		return
	}
	manager.Close()
	metrics.RecordSessionRemoved()
}

// snapshot returns the current managers.
func (r *sessionRegistry) snapshot() []*session.Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*session.Manager, 0, len(r.managers))
	for _, manager := range r.managers {
		result = append(result, manager)
	}
	return result
}

// statuses returns session id → connection status for every manager.
func (r *sessionRegistry) statuses() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]string, len(r.managers))
	for id, manager := range r.managers {
		result[id] = string(manager.Status())
	}
	return result
}

// closeAll closes and drops every manager.
func (r *sessionRegistry) closeAll() {
	r.mu.Lock()
	managers := r.managers
	r.managers = make(map[string]*session.Manager)
	r.mu.Unlock()

	for _, manager := range managers {
		manager.Close()
		metrics.RecordSessionRemoved()
	}
}

// janitor sweeps the registry in the background and removes managers that
// are no longer useful:
//   - errored managers
//   - disconnected managers whose session record already expired
//
// Connected and connecting managers are never touched.
type janitor struct {
	registry *sessionRegistry
	interval time.Duration
	log      zerolog.Logger

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func newJanitor(registry *sessionRegistry, interval time.Duration, log zerolog.Logger) *janitor {
	return &janitor{
		registry: registry,
		interval: interval,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in background.
// Safe to call multiple times - only the first call starts the janitor.
func (j *janitor) Start(ctx context.Context) {
	j.startOnce.Do(func() {
		j.wg.Add(1)
		go j.run(ctx)
		j.log.Debug().Dur("interval", j.interval).Msg("session janitor started")
	})
}

// Stop gracefully shuts down the janitor.
// Safe to call multiple times - only the first call stops the janitor.
func (j *janitor) Stop() {
	j.stopOnce.Do(func() {
		close(j.done)
		j.wg.Wait()
		j.log.Debug().Msg("session janitor stopped")
	})
}

func (j *janitor) run(ctx context.Context) {
	defer j.wg.Done()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.done:
			return
		case <-ticker.C:
			j.sweep()
		}
	}
}

// sweep removes dead managers from the registry.
func (j *janitor) sweep() {
	now := time.Now()
	for _, manager := range j.registry.snapshot() {
		status := manager.Status()
		switch {
		case status == session.StatusError:
			j.registry.remove(manager.ID())
			j.log.Info().
				Str("session_id", manager.ID()).
				Str("reason", "errored").
				Msg("session cleanup")

		case status == session.StatusDisconnected && expired(manager.Data(), now):
			j.registry.remove(manager.ID())
			j.log.Info().
				Str("session_id", manager.ID()).
				Str("reason", "expired").
				Msg("session cleanup")
		}
	}
}
