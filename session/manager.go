// Package session implements the lifecycle core of the avatar SDK: a
// per-session manager that turns a raw real-time room connection into typed
// domain events with deterministic state transitions.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog"

	"github.com/avatarlink/avatar-sdk-go/internal/metrics"
	"github.com/avatarlink/avatar-sdk-go/transport"
)

// Status is the externally visible connection status of a Manager.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// Internal state machine states and triggers.
const (
	stateDisconnected = "disconnected"
	stateConnecting   = "connecting"
	stateConnected    = "connected"
	stateError        = "error"

	eventDial      = "dial"
	eventEstablish = "establish"
	eventFail      = "fail"
	eventClose     = "close"
)

// Manager owns one avatar session: it dials the real-time room, normalizes
// transport notifications into domain events, and delivers them to
// registered handlers. A Manager is bound to one immutable session record
// for its whole lifetime.
//
// All methods are safe for concurrent use. Event handlers run synchronously
// inside whichever call triggered the emit, which may be a transport-owned
// goroutine.
type Manager struct {
	info Info
	dial transport.Dialer
	log  zerolog.Logger

	dispatcher *dispatcher

	mu           sync.Mutex
	machine      *fsm.FSM
	tr           transport.Transport
	gen          uint64
	audioBlocked bool
}

// NewManager creates a manager bound to info. dial is invoked once per
// connection generation to produce a fresh transport.
func NewManager(info Info, dial transport.Dialer, log zerolog.Logger) *Manager {
	m := &Manager{
		info: info,
		dial: dial,
		log: log.With().
			Str("component", "session-manager").
			Str("session_id", info.ID).
			Logger(),
	}
	m.dispatcher = newDispatcher(info, m.log)
	m.machine = fsm.NewFSM(
		stateDisconnected,
		fsm.Events{
			{Name: eventDial, Src: []string{stateDisconnected, stateError}, Dst: stateConnecting},
			{Name: eventEstablish, Src: []string{stateConnecting}, Dst: stateConnected},
			{Name: eventFail, Src: []string{stateConnecting, stateConnected}, Dst: stateError},
			{Name: eventClose, Src: []string{stateConnecting, stateConnected}, Dst: stateDisconnected},
		},
		fsm.Callbacks{
			"after_event": func(_ context.Context, e *fsm.Event) {
				metrics.RecordStateTransition(e.Src, e.Dst)
				m.log.Debug().
					Str("from", e.Src).
					Str("to", e.Dst).
					Msg("session state transition")
			},
		},
	)
	return m
}

// ID returns the identifier of the bound session.
func (m *Manager) ID() string { return m.info.ID }

// Data returns the bound session record.
func (m *Manager) Data() Info { return m.info }

// Status projects the current connection state. It is read-only and never
// causes a transition.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.machine.Current() {
	case stateConnected:
		return StatusConnected
	case stateConnecting:
		return StatusConnecting
	case stateDisconnected:
		return StatusDisconnected
	default:
		return StatusError
	}
}

// AudioBlocked reports whether audio playback is currently blocked by the
// playback environment. Only meaningful while a connection is live.
func (m *Manager) AudioBlocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audioBlocked
}

// On registers handler for events of the given kind and returns a func that
// removes exactly this registration. Registration order is delivery order.
func (m *Manager) On(kind Kind, handler Handler) func() { return m.dispatcher.on(kind, handler) }

// Off removes the first registration of handler for the given kind, matched
// by function identity. Closures created at the same source location share an
// identity; those must unsubscribe through the func returned by On. Removing
// a handler that was never registered is a no-op.
func (m *Manager) Off(kind Kind, handler Handler) { m.dispatcher.off(kind, handler) }

// Connect dials the session's room and blocks until the transport settles.
// It fails with ConnectionError when the bound session lacks an endpoint or
// token, or when the transport connect fails; it fails with SessionError
// when a connection already exists. On failure the manager holds no
// transport handle.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.tr != nil {
		m.mu.Unlock()
		return &SessionError{Op: "connect", Message: "already connected"}
	}
	if m.info.URL == "" || m.info.Token == "" {
		m.mu.Unlock()
		return &ConnectionError{Message: "session has no connection endpoint or token"}
	}
	if m.dial == nil {
		m.mu.Unlock()
		return &ConnectionError{Message: "no transport dialer configured"}
	}

	m.gen++
	gen := m.gen
	tr := m.dial(&roomListener{m: m, gen: gen})
	m.tr = tr
	m.audioBlocked = false
	m.transition(eventDial)
	url, token := m.info.URL, m.info.Token
	m.mu.Unlock()

	if err := tr.Connect(ctx, url, token); err != nil {
		m.mu.Lock()
		if m.gen == gen {
			m.tr = nil
			m.transition(eventFail)
		}
		m.mu.Unlock()
		return &ConnectionError{Message: "connect to session room", Err: err}
	}

	m.mu.Lock()
	if m.gen != gen || m.tr != tr {
		// Disconnect raced the pending connect and won; the room that just
		// came up belongs to a dead generation.
		m.mu.Unlock()
		tr.Disconnect()
		return &ConnectionError{Message: "connect interrupted by disconnect"}
	}
	m.transition(eventEstablish)
	blocked := !tr.PlaybackPermitted()
	m.audioBlocked = blocked
	m.mu.Unlock()

	m.log.Info().Str("url", url).Msg("session connected")
	m.dispatcher.emit(KindSessionStarted, nil)
	if blocked {
		m.dispatcher.emit(KindAudioBlocked, nil)
	}
	return nil
}

// Disconnect tears down the transport handle if one exists and transitions
// to Disconnected. It always succeeds; transport teardown errors are
// swallowed. Calling it while already disconnected is a no-op, and
// session.ended is emitted exactly once per Connected generation.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	tr := m.tr
	if tr == nil {
		m.mu.Unlock()
		return
	}
	m.tr = nil
	m.gen++ // invalidate callbacks from the old room
	wasConnected := m.machine.Current() == stateConnected
	m.transition(eventClose)
	m.audioBlocked = false
	m.mu.Unlock()

	tr.Disconnect()
	m.log.Info().Msg("session disconnected")
	if wasConnected {
		m.dispatcher.emit(KindSessionEnded, EndedPayload{Reason: "client"})
	}
}

// Close disconnects and drops every registered handler. The manager can be
// reconnected afterwards but starts with an empty handler map.
func (m *Manager) Close() {
	m.Disconnect()
	m.dispatcher.clear()
}

// SendMessage publishes text as a reliable input message over the room data
// channel. It fails with SessionError when no connection exists or the
// publish fails. When audio playback is blocked, a playback resume is
// attempted first; resume failure does not block the send.
func (m *Manager) SendMessage(ctx context.Context, text string) error {
	m.mu.Lock()
	tr := m.tr
	blocked := m.audioBlocked
	m.mu.Unlock()

	if tr == nil {
		return &SessionError{Op: "send", Message: "not connected"}
	}
	if blocked {
		// Best effort: sending a message is a user gesture, which is exactly
		// when playback environments allow resuming audio.
		if err := m.ResumeAudio(ctx); err != nil {
			m.log.Warn().Err(err).Msg("resume before send failed")
		}
	}

	payload, err := json.Marshal(wireMessage{Type: wireTypeInput, Text: text})
	if err != nil {
		return &SessionError{Op: "send", Message: "encode message", Err: err}
	}
	if err := tr.PublishReliable(ctx, payload); err != nil {
		return &SessionError{Op: "send", Message: "publish message", Err: err}
	}
	return nil
}

// ResumeAudio asks the transport to resume audio playback. It fails with
// SessionError when no connection exists; a failed resume attempt is logged
// and reported as success because autoplay-policy races are expected and
// non-fatal.
func (m *Manager) ResumeAudio(ctx context.Context) error {
	m.mu.Lock()
	tr := m.tr
	m.mu.Unlock()

	if tr == nil {
		return &SessionError{Op: "resume_audio", Message: "not connected"}
	}
	if err := tr.ResumePlayback(ctx); err != nil {
		m.log.Warn().Err(err).Msg("audio playback resume failed")
		return nil
	}
	m.setAudioBlocked(false)
	return nil
}

// transition fires a state machine trigger. Callers hold m.mu and guarantee
// the trigger is valid for the current state; an invalid trigger is a
// programming error surfaced via log only.
func (m *Manager) transition(event string) {
	if err := m.machine.Event(context.Background(), event); err != nil {
		m.log.Error().Err(err).Str("event", event).Msg("invalid session state transition")
	}
}

// setAudioBlocked updates the playback flag and emits the matching event on
// an actual change.
func (m *Manager) setAudioBlocked(blocked bool) {
	m.mu.Lock()
	changed := m.audioBlocked != blocked
	m.audioBlocked = blocked
	m.mu.Unlock()

	if !changed {
		return
	}
	if blocked {
		m.dispatcher.emit(KindAudioBlocked, nil)
	} else {
		m.dispatcher.emit(KindAudioUnblocked, nil)
	}
}

// liveTransport returns the current transport when gen is still the live
// generation. Stale callbacks from previous rooms resolve to false and are
// dropped by the caller.
func (m *Manager) liveTransport(gen uint64) (transport.Transport, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen || m.tr == nil {
		return nil, false
	}
	return m.tr, true
}

// remoteDisconnected handles a transport-originated disconnect notification.
func (m *Manager) remoteDisconnected(gen uint64) {
	m.mu.Lock()
	if m.gen != gen || m.tr == nil {
		m.mu.Unlock()
		m.log.Debug().Uint64("gen", gen).Msg("dropping stale disconnect notification")
		return
	}
	m.tr = nil
	m.gen++
	wasConnected := m.machine.Current() == stateConnected
	m.transition(eventClose)
	m.audioBlocked = false
	m.mu.Unlock()

	m.log.Info().Msg("session disconnected by transport")
	if wasConnected {
		m.dispatcher.emit(KindSessionEnded, EndedPayload{Reason: "transport"})
	}
}

// roomListener adapts transport notifications for one connection generation.
// Every callback re-checks the generation so that late notifications from a
// torn-down room cannot be misattributed to a newer connection.
type roomListener struct {
	m   *Manager
	gen uint64
}

func (l *roomListener) OnTrackSubscribed(info transport.TrackInfo) {
	if _, ok := l.m.liveTransport(l.gen); !ok {
		l.m.log.Debug().Uint64("gen", l.gen).Msg("dropping stale track notification")
		return
	}
	if kind, payload, ok := normalizeTrack(info); ok {
		l.m.dispatcher.emit(kind, payload)
	}
}

func (l *roomListener) OnDataReceived(payload []byte, from transport.Participant) {
	if _, ok := l.m.liveTransport(l.gen); !ok {
		l.m.log.Debug().Uint64("gen", l.gen).Msg("dropping stale data notification")
		return
	}
	if kind, p, ok := normalizeDataMessage(payload, from, l.m.log); ok {
		l.m.dispatcher.emit(kind, p)
	}
}

func (l *roomListener) OnDisconnected() {
	l.m.remoteDisconnected(l.gen)
}

func (l *roomListener) OnConnectionQualityChanged(q transport.Quality) {
	if _, ok := l.m.liveTransport(l.gen); !ok {
		return
	}
	l.m.dispatcher.emit(KindConnectionQuality, QualityPayload{
		Quality:     q.Level,
		Participant: q.Participant,
	})
}

func (l *roomListener) OnPlaybackStatusChanged() {
	tr, ok := l.m.liveTransport(l.gen)
	if !ok {
		return
	}
	l.m.setAudioBlocked(!tr.PlaybackPermitted())
}
