package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/avatarlink/avatar-sdk-go/session"
	"github.com/avatarlink/avatar-sdk-go/transport"
)

// fakeHub configures fake transports and remembers every transport a
// manager dialed, so tests can drive room notifications and inspect
// publishes per generation.
type fakeHub struct {
	mu          sync.Mutex
	connectErr  error
	connectGate chan struct{}
	publishErr  error
	resumeErr   error
	blocked     bool
	transports  []*fakeTransport
}

func (h *fakeHub) dialer() transport.Dialer {
	return func(l transport.Listener) transport.Transport {
		h.mu.Lock()
		defer h.mu.Unlock()
		tr := &fakeTransport{
			listener:    l,
			connectErr:  h.connectErr,
			connectGate: h.connectGate,
			publishErr:  h.publishErr,
			resumeErr:   h.resumeErr,
			blocked:     h.blocked,
		}
		h.transports = append(h.transports, tr)
		return tr
	}
}

func (h *fakeHub) last() *fakeTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.transports) == 0 {
		return nil
	}
	return h.transports[len(h.transports)-1]
}

type fakeTransport struct {
	listener    transport.Listener
	connectErr  error
	connectGate chan struct{}
	publishErr  error
	resumeErr   error

	mu          sync.Mutex
	blocked     bool
	connected   bool
	disconnects int
	resumes     int
	published   [][]byte
}

func (f *fakeTransport) Connect(ctx context.Context, url, token string) error {
	if f.connectGate != nil {
		<-f.connectGate
	}
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.connected = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Disconnect() {
	f.mu.Lock()
	f.connected = false
	f.disconnects++
	f.mu.Unlock()
}

func (f *fakeTransport) PublishReliable(ctx context.Context, payload []byte) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.mu.Lock()
	f.published = append(f.published, payload)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) PlaybackPermitted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.blocked
}

func (f *fakeTransport) ResumePlayback(ctx context.Context) error {
	f.mu.Lock()
	f.resumes++
	f.mu.Unlock()
	if f.resumeErr != nil {
		return f.resumeErr
	}
	f.mu.Lock()
	f.blocked = false
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) setBlocked(blocked bool) {
	f.mu.Lock()
	f.blocked = blocked
	f.mu.Unlock()
}

func connectableInfo() session.Info {
	return session.Info{
		ID:       "sess_abc123",
		RoomName: "room_abc123",
		Token:    "tok123",
		URL:      "wss://example/room",
		Avatar:   session.AvatarInfo{ID: "av_1", Name: "Ada"},
	}
}

func newConnectedManager(t *testing.T) (*session.Manager, *fakeHub) {
	t.Helper()
	hub := &fakeHub{}
	m := session.NewManager(connectableInfo(), hub.dialer(), zerolog.Nop())
	require.NoError(t, m.Connect(context.Background()))
	return m, hub
}

func collect(m *session.Manager, kind session.Kind) *[]session.Event {
	events := &[]session.Event{}
	m.On(kind, func(event session.Event) {
		*events = append(*events, event)
	})
	return events
}

func TestManager_InitialStatusIsDisconnected(t *testing.T) {
	hub := &fakeHub{}
	m := session.NewManager(connectableInfo(), hub.dialer(), zerolog.Nop())
	require.Equal(t, session.StatusDisconnected, m.Status())
	require.False(t, m.AudioBlocked())
}

func TestManager_ConnectWithoutTokenFails(t *testing.T) {
	tests := []struct {
		name string
		info session.Info
	}{
		{"missing token", session.Info{ID: "s1", URL: "wss://example/room"}},
		{"missing url", session.Info{ID: "s1", Token: "tok123"}},
		{"missing both", session.Info{ID: "s1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hub := &fakeHub{}
			m := session.NewManager(tt.info, hub.dialer(), zerolog.Nop())
			started := collect(m, session.KindSessionStarted)

			err := m.Connect(context.Background())

			var ce *session.ConnectionError
			require.ErrorAs(t, err, &ce)
			require.Equal(t, session.StatusDisconnected, m.Status())
			require.Empty(t, *started, "no event may be emitted on a failed precondition")
			require.Empty(t, hub.transports, "no transport may be dialed")
		})
	}
}

func TestManager_ConnectSuccessScenario(t *testing.T) {
	hub := &fakeHub{}
	m := session.NewManager(connectableInfo(), hub.dialer(), zerolog.Nop())

	var order []string
	m.On(session.KindSessionStarted, func(event session.Event) {
		order = append(order, "first")
		require.Equal(t, "sess_abc123", event.Session.ID)
	})
	m.On(session.KindSessionStarted, func(session.Event) {
		order = append(order, "second")
	})

	require.NoError(t, m.Connect(context.Background()))

	require.Equal(t, session.StatusConnected, m.Status())
	require.Equal(t, []string{"first", "second"}, order, "delivery follows registration order")
}

func TestManager_ConnectTransportFailure(t *testing.T) {
	hub := &fakeHub{connectErr: errors.New("dial tcp: refused")}
	m := session.NewManager(connectableInfo(), hub.dialer(), zerolog.Nop())
	started := collect(m, session.KindSessionStarted)

	err := m.Connect(context.Background())

	var ce *session.ConnectionError
	require.ErrorAs(t, err, &ce)
	require.ErrorContains(t, err, "refused")
	require.Equal(t, session.StatusError, m.Status())
	require.Empty(t, *started)

	// The failed generation holds no transport handle: sends must fail.
	var se *session.SessionError
	require.ErrorAs(t, m.SendMessage(context.Background(), "hi"), &se)
}

func TestManager_ConnectWhileConnectedIsRejected(t *testing.T) {
	m, hub := newConnectedManager(t)

	err := m.Connect(context.Background())

	var se *session.SessionError
	require.ErrorAs(t, err, &se)
	require.Equal(t, session.StatusConnected, m.Status())
	require.Len(t, hub.transports, 1, "no second transport may be dialed")
}

func TestManager_ReconnectAfterError(t *testing.T) {
	hub := &fakeHub{connectErr: errors.New("boom")}
	m := session.NewManager(connectableInfo(), hub.dialer(), zerolog.Nop())
	require.Error(t, m.Connect(context.Background()))
	require.Equal(t, session.StatusError, m.Status())

	hub.mu.Lock()
	hub.connectErr = nil
	hub.mu.Unlock()

	require.NoError(t, m.Connect(context.Background()))
	require.Equal(t, session.StatusConnected, m.Status())
}

func TestManager_DisconnectDuringPendingConnect(t *testing.T) {
	gate := make(chan struct{})
	hub := &fakeHub{connectGate: gate}
	m := session.NewManager(connectableInfo(), hub.dialer(), zerolog.Nop())
	started := collect(m, session.KindSessionStarted)
	ended := collect(m, session.KindSessionEnded)

	errCh := make(chan error, 1)
	go func() { errCh <- m.Connect(context.Background()) }()

	// Wait for the dial, disconnect under the blocked connect, then let the
	// transport settle.
	require.Eventually(t, func() bool { return hub.last() != nil }, time.Second, time.Millisecond)
	m.Disconnect()
	close(gate)

	err := <-errCh
	var ce *session.ConnectionError
	require.ErrorAs(t, err, &ce)
	require.ErrorContains(t, err, "interrupted")
	require.Equal(t, session.StatusDisconnected, m.Status())
	require.Empty(t, *started)
	require.Empty(t, *ended, "a generation that never reached connected emits no ended event")

	tr := hub.last()
	tr.mu.Lock()
	disconnects := tr.disconnects
	tr.mu.Unlock()
	require.NotZero(t, disconnects, "the room of the dead generation is torn down")
}

func TestManager_OnReturnsUnsubscribe(t *testing.T) {
	hub := &fakeHub{}
	m := session.NewManager(connectableInfo(), hub.dialer(), zerolog.Nop())

	var got []string
	mk := func(name string) func(session.Event) {
		return func(session.Event) { got = append(got, name) }
	}
	m.On(session.KindSessionStarted, mk("keep"))
	off := m.On(session.KindSessionStarted, mk("drop"))
	off()

	require.NoError(t, m.Connect(context.Background()))
	require.Equal(t, []string{"keep"}, got, "unsubscribe removes only its own registration")
}

func TestManager_DisconnectEmitsEndedOnce(t *testing.T) {
	m, hub := newConnectedManager(t)
	ended := collect(m, session.KindSessionEnded)

	m.Disconnect()
	m.Disconnect()

	require.Equal(t, session.StatusDisconnected, m.Status())
	require.Len(t, *ended, 1, "session.ended fires exactly once")
	require.Equal(t, session.EndedPayload{Reason: "client"}, (*ended)[0].Payload)
	require.Equal(t, 1, hub.last().disconnects)
}

func TestManager_TransportDisconnectNotification(t *testing.T) {
	m, hub := newConnectedManager(t)
	ended := collect(m, session.KindSessionEnded)

	hub.last().listener.OnDisconnected()

	require.Equal(t, session.StatusDisconnected, m.Status())
	require.Len(t, *ended, 1)
	require.Equal(t, session.EndedPayload{Reason: "transport"}, (*ended)[0].Payload)

	var se *session.SessionError
	require.ErrorAs(t, m.SendMessage(context.Background(), "hi"), &se)
}

func TestManager_StaleGenerationNotificationsAreDropped(t *testing.T) {
	m, hub := newConnectedManager(t)

	old := hub.last()
	m.Disconnect()
	require.NoError(t, m.Connect(context.Background()))
	require.Equal(t, session.StatusConnected, m.Status())

	ended := collect(m, session.KindSessionEnded)
	responses := collect(m, session.KindAvatarResponse)

	// Late notifications from the torn-down room must not touch the new
	// generation.
	old.listener.OnDisconnected()
	old.listener.OnDataReceived([]byte(`{"type":"response","text":"stale"}`), transport.Participant{})

	require.Equal(t, session.StatusConnected, m.Status())
	require.Empty(t, *ended)
	require.Empty(t, *responses)
}

func TestManager_SendMessage(t *testing.T) {
	m, hub := newConnectedManager(t)

	require.NoError(t, m.SendMessage(context.Background(), "hi"))

	tr := hub.last()
	tr.mu.Lock()
	defer tr.mu.Unlock()
	require.Len(t, tr.published, 1)

	var msg map[string]string
	require.NoError(t, json.Unmarshal(tr.published[0], &msg))
	require.Equal(t, map[string]string{"type": "input", "text": "hi"}, msg)
}

func TestManager_SendMessageWhileDisconnected(t *testing.T) {
	hub := &fakeHub{}
	m := session.NewManager(connectableInfo(), hub.dialer(), zerolog.Nop())

	err := m.SendMessage(context.Background(), "hi")

	var se *session.SessionError
	require.ErrorAs(t, err, &se)
	require.ErrorContains(t, err, "not connected")
	require.Empty(t, hub.transports)
}

func TestManager_SendMessagePublishFailure(t *testing.T) {
	hub := &fakeHub{publishErr: errors.New("data channel closed")}
	m := session.NewManager(connectableInfo(), hub.dialer(), zerolog.Nop())
	require.NoError(t, m.Connect(context.Background()))

	err := m.SendMessage(context.Background(), "hi")

	var se *session.SessionError
	require.ErrorAs(t, err, &se)
	require.ErrorContains(t, err, "data channel closed")
	require.Equal(t, session.StatusConnected, m.Status(), "a failed publish does not end the session")
}

func TestManager_SendMessageResumesBlockedAudio(t *testing.T) {
	hub := &fakeHub{blocked: true}
	m := session.NewManager(connectableInfo(), hub.dialer(), zerolog.Nop())
	require.NoError(t, m.Connect(context.Background()))
	require.True(t, m.AudioBlocked())

	require.NoError(t, m.SendMessage(context.Background(), "hi"))

	tr := hub.last()
	tr.mu.Lock()
	resumes := tr.resumes
	tr.mu.Unlock()
	require.Equal(t, 1, resumes)
	require.False(t, m.AudioBlocked())
}

func TestManager_ResumeAudio(t *testing.T) {
	t.Run("without transport fails", func(t *testing.T) {
		hub := &fakeHub{}
		m := session.NewManager(connectableInfo(), hub.dialer(), zerolog.Nop())
		var se *session.SessionError
		require.ErrorAs(t, m.ResumeAudio(context.Background()), &se)
	})

	t.Run("idempotent when not blocked", func(t *testing.T) {
		m, _ := newConnectedManager(t)
		require.False(t, m.AudioBlocked())
		require.NoError(t, m.ResumeAudio(context.Background()))
		require.False(t, m.AudioBlocked())
	})

	t.Run("resume failure is swallowed and leaves flag set", func(t *testing.T) {
		hub := &fakeHub{blocked: true, resumeErr: errors.New("autoplay policy")}
		m := session.NewManager(connectableInfo(), hub.dialer(), zerolog.Nop())
		require.NoError(t, m.Connect(context.Background()))

		require.NoError(t, m.ResumeAudio(context.Background()))
		require.True(t, m.AudioBlocked())
	})

	t.Run("successful resume clears flag and emits unblocked", func(t *testing.T) {
		hub := &fakeHub{blocked: true}
		m := session.NewManager(connectableInfo(), hub.dialer(), zerolog.Nop())
		require.NoError(t, m.Connect(context.Background()))
		unblocked := collect(m, session.KindAudioUnblocked)

		require.NoError(t, m.ResumeAudio(context.Background()))

		require.False(t, m.AudioBlocked())
		require.Len(t, *unblocked, 1)
	})
}

func TestManager_PlaybackStatusChanges(t *testing.T) {
	m, hub := newConnectedManager(t)
	blocked := collect(m, session.KindAudioBlocked)
	unblocked := collect(m, session.KindAudioUnblocked)

	tr := hub.last()
	tr.setBlocked(true)
	tr.listener.OnPlaybackStatusChanged()
	require.True(t, m.AudioBlocked())
	require.Len(t, *blocked, 1)

	// Repeating the same status emits nothing new.
	tr.listener.OnPlaybackStatusChanged()
	require.Len(t, *blocked, 1)

	tr.setBlocked(false)
	tr.listener.OnPlaybackStatusChanged()
	require.False(t, m.AudioBlocked())
	require.Len(t, *unblocked, 1)
}

func TestManager_DataMessages(t *testing.T) {
	m, hub := newConnectedManager(t)
	responses := collect(m, session.KindAvatarResponse)

	listener := hub.last().listener
	listener.OnDataReceived([]byte(`{"type":"response","text":"Hello"}`), transport.Participant{Identity: "avatar"})

	require.Len(t, *responses, 1)
	require.Equal(t, session.ResponsePayload{Text: "Hello"}, (*responses)[0].Payload)
}

func TestManager_MalformedDataMessageIsDropped(t *testing.T) {
	m, hub := newConnectedManager(t)
	errored := collect(m, session.KindAvatarError)

	require.NotPanics(t, func() {
		hub.last().listener.OnDataReceived([]byte("not json"), transport.Participant{})
	})

	require.Equal(t, session.StatusConnected, m.Status())
	require.Empty(t, *errored)
}

func TestManager_TrackNotifications(t *testing.T) {
	m, hub := newConnectedManager(t)
	video := collect(m, session.KindVideoTrack)
	audio := collect(m, session.KindAudioTrack)

	listener := hub.last().listener
	listener.OnTrackSubscribed(transport.TrackInfo{
		Kind:        transport.TrackKindVideo,
		Track:       "vtrack",
		Participant: transport.Participant{Identity: "avatar"},
	})
	listener.OnTrackSubscribed(transport.TrackInfo{
		Kind:        transport.TrackKindAudio,
		Track:       "atrack",
		Participant: transport.Participant{Identity: "avatar"},
	})

	require.Len(t, *video, 1)
	require.Len(t, *audio, 1)
	payload, ok := (*video)[0].Payload.(session.TrackPayload)
	require.True(t, ok)
	require.Equal(t, "vtrack", payload.Track)
}

func TestManager_ConnectionQuality(t *testing.T) {
	m, hub := newConnectedManager(t)
	quality := collect(m, session.KindConnectionQuality)

	hub.last().listener.OnConnectionQualityChanged(transport.Quality{
		Level:       "poor",
		Participant: transport.Participant{Identity: "avatar"},
	})

	require.Len(t, *quality, 1)
	require.Equal(t, session.QualityPayload{
		Quality:     "poor",
		Participant: transport.Participant{Identity: "avatar"},
	}, (*quality)[0].Payload)
}

func TestManager_CloseClearsHandlers(t *testing.T) {
	m, _ := newConnectedManager(t)
	ended := collect(m, session.KindSessionEnded)
	started := collect(m, session.KindSessionStarted)

	m.Close()
	require.Len(t, *ended, 1)

	// Handlers are gone: a fresh connect emits to nobody.
	require.NoError(t, m.Connect(context.Background()))
	require.Empty(t, *started)
}
