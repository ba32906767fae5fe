// Package transport defines the boundary between a session manager and the
// real-time room it rides on. The session core consumes a Transport as an
// opaque capability and receives room notifications through a Listener;
// concrete implementations live in subpackages (see livekitrtc).
package transport

import "context"

// TrackKind identifies the media kind of a subscribed track.
type TrackKind string

const (
	TrackKindVideo TrackKind = "video"
	TrackKindAudio TrackKind = "audio"
)

// Participant identifies the remote room participant a notification came from.
type Participant struct {
	Identity string
	Name     string
}

// TrackInfo describes a newly subscribed media track. Track holds the
// implementation-specific track handle; callers that render media assert it
// to the concrete type of the transport they dialed with.
type TrackInfo struct {
	Kind        TrackKind
	Track       any
	Participant Participant
}

// Quality reports a connection-quality change for a participant.
type Quality struct {
	Level       string
	Participant Participant
}

// Listener receives asynchronous room notifications. Implementations must
// tolerate being called from transport-owned goroutines at any time between
// Connect and Disconnect, including after the dialing side has moved on to a
// newer connection.
type Listener interface {
	OnTrackSubscribed(TrackInfo)
	OnDataReceived(payload []byte, from Participant)
	OnDisconnected()
	OnConnectionQualityChanged(Quality)
	OnPlaybackStatusChanged()
}

// Transport is a live connection to a real-time room.
//
// Connect and PublishReliable accept a context but enforce no timeout of
// their own; deadline behavior is inherited from the underlying transport.
type Transport interface {
	// Connect joins the room at url using the given access token.
	Connect(ctx context.Context, url, token string) error
	// Disconnect leaves the room. Best effort: it never reports an error.
	Disconnect()
	// PublishReliable sends payload over the room data channel with
	// delivered-or-failed semantics.
	PublishReliable(ctx context.Context, payload []byte) error
	// PlaybackPermitted reports whether audio playback is currently allowed
	// by the playback environment.
	PlaybackPermitted() bool
	// ResumePlayback asks the playback environment to start audio playback.
	ResumePlayback(ctx context.Context) error
}

// Dialer produces a fresh Transport wired to the given listener. A session
// manager calls it once per connection generation.
type Dialer func(Listener) Transport
