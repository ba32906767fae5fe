package session

import (
	"time"

	"github.com/avatarlink/avatar-sdk-go/transport"
)

// Kind identifies a domain event delivered to registered handlers. The
// string values are wire-stable identifiers shared with other SDKs for this
// platform and must not change.
type Kind string

const (
	// KindSessionStarted fires once when the room connection is established.
	KindSessionStarted Kind = "session.started"
	// KindSessionEnded fires once when a connected session ends, whether by
	// an explicit disconnect or a transport-originated one.
	KindSessionEnded Kind = "session.ended"
	// KindVideoTrack fires when the avatar's video track becomes available.
	KindVideoTrack Kind = "avatar.video"
	// KindAudioTrack fires when the avatar's audio track becomes available.
	KindAudioTrack Kind = "avatar.audio"
	// KindAvatarStatus carries avatar status updates (listening, thinking...).
	KindAvatarStatus Kind = "avatar.status"
	// KindAvatarInput echoes user input as understood by the avatar.
	KindAvatarInput Kind = "avatar.input"
	// KindAvatarResponse carries avatar response text.
	KindAvatarResponse Kind = "avatar.response"
	// KindAvatarError carries avatar-originated error text. Distinct from
	// SDK errors: these arrive over the data channel as part of the
	// conversation and never fail an operation.
	KindAvatarError Kind = "avatar.error"
	// KindConnectionQuality reports transport connection-quality changes.
	KindConnectionQuality Kind = "connection.quality"
	// KindAudioBlocked fires when audio playback becomes blocked.
	KindAudioBlocked Kind = "avatar.audio.blocked"
	// KindAudioUnblocked fires when audio playback becomes permitted again.
	KindAudioUnblocked Kind = "avatar.audio.unblocked"
)

// AvatarInfo is the avatar descriptor embedded in a session.
type AvatarInfo struct {
	ID           string `json:"id"`
	Slug         string `json:"slug,omitempty"`
	Name         string `json:"name,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"`
	VoiceID      string `json:"voice_id,omitempty"`
	ModelID      string `json:"model_id,omitempty"`
}

// Info is the session record a Manager is bound to. It is supplied by the
// platform API when the session is created and is never mutated by the
// Manager.
type Info struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id,omitempty"`
	Provider  string     `json:"provider,omitempty"`
	RoomName  string     `json:"room_name,omitempty"`
	Token     string     `json:"token,omitempty"`
	URL       string     `json:"url,omitempty"`
	Avatar    AvatarInfo `json:"avatar"`
	ExpiresAt time.Time  `json:"expires_at,omitzero"`
}

// Event is the envelope delivered to every registered handler. Session is a
// snapshot of the bound session record at emission time.
type Event struct {
	Kind      Kind
	Session   Info
	EmittedAt time.Time
	Payload   any
}

// Handler is a caller-supplied callback for one event kind. Handlers run
// synchronously in whatever context triggered the emit and must not block.
type Handler func(Event)

// StatusPayload accompanies KindAvatarStatus events.
type StatusPayload struct {
	Status string
	Text   string
}

// InputEchoPayload accompanies KindAvatarInput events.
type InputEchoPayload struct {
	Text      string
	InputType string
}

// ResponsePayload accompanies KindAvatarResponse events.
type ResponsePayload struct {
	Text string
}

// ErrorPayload accompanies KindAvatarError events.
type ErrorPayload struct {
	Text string
}

// TrackPayload accompanies KindVideoTrack and KindAudioTrack events.
type TrackPayload struct {
	Kind        transport.TrackKind
	Track       any
	Participant transport.Participant
}

// QualityPayload accompanies KindConnectionQuality events.
type QualityPayload struct {
	Quality     string
	Participant transport.Participant
}

// EndedPayload accompanies KindSessionEnded events.
type EndedPayload struct {
	// Reason is "client" for explicit disconnects and "transport" when the
	// room connection dropped.
	Reason string
}
