package session

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/avatarlink/avatar-sdk-go/internal/metrics"
	"github.com/avatarlink/avatar-sdk-go/transport"
)

// Data-channel wire message. The shape is fixed by the platform's realtime
// protocol and shared with its other SDKs.
type wireMessage struct {
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	Status    string `json:"status,omitempty"`
	InputType string `json:"input_type,omitempty"`
}

const (
	wireTypeStatus   = "status"
	wireTypeInput    = "input"
	wireTypeResponse = "response"
	wireTypeError    = "error"
)

// normalizeDataMessage decodes a raw data-channel payload into a domain
// event. Malformed payloads are logged and dropped; they must never fail a
// live session. Unknown type values are ignored for forward compatibility
// with newer server message kinds.
func normalizeDataMessage(raw []byte, from transport.Participant, log zerolog.Logger) (Kind, any, bool) {
	var msg wireMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn().
			Err(err).
			Str("participant", from.Identity).
			Int("size", len(raw)).
			Msg("dropping malformed data-channel payload")
		metrics.RecordPayloadDropped()
		return "", nil, false
	}

	switch msg.Type {
	case wireTypeStatus:
		return KindAvatarStatus, StatusPayload{Status: msg.Status, Text: msg.Text}, true
	case wireTypeInput:
		return KindAvatarInput, InputEchoPayload{Text: msg.Text, InputType: msg.InputType}, true
	case wireTypeResponse:
		return KindAvatarResponse, ResponsePayload{Text: msg.Text}, true
	case wireTypeError:
		return KindAvatarError, ErrorPayload{Text: msg.Text}, true
	default:
		log.Debug().
			Str("type", msg.Type).
			Str("participant", from.Identity).
			Msg("ignoring data-channel payload with unknown type")
		metrics.RecordPayloadDropped()
		return "", nil, false
	}
}

// normalizeTrack maps a subscribed media track to a domain event by kind.
// Media kinds other than audio and video are ignored.
func normalizeTrack(info transport.TrackInfo) (Kind, any, bool) {
	payload := TrackPayload{
		Kind:        info.Kind,
		Track:       info.Track,
		Participant: info.Participant,
	}
	switch info.Kind {
	case transport.TrackKindVideo:
		return KindVideoTrack, payload, true
	case transport.TrackKindAudio:
		return KindAudioTrack, payload, true
	default:
		return "", nil, false
	}
}
