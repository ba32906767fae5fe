package session

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/avatarlink/avatar-sdk-go/transport"
)

func TestNormalizeDataMessage(t *testing.T) {
	from := transport.Participant{Identity: "avatar-1"}

	tests := []struct {
		name        string
		raw         string
		wantOK      bool
		wantKind    Kind
		wantPayload any
	}{
		{
			name:        "status message",
			raw:         `{"type":"status","status":"thinking","text":"hmm"}`,
			wantOK:      true,
			wantKind:    KindAvatarStatus,
			wantPayload: StatusPayload{Status: "thinking", Text: "hmm"},
		},
		{
			name:        "input echo",
			raw:         `{"type":"input","text":"hello","input_type":"voice"}`,
			wantOK:      true,
			wantKind:    KindAvatarInput,
			wantPayload: InputEchoPayload{Text: "hello", InputType: "voice"},
		},
		{
			name:        "response",
			raw:         `{"type":"response","text":"Hello"}`,
			wantOK:      true,
			wantKind:    KindAvatarResponse,
			wantPayload: ResponsePayload{Text: "Hello"},
		},
		{
			name:        "avatar error",
			raw:         `{"type":"error","text":"model overloaded"}`,
			wantOK:      true,
			wantKind:    KindAvatarError,
			wantPayload: ErrorPayload{Text: "model overloaded"},
		},
		{
			name:   "unknown type is ignored",
			raw:    `{"type":"telemetry","text":"x"}`,
			wantOK: false,
		},
		{
			name:   "missing type is ignored",
			raw:    `{"text":"x"}`,
			wantOK: false,
		},
		{
			name:   "malformed json is dropped",
			raw:    `{"type":"response"`,
			wantOK: false,
		},
		{
			name:   "non-object json is dropped",
			raw:    `"just a string"`,
			wantOK: false,
		},
		{
			name:   "empty payload is dropped",
			raw:    ``,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, payload, ok := normalizeDataMessage([]byte(tt.raw), from, zerolog.Nop())
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			require.Equal(t, tt.wantKind, kind)
			require.Equal(t, tt.wantPayload, payload)
		})
	}
}

func TestNormalizeTrack(t *testing.T) {
	participant := transport.Participant{Identity: "avatar-1"}

	tests := []struct {
		name     string
		kind     transport.TrackKind
		wantOK   bool
		wantKind Kind
	}{
		{"video track", transport.TrackKindVideo, true, KindVideoTrack},
		{"audio track", transport.TrackKindAudio, true, KindAudioTrack},
		{"other media kind is ignored", transport.TrackKind("screenshare"), false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, payload, ok := normalizeTrack(transport.TrackInfo{
				Kind:        tt.kind,
				Track:       "track-handle",
				Participant: participant,
			})
			require.Equal(t, tt.wantOK, ok)
			if !tt.wantOK {
				return
			}
			require.Equal(t, tt.wantKind, kind)
			require.Equal(t, TrackPayload{
				Kind:        tt.kind,
				Track:       "track-handle",
				Participant: participant,
			}, payload)
		})
	}
}
