// Package livekitrtc implements the session transport over a LiveKit room.
package livekitrtc

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/avatarlink/avatar-sdk-go/transport"
)

// Room is a transport.Transport backed by a LiveKit room connection.
type Room struct {
	log      zerolog.Logger
	listener transport.Listener

	mu   sync.Mutex
	room *lksdk.Room
}

// Dialer returns a transport.Dialer producing LiveKit-backed transports.
func Dialer(log zerolog.Logger) transport.Dialer {
	return func(l transport.Listener) transport.Transport {
		return &Room{
			log:      log.With().Str("component", "livekit-room").Logger(),
			listener: l,
		}
	}
}

// Connect joins the LiveKit room at url with the given access token.
// LiveKit enforces its own dial timeout; ctx is not consulted beyond what
// the SDK honors internally.
func (r *Room) Connect(ctx context.Context, url, token string) error {
	callback := &lksdk.RoomCallback{
		OnDisconnected: func() {
			r.listener.OnDisconnected()
		},
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed:          r.onTrackSubscribed,
			OnDataPacket:               r.onDataPacket,
			OnConnectionQualityChanged: r.onConnectionQualityChanged,
		},
	}

	room, err := lksdk.ConnectToRoomWithToken(url, token, callback, lksdk.WithAutoSubscribe(true))
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.room = room
	r.mu.Unlock()

	r.log.Debug().Str("room", room.Name()).Msg("joined livekit room")
	return nil
}

// Disconnect leaves the room. Best effort; safe to call when not connected.
func (r *Room) Disconnect() {
	r.mu.Lock()
	room := r.room
	r.room = nil
	r.mu.Unlock()

	if room != nil {
		room.Disconnect()
	}
}

// PublishReliable sends payload over the room data channel with reliable
// delivery.
func (r *Room) PublishReliable(ctx context.Context, payload []byte) error {
	r.mu.Lock()
	room := r.room
	r.mu.Unlock()

	if room == nil {
		return errors.New("livekit room not connected")
	}
	return room.LocalParticipant.PublishDataPacket(
		lksdk.UserData(payload),
		lksdk.WithDataPublishReliable(true),
	)
}

// PlaybackPermitted always reports true: autoplay gating is a rendering
// environment concern and this transport attaches no gated audio sink.
func (r *Room) PlaybackPermitted() bool { return true }

// ResumePlayback is a no-op for the same reason.
func (r *Room) ResumePlayback(ctx context.Context) error { return nil }

func (r *Room) onTrackSubscribed(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
	var kind transport.TrackKind
	switch pub.Kind() {
	case lksdk.TrackKindVideo:
		kind = transport.TrackKindVideo
	case lksdk.TrackKindAudio:
		kind = transport.TrackKindAudio
	default:
		return
	}
	r.listener.OnTrackSubscribed(transport.TrackInfo{
		Kind:        kind,
		Track:       track,
		Participant: participantOf(rp),
	})
}

func (r *Room) onDataPacket(data lksdk.DataPacket, params lksdk.DataReceiveParams) {
	user, ok := data.(*lksdk.UserDataPacket)
	if !ok {
		return
	}
	from := transport.Participant{Identity: params.SenderIdentity}
	if params.Sender != nil {
		from = participantOf(params.Sender)
	}
	r.listener.OnDataReceived(user.Payload, from)
}

func (r *Room) onConnectionQualityChanged(update *livekit.ConnectionQualityInfo, p lksdk.Participant) {
	quality := transport.Quality{
		Level: strings.ToLower(update.GetQuality().String()),
	}
	if p != nil {
		quality.Participant = transport.Participant{
			Identity: p.Identity(),
			Name:     p.Name(),
		}
	}
	r.listener.OnConnectionQualityChanged(quality)
}

func participantOf(rp *lksdk.RemoteParticipant) transport.Participant {
	if rp == nil {
		return transport.Participant{}
	}
	return transport.Participant{
		Identity: rp.Identity(),
		Name:     rp.Name(),
	}
}
