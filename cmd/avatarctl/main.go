// avatarctl is a test harness for the avatar SDK: it opens (or attaches to)
// a session, connects to its room, prints every domain event, and sends
// stdin lines to the avatar until interrupted.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	avatarsdk "github.com/avatarlink/avatar-sdk-go"
	"github.com/avatarlink/avatar-sdk-go/internal/config"
	"github.com/avatarlink/avatar-sdk-go/internal/logger"
	"github.com/avatarlink/avatar-sdk-go/session"
)

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := avatarsdk.New(cfg.APIKey,
		avatarsdk.WithBaseURL(cfg.APIBaseURL),
		avatarsdk.WithLogger(log),
		avatarsdk.WithCleanupInterval(cfg.CleanupInterval),
	)
	defer client.Close()

	manager, err := openSession(ctx, client, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open session")
	}

	subscribeAll(manager, log)

	if err := manager.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect session")
	}
	defer manager.Disconnect()

	log.Info().
		Str("session_id", manager.ID()).
		Str("avatar", manager.Data().Avatar.Name).
		Msg("connected; type a message and press enter, ctrl-c to quit")

	go readInput(ctx, manager, log)

	<-ctx.Done()
	log.Info().Msg("shutting down")
}

func openSession(ctx context.Context, client *avatarsdk.Client, cfg *config.Config) (*session.Manager, error) {
	if cfg.SessionID != "" {
		return client.GetSession(ctx, cfg.SessionID)
	}
	return client.CreateSession(ctx, avatarsdk.CreateSessionParams{AvatarID: cfg.AvatarID})
}

// subscribeAll prints every event kind the session can emit.
func subscribeAll(manager *session.Manager, log zerolog.Logger) {
	kinds := []session.Kind{
		session.KindSessionStarted,
		session.KindSessionEnded,
		session.KindVideoTrack,
		session.KindAudioTrack,
		session.KindAvatarStatus,
		session.KindAvatarInput,
		session.KindAvatarResponse,
		session.KindAvatarError,
		session.KindConnectionQuality,
		session.KindAudioBlocked,
		session.KindAudioUnblocked,
	}
	for _, kind := range kinds {
		manager.On(kind, func(event session.Event) {
			log.Info().
				Str("kind", string(event.Kind)).
				Time("emitted_at", event.EmittedAt).
				Interface("payload", event.Payload).
				Msg("event")
		})
	}
}

func readInput(ctx context.Context, manager *session.Manager, log zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		if err := manager.SendMessage(ctx, text); err != nil {
			log.Error().Err(err).Msg("failed to send message")
		}
	}
}

func loadEnvFiles() {
	paths := []string{".env", "../.env", "../../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
