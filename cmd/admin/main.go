// Command admin runs the display endpoint of a room: it answers microphone
// offers from phone clients over the shared store and logs incoming audio
// streams. Playback is left to whatever consumes the tracks.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pion/webrtc/v3"
	"github.com/redis/go-redis/v9"

	"github.com/singstage/singstage/internal/config"
	"github.com/singstage/singstage/internal/relay"
	"github.com/singstage/singstage/internal/rtc"
	"github.com/singstage/singstage/internal/store"
	"github.com/singstage/singstage/lib/logger/sl"
)

func main() {
	var roomID string
	var configPath string
	flag.StringVar(&roomID, "room", "", "room id to attach to")
	flag.StringVar(&configPath, "config", "config/local.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load(".env")

	cfg := config.MustLoadPath(configPath)
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	if roomID == "" {
		log.Error("room id is required, pass -room")
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Error("failed to connect redis", sl.Err(err))
		os.Exit(1)
	}

	st := store.NewRedisStore(rdb, "singstage")
	rly := relay.New(st, log)
	factory := rtc.NewPionFactory(cfg.WebRTC.STUNServers, log)

	manager := rtc.NewAdminManager(roomID, rly, st, factory, &logSink{log: log}, log)
	manager.SetOnUserStreamCallback(func(userID string, track *webrtc.TrackRemote, event rtc.StreamEvent) {
		log.Info("user stream", "user_id", userID, "event", string(event))
	})

	ctx := context.Background()
	if err := manager.Initialize(ctx); err != nil {
		log.Error("failed to initialize", sl.Err(err))
		os.Exit(1)
	}
	log.Info("admin endpoint ready", "room_id", roomID)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	manager.Close()
	log.Info("admin endpoint stopped")
}

// logSink records attach/detach/volume without producing sound. It stands in
// until a real playback path consumes the remote tracks.
type logSink struct {
	log *slog.Logger
}

func (s *logSink) Attach(userID string, track *webrtc.TrackRemote) {
	s.log.Info("audio attached", "user_id", userID, "codec", track.Codec().MimeType)
}

func (s *logSink) Detach(userID string) {
	s.log.Info("audio detached", "user_id", userID)
}

func (s *logSink) SetVolume(userID string, level float64) {
	s.log.Info("volume set", "user_id", userID, "level", level)
}
