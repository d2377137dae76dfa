package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	httpapi "github.com/singstage/singstage/internal/api/http"
	"github.com/singstage/singstage/internal/config"
	"github.com/singstage/singstage/internal/repository"
	"github.com/singstage/singstage/internal/repository/model"
	"github.com/singstage/singstage/internal/search"
	"github.com/singstage/singstage/internal/service"
	"github.com/singstage/singstage/internal/store"
	"github.com/singstage/singstage/lib/logger/sl"
)

func main() {
	_ = godotenv.Load(".env")

	cfg := config.MustLoad()
	log := setupLogger(cfg.Env)

	st := setupStore(cfg, log)
	roomRepo, scoreRepo := setupRepositories(cfg, log)

	roomService := service.NewRoomService(st, roomRepo, cfg.Rooms.MaxAge, log)
	scoreService := service.NewScoreService(scoreRepo, st, log)
	youtube := search.NewYouTubeClient(cfg.YouTube.APIKey, log)

	roomController := httpapi.NewRoomController(roomService, st, log)
	scoreController := httpapi.NewScoreController(scoreService)
	searchController := httpapi.NewSearchController(youtube)

	router := httpapi.SetupRouter(roomController, scoreController, searchController)

	log.Info("starting application", slog.String("addr", cfg.HTTP.Address))
	if err := router.Run(cfg.HTTP.Address); err != nil {
		log.Error("http server stopped", sl.Err(err))
		os.Exit(1)
	}
}

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}

// setupStore connects the shared realtime store. Local runs without Redis
// fall back to the in-process store.
func setupStore(cfg *config.Config, log *slog.Logger) store.Store {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		if cfg.Env == envLocal {
			log.Warn("redis unavailable, using in-memory store", sl.Err(err))
			return store.NewInMemoryStore()
		}
		log.Error("failed to connect redis", sl.Err(err))
		os.Exit(1)
	}

	log.Info("connected to redis", slog.String("addr", cfg.Redis.Address))
	return store.NewRedisStore(rdb, "singstage")
}

func setupRepositories(cfg *config.Config, log *slog.Logger) (repository.RoomRepository, repository.ScoreRepository) {
	if cfg.Database.DSN == "" {
		log.Warn("database dsn is empty, using in-memory repositories")
		return repository.NewInMemoryRoomRepository(), repository.NewInMemoryScoreRepository()
	}

	db, err := connectDatabase(cfg.Database)
	if err != nil {
		log.Error("failed to connect database", sl.Err(err))
		os.Exit(1)
	}

	return repository.NewPostgresRoomRepository(db), repository.NewPostgresScoreRepository(db)
}

func connectDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	db.AutoMigrate(&model.Room{}, &model.Score{})

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return db, nil
}
