package main

import (
	"context"
	"errors"
	stdlog "log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	slogchi "github.com/samber/slog-chi"

	chatsHandler "github.com/kgellert/portal-chat/internal/chats/handler"
	chatsRepo "github.com/kgellert/portal-chat/internal/chats/repo"
	appConfig "github.com/kgellert/portal-chat/internal/config"
	configHandler "github.com/kgellert/portal-chat/internal/config/handler"
	"github.com/kgellert/portal-chat/internal/lib/logger/handlers/slogpretty"
	"github.com/kgellert/portal-chat/internal/lib/logger/sl"
	"github.com/kgellert/portal-chat/internal/lib/validate"
	messagesRepo "github.com/kgellert/portal-chat/internal/messages/repo"
	participantsRepo "github.com/kgellert/portal-chat/internal/participants/repo"
	"github.com/kgellert/portal-chat/internal/relay"
	"github.com/kgellert/portal-chat/internal/storage/migrations"
	storage "github.com/kgellert/portal-chat/internal/storage/postgres"
	uploadsHandler "github.com/kgellert/portal-chat/internal/uploads/handler"
	uploadsService "github.com/kgellert/portal-chat/internal/uploads/service"
	ws "github.com/kgellert/portal-chat/internal/ws/handler"
	"github.com/kgellert/portal-chat/internal/ws/hub"
)

const (
	envLocal = "local"
	envDev   = "dev"
)

func main() {
	if err := godotenv.Load("infra/.env"); err != nil {
		stdlog.Println("No .env file found, skipping...")
	}

	cfg := appConfig.MustLoad()

	log := setupLogger(cfg.Env)
	log.Info("starting portal-chat",
		slog.String("env", cfg.Env),
		slog.Int64("admin_id", cfg.Chat.AdminID),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := storage.New(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Migrate {
		if err := migrations.Up(db.DB); err != nil {
			log.Error("failed to apply migrations", sl.Err(err))
			os.Exit(1)
		}
		log.Info("migrations applied")
	}

	h := hub.NewHub(log)
	go h.Run(ctx)

	validator := validate.New()

	participants := participantsRepo.New(db)
	msgs := messagesRepo.New(db)
	roster := chatsRepo.New(db)

	rl := relay.New(msgs, participants, h, validator, relay.Options{
		DefaultAvatar:    cfg.Chat.DefaultAvatar,
		MaxMessageLength: cfg.Chat.MaxMessageLength,
	}, log)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Uploads.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.Uploads.AccessKey, cfg.Uploads.SecretKey, ""),
		),
	)
	if err != nil {
		log.Error("failed to load aws config", sl.Err(err))
		os.Exit(1)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Uploads.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Uploads.Endpoint)
		}
		o.UsePathStyle = true
	})

	uploadService := uploadsService.New(cfg.Uploads.Bucket, s3Client, cfg.Chat.DefaultAvatar)

	ch := chatsHandler.New(roster, msgs, participants, validator, cfg.Chat.DefaultAvatar, log)
	cfh := configHandler.New(*cfg, log)
	uh := uploadsHandler.New(uploadService, log)

	wsHandler := ws.WSHandler(h, rl, validator, ws.Options{
		ReadDeadline:  cfg.WS.ReadDeadline,
		PingPeriod:    cfg.WS.PingPeriod,
		WriteWait:     cfg.WS.WriteWait,
		SendBuffer:    cfg.WS.SendBuffer,
		SendRate:      cfg.Chat.SendRate,
		SendBurst:     cfg.Chat.SendBurst,
		EnforceSender: cfg.Chat.EnforceSender,
	}, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(slogchi.New(log))
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/ws", wsHandler)

	router.Route("/api/chat", func(r chi.Router) {
		r.Get("/applicants", ch.GetApplicants())
		r.Get("/history", ch.GetHistory())
		r.Get("/config", cfh.GetConfig())
		r.Get("/stats", ws.StatsHandler(h, log))
	})

	// unprefixed paths kept for clients of the first portal build
	router.Get("/applicants", ch.GetApplicants())
	router.Get("/history", ch.GetHistory())

	router.Get("/uploads/*", uh.ServeObject())

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shut down server", sl.Err(err))
	}

	log.Info("server stopped")
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return setupPrettySlog()
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
}
