package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	api "meetpanel/internal/api/http"
	ws "meetpanel/internal/api/ws"
	"meetpanel/internal/config"
	"meetpanel/internal/metrics"
	"meetpanel/internal/panel/posters"
	"meetpanel/internal/panel/upload"
	"meetpanel/internal/pkg/database"
	"meetpanel/internal/pkg/logger"
	"meetpanel/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "text").WithError(err).Fatal("load config")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var archive api.Archive
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("connect database")
		}
		defer db.Close()
		repo := &repository.MessageRepository{DB: db}
		if err := repo.EnsureSchema(ctx); err != nil {
			log.WithError(err).Fatal("prepare message archive")
		}
		archive = repo
		log.Info("message archive enabled")
		if cfg.ArchiveRetentionHours > 0 {
			go repo.RunRetention(ctx,
				time.Duration(cfg.ArchiveRetentionHours)*time.Hour,
				time.Duration(cfg.ArchivePurgeEveryMin)*time.Minute,
				log.WithField("component", "archive"))
		}
	}

	collector := metrics.New()
	hub := ws.NewHub(log.WithField("component", "ws"))
	panels := api.NewRegistry(&api.Builder{
		Posters:            posters.NewClient(cfg.PosterSourceURL, &http.Client{Timeout: 30 * time.Second}),
		Uploader:           upload.NewHTTPUploader(cfg.UploadURL, &http.Client{Timeout: time.Duration(cfg.UploadTimeoutSec) * time.Second}),
		Archive:            archive,
		Hub:                hub,
		Metrics:            collector,
		Log:                log,
		PreviewMaxEdge:     cfg.PreviewMaxEdge,
		PreviewMaxPixels:   cfg.PreviewMaxPixels,
		PageSize:           cfg.PosterPageSize,
		PollsEnabled:       cfg.PollsEnabled,
		UploadErrorsInChat: cfg.UploadErrorsInChat,
	})
	defer panels.Shutdown()

	r := mux.NewRouter()
	h := api.NewHandlers(panels, hub, archive, []byte(cfg.MeetingTokenSecret), log)
	api.RegisterRoutes(r, h, collector.Handler())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", cfg.ListenAddr).Info("panel service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("serve")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
}
