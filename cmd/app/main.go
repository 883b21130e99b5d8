package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	cfgpkg "github.com/local/pagedesk/internal/config"
	"github.com/local/pagedesk/internal/converter"
	logpkg "github.com/local/pagedesk/internal/logger"
	"github.com/local/pagedesk/internal/metrics"
	"github.com/local/pagedesk/internal/queue"
	"github.com/local/pagedesk/internal/save"
	"github.com/local/pagedesk/internal/store"
	"github.com/local/pagedesk/internal/thumbnail"
	"github.com/local/pagedesk/internal/web"
	"github.com/local/pagedesk/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg := cfgpkg.FromEnv()

	// Init logging
	_ = logpkg.Init(logpkg.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logpkg.Close()

	// Queue
	rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rq.Close()

	// Session store
	ss, err := store.NewSessionStore(cfg.Session.RedisURL, cfg.Session.TTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init session store")
	}
	defer ss.Close()

	// Document converter (optional collaborator)
	var conv *converter.LibreOffice
	if cfg.Converter.Enabled {
		conv = converter.New(cfg.Converter.MaxWorkers, cfg.Converter.Timeout)
	}

	// Native save destination (available only when a bucket is configured)
	var provider save.Provider
	if cfg.Save.S3Bucket != "" {
		provider = save.NewS3Provider(cfg.Save.S3Bucket, cfg.Save.S3Prefix, cfg.Save.S3Password)
	}

	api := web.New(web.Dependencies{
		Store:     ss,
		Queue:     rq,
		Converter: conv,
		Provider:  provider,
		Upload:    cfg.Upload,
	})
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)
	mux.Handle("/metrics", metrics.Handler())

	// Thumbnail worker (optional)
	runWorker := os.Getenv("RUN_WORKER")
	if runWorker == "" || runWorker == "1" || runWorker == "true" {
		wk := worker.New(rq, ss, thumbnail.Options{
			DPI:         cfg.Thumbnail.DPI,
			JPEGQuality: cfg.Thumbnail.JPEGQuality,
		})
		wk.Start()
		defer wk.Stop(context.Background())
	}

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux}

	go func() {
		log.Info().Msgf("HTTP server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("shutdown complete")
}
