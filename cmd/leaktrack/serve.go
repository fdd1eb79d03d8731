package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/leaktrack-backend/internal/config"
	httpapi "github.com/tbourn/leaktrack-backend/internal/http"
	"github.com/tbourn/leaktrack-backend/internal/observability"
	"github.com/tbourn/leaktrack-backend/internal/services"
	"github.com/tbourn/leaktrack-backend/internal/storage"
)

const (
	shutdownGrace = 15 * time.Second
	purgeInterval = time.Hour
)

func setupServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer closeDB(db)

	photos, err := newPhotoStore(cfg.Photos)
	if err != nil {
		return fmt.Errorf("photo store: %w", err)
	}
	if photos == nil {
		log.Warn().Msg("photo store disabled; repair photos will be dropped")
	}

	idem := &services.IdempotencyService{DB: db, TTL: cfg.IdempotencyTTL}
	go purgeIdempotency(ctx, idem, purgeInterval)

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{DB: db, Photos: photos, Idempotency: idem}, cfg)

	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("api", cfg.APIBasePath).
			Bool("dev_auth", cfg.Auth.DevMode()).
			Str("photo_store", cfg.Photos.Store).
			Str("version", version).
			Msg("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// newPhotoStore builds the configured store. It returns a nil interface
// (never a typed nil) when no local directory is configured.
func newPhotoStore(pc config.PhotoConfig) (storage.PhotoStore, error) {
	switch pc.Store {
	case config.PhotoStoreSFTP:
		s, err := storage.NewSFTPStore(storage.SFTPConfig{
			Host:           pc.SFTP.Host,
			Port:           pc.SFTP.Port,
			User:           pc.SFTP.User,
			Password:       pc.SFTP.Password,
			KeyFile:        pc.SFTP.KeyFile,
			KnownHostsFile: pc.SFTP.KnownHostsFile,
			BasePath:       pc.SFTP.BasePath,
			BaseURL:        pc.SFTP.PublicBaseURL,
			Timeout:        pc.SFTP.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		if pc.Dir == "" {
			return nil, nil
		}
		s, err := storage.NewLocalStore(pc.Dir, pc.PublicBaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

// purgeIdempotency deletes expired idempotency keys until ctx ends.
func purgeIdempotency(ctx context.Context, idem *services.IdempotencyService, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := idem.Purge(ctx, now.UTC())
			if err != nil {
				log.Warn().Err(err).Msg("idempotency purge failed")
				continue
			}
			if n > 0 {
				log.Debug().Int64("deleted", n).Msg("idempotency keys purged")
			}
		}
	}
}
