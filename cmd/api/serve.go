package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"taskflow-backend/internal/ai"
	"taskflow-backend/internal/auth"
	"taskflow-backend/internal/changefeed"
	"taskflow-backend/internal/config"
	"taskflow-backend/internal/tasks"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.JWT.Secret == "" {
		return errors.New("jwt.secret is required to serve (set JWT_SECRET)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	be, err := openBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer be.close()

	feed, err := openFeed(cfg, log)
	if err != nil {
		return err
	}
	defer feed.Close()

	view := tasks.NewView(be.store, log)
	if err := view.Refresh(ctx); err != nil {
		log.Warn("initial refresh failed", zap.Error(err))
	}

	unsubscribe, err := feed.Subscribe(func(ev changefeed.Event) {
		go func() {
			rctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = view.Refresh(rctx)
		}()
	})
	if err != nil {
		return err
	}
	defer unsubscribe()

	coord := tasks.NewCoordinator(be.store, view, log, tasks.WithPublisher(feed))
	editor := tasks.NewEditor(be.store, coord, log)

	var gen tasks.Generator
	if cfg.OpenAI.APIKey != "" {
		model, err := ai.NewOpenAIModel(ai.Config{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		})
		if err != nil {
			return err
		}
		gen = ai.New(model, log)
	} else {
		log.Warn("openai.api_key not set, generation disabled")
	}

	secret := []byte(cfg.JWT.Secret)
	sessions := auth.NewSessions(auth.DefaultSessionTTL)
	mw := auth.New(secret, sessions)

	r := mux.NewRouter()

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/auth/anonymous", auth.AnonymousHandler(secret, log)).Methods(http.MethodPost)
	r.HandleFunc("/auth/signin", auth.SignInHandler(secret, sessions, log)).Methods(http.MethodPost)

	api := r.NewRoute().Subrouter()
	api.Use(mw.Wrap)
	api.HandleFunc("/auth/me", auth.MeHandler()).Methods(http.MethodGet)
	api.HandleFunc("/auth/logout", auth.LogoutHandler(sessions)).Methods(http.MethodPost)

	h := &tasks.Handler{
		Store:     be.store,
		View:      view,
		Coord:     coord,
		Editor:    editor,
		Generator: gen,
		Events:    be.events,
		Log:       log.Named("http"),
	}
	h.Routes(api)

	c := cors.New(corsOptions(cfg))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server is running", zap.String("addr", cfg.Server.Addr), zap.String("store", cfg.Store.Backend))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openFeed(cfg *config.Config, log *zap.Logger) (changefeed.Feed, error) {
	if cfg.NATS.URL == "" {
		return changefeed.NewLocal(), nil
	}
	return changefeed.Connect(cfg.NATS.URL, cfg.NATS.Subject, log)
}

// corsOptions allows credentials only for configured origins. Without any,
// every origin may call the API but browsers send no cookies cross-site.
func corsOptions(cfg *config.Config) cors.Options {
	opts := cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Platform", "X-App-Version", "X-Session-Id"},
		AllowCredentials: true,
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
		opts.AllowCredentials = false
	}
	return opts
}
