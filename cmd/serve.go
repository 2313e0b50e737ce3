package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lostfound/pkg/backend"
	itemapi "lostfound/pkg/item/api"
	"lostfound/pkg/logger"
	"lostfound/pkg/media"
	"lostfound/pkg/middleware"
	"lostfound/pkg/profile"
	userapi "lostfound/pkg/user/api"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			log := logger.Run(cfg.LogLevel)
			defer log.Sync()

			return serve(cmd.Context(), cfg, log)
		},
	}
}

type handlers struct {
	items   *itemapi.ItemHandler
	users   *userapi.UserHandler
	profile *profile.Handler
	media   *media.Handler
}

func serve(ctx context.Context, cfg backend.Config, log *zap.SugaredLogger) error {
	b, err := backend.Open(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(context.Background()); err != nil {
			log.Errorf("serve: %v", err)
		}
	}()

	h := handlers{
		items:   itemapi.NewItemHandler(b.Items, b.Feed, b.Threads, b.Uploader, b.Writer),
		users:   userapi.NewUserHandler(b.Users, b.Sessions),
		profile: profile.NewProfileHandler(b.Profiles),
		media:   media.NewMediaHandler(b.Blobs),
	}
	r := newRouter(h)

	logMiddleware := middleware.NewLoggingMiddleware(log)
	r.Use(logMiddleware.SetupTracing)
	r.Use(logMiddleware.SetupLogging)
	r.Use(logMiddleware.AccessLog)

	auth := middleware.NewAuthMiddleware(b.Sessions, b.Users)
	r.Use(auth.Middleware)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.Bus.Run(gctx)
	})
	g.Go(func() error {
		log.Infof("serving at %s (public URL %s)", cfg.ListenAddr, cfg.PublicURL)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(h handlers) *mux.Router {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()

	// Items
	api.HandleFunc("/items", h.items.List).Methods("GET")
	api.HandleFunc("/items", middleware.RequireUser(h.items.Add)).Methods("POST")
	api.HandleFunc("/items/live", h.items.LiveItems).Methods("GET")
	api.HandleFunc("/item/{post_id}", h.items.Get).Methods("GET")
	api.HandleFunc("/user/{email}/items", h.items.GetByUser).Methods("GET")
	api.HandleFunc("/user/{email}/items/live", h.items.LiveUserItems).Methods("GET")

	// Comments
	api.HandleFunc("/item/{post_id}/comments", h.items.Comments).Methods("GET")
	api.HandleFunc("/item/{post_id}/comments", h.items.AddComment).Methods("POST")
	api.HandleFunc("/item/{post_id}/comments/live", h.items.LiveComments).Methods("GET")

	// User
	api.HandleFunc("/register", h.users.Register).Methods("POST")
	api.HandleFunc("/login", h.users.LogIn).Methods("POST")
	api.HandleFunc("/logout", h.users.LogOut).Methods("POST")
	api.HandleFunc("/profile", middleware.RequireUser(h.profile.Get)).Methods("GET")
	api.HandleFunc("/profile", middleware.RequireUser(h.profile.Update)).Methods("PUT")

	r.HandleFunc("/media/{path:.+}", h.media.Get).Methods("GET")

	return r
}
