package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"vidtube/auth"
	"vidtube/comments"
	"vidtube/config"
	"vidtube/db"
	"vidtube/httputil"
	"vidtube/likes"
	"vidtube/media"
	"vidtube/playlists"
	"vidtube/subscriptions"
	"vidtube/tweets"
	"vidtube/users"
	"vidtube/videos"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	cdb, err := openDatabase(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer cdb.Close()

	if err := db.RunMigrations(cdb.DB, cdb.Dialect); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	minioClient, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.AccessKey, cfg.Minio.SecretKey, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to minio")
	}

	ctx := context.Background()
	exists, err := minioClient.BucketExists(ctx, cfg.Minio.Bucket)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to check bucket")
	}
	if !exists {
		if err := minioClient.MakeBucket(ctx, cfg.Minio.Bucket, minio.MakeBucketOptions{}); err != nil {
			log.Fatal().Err(err).Msg("failed to create bucket")
		}
		log.Info().Str("bucket", cfg.Minio.Bucket).Msg("created bucket")
	}

	store := &media.Store{
		Client:        minioClient,
		Bucket:        cfg.Minio.Bucket,
		PublicBaseURL: cfg.Minio.PublicBaseURL,
		Timeout:       cfg.Minio.UploadTimeout,
	}

	tokens := auth.Tokens{
		AccessSecret:  cfg.Auth.AccessSecret,
		RefreshSecret: cfg.Auth.RefreshSecret,
		AccessTTL:     cfg.Auth.AccessTTL,
		RefreshTTL:    cfg.Auth.RefreshTTL,
	}
	authMW := &auth.Middleware{Tokens: tokens}

	usersH := &users.Handler{DB: cdb, Tokens: tokens, Media: store}
	videosH := &videos.Handler{DB: cdb, Media: store}
	likesH := &likes.Handler{DB: cdb}
	commentsH := &comments.Handler{DB: cdb}
	playlistsH := &playlists.Handler{DB: cdb}
	tweetsH := &tweets.Handler{DB: cdb}
	subsH := &subscriptions.Handler{DB: cdb}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteData(w, 200, map[string]string{"status": "ok"}, "healthy")
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/users/register", usersH.HandleRegister)
		r.Post("/users/login", usersH.HandleLogin)
		r.Post("/users/refresh-token", usersH.HandleRefreshToken)
		r.Get("/videos/{videoId}/comments", commentsH.HandleListForVideo)
		r.Get("/users/{userId}/playlists", playlistsH.HandleListForUser)
		r.Get("/users/{userId}/tweets", tweetsH.HandleListForUser)

		// Optional auth: personalization fields only.
		r.Group(func(r chi.Router) {
			r.Use(authMW.Optional)
			r.Get("/users/channel/{userName}", usersH.HandleGetChannelProfile)
			r.Get("/videos", videosH.HandleGetAllVideos)
			r.Get("/videos/{videoId}", videosH.HandleGetVideo)
		})

		r.Group(func(r chi.Router) {
			r.Use(authMW.Require)

			r.Post("/users/logout", usersH.HandleLogout)
			r.Patch("/users/password", usersH.HandleChangePassword)
			r.Get("/users/me", usersH.HandleGetCurrentUser)
			r.Get("/users/watch-history", usersH.HandleGetWatchHistory)

			r.Post("/videos", videosH.HandlePublish)
			r.Patch("/videos/{videoId}", videosH.HandleUpdate)
			r.Delete("/videos/{videoId}", videosH.HandleDelete)
			r.Patch("/videos/{videoId}/toggle-publish", videosH.HandleTogglePublish)

			r.Post("/likes/video/{videoId}", likesH.HandleToggleVideoLike)
			r.Post("/likes/comment/{commentId}", likesH.HandleToggleCommentLike)
			r.Post("/likes/tweet/{tweetId}", likesH.HandleToggleTweetLike)
			r.Get("/likes/videos", likesH.HandleGetLikedVideos)

			r.Post("/videos/{videoId}/comments", commentsH.HandleCreate)
			r.Patch("/comments/{commentId}", commentsH.HandleUpdate)
			r.Delete("/comments/{commentId}", commentsH.HandleDelete)

			r.Post("/playlists", playlistsH.HandleCreate)
			r.Get("/playlists/{playlistId}", playlistsH.HandleGet)
			r.Patch("/playlists/{playlistId}", playlistsH.HandleUpdate)
			r.Delete("/playlists/{playlistId}", playlistsH.HandleDelete)
			r.Patch("/playlists/{playlistId}/videos/{videoId}", playlistsH.HandleAddVideo)
			r.Delete("/playlists/{playlistId}/videos/{videoId}", playlistsH.HandleRemoveVideo)

			r.Post("/tweets", tweetsH.HandleCreate)
			r.Delete("/tweets/{tweetId}", tweetsH.HandleDelete)

			r.Post("/subscriptions/{channelId}", subsH.HandleToggle)
		})
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: r}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("vidtube API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	log.Info().Msg("server shut down")
}

// openDatabase connects to Postgres when DATABASE_URL is set, otherwise to a
// local SQLite file with the pragmas a single-writer deployment needs.
func openDatabase(cfg config.DBConfig) (*db.CompatDB, error) {
	if cfg.URL != "" {
		raw, err := sql.Open("pgx", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		raw.SetMaxOpenConns(16)
		raw.SetMaxIdleConns(4)
		if err := raw.Ping(); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		return db.NewCompatDB(raw, db.DialectPostgres), nil
	}

	raw, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Single connection: prevents concurrent write conflicts
	raw.SetMaxOpenConns(1)
	raw.SetMaxIdleConns(1)
	raw.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := raw.Exec(pragma); err != nil {
			return nil, fmt.Errorf("pragma %s: %w", pragma, err)
		}
	}
	return db.NewCompatDB(raw, db.DialectSQLite), nil
}
