package karma

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/nasermirzaei89/env"
	"github.com/nasermirzaei89/karma/accounts"
	"github.com/nasermirzaei89/karma/contents"
	"github.com/nasermirzaei89/karma/db/sqlite3"
	"github.com/nasermirzaei89/karma/discuss"
	"github.com/nasermirzaei89/karma/leaderboard"
	"github.com/nasermirzaei89/karma/metrics"
	"github.com/nasermirzaei89/karma/reactions"
	"github.com/nasermirzaei89/karma/server"
	"github.com/nasermirzaei89/karma/web"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultDSN                 = "file:karma.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	defaultSessionName         = "sessionid"
	defaultLeaderboardCacheTTL = 30 * time.Second
	sessionMaxAge              = 30 * 24 * 60 * 60
)

type App struct {
	server  *server.Server
	handler *web.Handler
	db      *sql.DB
}

func NewApp(ctx context.Context) (*App, error) {
	db, err := sqlite3.NewDB(ctx, env.GetString("DB_DSN", defaultDSN))
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	err = sqlite3.MigrateUp(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	handler, err := NewHandler(ctx, db)
	if err != nil {
		return nil, err
	}

	app := &App{
		server:  newServer(),
		handler: handler,
		db:      db,
	}

	return app, nil
}

// NewHandler builds the API handler over a migrated database.
func NewHandler(ctx context.Context, db *sql.DB) (*web.Handler, error) {
	userRepo := sqlite3.NewUserRepository(db)
	sessionRepo := sqlite3.NewSessionRepository(db)
	postRepo := sqlite3.NewPostRepository(db)
	commentRepo := sqlite3.NewCommentRepository(db)
	likeRepo := sqlite3.NewLikeRepository(db)

	accountsSvc := accounts.NewService(userRepo, sessionRepo)

	err := accountsSvc.LoadUsernames(ctx, 10_000, 0.01)
	if err != nil {
		return nil, fmt.Errorf("failed to load usernames: %w", err)
	}

	purged, err := accountsSvc.PurgeExpiredSessions(ctx)
	if err != nil {
		return nil, err
	}

	if purged > 0 {
		slog.InfoContext(ctx, "purged expired sessions", "count", purged)
	}

	cacheTTL, err := time.ParseDuration(env.GetString("LEADERBOARD_CACHE_TTL", defaultLeaderboardCacheTTL.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse leaderboard cache ttl: %w", err)
	}

	sessionKey := []byte(env.GetString("SESSION_KEY", ""))
	if len(sessionKey) == 0 {
		slog.WarnContext(ctx, "SESSION_KEY is not set, sessions will not survive a restart")

		sessionKey = securecookie.GenerateRandomKey(32)
	}

	cookieStore := sessions.NewCookieStore(sessionKey)
	cookieStore.Options.HttpOnly = true
	cookieStore.Options.MaxAge = sessionMaxAge
	cookieStore.Options.Secure = env.GetBool("SESSION_SECURE", false)
	cookieStore.Options.SameSite = http.SameSiteLaxMode

	var (
		httpMetrics    *metrics.HTTPCollector
		metricsHandler http.Handler
	)

	if env.GetBool("METRICS_ENABLED", false) {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

		httpMetrics = metrics.NewHTTP(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	return web.NewHandler(
		accountsSvc,
		contents.NewService(postRepo),
		discuss.NewService(commentRepo),
		reactions.NewService(likeRepo),
		leaderboard.NewService(likeRepo, cacheTTL),
		cookieStore,
		env.GetString("SESSION_NAME", defaultSessionName),
		httpMetrics,
		metricsHandler,
	), nil
}

func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	defer func() {
		if app.db != nil {
			err := app.db.Close()
			if err != nil {
				slog.ErrorContext(ctx, "failed to close database", "error", err)
			}
		}
	}()

	err := app.server.Run(ctx, app.handler)
	if err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}

	return nil
}

func newServer() *server.Server {
	return &server.Server{
		Port: env.GetString("PORT", server.DefaultPort),
		Host: env.GetString("HOST", ""),
		TLS: server.ServerTLS{
			Enabled: env.GetBool("TLS_ENABLED", false),
			Mode:    env.GetString("TLS_MODE", server.DefaultTLSMode),
			AutoCert: &server.ServerTLSAutoCert{
				CacheDir: env.GetString("TLS_AUTOCERT_CACHE_DIR", "./cert-cache"),
				Domains:  env.GetStringSlice("TLS_AUTOCERT_DOMAINS", []string{}),
				Email:    env.GetString("TLS_AUTOCERT_EMAIL", ""),
			},
			CertFile: env.GetString("TLS_CERT_FILE", ""),
			KeyFile:  env.GetString("TLS_KEY_FILE", ""),
		},
	}
}
