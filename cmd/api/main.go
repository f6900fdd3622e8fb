package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brightdesk/classportal/internal/domain"
	"github.com/brightdesk/classportal/internal/extract"
	"github.com/brightdesk/classportal/internal/handlers"
	"github.com/brightdesk/classportal/internal/notify"
	"github.com/brightdesk/classportal/internal/ratelimit"
	"github.com/brightdesk/classportal/internal/repository"
	"github.com/brightdesk/classportal/internal/service"
	"github.com/brightdesk/classportal/internal/session"
	"github.com/brightdesk/classportal/pkg/config"
	"github.com/brightdesk/classportal/pkg/database"
	"github.com/brightdesk/classportal/pkg/events"
	"github.com/brightdesk/classportal/pkg/logger"
	mw "github.com/brightdesk/classportal/pkg/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()

	// Postgres
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Redis (rate limiting + sessions)
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Error("Invalid Redis URL", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.Password != "" {
		redisOpts.Password = cfg.Redis.Password
	}
	redisOpts.DB = cfg.Redis.DB
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()

	// Event bus
	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	// Repositories
	userRepo := repository.NewUserRepository(pool)
	otpRepo := repository.NewOTPRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)

	// Collaborators
	limiter := ratelimit.NewRedisLimiter(rdb)
	sessions := session.NewRedisStore(rdb, cfg.Auth.SessionTTL)

	var dispatcher notify.Dispatcher
	if cfg.Email.DevMode {
		dispatcher = notify.NewDevDispatcher()
	} else {
		sms := notify.NewSMSGateway(cfg.SMS.GatewayURL, cfg.SMS.APIKey, cfg.SMS.Sender, cfg.SMS.Timeout)
		dispatcher = notify.NewMailerSend(cfg.Email.MailerSendKey, cfg.Email.FromName, cfg.Email.FromEmail, sms)
	}

	// Services
	invites := service.NewInviteService(cfg, eventBus)
	authService := service.NewAuthService(
		userRepo, otpRepo, tokenRepo,
		limiter, sessions, dispatcher, invites, eventBus, cfg,
	)
	extractor := extract.New(cfg.Extract, eventBus)

	// Handlers
	h := handlers.New(authService, invites, userRepo, extractor, cfg)

	// Router
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Logging)
	r.Use(mw.Health)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/otp/request", h.RequestOTP)
		r.Post("/otp/verify", h.VerifyOTP)
		r.Get("/me", h.Me)
		r.Post("/logout", h.Logout)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireRole(""))
			r.Post("/revoke", h.RevokeTokens)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.RequireRole(domain.RoleSystemAdmin))
		r.Get("/users", h.ListUsers)
		r.Get("/users/{id}", h.GetUser)
		r.Patch("/users/{id}", h.UpdateUser)
		r.Post("/users/{id}/revoke", h.RevokeUserTokens)
		r.Post("/invites", h.CreateInvite)
	})

	r.Route("/pages", func(r chi.Router) {
		r.Use(h.RequireRole(domain.RolePageAdmin))
		r.Post("/extract", h.ExtractContent)
	})

	// Housekeeping: drop stale OTP rows once an hour.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n, err := otpRepo.DeleteExpired(ctx); err != nil {
				logger.Warn("OTP housekeeping failed", "error", err)
			} else if n > 0 {
				logger.Info("Removed stale OTP codes", "count", n)
			}
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Shutdown error", "error", err)
		}
	}()

	logger.Info("Starting classportal API", "port", cfg.Server.Port)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
}
