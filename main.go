// Entry point of the ForMangaReaders auth service. It loads configuration,
// connects to Postgres, runs migrations, wires the services and handlers,
// and serves the HTTP API until a shutdown signal arrives.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/user/formanga-auth/apperror"
	"github.com/user/formanga-auth/auth"
	"github.com/user/formanga-auth/config"
	"github.com/user/formanga-auth/db"
	"github.com/user/formanga-auth/i18n"
	"github.com/user/formanga-auth/mail"
	"github.com/user/formanga-auth/oauth"
	"github.com/user/formanga-auth/users"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found or error loading it: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	pool, err := db.NewPool(cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(cfg.Database, logger); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}

	translator, err := i18n.New()
	if err != nil {
		logger.Fatal("failed to load message catalogs", zap.Error(err))
	}

	mailSender := mail.NewSMTPSender(cfg.SMTP, logger)
	mailer := mail.NewService(mailSender, cfg.Server.FrontendURL)

	repo := users.NewPostgresRepository(pool, cfg.OAuth.StrictLinking, logger)
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)

	authService := auth.NewService(repo, tokens, mailer, translator, logger)
	authHandlers := auth.NewHandlers(authService)

	oauthProviders := oauth.DefaultProviders(cfg.OAuth, cfg.Server.BackendURL)
	oauthService := oauth.NewService(repo, tokens, oauthProviders, logger)
	oauthHandlers := oauth.NewHandlers(oauthService, cfg.Server.FrontendURL)

	r := chi.NewRouter()

	// Chi requires all middleware to be registered before any routes.
	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// Panics become a 500 in the standard error envelope instead of an
	// empty response.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered", zap.Any("panic", rvr))
					auth.WriteError(ww, r, apperror.NewInternalError("internal server error", nil))
				}
			}()
			next.ServeHTTP(ww, r)
		})
	})

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Server.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":%q}`, cfg.Server.AppName)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandlers.HandleRegister())
		r.Post("/login", authHandlers.HandleLogin())
		r.Post("/verify-email", authHandlers.HandleVerifyEmail())
		r.Post("/resend-verification", authHandlers.HandleResendVerification())
		r.Post("/forgot-password", authHandlers.HandleForgotPassword())
		r.Post("/reset-password", authHandlers.HandleResetPassword())

		r.Get("/{provider}", oauthHandlers.HandleAuthorize())
		r.Get("/{provider}/callback", oauthHandlers.HandleCallback())

		// Routes below require a valid bearer token.
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(authService))

			r.Get("/me", authHandlers.HandleMe())
			r.Put("/me/locale", authHandlers.HandleUpdateLocale())
			r.Post("/logout", authHandlers.HandleLogout())
		})
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server shutdown failed", zap.Error(err))
	}
	logger.Info("server stopped gracefully")
}
