// Command server runs the GenAI Studio HTTP API.
//
// @title                      GenAI Studio API
// @version                    1.0
// @description                Code, conversation, image and video generation with billing and a contact form.
// @BasePath                   /api
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/genai-studio/docs"
	"github.com/tbourn/genai-studio/internal/auth"
	"github.com/tbourn/genai-studio/internal/config"
	"github.com/tbourn/genai-studio/internal/gemini"
	httpapi "github.com/tbourn/genai-studio/internal/http"
	"github.com/tbourn/genai-studio/internal/imagegen"
	"github.com/tbourn/genai-studio/internal/mailer"
	"github.com/tbourn/genai-studio/internal/observability"
	"github.com/tbourn/genai-studio/internal/paypal"
	"github.com/tbourn/genai-studio/internal/repo"
	"github.com/tbourn/genai-studio/internal/services"
	"github.com/tbourn/genai-studio/internal/storage"
	"github.com/tbourn/genai-studio/internal/sysutil"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("fatal")
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(".env"); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, os.Stdout)
	gin.SetMode(cfg.GinMode)
	ver := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, ver)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(c); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// --- Infrastructure ---

	db, err := repo.Open(cfg.DB.Driver, cfg.DB.DSN, cfg.DB.MaxOpenConns)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info().Str("driver", cfg.DB.Driver).Msg("database ready")

	// --- Collaborators ---

	text, err := gemini.NewClient(ctx, cfg.Gemini.BaseURL, cfg.Gemini.APIKey, cfg.Gemini.Model, cfg.Gemini.Timeout)
	if err != nil {
		return fmt.Errorf("gemini: %w", err)
	}
	media := imagegen.NewProvider(cfg.Media.ImageBaseURL, cfg.Media.VideoBaseURL)

	var mirror services.AssetMirror
	if cfg.S3.Enabled {
		m, err := storage.NewMirror(storage.Config{
			Endpoint:      cfg.S3.Endpoint,
			Region:        cfg.S3.Region,
			AccessKey:     cfg.S3.AccessKey,
			SecretKey:     cfg.S3.SecretKey,
			Bucket:        cfg.S3.Bucket,
			PublicBaseURL: cfg.S3.PublicBaseURL,
			UsePathStyle:  cfg.S3.UsePathStyle,
			Prefix:        cfg.S3.Prefix,
		})
		if err != nil {
			return fmt.Errorf("s3 mirror: %w", err)
		}
		mirror = m
	}

	pay, err := paypal.NewClient(paypal.Config{
		BaseURL:      cfg.PayPal.BaseURL,
		ClientID:     cfg.PayPal.ClientID,
		ClientSecret: cfg.PayPal.ClientSecret,
		ReturnURL:    cfg.PayPal.ReturnURL,
		CancelURL:    cfg.PayPal.CancelURL,
		BrandName:    "GenAI Studio",
		Timeout:      cfg.PayPal.Timeout,
	})
	if err != nil {
		return fmt.Errorf("paypal: %w", err)
	}

	var mail services.Mailer = mailer.LogMailer{}
	if cfg.SMTP.Host != "" {
		sm, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		mail = sm
	}

	// --- Services ---

	users, err := services.NewUserService(db, cfg.UserCache.MaxBytes, cfg.UserCache.TTL)
	if err != nil {
		return fmt.Errorf("user cache: %w", err)
	}
	defer users.Close()

	gen := services.NewGenerationService(services.GenerationDeps{
		DB:             db,
		Users:          users,
		Text:           text,
		Images:         media,
		Videos:         media,
		Mirror:         mirror,
		Model:          cfg.Gemini.Model,
		ImageMaxAmount: cfg.Media.ImageMaxAmount,
	})
	contact := services.NewContactService(db, users, mail, cfg.SMTP.Recipient)
	billing := services.NewBillingService(db, users, pay, cfg.PayPal.Currency, cfg.IdempotencyTTL)

	if cfg.Retention.Enabled {
		go services.NewRetentionJob(db, cfg.Retention.Days).Start(log.Logger.WithContext(ctx), cfg.Retention.Interval)
	}

	// --- HTTP ---

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:         db,
		Users:      users,
		Auth:       auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.CookieName),
		Generation: gen,
		Contact:    contact,
		Billing:    billing,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", ver).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	return nil
}
