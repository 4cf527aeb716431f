package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/jinzhu/copier"

	"github.com/financialhub/login-core/pkg/config"
	"github.com/financialhub/login-core/pkg/device"
	"github.com/financialhub/login-core/pkg/directory"
	"github.com/financialhub/login-core/pkg/idp"
	"github.com/financialhub/login-core/pkg/loginflow"
	"github.com/financialhub/login-core/pkg/loginflow/api"
	"github.com/financialhub/login-core/pkg/notification"
	"github.com/financialhub/login-core/pkg/ratelimit"
	"github.com/financialhub/login-core/pkg/session"
	"github.com/financialhub/login-core/pkg/totp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed loading config", "err", err)
		os.Exit(-1)
	}

	directoryRepo := directory.NewInMemDirectoryRepository(directory.DemoAccounts())

	provider := idp.Provider{
		ClientID:       cfg.Idp.ClientID,
		ClientSecret:   cfg.Idp.ClientSecret,
		OAuthServerURL: cfg.Idp.OAuthServerURL,
		ProfilesURL:    cfg.Idp.ProfilesURL,
		RedirectURI:    cfg.Idp.RedirectURI,
	}
	gateway := idp.NewService(provider,
		idp.WithPolicy(idp.IdentityVerificationPolicy{DemoDomains: cfg.Idp.DemoDomainList()}),
	)

	totpOpts := []totp.ServiceOption{totp.WithChallengeTTL(cfg.Login.ChallengeTTL)}
	if cfg.Login.SMSDemoCodeEnabled {
		totpOpts = append(totpOpts, totp.WithSMSDemoCode(cfg.Login.SMSDemoCode))
	}
	challenges := totp.NewService(totp.NewInMemChallengeStore(), totpOpts...)

	managerOpts := []notification.NotificationManagerOption{
		notification.WithTwofaCodeTemplate(),
	}
	if cfg.Email.Password != "" {
		var smtpConfig notification.SMTPConfig
		copier.Copy(&smtpConfig, &cfg.Email)

		emailNotifier, err := notification.NewEmailNotifier(smtpConfig)
		if err != nil {
			slog.Error("Failed creating email notifier", "err", err)
			os.Exit(-1)
		}
		dialCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := emailNotifier.VerifyConnection(dialCtx); err != nil {
			slog.Warn("Mail relay unreachable at startup, passcode email may fail", "err", err)
		}
		cancel()
		managerOpts = append(managerOpts, notification.WithNotifier(notification.EmailSystem, emailNotifier))
	} else {
		slog.Warn("SMTP password not configured, passcode email delivery disabled")
		managerOpts = append(managerOpts, notification.WithNotifier(notification.EmailSystem, &notification.MockNotifier{}))
	}
	manager, err := notification.NewNotificationManagerWithOptions(managerOpts...)
	if err != nil {
		slog.Error("Failed creating notification manager", "err", err)
		os.Exit(-1)
	}

	var deliveryLog *notification.DeliveryLog
	if cfg.Login.DeliveryLogPath != "" {
		deliveryLog, err = notification.NewDeliveryLog(cfg.Login.DeliveryLogPath)
		if err != nil {
			slog.Error("Failed opening delivery log", "path", cfg.Login.DeliveryLogPath, "err", err)
			os.Exit(-1)
		}
	}
	dispatcher := notification.NewDispatcher(manager, deliveryLog)

	registrationRepo, err := device.NewFileRegistrationRepository(cfg.Device.StorePath)
	if err != nil {
		slog.Error("Failed opening device store", "path", cfg.Device.StorePath, "err", err)
		os.Exit(-1)
	}
	registrations := device.NewRegistrationService(registrationRepo)

	cookies := session.NewCookieSetter(cfg.Session.CookieHttpOnly, cfg.Session.CookieSecure)
	sessionOpts := []session.Option{
		session.WithEphemeralTTL(cfg.Session.EphemeralTTL),
		session.WithTrustedTTL(cfg.Session.TrustedTTL),
		session.WithDirectTTL(cfg.Session.DirectTTL),
	}
	if cfg.Session.JwtSecret != "" {
		sessionOpts = append(sessionOpts,
			session.WithTokenGenerator(session.NewJwtTokenGenerator(cfg.Session.JwtSecret, "login-core", "financialhub")),
		)
	}
	sessions := session.NewService(cookies, registrations, sessionOpts...)

	flows := loginflow.NewService(directoryRepo, gateway, challenges, dispatcher, sessions,
		loginflow.WithDemoAccounts(cfg.Login.DemoAccountList()...),
	)

	attemptLimiter := ratelimit.NewLimiter(cfg.Login.AttemptBurst, cfg.Login.AttemptsPerMinute/60.0, time.Hour)

	loginHandle := api.NewHandle(
		api.WithFlowService(flows),
		api.WithSessionService(sessions),
		api.WithGateway(gateway),
		api.WithAttemptLimiter(attemptLimiter),
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.PlainText(w, r, http.StatusText(http.StatusOK))
	})
	r.Route("/api", func(r chi.Router) {
		r.Use(ratelimit.Middleware(attemptLimiter))
		loginHandle.RegisterRoutes(r)
	})

	if cfg.Session.JwtSecret != "" {
		tokenAuth := jwtauth.New("HS256", []byte(cfg.Session.JwtSecret), nil)
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(tokenAuth))
			r.Use(jwtauth.Authenticator(tokenAuth))
			r.Get("/me", func(w http.ResponseWriter, r *http.Request) {
				_, claims, err := jwtauth.FromContext(r.Context())
				if err != nil {
					http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
					return
				}
				subject, _ := claims["sub"].(string)
				account, err := directoryRepo.Resolve(r.Context(), subject)
				if err != nil {
					slog.Error("Failed getting me", "err", err)
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				render.JSON(w, r, account)
			})
		})
	}

	server := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: r,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Login server started", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "err", err)
			os.Exit(-1)
		}
	}()

	<-shutdownCtx.Done()
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", "err", err)
	}
}
