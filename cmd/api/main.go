package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"conclave/backend/internal/auth"
	"conclave/backend/internal/config"
	"conclave/backend/internal/db"
	"conclave/backend/internal/http/handlers"
	"conclave/backend/internal/http/middleware"
	"conclave/backend/internal/integrations"
	"conclave/backend/internal/integrations/razorpay"
	"conclave/backend/internal/logging"
	"conclave/backend/internal/mailer"
	"conclave/backend/internal/payments"
	"conclave/backend/internal/rate"
	"conclave/backend/internal/registration"
	"conclave/backend/internal/repository"
	"conclave/backend/internal/visitors"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := cfg.ValidateAPI(); err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, cleanup, err := logging.New(cfg.Logging, "api")
	if err != nil {
		log.Fatalf("log error: %v", err)
	}
	defer func() {
		_ = cleanup()
	}()
	slog.SetDefault(logger)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db error", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := repository.New(pool)

	var sender mailer.Sender = mailer.LogSender{Logger: logger}
	if cfg.Mail.Host != "" {
		smtpSender, err := mailer.NewSMTPSender(cfg.Mail)
		if err != nil {
			logger.Error("mail error", "error", err)
			os.Exit(1)
		}
		sender = smtpSender
	} else {
		logger.Warn("smtp not configured, emails will only be logged")
	}
	mail := mailer.New(sender, mailer.Options{
		EventName:     cfg.EventName,
		AppURL:        cfg.AppURL,
		SigningSecret: cfg.Ticketing.SigningSecret,
	}, logger)

	gateway := razorpay.NewClient(razorpay.Config{
		BaseURL:   cfg.Razorpay.BaseURL,
		KeyID:     cfg.Razorpay.KeyID,
		KeySecret: cfg.Razorpay.KeySecret,
	}, nil, logger)

	var media handlers.MediaStore
	if cfg.S3.Bucket != "" {
		s3Client, err := integrations.NewS3(ctx, cfg.S3)
		if err != nil {
			logger.Error("s3 error", "error", err)
			os.Exit(1)
		}
		media = s3Client
	}

	h := handlers.New(handlers.Deps{
		Store:         repo,
		Content:       repo,
		Registrations: registration.NewService(repo, logger),
		Payments: payments.NewService(repo, gateway, mail, payments.Options{
			KeySecret:     cfg.Razorpay.KeySecret,
			WebhookSecret: cfg.Razorpay.WebhookSecretOrKey(),
			AppURL:        cfg.AppURL,
			SigningSecret: cfg.Ticketing.SigningSecret,
		}, logger),
		Visitors: visitors.NewTracker(repo),
		Media:    media,
	}, cfg, logger)

	creds := auth.AdminCredentials{
		Email:        cfg.Admin.Email,
		Password:     cfg.Admin.Password,
		PasswordHash: cfg.Admin.PasswordHash,
	}
	publicWrites := middleware.RateLimit(rate.NewKeyLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(corsMiddleware(cfg.CORSOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := repo.Ping(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Get("/registrations", h.ListRegistrationsByEmail)
	r.Post("/payments/verify", h.VerifyPayment)
	r.Post("/payments/webhook", h.PaymentWebhook)
	r.Get("/tickets/verify/{ticketId}", h.VerifyTicket)
	r.Get("/sponsors", h.ListSponsors)
	r.Get("/speakers", h.ListSpeakers)
	r.Get("/banners", h.ListBanners)
	r.Get("/team", h.ListTeam)
	r.Get("/settings", h.PublicSettings)
	r.Post("/admin/login", h.AdminLogin)

	r.Group(func(r chi.Router) {
		r.Use(publicWrites)
		r.Post("/registrations", h.CreateRegistration)
		r.Post("/payments/create-order", h.CreatePaymentOrder)
		r.Post("/sponsor-requests", h.CreateSponsorRequest)
		r.Post("/track-visitor", h.TrackVisitor)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AdminAuth(creds, cfg.Admin.SessionSecret, logger))
		r.Get("/admin/stats", h.AdminDashboardStats)
		r.Get("/admin/registrations", h.AdminListRegistrations)
		r.Get("/admin/registrations/export", h.AdminExportRegistrations)
		r.Get("/admin/registrations/{id}", h.AdminGetRegistration)
		r.Patch("/admin/registrations/{id}", h.AdminUpdateRegistration)
		r.Post("/admin/registrations/{id}/cancel", h.AdminCancelRegistration)
		r.Post("/admin/registrations/{id}/resend-ticket", h.AdminResendTicket)
		r.Get("/admin/payments", h.AdminListPayments)
		r.Post("/admin/verify-payment-v2", h.AdminVerifyPayment)
		r.Post("/admin/tickets/check-in", h.CheckInTicket)
		r.Get("/admin/settings", h.AdminGetSettings)
		r.Put("/admin/settings", h.AdminUpdateSettings)
		r.Post("/admin/uploads", h.AdminUploadImage)
		r.Get("/admin/visitors/stats", h.AdminVisitorStats)

		r.Get("/admin/sponsors", h.AdminListSponsors)
		r.Post("/admin/sponsors", h.AdminCreateSponsor)
		r.Put("/admin/sponsors/{id}", h.AdminUpdateSponsor)
		r.Delete("/admin/sponsors/{id}", h.AdminDeleteSponsor)
		r.Get("/admin/sponsor-requests", h.AdminListSponsorRequests)
		r.Post("/admin/sponsor-requests/{id}/approve", h.AdminApproveSponsorRequest)
		r.Post("/admin/sponsor-requests/{id}/reject", h.AdminRejectSponsorRequest)

		r.Get("/admin/speakers", h.AdminListSpeakers)
		r.Post("/admin/speakers", h.AdminCreateSpeaker)
		r.Put("/admin/speakers/{id}", h.AdminUpdateSpeaker)
		r.Delete("/admin/speakers/{id}", h.AdminDeleteSpeaker)

		r.Get("/admin/banners", h.AdminListBanners)
		r.Post("/admin/banners", h.AdminCreateBanner)
		r.Put("/admin/banners/{id}", h.AdminUpdateBanner)
		r.Delete("/admin/banners/{id}", h.AdminDeleteBanner)

		r.Get("/admin/team", h.AdminListTeamMembers)
		r.Post("/admin/team", h.AdminCreateTeamMember)
		r.Put("/admin/team/{id}", h.AdminUpdateTeamMember)
		r.Delete("/admin/team/{id}", h.AdminDeleteTeamMember)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api_listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutdown", "service", "api")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		allowed[strings.TrimRight(origin, "/")] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case len(allowed) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "":
				if _, ok := allowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-Admin-Email,X-Admin-Password")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
