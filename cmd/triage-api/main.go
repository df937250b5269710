package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/caremesh-ai/triage/pkg/clinical"
	"github.com/caremesh-ai/triage/pkg/common/config"
	"github.com/caremesh-ai/triage/pkg/common/database"
	"github.com/caremesh-ai/triage/pkg/common/kafka"
	"github.com/caremesh-ai/triage/pkg/common/logger"
	"github.com/caremesh-ai/triage/pkg/gateway/auth"
	"github.com/caremesh-ai/triage/pkg/gateway/middleware"
	"github.com/caremesh-ai/triage/pkg/gateway/routes"
	"github.com/caremesh-ai/triage/pkg/httpapi"
	"github.com/caremesh-ai/triage/pkg/intake"
	"github.com/caremesh-ai/triage/pkg/ragindex"
	"github.com/caremesh-ai/triage/pkg/redaction"
	"github.com/caremesh-ai/triage/pkg/redflag"
	"github.com/caremesh-ai/triage/pkg/report"
	"github.com/caremesh-ai/triage/pkg/review"
	"github.com/caremesh-ai/triage/pkg/session"
)

func main() {
	logger.Init()
	cfg := config.Load()

	// Rule tables fall back to built-in defaults when no path is set.
	redactionRules, err := redaction.LoadRules(cfg.RedactionRulesPath)
	if err != nil {
		logger.Log.WithError(err).Warn("Redaction rules unreadable, using defaults")
	}
	filter, err := redaction.NewFilter(redactionRules, cfg.AgeRedactionThreshold)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to build redaction filter")
	}

	redFlagRules, err := redflag.LoadRules(cfg.RedFlagRulesPath)
	if err != nil {
		logger.Log.WithError(err).Warn("Red-flag rules unreadable, using defaults")
	}
	classifier := redflag.NewClassifier(redFlagRules)

	playbook, err := clinical.LoadPlaybook(cfg.PlaybookPath)
	if err != nil {
		logger.Log.WithError(err).Warn("Playbook unreadable, using defaults")
	}

	corpus, err := ragindex.LoadCorpus(cfg.GuidelinesPath)
	if err != nil {
		logger.Log.WithError(err).Warn("Guideline corpus unreadable, using defaults")
	}
	index := ragindex.New()
	index.Add(corpus.Documents...)
	logger.Log.WithField("documents", index.Len()).Info("Guideline index ready")

	store, err := session.NewStore(cfg)
	if err != nil {
		logger.Log.WithError(err).Fatal("Failed to initialize session store")
	}
	locks := session.NewLockRegistry()

	// Escalation events drive the review worker; conversational telemetry
	// goes on its own topic.
	escalationProducer := kafka.NewProducer(cfg.EscalationTopic)
	defer escalationProducer.Close()
	intakeProducer := kafka.NewProducer(cfg.IntakeTopic)
	defer intakeProducer.Close()

	events := kafka.NewRouter(escalationProducer).
		Route("intake-turn", intakeProducer).
		Route("recommendation", intakeProducer)

	var reviews *review.Repository
	if cfg.SessionBackend == "postgres" {
		if db, err := database.GetPostgres(); err == nil {
			reviews = review.NewRepository(db)
			if err := reviews.AutoMigrate(); err != nil {
				logger.Log.WithError(err).Warn("Review queue migration failed")
				reviews = nil
			}
		}
	}

	intakeAgent := intake.NewAgent(store, locks, filter, classifier, events)
	clinicalAgent := clinical.NewAgent(store, locks, filter, index, playbook, clinical.Options{
		TopK:    cfg.RetrievalTopK,
		Timeout: cfg.RecommendTimeout,
	}, events)
	reportSvc := report.NewService(store, locks, filter, classifier, report.NewLocalFileStore(cfg.ReportStorageRoot), events)

	// Router and middleware
	router := mux.NewRouter()
	router.Use(middleware.Recovery)
	router.Use(middleware.Logging)
	router.Use(middleware.CORS)
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))
	router.Use(middleware.RateLimit(cfg.GatewayRateLimitRPS, cfg.GatewayRateLimitBurst))

	handler := httpapi.NewHandler(intakeAgent, clinicalAgent, reportSvc, store, reviews)
	handler.Register(router)

	// Escalation routes get JWT protection when a secret is configured.
	var jwtManager *auth.JWTManager
	if cfg.JWTSecret != "" {
		manager, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTTTL)
		if err != nil {
			logger.Log.WithError(err).Fatal("Invalid JWT configuration")
		}
		jwtManager = manager

		reviewerRouter := router.NewRoute().Subrouter()
		reviewerRouter.Use(middleware.Authenticate(jwtManager))
		reviewerRouter.Use(middleware.RequireRole(auth.RoleReviewer))
		handler.RegisterReviewer(reviewerRouter)
		logger.Log.Info("Reviewer routes protected with JWT auth")
	} else {
		handler.RegisterReviewer(router)
		logger.Log.Warn("JWT_SECRET not set, reviewer routes are unprotected")
	}

	// Reviewer login: authorization-code flow against the identity provider,
	// local JWT on success.
	if oidc, err := auth.NewOIDCAuthenticator(cfg.OIDCIssuer, cfg.OIDCClientID, cfg.OIDCClientSecret, cfg.OIDCRedirectURL); err != nil {
		logger.Log.WithError(err).Warn("OIDC login not configured")
	} else if jwtManager == nil {
		logger.Log.Warn("OIDC configured without JWT_SECRET, login routes disabled")
	} else {
		routes.NewAuthHandler(oidc, jwtManager).Register(router)
		logger.Log.WithField("issuer", oidc.Issuer()).Info("OIDC login routes registered")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Log.WithFields(map[string]interface{}{
			"host": cfg.ServerHost,
			"port": cfg.ServerPort,
		}).Info("Triage API started")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down Triage API...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Error("Server forced to shutdown")
	}

	logger.Log.Info("Triage API stopped")
}
