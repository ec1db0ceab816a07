package api

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/ecohubkosova/ecohub/internal/app"
	iauth "github.com/ecohubkosova/ecohub/internal/auth"
	"github.com/ecohubkosova/ecohub/internal/handlers"
	"github.com/ecohubkosova/ecohub/internal/middleware"
	"github.com/ecohubkosova/ecohub/internal/monitoring"
	"github.com/ecohubkosova/ecohub/internal/monitoring/checks"
	"github.com/ecohubkosova/ecohub/internal/services"
	"github.com/ecohubkosova/ecohub/pkg/mail"
)

// NewRouter builds the Gin engine, wires middleware and registers the organization routes.
// rateStore and mailer may be nil; requests are then limited in memory and invitations are
// not emailed. Extra readiness checks run alongside the database probe.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, cfg *app.Config, rateStore middleware.RateStore, mailer mail.Mailer, readiness ...monitoring.Check) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if rateStore == nil {
		rateStore = middleware.NewMemoryRateStore()
	}

	svc, err := newServiceSet(db, cfg, mailer)
	if err != nil {
		return nil, err
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))
	if cfg.RateLimit.Requests > 0 {
		window := cfg.RateLimit.Window
		if window <= 0 {
			window = time.Minute
		}
		r.Use(middleware.RateLimit(rateStore, cfg.RateLimit.Requests, window))
	}

	health := monitoring.NewHealthManager(checks.Database(db, 2*time.Second))
	health.RegisterLiveness(monitoring.NewCheck("process", func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: monitoring.StatusUp}
	}))
	for _, check := range readiness {
		health.RegisterReadiness(check)
	}
	registerHealthRoutes(r, health)

	invitationHandler := handlers.NewInvitationHandler(svc.invitations, svc.guard)

	// Public: holding the token is the credential.
	r.GET("/api/invitations/lookup", invitationHandler.Lookup)

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.Auth(jwt, svc.users))

	registerOrganizationRoutes(api, handlers.NewOrganizationHandler(svc.organizations), handlers.NewMemberHandler(svc.memberships, svc.guard))
	registerInvitationRoutes(api, invitationHandler)
	registerAuditRoutes(api, handlers.NewAuditHandler(svc.audit, svc.guard))

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

type serviceSet struct {
	audit         *services.AuditService
	users         *services.UserService
	guard         *services.AuthorizationGuard
	organizations *services.OrganizationService
	memberships   *services.MembershipService
	invitations   *services.InvitationService
}

func newServiceSet(db *gorm.DB, cfg *app.Config, mailer mail.Mailer) (*serviceSet, error) {
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}
	users, err := services.NewUserService(db)
	if err != nil {
		return nil, err
	}
	guard, err := services.NewAuthorizationGuard(db)
	if err != nil {
		return nil, err
	}
	organizations, err := services.NewOrganizationService(db, audit)
	if err != nil {
		return nil, err
	}
	memberships, err := services.NewMembershipService(db, audit)
	if err != nil {
		return nil, err
	}

	opts := []services.InvitationOption{
		services.WithInvitationAudit(audit),
		services.WithInvitationBaseURL(cfg.Invites.BaseURL),
		services.WithInvitationTTL(cfg.Invites.TTL),
	}
	if cfg.Invites.TokenBytes > 0 {
		opts = append(opts, services.WithInvitationTokenBytes(cfg.Invites.TokenBytes))
	}
	invitations, err := services.NewInvitationService(db, mailer, opts...)
	if err != nil {
		return nil, err
	}

	return &serviceSet{
		audit:         audit,
		users:         users,
		guard:         guard,
		organizations: organizations,
		memberships:   memberships,
		invitations:   invitations,
	}, nil
}
