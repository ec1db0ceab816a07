package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ecohubkosova/ecohub/internal/api"
	"github.com/ecohubkosova/ecohub/internal/app"
	"github.com/ecohubkosova/ecohub/internal/app/maintenance"
	iauth "github.com/ecohubkosova/ecohub/internal/auth"
	"github.com/ecohubkosova/ecohub/internal/database"
	"github.com/ecohubkosova/ecohub/internal/middleware"
	"github.com/ecohubkosova/ecohub/internal/monitoring"
	"github.com/ecohubkosova/ecohub/internal/monitoring/checks"
	"github.com/ecohubkosova/ecohub/internal/services"
	"github.com/ecohubkosova/ecohub/pkg/logger"
	"github.com/ecohubkosova/ecohub/pkg/mail"
)

const redisPingTimeout = 3 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Mailer    mail.Mailer
	Cleaner   *maintenance.Cleaner
	RateStore middleware.RateStore
	Router    *gin.Engine
}

// bootstrapRuntime initialises the database, optional Redis, mail delivery, maintenance jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Redis.Enabled {
		client := redis.NewClient(cfg.Cache.RedisOptions())
		pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
		err = client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable; rate limiting falls back to memory", zap.Error(err))
			_ = client.Close()
		} else {
			stack.Redis = client
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	stack.RateStore = middleware.NewMemoryRateStore()
	if stack.Redis != nil {
		stack.RateStore = middleware.NewRedisRateStore(stack.Redis, "ecohub")
	}

	stack.Mailer, err = mail.NewMailer(cfg.Email.MailSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	if cfg.Maintenance.Enabled {
		auditSvc, err := services.NewAuditService(stack.DB)
		if err != nil {
			return nil, fmt.Errorf("initialise audit service: %w", err)
		}
		inviteSvc, err := services.NewInvitationService(stack.DB, nil)
		if err != nil {
			return nil, fmt.Errorf("initialise invitation service: %w", err)
		}

		stack.Cleaner = maintenance.NewCleaner(inviteSvc, auditSvc,
			maintenance.WithInviteSchedule(cfg.Maintenance.InviteSchedule),
			maintenance.WithAuditSchedule(cfg.Maintenance.AuditSchedule),
			maintenance.WithAuditRetentionDays(cfg.Maintenance.AuditRetentionDays),
		)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	var readiness []monitoring.Check
	if cfg.Cache.Redis.Enabled {
		readiness = append(readiness, checks.Redis(stack.Redis, cfg.Cache.Redis.Timeout))
	}

	stack.Router, err = api.NewRouter(stack.DB, jwtSvc, cfg, stack.RateStore, stack.Mailer, readiness...)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Warn("redis shutdown", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		closeDatabase(db, logger.WithModule("database"))
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	driver := strings.TrimSpace(dbCfg.Driver)
	if driver == "" {
		driver = "sqlite"
	}
	logger.WithModule("database").Info("database connected", zap.String("driver", driver))

	return db, nil
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
