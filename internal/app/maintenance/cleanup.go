package maintenance

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ecohubkosova/ecohub/pkg/logger"
)

const (
	defaultAuditRetentionDays = 180
	defaultInviteSpec         = "@hourly"
	defaultAuditSpec          = "@daily"
)

// InvitationExpirer moves pending invitations past their expiry to EXPIRED.
type InvitationExpirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// AuditPruner deletes audit entries older than a retention window.
type AuditPruner interface {
	CleanupOlderThan(ctx context.Context, retentionDays int) (int64, error)
}

// Cleaner coordinates background maintenance: sweeping expired invitations and
// pruning stale audit logs.
type Cleaner struct {
	invites   InvitationExpirer
	audit     AuditPruner
	cron      *cron.Cron
	log       *zap.Logger
	retention int

	inviteSchedule string
	auditSchedule  string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained before cleanup.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithInviteSchedule overrides the cron specification for the invitation sweep.
func WithInviteSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.inviteSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention enforcement.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner. A nil dependency skips the corresponding job.
func NewCleaner(invites InvitationExpirer, audit AuditPruner, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		invites:        invites,
		audit:          audit,
		retention:      defaultAuditRetentionDays,
		inviteSchedule: defaultInviteSpec,
		auditSchedule:  defaultAuditSpec,
		log:            logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the jobs with the scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.invites == nil && c.audit == nil {
		return nil
	}

	if c.invites != nil {
		if _, err := c.cron.AddFunc(c.inviteSchedule, c.expireInvitations); err != nil {
			return err
		}
	}

	if c.audit != nil {
		if _, err := c.cron.AddFunc(c.auditSchedule, c.pruneAudit); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once running jobs finish.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every configured job sequentially and reports all failures together.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.invites != nil {
		if _, err := c.invites.ExpireStale(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil {
		if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) expireInvitations() {
	expired, err := c.invites.ExpireStale(context.Background())
	if err != nil {
		c.log.Warn("invitation sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		c.log.Info("expired stale invitations", zap.Int64("count", expired))
	}
}

func (c *Cleaner) pruneAudit() {
	if _, err := c.audit.CleanupOlderThan(context.Background(), c.retention); err != nil {
		c.log.Warn("audit cleanup failed", zap.Error(err))
	}
}
