package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mediadesk/mediadesk/internal/services"
	"github.com/mediadesk/mediadesk/pkg/logger"
)

const (
	defaultAuditRetentionDays = 365
	defaultExpirySpec         = "@hourly"
	defaultAuditSpec          = "@daily"
)

// Cleaner coordinates background maintenance: deactivating expired
// permissions, role assignments and folder delegations, and pruning old audit
// entries. Expiry sweeps are housekeeping; read paths filter on expiry
// themselves.
type Cleaner struct {
	permissions  *services.PermissionService
	roles        *services.RoleService
	folderAdmins *services.FolderAdminService
	audit        *services.AuditService
	cron         *cron.Cron
	now          func() time.Time
	log          *zap.Logger
	retention    int

	expirySchedule string
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

// WithNow overrides the clock used for scheduling and cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
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

// WithExpirySchedule overrides the cron specification for expiry sweeps.
func WithExpirySchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.expirySchedule = spec
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

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency
// results in the corresponding cleanup job being skipped.
func NewCleaner(permissions *services.PermissionService, roles *services.RoleService, folderAdmins *services.FolderAdminService, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		permissions:    permissions,
		roles:          roles,
		folderAdmins:   folderAdmins,
		audit:          audit,
		now:            time.Now,
		retention:      defaultAuditRetentionDays,
		expirySchedule: defaultExpirySpec,
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

// Start registers cleanup jobs with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.permissions != nil || c.roles != nil || c.folderAdmins != nil {
		if _, err := c.cron.AddFunc(c.expirySchedule, func() {
			if err := c.sweepExpired(context.Background()); err != nil {
				c.log.Warn("expiry sweep failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			if _, err := c.audit.CleanupOlderThan(context.Background(), c.retention); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily
// used in tests and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if err := c.sweepExpired(ctx); err != nil {
		errs = multierr.Append(errs, err)
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

func (c *Cleaner) sweepExpired(ctx context.Context) error {
	var errs error

	if c.permissions != nil {
		if _, err := c.permissions.DeactivateExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if c.roles != nil {
		if _, err := c.roles.DeactivateExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	if c.folderAdmins != nil {
		if _, err := c.folderAdmins.DeactivateExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
