package authz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mediadesk/mediadesk/internal/models"
	"github.com/mediadesk/mediadesk/pkg/logger"
	"github.com/mediadesk/mediadesk/pkg/metrics"
)

// Resolver decides whether a user may perform an action on a resource. It is
// stateless between calls: every decision is computed from fresh store reads
// under a fixed precedence:
//
//  1. explicit deny
//  2. global Super Admin
//  3. folder-scoped delegated admin
//  4. explicit allow
//  5. role-based default
//  6. deny
//
// Decisions never surface errors. Any store failure during evaluation is
// logged and resolved to deny.
type Resolver struct {
	db      *gorm.DB
	folders FolderResolver
	log     *zap.Logger
	now     func() time.Time
}

// ResolverOption customises Resolver behaviour.
type ResolverOption func(*Resolver)

// WithClock injects a custom clock primarily for testing.
func WithClock(clock func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if clock != nil {
			r.now = clock
		}
	}
}

// WithLogger overrides the logger used for fail-secure reporting.
func WithLogger(log *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		if log != nil {
			r.log = log
		}
	}
}

// NewResolver constructs a Resolver backed by the provided database handle.
func NewResolver(db *gorm.DB, folders FolderResolver, opts ...ResolverOption) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("authz: resolver: db is required")
	}
	if folders == nil {
		return nil, errors.New("authz: resolver: folder resolver is required")
	}

	resolver := &Resolver{
		db:      db,
		folders: folders,
		log:     logger.WithModule("authz"),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(resolver)
	}

	return resolver, nil
}

// Check reports whether the user may perform the action on the resource.
// resourceID is optional; nil means the check targets the resource type as a
// whole. Internal errors resolve to false.
func (r *Resolver) Check(ctx context.Context, userID string, resource ResourceType, action Action, resourceID *string) bool {
	allowed, err := r.evaluate(ctx, userID, resource, action, resourceID)
	if err != nil {
		r.log.Error("permission evaluation failed; denying",
			zap.String("user_id", userID),
			zap.String("resource_type", string(resource)),
			zap.String("action", string(action)),
			zap.Stringp("resource_id", resourceID),
			zap.Error(err),
		)
		metrics.PermissionChecks.WithLabelValues(string(resource), string(action), "error").Inc()
		return false
	}

	result := "deny"
	if allowed {
		result = "allow"
	}
	metrics.PermissionChecks.WithLabelValues(string(resource), string(action), result).Inc()
	return allowed
}

// CheckMany evaluates several actions against the same resource. Each action
// is resolved independently; a deny on one does not short-circuit the others.
func (r *Resolver) CheckMany(ctx context.Context, userID string, resource ResourceType, requested []Action, resourceID *string) map[Action]bool {
	results := make(map[Action]bool, len(requested))
	for _, action := range requested {
		results[action] = r.Check(ctx, userID, resource, action, resourceID)
	}
	return results
}

// IsSuperAdmin reports whether the user holds an active global Super Admin
// assignment. Exposed for the UI projection; errors resolve to false.
func (r *Resolver) IsSuperAdmin(ctx context.Context, userID string) bool {
	ok, err := r.hasSuperAdmin(ctx, strings.TrimSpace(userID), r.now().UTC())
	if err != nil {
		r.log.Error("super admin lookup failed; denying", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return ok
}

func (r *Resolver) evaluate(ctx context.Context, userID string, resource ResourceType, action Action, resourceID *string) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, errors.New("authz: user id is required")
	}
	if _, err := ParseResourceType(string(resource)); err != nil {
		return false, err
	}
	if _, err := ParseAction(string(action)); err != nil {
		return false, err
	}
	if resourceID != nil && strings.TrimSpace(*resourceID) == "" {
		resourceID = nil
	}

	now := r.now().UTC()

	// Steps 1 and 4 read the same rows; fetch once.
	explicit, err := r.explicitPermissions(ctx, userID, resource, action, resourceID, now)
	if err != nil {
		return false, err
	}

	hasAllow := false
	for _, row := range explicit {
		switch Disposition(row.Disposition) {
		case DispositionDeny:
			return false, nil
		case DispositionAllow:
			hasAllow = true
		}
	}

	superAdmin, err := r.hasSuperAdmin(ctx, userID, now)
	if err != nil {
		return false, err
	}
	if superAdmin {
		return true, nil
	}

	owningFolder := ""
	if resourceID != nil {
		owningFolder, err = r.folders.OwningFolder(ctx, resource, *resourceID)
		if err != nil {
			return false, err
		}
	}

	if owningFolder != "" {
		admin, err := r.folderAdmin(ctx, userID, owningFolder, now)
		if err != nil {
			return false, err
		}
		if admin != nil && folderAdminAllows(admin, action) {
			return true, nil
		}
	}

	if hasAllow {
		return true, nil
	}

	return r.roleDefaultAllows(ctx, userID, resource, action, resourceID, owningFolder, now)
}

func (r *Resolver) explicitPermissions(ctx context.Context, userID string, resource ResourceType, action Action, resourceID *string, now time.Time) ([]models.Permission, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND resource_type = ? AND action = ? AND is_active = ?", userID, string(resource), string(action), true).
		Where("expires_at IS NULL OR expires_at > ?", now)

	if resourceID != nil {
		query = query.Where("resource_id IS NULL OR resource_id = ?", *resourceID)
	} else {
		query = query.Where("resource_id IS NULL")
	}

	var rows []models.Permission
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("authz: load explicit permissions: %w", err)
	}
	return rows, nil
}

func (r *Resolver) hasSuperAdmin(ctx context.Context, userID string, now time.Time) (bool, error) {
	if userID == "" {
		return false, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.UserRole{}).
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ? AND user_roles.is_active = ?", userID, true).
		Where("user_roles.scope_type = ?", models.ScopeGlobal).
		Where("user_roles.expires_at IS NULL OR user_roles.expires_at > ?", now).
		Where("roles.name = ?", RoleSuperAdmin).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("authz: super admin lookup: %w", err)
	}
	return count > 0, nil
}

func (r *Resolver) folderAdmin(ctx context.Context, userID, folderID string, now time.Time) (*models.FolderAdmin, error) {
	var admin models.FolderAdmin
	err := r.db.WithContext(ctx).
		Where("folder_id = ? AND user_id = ? AND is_active = ?", folderID, userID, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("authz: folder admin lookup: %w", err)
	}
	return &admin, nil
}

type scopedRoleGrant struct {
	ScopeType string
	ScopeID   *string
}

func (r *Resolver) roleDefaultAllows(ctx context.Context, userID string, resource ResourceType, action Action, resourceID *string, owningFolder string, now time.Time) (bool, error) {
	var grants []scopedRoleGrant
	err := r.db.WithContext(ctx).
		Table("user_roles").
		Select("user_roles.scope_type, user_roles.scope_id").
		Joins("JOIN role_default_permissions ON role_default_permissions.role_id = user_roles.role_id").
		Where("user_roles.user_id = ? AND user_roles.is_active = ?", userID, true).
		Where("user_roles.expires_at IS NULL OR user_roles.expires_at > ?", now).
		Where("role_default_permissions.resource_type = ?", string(resource)).
		Where("role_default_permissions.action = ?", string(action)).
		Where("role_default_permissions.disposition = ?", string(DispositionAllow)).
		Scan(&grants).Error
	if err != nil {
		return false, fmt.Errorf("authz: role default lookup: %w", err)
	}

	for _, grant := range grants {
		if r.scopeMatches(grant, resource, resourceID, owningFolder) {
			return true, nil
		}
	}
	return false, nil
}

// scopeMatches applies a scoped role grant to the target resource. Folder
// scopes match the resource's owning folder; request scopes match the file
// request itself and do not cascade to media inside it.
func (r *Resolver) scopeMatches(grant scopedRoleGrant, resource ResourceType, resourceID *string, owningFolder string) bool {
	switch grant.ScopeType {
	case "", models.ScopeGlobal:
		return true
	case models.ScopeFolder:
		return grant.ScopeID != nil && owningFolder != "" && *grant.ScopeID == owningFolder
	case models.ScopeRequest:
		return grant.ScopeID != nil && resourceID != nil &&
			resource == ResourceFileRequest && *grant.ScopeID == *resourceID
	default:
		return false
	}
}
