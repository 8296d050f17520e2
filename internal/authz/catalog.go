package authz

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mediadesk/mediadesk/internal/models"
)

// Built-in role names. The catalog is immutable at runtime and seeded into
// the database by Sync.
const (
	RoleSuperAdmin = "Super Admin"
	RoleAdmin      = "Admin"
	RoleBuyer      = "Buyer"
	RoleEditor     = "Editor"
	RoleViewer     = "Viewer"
)

// DefaultRule is one (resource type, action) pair a role allows by default.
type DefaultRule struct {
	Resource ResourceType
	Action   Action
}

// RoleDefinition describes a built-in role and its default allow rules.
type RoleDefinition struct {
	ID          string
	Name        string
	Description string
	Defaults    []DefaultRule
}

// Catalog returns the built-in role definitions. Super Admin carries no
// default rules because the resolver short-circuits for it.
func Catalog() []RoleDefinition {
	return []RoleDefinition{
		{
			ID:          "super-admin",
			Name:        RoleSuperAdmin,
			Description: "Unrestricted access to every resource and action",
		},
		{
			ID:          "admin",
			Name:        RoleAdmin,
			Description: "Full default access across folders, requests and media",
			Defaults:    allRules(),
		},
		{
			ID:          "buyer",
			Name:        RoleBuyer,
			Description: "Creates and manages file requests",
			Defaults: []DefaultRule{
				{ResourceFolder, ActionView},
				{ResourceFileRequest, ActionView},
				{ResourceFileRequest, ActionCreate},
				{ResourceFileRequest, ActionEdit},
				{ResourceMediaFile, ActionView},
			},
		},
		{
			ID:          "editor",
			Name:        RoleEditor,
			Description: "Uploads and edits media against open requests",
			Defaults: []DefaultRule{
				{ResourceFileRequest, ActionView},
				{ResourceFileRequest, ActionEdit},
				{ResourceMediaFile, ActionView},
				{ResourceMediaFile, ActionCreate},
				{ResourceMediaFile, ActionEdit},
			},
		},
		{
			ID:          "viewer",
			Name:        RoleViewer,
			Description: "Read-only access",
			Defaults: []DefaultRule{
				{ResourceFolder, ActionView},
				{ResourceFileRequest, ActionView},
				{ResourceMediaFile, ActionView},
			},
		},
	}
}

func allRules() []DefaultRule {
	var rules []DefaultRule
	for _, rt := range ResourceTypes() {
		for _, action := range Actions() {
			rules = append(rules, DefaultRule{Resource: rt, Action: action})
		}
	}
	return rules
}

// Sync persists the built-in role catalog and its default permission rules,
// upserting so deployments pick up catalog changes on restart.
func Sync(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return errors.New("authz: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	tx := db.WithContext(ctx)
	for _, def := range Catalog() {
		role := models.Role{
			BaseModel:   models.BaseModel{ID: def.ID},
			Name:        def.Name,
			Description: def.Description,
			IsSystem:    true,
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "description", "is_system"}),
		}).Create(&role).Error; err != nil {
			return fmt.Errorf("authz: sync role %s: %w", def.Name, err)
		}

		for _, rule := range def.Defaults {
			record := models.RoleDefaultPermission{
				RoleID:       def.ID,
				ResourceType: string(rule.Resource),
				Action:       string(rule.Action),
				Disposition:  string(DispositionAllow),
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "role_id"}, {Name: "resource_type"}, {Name: "action"}},
				DoUpdates: clause.AssignmentColumns([]string{"disposition"}),
			}).Create(&record).Error; err != nil {
				return fmt.Errorf("authz: sync defaults for %s: %w", def.Name, err)
			}
		}
	}

	return nil
}
