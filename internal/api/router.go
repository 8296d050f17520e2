package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	iauth "github.com/mediadesk/mediadesk/internal/auth"
	"github.com/mediadesk/mediadesk/internal/authz"
	"github.com/mediadesk/mediadesk/internal/handlers"
	"github.com/mediadesk/mediadesk/internal/middleware"
	"github.com/mediadesk/mediadesk/internal/services"
)

// Deps bundles everything the router needs.
type Deps struct {
	DB             *gorm.DB
	JWT            *iauth.JWTService
	Resolver       *authz.Resolver
	Permissions    *services.PermissionService
	Roles          *services.RoleService
	FolderAdmins   *services.FolderAdminService
	AccessRequests *services.AccessRequestService
	UIPermissions  *services.UIPermissionService
	Audit          *services.AuditService
	Notifications  *services.NotificationService
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.JWT == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if deps.Resolver == nil {
		return nil, fmt.Errorf("permission resolver must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.NoRoute(middleware.NotFoundHandler)

	// Public endpoints
	healthHandler := handlers.NewHealthHandler(deps.DB)
	r.GET("/health", healthHandler.Check)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authHandler, err := handlers.NewAuthHandler(deps.DB, deps.JWT)
	if err != nil {
		return nil, err
	}
	r.POST("/api/auth/login", authHandler.Login)

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.Auth(deps.JWT))

	permHandler, err := handlers.NewPermissionHandler(deps.Permissions, deps.Resolver)
	if err != nil {
		return nil, err
	}
	perms := api.Group("/permissions")
	{
		perms.GET("/my", permHandler.MyPermissions)
		perms.POST("/check", permHandler.Check)
		perms.GET("/users/:id", middleware.RequireSuperAdmin(deps.Resolver), permHandler.UserPermissions)
		perms.POST("/grants", middleware.RequireSuperAdmin(deps.Resolver), permHandler.Grant)
		perms.POST("/revocations", middleware.RequireSuperAdmin(deps.Resolver), permHandler.Revoke)
	}

	roleHandler, err := handlers.NewRoleHandler(deps.Roles)
	if err != nil {
		return nil, err
	}
	roles := api.Group("/roles")
	{
		roles.GET("", roleHandler.ListRoles)
		roles.GET("/users/:id", middleware.RequireSuperAdmin(deps.Resolver), roleHandler.ListUserRoles)
		roles.POST("/assignments", middleware.RequireSuperAdmin(deps.Resolver), roleHandler.AssignRole)
		roles.POST("/removals", middleware.RequireSuperAdmin(deps.Resolver), roleHandler.RemoveRole)
	}

	folderAdminHandler, err := handlers.NewFolderAdminHandler(deps.FolderAdmins)
	if err != nil {
		return nil, err
	}
	folders := api.Group("/folders")
	{
		folders.GET("/:id/admins",
			middleware.RequirePermission(deps.Resolver, authz.ResourceFolder, authz.ActionView, "id"),
			folderAdminHandler.ListFolderAdmins)
		folders.POST("/:id/admins",
			middleware.RequirePermission(deps.Resolver, authz.ResourceFolder, authz.ActionAssign, "id"),
			folderAdminHandler.AddFolderAdmin)
		folders.DELETE("/:id/admins/:userId",
			middleware.RequirePermission(deps.Resolver, authz.ResourceFolder, authz.ActionUnassign, "id"),
			folderAdminHandler.RemoveFolderAdmin)
	}

	requestHandler, err := handlers.NewAccessRequestHandler(deps.AccessRequests)
	if err != nil {
		return nil, err
	}
	requests := api.Group("/access-requests")
	{
		requests.POST("", requestHandler.Create)
		requests.GET("", requestHandler.List)
		requests.GET("/watchers/:resourceType/:resourceId", requestHandler.GetWatchers)
		requests.POST("/watchers", middleware.RequireSuperAdmin(deps.Resolver), requestHandler.AddWatcher)
		requests.DELETE("/watchers/:resourceType/:resourceId/:userId", middleware.RequireSuperAdmin(deps.Resolver), requestHandler.RemoveWatcher)
		requests.GET("/:id", requestHandler.Get)
		requests.POST("/:id/approve", requestHandler.Approve)
		requests.POST("/:id/deny", requestHandler.Deny)
		requests.POST("/:id/cancel", requestHandler.Cancel)
	}

	uiHandler, err := handlers.NewUIPermissionHandler(deps.UIPermissions)
	if err != nil {
		return nil, err
	}
	ui := api.Group("/ui-permissions")
	{
		ui.GET("/my", uiHandler.MyUIPermissions)
		ui.GET("/users/:id", middleware.RequireSuperAdmin(deps.Resolver), uiHandler.UserUIPermissions)
		ui.PUT("", middleware.RequireSuperAdmin(deps.Resolver), uiHandler.SetUIPermission)
		ui.DELETE("/users/:id/elements/:element", middleware.RequireSuperAdmin(deps.Resolver), uiHandler.RemoveUIPermission)
	}

	auditHandler, err := handlers.NewAuditHandler(deps.Audit)
	if err != nil {
		return nil, err
	}
	api.GET("/audit", middleware.RequireSuperAdmin(deps.Resolver), auditHandler.List)

	notificationHandler, err := handlers.NewNotificationHandler(deps.Notifications)
	if err != nil {
		return nil, err
	}
	notifications := api.Group("/notifications")
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	return r, nil
}
