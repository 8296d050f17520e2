package authz

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mediadesk/mediadesk/internal/models"
)

// ResourceType identifies the kind of resource a permission applies to.
type ResourceType string

// Action identifies an operation a user may perform on a resource.
type Action string

// Disposition is the allow/deny outcome carried by an explicit permission row.
type Disposition string

const (
	ResourceFolder      ResourceType = "folder"
	ResourceFileRequest ResourceType = "file_request"
	ResourceMediaFile   ResourceType = "media_file"
)

const (
	ActionView     Action = "view"
	ActionCreate   Action = "create"
	ActionEdit     Action = "edit"
	ActionDelete   Action = "delete"
	ActionAssign   Action = "assign"
	ActionUnassign Action = "unassign"
)

const (
	DispositionAllow Disposition = "allow"
	DispositionDeny  Disposition = "deny"
)

var (
	// ErrUnknownResourceType indicates a resource type outside the catalog.
	ErrUnknownResourceType = errors.New("authz: unknown resource type")
	// ErrUnknownAction indicates an action outside the catalog.
	ErrUnknownAction = errors.New("authz: unknown action")
	// ErrUnknownDisposition indicates a disposition other than allow/deny.
	ErrUnknownDisposition = errors.New("authz: unknown disposition")
)

var resourceTypes = map[ResourceType]struct{}{
	ResourceFolder:      {},
	ResourceFileRequest: {},
	ResourceMediaFile:   {},
}

var actions = map[Action]struct{}{
	ActionView:     {},
	ActionCreate:   {},
	ActionEdit:     {},
	ActionDelete:   {},
	ActionAssign:   {},
	ActionUnassign: {},
}

// ParseResourceType validates and normalises a resource type string.
func ParseResourceType(value string) (ResourceType, error) {
	rt := ResourceType(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := resourceTypes[rt]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownResourceType, value)
	}
	return rt, nil
}

// ParseAction validates and normalises an action string.
func ParseAction(value string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := actions[a]; !ok {
		return "", fmt.Errorf("%w %q", ErrUnknownAction, value)
	}
	return a, nil
}

// ParseDisposition validates and normalises a disposition string.
func ParseDisposition(value string) (Disposition, error) {
	d := Disposition(strings.ToLower(strings.TrimSpace(value)))
	if d != DispositionAllow && d != DispositionDeny {
		return "", fmt.Errorf("%w %q", ErrUnknownDisposition, value)
	}
	return d, nil
}

// Actions returns the full action catalog in stable order.
func Actions() []Action {
	return []Action{ActionView, ActionCreate, ActionEdit, ActionDelete, ActionAssign, ActionUnassign}
}

// ResourceTypes returns the full resource type catalog in stable order.
func ResourceTypes() []ResourceType {
	return []ResourceType{ResourceFolder, ResourceFileRequest, ResourceMediaFile}
}

// folderAdminAllows maps an action onto the delegated admin's capability
// flags. Holding any folder-admin row grants view; every other action needs
// its specific flag.
func folderAdminAllows(admin *models.FolderAdmin, action Action) bool {
	if admin == nil {
		return false
	}

	switch action {
	case ActionView:
		return true
	case ActionCreate, ActionEdit:
		return admin.CanManageRequests
	case ActionDelete:
		return admin.CanDeleteFiles
	case ActionAssign:
		return admin.CanGrantAccess
	case ActionUnassign:
		return admin.CanRevokeAccess
	default:
		return false
	}
}
