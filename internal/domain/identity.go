package domain

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Role is the access level stored on a user profile.
type Role string

const (
	RoleAdmin           Role = "admin"
	RoleEditor          Role = "editor"
	RoleViewer          Role = "viewer"
	RolePendingApproval Role = "pending_approval"
)

// ParseRole normalises a stored role name.
func ParseRole(raw string) (Role, error) {
	switch role := Role(strings.ToLower(strings.TrimSpace(raw))); role {
	case RoleAdmin, RoleEditor, RoleViewer, RolePendingApproval:
		return role, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Identity is an authenticated user as seen by the workflow.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
	Name  string    `json:"name,omitempty"`
	Role  Role      `json:"role"`
}

// DisplayName renders a short requester/reviewer label.
func (i Identity) DisplayName() string {
	return DisplayName(i.Name, i.Email)
}

// DisplayName picks the first name when known, otherwise the leading part of
// the email's local part, capitalised.
func DisplayName(name, email string) string {
	if name = strings.TrimSpace(name); name != "" {
		return strings.Fields(name)[0]
	}
	email = strings.TrimSpace(email)
	if email == "" || strings.Contains(strings.ToLower(email), "error") || email == "Unknown User" {
		return "Unknown"
	}
	username, _, _ := strings.Cut(email, "@")
	if before, _, ok := strings.Cut(username, "."); ok {
		return before
	}
	if before, _, ok := strings.Cut(username, "_"); ok {
		return before
	}
	if username == "" {
		return "Unknown"
	}
	return strings.ToUpper(username[:1]) + username[1:]
}
