// Package access maps user roles to the actions they may take. The same
// predicates gate HTTP routes and workflow transitions.
package access

import (
	"github.com/google/uuid"

	"github.com/aashishaacharya/IMUdb-web/internal/domain"
)

// Page identifies a role-gated area of the dashboard.
type Page string

const (
	PageDashboard    Page = "dashboard"
	PageSites        Page = "sites"
	PageSiteMap      Page = "site_map"
	PageSiteDetail   Page = "site_detail"
	PageEditSite     Page = "edit_site"
	PageAddSite      Page = "add_site"
	PagePendingEdits Page = "pending_edits"
)

var pageRoles = map[Page][]domain.Role{
	PageDashboard:    {domain.RoleAdmin, domain.RoleEditor, domain.RoleViewer},
	PageSites:        {domain.RoleAdmin, domain.RoleEditor, domain.RoleViewer},
	PageSiteMap:      {domain.RoleAdmin, domain.RoleEditor, domain.RoleViewer},
	PageSiteDetail:   {domain.RoleAdmin, domain.RoleEditor, domain.RoleViewer},
	PageEditSite:     {domain.RoleAdmin, domain.RoleEditor},
	PageAddSite:      {domain.RoleAdmin},
	PagePendingEdits: {domain.RoleAdmin, domain.RoleEditor},
}

// CanSubmitEdit reports whether the role may propose changes.
func CanSubmitEdit(role domain.Role) bool {
	return role == domain.RoleAdmin || role == domain.RoleEditor
}

// CanReview reports whether the role may approve or reject edits.
func CanReview(role domain.Role) bool {
	return role == domain.RoleAdmin || role == domain.RoleEditor
}

// CanDelete reports whether the actor may withdraw an edit: admins always,
// everyone else only their own.
func CanDelete(role domain.Role, actorID, requesterID uuid.UUID) bool {
	if role == domain.RoleAdmin {
		return true
	}
	return actorID != uuid.Nil && actorID == requesterID
}

// CanAccessPage reports whether the role may open a page. Accounts awaiting
// approval are denied everywhere.
func CanAccessPage(role domain.Role, page Page) bool {
	for _, allowed := range pageRoles[page] {
		if allowed == role {
			return true
		}
	}
	return false
}

// Permissions summarises what an identity may do; it is returned to the
// dashboard so it can hide controls the server would refuse anyway.
type Permissions struct {
	SubmitEdit bool   `json:"submit_edit"`
	Review     bool   `json:"review"`
	Pages      []Page `json:"pages"`
}

// For computes the permission summary of an identity.
func For(identity domain.Identity) Permissions {
	perms := Permissions{
		SubmitEdit: CanSubmitEdit(identity.Role),
		Review:     CanReview(identity.Role),
		Pages:      []Page{},
	}
	for _, page := range []Page{PageDashboard, PageSites, PageSiteMap, PageSiteDetail, PageEditSite, PageAddSite, PagePendingEdits} {
		if CanAccessPage(identity.Role, page) {
			perms.Pages = append(perms.Pages, page)
		}
	}
	return perms
}
