// Package rbac maps staff roles to console capabilities.
package rbac

import (
	"strings"
)

// Role represents a staff access tier.
type Role string

const (
	// RoleAdmin holds every capability.
	RoleAdmin Role = "admin"
	// RoleSubAdmin manages orders and moderates chat but cannot delete orders.
	RoleSubAdmin Role = "sub_admin"
	// RoleSupport reads orders and replies in chat.
	RoleSupport Role = "support"
)

// Capability represents a discrete feature guarded by the HTTP surface.
type Capability string

const (
	CapOrdersList        Capability = "orders.list"
	CapOrdersDetail      Capability = "orders.detail"
	CapOrdersAnalytics   Capability = "orders.analytics"
	CapOrdersStatus      Capability = "orders.status"
	CapOrdersDelete      Capability = "orders.delete"
	CapChatReply         Capability = "chat.reply"
	CapChatModerate      Capability = "chat.moderate"
	CapNotificationsFeed Capability = "notifications.feed"
)

var capabilityRoles = map[Capability]Roles{
	CapOrdersList:        {RoleAdmin, RoleSubAdmin, RoleSupport},
	CapOrdersDetail:      {RoleAdmin, RoleSubAdmin, RoleSupport},
	CapOrdersAnalytics:   {RoleAdmin, RoleSubAdmin},
	CapOrdersStatus:      {RoleAdmin, RoleSubAdmin},
	CapOrdersDelete:      {RoleAdmin},
	CapChatReply:         {RoleAdmin, RoleSubAdmin, RoleSupport},
	CapChatModerate:      {RoleAdmin, RoleSubAdmin},
	CapNotificationsFeed: {RoleAdmin, RoleSubAdmin, RoleSupport},
}

// Roles captures a list of roles and exposes intersection checks.
type Roles []Role

// Has returns true if the provided role exists in the set.
func (rs Roles) Has(role Role) bool {
	for _, r := range rs {
		if r == role {
			return true
		}
	}
	return false
}

// Intersects returns true if any role in the candidate slice is also present in the set.
func (rs Roles) Intersects(candidate Roles) bool {
	for _, role := range candidate {
		if rs.Has(role) {
			return true
		}
	}
	return false
}

// NormaliseRoles converts raw role strings into canonical Role values.
// "SUB-ADMIN" and "sub admin" both normalise to sub_admin.
func NormaliseRoles(raw []string) Roles {
	if len(raw) == 0 {
		return nil
	}
	seen := make(map[Role]struct{}, len(raw))
	roles := make(Roles, 0, len(raw))
	for _, val := range raw {
		cleaned := strings.ToLower(strings.TrimSpace(val))
		cleaned = strings.NewReplacer("-", "_", " ", "_").Replace(cleaned)
		role := Role(cleaned)
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, role)
	}
	return roles
}

// RolesForCapability returns the configured roles able to access the capability.
func RolesForCapability(capability Capability) Roles {
	if roles, ok := capabilityRoles[capability]; ok {
		return roles
	}
	return nil
}

// HasCapability reports whether the provided roles grant access to the capability.
// Admin users implicitly possess every defined capability.
func HasCapability(userRoles []string, capability Capability) bool {
	if capability == "" {
		return true
	}
	allowed := RolesForCapability(capability)
	if len(allowed) == 0 {
		return false
	}
	roles := NormaliseRoles(userRoles)
	if roles.Has(RoleAdmin) {
		return true
	}
	return allowed.Intersects(roles)
}

// CapabilitiesForRoles enumerates the capabilities accessible to the provided user roles.
func CapabilitiesForRoles(userRoles []string) map[Capability]bool {
	roles := NormaliseRoles(userRoles)
	caps := make(map[Capability]bool, len(capabilityRoles))
	for capability, allowed := range capabilityRoles {
		if roles.Has(RoleAdmin) || allowed.Intersects(roles) {
			caps[capability] = true
		}
	}
	return caps
}

// ChatRole returns the sender role staff messages carry: SUB_ADMIN for
// sub-admins without the admin role, ADMIN otherwise. Support staff reply
// as ADMIN.
func ChatRole(userRoles []string) string {
	roles := NormaliseRoles(userRoles)
	if roles.Has(RoleSubAdmin) && !roles.Has(RoleAdmin) {
		return "SUB_ADMIN"
	}
	return "ADMIN"
}
