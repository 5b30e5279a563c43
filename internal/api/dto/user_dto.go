package dto

import (
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// IdentityResponse describes the authenticated caller.
type IdentityResponse struct {
	ID    string      `json:"id"`
	Name  string      `json:"name,omitempty"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// NewIdentityResponse maps an identity.
func NewIdentityResponse(identity domain.Identity) IdentityResponse {
	return IdentityResponse{
		ID:    identity.ID,
		Name:  identity.Name,
		Email: identity.Email,
		Role:  identity.Role,
	}
}

// PresenceResponse reports connected identities.
type PresenceResponse struct {
	AgentsOnline int                  `json:"agents_online"`
	Counts       map[domain.Role]int  `json:"counts"`
	Connections  []PresenceConnection `json:"connections,omitempty"`
}

// PresenceConnection is one live subscription.
type PresenceConnection struct {
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// UserExportResponse is the caller's data export.
type UserExportResponse struct {
	User IdentityResponse `json:"user"`
	*service.UserExport
}
