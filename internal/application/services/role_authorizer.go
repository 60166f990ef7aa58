package services

import (
	"github.com/medleaf/pharmacy-backend/internal/domain/entities"
	"github.com/medleaf/pharmacy-backend/internal/domain/providers"
)

// RoleAuthorizer maps actions to the roles allowed to perform them
type RoleAuthorizer struct {
	allowed map[providers.Action][]entities.Role
}

// NewRoleAuthorizer creates the default role-to-action mapping
func NewRoleAuthorizer() providers.Authorizer {
	return &RoleAuthorizer{
		allowed: map[providers.Action][]entities.Role{
			providers.ActionUploadPrescription: {entities.RoleCustomer, entities.RoleAdmin},
			providers.ActionAssignPrescription: {entities.RoleVerifier, entities.RoleAdmin},
			providers.ActionDecidePrescription: {entities.RoleVerifier, entities.RoleAdmin},
			providers.ActionManageAvailability: {entities.RoleVerifier, entities.RoleAdmin},
			providers.ActionProvisionVerifier:  {entities.RoleAdmin},
			providers.ActionViewAnalytics:      {entities.RoleVerifier, entities.RoleAdmin},
		},
	}
}

// Can reports whether the user may perform the action
func (a *RoleAuthorizer) Can(user *entities.User, action providers.Action) bool {
	if user == nil || !user.IsActive {
		return false
	}
	for _, role := range a.allowed[action] {
		if user.Role == role {
			return true
		}
	}
	return false
}
