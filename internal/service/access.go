package service

import (
	"eventbook/internal/models"
)

// AccessService resolves an actor's role relative to a booking. Admin ids
// come from config; customer and vendor relationships come from the booking
// row itself. This is the single authorization guard consulted before any
// transition.
type AccessService struct {
	admins map[int64]bool
}

func NewAccessService(admins []int64) *AccessService {
	m := make(map[int64]bool, len(admins))
	for _, id := range admins {
		m[id] = true
	}
	return &AccessService{admins: m}
}

// ResolveRole returns the actor's role for the booking, or "" when the
// actor has no relationship to it. Admin takes precedence.
func (s *AccessService) ResolveRole(actorID int64, booking *models.Booking) models.Role {
	if s.admins[actorID] {
		return models.RoleAdmin
	}
	if booking == nil {
		return ""
	}
	if actorID == booking.CustomerID {
		return models.RoleCustomer
	}
	if actorID == booking.VendorID {
		return models.RoleVendor
	}
	return ""
}

// IsAdmin reports whether the actor is a configured administrator.
func (s *AccessService) IsAdmin(actorID int64) bool {
	return s.admins[actorID]
}
