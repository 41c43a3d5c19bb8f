package lifecycle

import (
	"fmt"

	"eventbook/internal/models"
)

// transitions is the authoritative edge list of the booking lifecycle.
// Anything not listed here is rejected with ErrInvalidTransition.
var transitions = map[models.Status]map[models.Action]models.Status{
	models.StatusPendingVendor: {
		models.ActionVendorAccept: models.StatusPendingAdmin,
		models.ActionVendorReject: models.StatusVendorRejected,
		models.ActionCancel:       models.StatusCancelled,
	},
	models.StatusPendingAdmin: {
		models.ActionAdminApprove: models.StatusPendingOtp,
		models.ActionAdminReject:  models.StatusAdminRejected,
		models.ActionCancel:       models.StatusCancelled,
	},
	models.StatusPendingOtp: {
		models.ActionSubmitOtp: models.StatusOtpInProgress,
		models.ActionOtpExpire: models.StatusOtpFailed,
		models.ActionCancel:    models.StatusCancelled,
	},
	// otp_verification_in_progress is entered and resolved inside a single
	// submit_otp call; its outgoing edges describe the synchronous outcome.
	models.StatusOtpInProgress: {
		models.ActionCancel: models.StatusCancelled,
	},
	models.StatusOtpFailed: {
		models.ActionRegenerateOtp: models.StatusPendingOtp,
		models.ActionCancel:        models.StatusCancelled,
	},
	models.StatusConfirmed: {
		models.ActionEventPassed: models.StatusAwaitingReview,
		models.ActionCancel:      models.StatusCancelled,
	},
	models.StatusAwaitingReview: {
		models.ActionSubmitReview:  models.StatusCompleted,
		models.ActionReviewElapsed: models.StatusCompleted,
	},
}

var terminal = map[models.Status]bool{
	models.StatusVendorRejected: true,
	models.StatusAdminRejected:  true,
	models.StatusCompleted:      true,
	models.StatusCancelled:      true,
}

// actionRoles lists which roles may trigger each action. Time-driven
// actions belong to the sweep and require the system role.
var actionRoles = map[models.Action][]models.Role{
	models.ActionVendorAccept:  {models.RoleVendor},
	models.ActionVendorReject:  {models.RoleVendor},
	models.ActionAdminApprove:  {models.RoleAdmin},
	models.ActionAdminReject:   {models.RoleAdmin},
	models.ActionSubmitOtp:     {models.RoleCustomer},
	models.ActionRegenerateOtp: {models.RoleAdmin},
	models.ActionCancel:        {models.RoleCustomer, models.RoleAdmin},
	models.ActionSubmitReview:  {models.RoleCustomer},
	models.ActionOtpExpire:     {models.RoleSystem},
	models.ActionEventPassed:   {models.RoleSystem},
	models.ActionReviewElapsed: {models.RoleSystem},
}

// IsTerminal reports whether no further transitions are permitted.
func IsTerminal(s models.Status) bool {
	return terminal[s]
}

// RoleAllowed reports whether the role may trigger the action at all.
func RoleAllowed(action models.Action, role models.Role) bool {
	for _, r := range actionRoles[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Next returns the target status for an action from the given status.
// Terminal states have no outgoing edges.
func Next(from models.Status, action models.Action) (models.Status, error) {
	edges, ok := transitions[from]
	if !ok {
		return "", ErrInvalidTransition
	}
	to, ok := edges[action]
	if !ok {
		return "", ErrInvalidTransition
	}
	return to, nil
}

func ParseStatus(s string) (models.Status, error) {
	switch models.Status(s) {
	case models.StatusPendingVendor, models.StatusPendingAdmin, models.StatusVendorRejected,
		models.StatusPendingOtp, models.StatusAdminRejected, models.StatusOtpInProgress,
		models.StatusOtpFailed, models.StatusConfirmed, models.StatusAwaitingReview,
		models.StatusCompleted, models.StatusCancelled:
		return models.Status(s), nil
	default:
		return "", fmt.Errorf("unknown status: %s", s)
	}
}

func ParseAction(s string) (models.Action, error) {
	switch models.Action(s) {
	case models.ActionVendorAccept, models.ActionVendorReject, models.ActionAdminApprove,
		models.ActionAdminReject, models.ActionSubmitOtp, models.ActionRegenerateOtp,
		models.ActionCancel, models.ActionSubmitReview,
		models.ActionOtpExpire, models.ActionEventPassed, models.ActionReviewElapsed:
		return models.Action(s), nil
	default:
		return "", fmt.Errorf("unknown action: %s", s)
	}
}
