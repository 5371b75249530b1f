package domain

import "fmt"

// Computed lifecycle labels derived from the target system's two raw status
// codes plus identifier presence.
const (
	StatusActive         = "Active"
	StatusDeclined       = "Declined"
	StatusPending        = "Pending"
	StatusFieldMissing   = "Required field missing"
	StatusMappingMissing = "Required field mapping is missing"
)

// ApplicationStatus is the derived processing state of one application in the
// target system. Never cached across calls; either side may change it at any
// time. A zero-value struct (all nil) means the application is unknown to the
// target system.
type ApplicationStatus struct {
	RegistrationStage *int64
	DecisionStage     *int64
	Computed          *string
	TargetID          *string
	ErrorMessage      *string
}

// Known reports whether the target system has any row for the application.
func (s ApplicationStatus) Known() bool {
	return s.RegistrationStage != nil || s.DecisionStage != nil ||
		s.Computed != nil || s.TargetID != nil || s.ErrorMessage != nil
}

// Active reports whether the computed label is the active one.
func (s ApplicationStatus) Active() bool {
	return s.Computed != nil && *s.Computed == StatusActive
}

// Resubmittable reports whether the application exists in the target system
// but never finished intake, so a fresh submission should be attempted.
func (s ApplicationStatus) Resubmittable() bool {
	return s.RegistrationStage != nil &&
		(*s.RegistrationStage == 1 || *s.RegistrationStage == 2) &&
		s.DecisionStage == nil
}

// ComputeStatus derives the lifecycle label from the registration-stage code,
// the decision-stage code, and identifier presence. The rows are evaluated in
// a fixed precedence order: the registration stage alone is ambiguous, so the
// decision stage and identifier presence disambiguate.
func ComputeStatus(reg, dec *int64, targetID *string) string {
	regSettled := reg != nil && (*reg == 0 || *reg == 3 || *reg == 4)
	switch {
	case regSettled && dec != nil && *dec == 2 && targetID != nil:
		return StatusActive
	case regSettled && dec != nil && *dec == 3 && targetID == nil:
		return StatusDeclined
	case regSettled && dec != nil && *dec == 1 && targetID == nil:
		return StatusPending
	case reg != nil && *reg == 1 && dec == nil && targetID == nil:
		return StatusFieldMissing
	case reg != nil && *reg == 2 && dec == nil && targetID == nil:
		return StatusMappingMissing
	default:
		if reg == nil {
			return "Unrecognized status: null"
		}
		return fmt.Sprintf("Unrecognized status: %d", *reg)
	}
}
