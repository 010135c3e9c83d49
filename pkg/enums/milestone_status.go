package enums

import "fmt"

// MilestoneStatus tracks a payment milestone's collection lifecycle.
// Milestones are never deleted, only voided.
type MilestoneStatus string

const (
	MilestoneStatusDraft   MilestoneStatus = "draft"
	MilestoneStatusPending MilestoneStatus = "pending"
	MilestoneStatusSent    MilestoneStatus = "sent"
	MilestoneStatusPaid    MilestoneStatus = "paid"
	MilestoneStatusVoided  MilestoneStatus = "voided"
)

var validMilestoneStatuses = []MilestoneStatus{
	MilestoneStatusDraft,
	MilestoneStatusPending,
	MilestoneStatusSent,
	MilestoneStatusPaid,
	MilestoneStatusVoided,
}

// String implements fmt.Stringer.
func (m MilestoneStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is known.
func (m MilestoneStatus) IsValid() bool {
	for _, candidate := range validMilestoneStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsActive reports whether the milestone still counts toward the schedule.
func (m MilestoneStatus) IsActive() bool {
	return m != MilestoneStatusVoided
}

// ParseMilestoneStatus converts raw input into a MilestoneStatus.
func ParseMilestoneStatus(value string) (MilestoneStatus, error) {
	for _, candidate := range validMilestoneStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid milestone status %q", value)
}
