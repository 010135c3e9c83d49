package enums

import "fmt"

// MilestoneType names each tier of a payment schedule.
type MilestoneType string

const (
	MilestoneTypeDeposit   MilestoneType = "deposit"
	MilestoneTypeMilestone MilestoneType = "milestone"
	MilestoneTypeBalance   MilestoneType = "balance"
	MilestoneTypeFinal     MilestoneType = "final"
)

var validMilestoneTypes = []MilestoneType{
	MilestoneTypeDeposit,
	MilestoneTypeMilestone,
	MilestoneTypeBalance,
	MilestoneTypeFinal,
}

// String implements fmt.Stringer.
func (m MilestoneType) String() string {
	return string(m)
}

// IsValid reports whether the value is known.
func (m MilestoneType) IsValid() bool {
	for _, candidate := range validMilestoneTypes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMilestoneType converts raw input into a MilestoneType.
func ParseMilestoneType(value string) (MilestoneType, error) {
	for _, candidate := range validMilestoneTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid milestone type %q", value)
}
