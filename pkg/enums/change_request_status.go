package enums

import "fmt"

// ChangeRequestStatus tracks customer-submitted quote modifications.
type ChangeRequestStatus string

const (
	ChangeRequestStatusPending  ChangeRequestStatus = "pending"
	ChangeRequestStatusApproved ChangeRequestStatus = "approved"
	ChangeRequestStatusRejected ChangeRequestStatus = "rejected"
)

var validChangeRequestStatuses = []ChangeRequestStatus{
	ChangeRequestStatusPending,
	ChangeRequestStatusApproved,
	ChangeRequestStatusRejected,
}

// String implements fmt.Stringer.
func (c ChangeRequestStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c ChangeRequestStatus) IsValid() bool {
	for _, candidate := range validChangeRequestStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChangeRequestStatus converts raw input into a ChangeRequestStatus.
func ParseChangeRequestStatus(value string) (ChangeRequestStatus, error) {
	for _, candidate := range validChangeRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid change request status %q", value)
}
