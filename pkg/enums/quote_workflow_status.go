package enums

import "fmt"

// QuoteWorkflowStatus tracks a quote through intake, estimation, and delivery.
type QuoteWorkflowStatus string

const (
	QuoteStatusPending     QuoteWorkflowStatus = "pending"
	QuoteStatusUnderReview QuoteWorkflowStatus = "under_review"
	QuoteStatusQuoted      QuoteWorkflowStatus = "quoted"
	QuoteStatusEstimated   QuoteWorkflowStatus = "estimated"
	QuoteStatusApproved    QuoteWorkflowStatus = "approved"
	QuoteStatusPaid        QuoteWorkflowStatus = "paid"
	QuoteStatusConfirmed   QuoteWorkflowStatus = "confirmed"
	QuoteStatusCompleted   QuoteWorkflowStatus = "completed"
	QuoteStatusCancelled   QuoteWorkflowStatus = "cancelled"
)

var validQuoteWorkflowStatuses = []QuoteWorkflowStatus{
	QuoteStatusPending,
	QuoteStatusUnderReview,
	QuoteStatusQuoted,
	QuoteStatusEstimated,
	QuoteStatusApproved,
	QuoteStatusPaid,
	QuoteStatusConfirmed,
	QuoteStatusCompleted,
	QuoteStatusCancelled,
}

// String implements fmt.Stringer.
func (q QuoteWorkflowStatus) String() string {
	return string(q)
}

// IsValid reports whether the value is known.
func (q QuoteWorkflowStatus) IsValid() bool {
	for _, candidate := range validQuoteWorkflowStatuses {
		if candidate == q {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (q QuoteWorkflowStatus) IsTerminal() bool {
	return q == QuoteStatusCompleted || q == QuoteStatusCancelled
}

// ParseQuoteWorkflowStatus converts raw input into a QuoteWorkflowStatus.
func ParseQuoteWorkflowStatus(value string) (QuoteWorkflowStatus, error) {
	for _, candidate := range validQuoteWorkflowStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid quote workflow status %q", value)
}
