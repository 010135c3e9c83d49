package enums

import "fmt"

// InvoiceWorkflowStatus tracks an estimate/invoice document lifecycle.
type InvoiceWorkflowStatus string

const (
	InvoiceStatusDraft          InvoiceWorkflowStatus = "draft"
	InvoiceStatusSent           InvoiceWorkflowStatus = "sent"
	InvoiceStatusViewed         InvoiceWorkflowStatus = "viewed"
	InvoiceStatusApproved       InvoiceWorkflowStatus = "approved"
	InvoiceStatusPaymentPending InvoiceWorkflowStatus = "payment_pending"
	InvoiceStatusPartiallyPaid  InvoiceWorkflowStatus = "partially_paid"
	InvoiceStatusPaid           InvoiceWorkflowStatus = "paid"
	InvoiceStatusOverdue        InvoiceWorkflowStatus = "overdue"
	InvoiceStatusCancelled      InvoiceWorkflowStatus = "cancelled"
)

var validInvoiceWorkflowStatuses = []InvoiceWorkflowStatus{
	InvoiceStatusDraft,
	InvoiceStatusSent,
	InvoiceStatusViewed,
	InvoiceStatusApproved,
	InvoiceStatusPaymentPending,
	InvoiceStatusPartiallyPaid,
	InvoiceStatusPaid,
	InvoiceStatusOverdue,
	InvoiceStatusCancelled,
}

// String implements fmt.Stringer.
func (i InvoiceWorkflowStatus) String() string {
	return string(i)
}

// IsValid reports whether the value is known.
func (i InvoiceWorkflowStatus) IsValid() bool {
	for _, candidate := range validInvoiceWorkflowStatuses {
		if candidate == i {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the document can no longer change status.
func (i InvoiceWorkflowStatus) IsTerminal() bool {
	return i == InvoiceStatusPaid || i == InvoiceStatusCancelled
}

// ParseInvoiceWorkflowStatus converts raw input into an InvoiceWorkflowStatus.
func ParseInvoiceWorkflowStatus(value string) (InvoiceWorkflowStatus, error) {
	for _, candidate := range validInvoiceWorkflowStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid invoice workflow status %q", value)
}
