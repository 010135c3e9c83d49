package quotes

import (
	"github.com/jmorales/caterflow-backend/pkg/enums"
)

// workflowEdges defines the allowed forward transitions of the quote
// lifecycle. Cancellation is handled separately: any non-terminal status may
// move to cancelled.
var workflowEdges = map[enums.QuoteWorkflowStatus]enums.QuoteWorkflowStatus{
	enums.QuoteStatusPending:     enums.QuoteStatusUnderReview,
	enums.QuoteStatusUnderReview: enums.QuoteStatusQuoted,
	enums.QuoteStatusQuoted:      enums.QuoteStatusEstimated,
	enums.QuoteStatusEstimated:   enums.QuoteStatusApproved,
	enums.QuoteStatusApproved:    enums.QuoteStatusPaid,
	enums.QuoteStatusPaid:        enums.QuoteStatusConfirmed,
	enums.QuoteStatusConfirmed:   enums.QuoteStatusCompleted,
}

// CanTransition reports whether a quote may move from one workflow status to
// another.
func CanTransition(from, to enums.QuoteWorkflowStatus) bool {
	if !from.IsValid() || !to.IsValid() || from == to {
		return false
	}
	if to == enums.QuoteStatusCancelled {
		return !from.IsTerminal()
	}
	return workflowEdges[from] == to
}
