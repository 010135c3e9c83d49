package enums

import "fmt"

// DriftStatus summarizes divergence between a quote and its derived invoice.
type DriftStatus string

const (
	DriftStatusNone           DriftStatus = "none"
	DriftStatusAutoResolvable DriftStatus = "auto_resolvable"
	DriftStatusNeedsReview    DriftStatus = "needs_review"
)

// String implements fmt.Stringer.
func (d DriftStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is known.
func (d DriftStatus) IsValid() bool {
	switch d {
	case DriftStatusNone, DriftStatusAutoResolvable, DriftStatusNeedsReview:
		return true
	}
	return false
}

// ChangeImpact ranks how much a changed quote field matters to the estimate.
type ChangeImpact string

const (
	ChangeImpactLow    ChangeImpact = "low"
	ChangeImpactMedium ChangeImpact = "medium"
	ChangeImpactHigh   ChangeImpact = "high"
)

// String implements fmt.Stringer.
func (c ChangeImpact) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c ChangeImpact) IsValid() bool {
	switch c {
	case ChangeImpactLow, ChangeImpactMedium, ChangeImpactHigh:
		return true
	}
	return false
}

// ParseChangeImpact converts raw input into a ChangeImpact.
func ParseChangeImpact(value string) (ChangeImpact, error) {
	switch ChangeImpact(value) {
	case ChangeImpactLow, ChangeImpactMedium, ChangeImpactHigh:
		return ChangeImpact(value), nil
	}
	return "", fmt.Errorf("invalid change impact %q", value)
}
