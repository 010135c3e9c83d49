package schedule

import (
	"fmt"
	"time"

	"github.com/jmorales/caterflow-backend/pkg/config"
	"github.com/jmorales/caterflow-backend/pkg/enums"
	"github.com/jmorales/caterflow-backend/pkg/errors"
	"github.com/shopspring/decimal"
)

// Policy holds the business constants that shape a payment schedule. The
// defaults mirror how the sales team quotes events today; they are surfaced
// through BillingConfig so ops can tune them without a deploy.
type Policy struct {
	DepositPercent   int
	InterimPercent   int
	BalancePercent   int
	RushCutoffDays   int
	InterimPlacement float64
	BalanceLeadDays  int
	Net30Days        int
}

// DefaultPolicy returns the standard 25/50/25 schedule with a 10-day rush
// cutoff.
func DefaultPolicy() Policy {
	return Policy{
		DepositPercent:   25,
		InterimPercent:   50,
		BalancePercent:   25,
		RushCutoffDays:   10,
		InterimPlacement: 0.5,
		BalanceLeadDays:  3,
		Net30Days:        30,
	}
}

// PolicyFromConfig maps billing configuration onto a schedule policy.
func PolicyFromConfig(cfg config.BillingConfig) Policy {
	return Policy{
		DepositPercent:   cfg.DepositPercent,
		InterimPercent:   cfg.InterimPercent,
		BalancePercent:   cfg.BalancePercent,
		RushCutoffDays:   cfg.RushCutoffDays,
		InterimPlacement: cfg.InterimPlacement,
		BalanceLeadDays:  cfg.BalanceLeadDays,
		Net30Days:        cfg.Net30Days,
	}
}

func (p Policy) validate() error {
	if p.DepositPercent <= 0 || p.InterimPercent <= 0 || p.BalancePercent <= 0 {
		return fmt.Errorf("schedule percentages must be positive")
	}
	if sum := p.DepositPercent + p.InterimPercent + p.BalancePercent; sum != 100 {
		return fmt.Errorf("schedule percentages must sum to 100, got %d", sum)
	}
	if p.RushCutoffDays < 0 {
		return fmt.Errorf("rush cutoff days must not be negative")
	}
	if p.InterimPlacement <= 0 || p.InterimPlacement >= 1 {
		return fmt.Errorf("interim placement must be inside (0, 1), got %v", p.InterimPlacement)
	}
	if p.BalanceLeadDays < 0 {
		return fmt.Errorf("balance lead days must not be negative")
	}
	if p.Net30Days <= 0 {
		return fmt.Errorf("net terms days must be positive")
	}
	return nil
}

// Input carries everything the engine needs to derive a schedule. EventDate
// and ApprovalDate are compared at day granularity.
type Input struct {
	TotalCents   int64
	CustomerType enums.CustomerType
	EventDate    time.Time
	ApprovalDate time.Time
}

// Milestone is one entry of a derived payment schedule. The caller persists
// each entry as a PaymentMilestone row.
type Milestone struct {
	Type        enums.MilestoneType
	Percentage  int
	AmountCents int64
	DueDate     *time.Time
	IsDueNow    bool
	IsNet30     bool
	Description string
}

// Engine derives payment milestones from an invoice total, the customer
// classification, and the event lead time. It is pure: no persistence, no
// clock reads.
type Engine struct {
	policy Policy
}

// NewEngine validates the policy and returns a schedule engine.
func NewEngine(policy Policy) (*Engine, error) {
	if err := policy.validate(); err != nil {
		return nil, fmt.Errorf("invalid schedule policy: %w", err)
	}
	return &Engine{policy: policy}, nil
}

// Generate produces the ordered milestone set for the given input.
//
// Government customers get a single net-30 milestone with no due date; the
// date is resolved only once the event has happened. Events inside the rush
// cutoff get a single due-now milestone. Everything else gets the three-tier
// deposit/interim/balance split, with the rounding remainder folded into the
// final milestone so the amounts always sum to the invoice total.
func (e *Engine) Generate(input Input) ([]Milestone, error) {
	if input.TotalCents <= 0 {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("invoice total must be positive, got %d cents", input.TotalCents))
	}
	if !input.CustomerType.IsValid() {
		return nil, errors.New(errors.CodeValidation, fmt.Sprintf("invalid customer type %q", input.CustomerType))
	}
	if input.EventDate.IsZero() || input.ApprovalDate.IsZero() {
		return nil, errors.New(errors.CodeValidation, "event date and approval date are required")
	}

	approval := truncateToDay(input.ApprovalDate)
	event := truncateToDay(input.EventDate)
	leadDays := int(event.Sub(approval).Hours() / 24)
	if leadDays < 0 {
		return nil, errors.New(errors.CodeValidation, "event date is before approval date")
	}

	if input.CustomerType == enums.CustomerTypeGovernment {
		return []Milestone{{
			Type:        enums.MilestoneTypeFinal,
			Percentage:  100,
			AmountCents: input.TotalCents,
			IsNet30:     true,
			Description: fmt.Sprintf("Full balance, net-%d after event", e.policy.Net30Days),
		}}, nil
	}

	if leadDays <= e.policy.RushCutoffDays {
		return []Milestone{{
			Type:        enums.MilestoneTypeFinal,
			Percentage:  100,
			AmountCents: input.TotalCents,
			IsDueNow:    true,
			Description: "Full payment due on approval (rush event)",
		}}, nil
	}

	deposit := portionCents(input.TotalCents, e.policy.DepositPercent)
	interim := portionCents(input.TotalCents, e.policy.InterimPercent)
	balance := input.TotalCents - deposit - interim

	interimDue := approval.AddDate(0, 0, int(float64(leadDays)*e.policy.InterimPlacement))
	balanceDue := event.AddDate(0, 0, -e.policy.BalanceLeadDays)
	if balanceDue.Before(interimDue) {
		balanceDue = interimDue
	}

	return []Milestone{
		{
			Type:        enums.MilestoneTypeDeposit,
			Percentage:  e.policy.DepositPercent,
			AmountCents: deposit,
			IsDueNow:    true,
			Description: fmt.Sprintf("%d%% deposit due on approval", e.policy.DepositPercent),
		},
		{
			Type:        enums.MilestoneTypeMilestone,
			Percentage:  e.policy.InterimPercent,
			AmountCents: interim,
			DueDate:     &interimDue,
			Description: fmt.Sprintf("%d%% interim payment", e.policy.InterimPercent),
		},
		{
			Type:        enums.MilestoneTypeBalance,
			Percentage:  e.policy.BalancePercent,
			AmountCents: balance,
			DueDate:     &balanceDue,
			Description: fmt.Sprintf("%d%% balance due %d days before event", e.policy.BalancePercent, e.policy.BalanceLeadDays),
		},
	}, nil
}

// portionCents computes round(total * percent / 100) with half rounding away
// from zero. Only used for non-final milestones; the final one absorbs the
// remainder.
func portionCents(totalCents int64, percent int) int64 {
	return decimal.NewFromInt(totalCents).
		Mul(decimal.NewFromInt(int64(percent))).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
